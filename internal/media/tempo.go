package media

import (
	"fmt"
	"strconv"
	"strings"
)

// Single atempo filter bounds. Ratios outside this range are decomposed into
// a chain of filters whose product equals the requested tempo.
const (
	atempoMin = 0.5
	atempoMax = 2.0
)

// TempoChain builds an ffmpeg audio filter expression applying the requested
// tempo ratio. A tempo of 1.2 shortens audio to 1/1.2 of its length.
func TempoChain(tempo float64) (string, error) {
	factors, err := tempoFactors(tempo)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(factors))
	for _, factor := range factors {
		parts = append(parts, "atempo="+strconv.FormatFloat(factor, 'f', 6, 64))
	}
	return strings.Join(parts, ","), nil
}

func tempoFactors(tempo float64) ([]float64, error) {
	if tempo <= 0 {
		return nil, fmt.Errorf("tempo must be positive, got %f", tempo)
	}

	var factors []float64
	remaining := tempo
	for remaining > atempoMax {
		factors = append(factors, atempoMax)
		remaining /= atempoMax
	}
	for remaining < atempoMin {
		factors = append(factors, atempoMin)
		remaining /= atempoMin
	}
	factors = append(factors, remaining)
	return factors, nil
}

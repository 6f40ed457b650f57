package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"redub/internal/transcribe"
)

const systemPromptTemplate = `You are a professional dubbing script writer. Rewrite each transcript segment from %s into natural, spoken %s.

Rules:
- Preserve the meaning and tone of the original line.
- Keep each rewritten line speakable within the segment's duration. Prefer shorter phrasing over literal translation when the original does not fit.
- Classify the delivery of each line as one of: neutral, serious, happy, sad, angry, excited, calm.
- Return every input segment exactly once, keyed by its index.

Respond with a JSON object of the form:
{"segments":[{"index":0,"text":"...","emotion":"neutral"}]}`

func rewriteSystemPrompt(sourceLanguage, targetLanguage string) string {
	src := strings.TrimSpace(sourceLanguage)
	if src == "" {
		src = "the source language"
	}
	return fmt.Sprintf(systemPromptTemplate, src, targetLanguage)
}

type promptSegment struct {
	Index    int     `json:"index"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

func rewriteUserPrompt(batch []transcribe.Segment) (string, error) {
	segments := make([]promptSegment, 0, len(batch))
	for _, seg := range batch {
		segments = append(segments, promptSegment{
			Index:    seg.Index,
			Start:    seg.Start,
			End:      seg.End,
			Duration: seg.End - seg.Start,
			Text:     seg.Text,
		})
	}
	data, err := json.Marshal(map[string]any{"segments": segments})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

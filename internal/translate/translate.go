package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"redub/internal/logging"
	"redub/internal/openai"
	"redub/internal/services"
	"redub/internal/transcribe"
)

// Line is a rewritten script segment ready for synthesis. Start and End are
// carried over verbatim from the source transcript; rewriting never moves
// speech in time.
type Line struct {
	Index   int     `json:"index"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Emotion string  `json:"emotion"`
}

// Emotions the synthesizer knows how to voice. Anything else the model
// invents is coerced to neutral.
var knownEmotions = map[string]struct{}{
	"neutral": {},
	"serious": {},
	"happy":   {},
	"sad":     {},
	"angry":   {},
	"excited": {},
	"calm":    {},
}

// ValidEmotion normalizes an emotion label, falling back to neutral.
func ValidEmotion(emotion string) string {
	normalized := strings.ToLower(strings.TrimSpace(emotion))
	if _, ok := knownEmotions[normalized]; ok {
		return normalized
	}
	return "neutral"
}

// ChatClient is the subset of the API client the engine needs.
type ChatClient interface {
	ChatJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options tunes the engine.
type Options struct {
	BatchSize   int
	Concurrency int
	MaxRetries  int
}

// Engine rewrites a transcript into the target language, batch by batch,
// classifying an emotion per line for expressive synthesis.
type Engine struct {
	client      ChatClient
	cache       Cache
	batchSize   int
	concurrency int
	maxRetries  int
	logger      *slog.Logger
}

// New constructs an Engine. A nil cache disables caching.
func New(client ChatClient, cache Cache, opts Options, logger *slog.Logger) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 8
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		client:      client,
		cache:       cache,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		maxRetries:  opts.MaxRetries,
		logger:      logging.WithComponent(logger, "translate"),
	}
}

// Rewrite translates every segment into targetLanguage. Output lines are in
// segment order with source timestamps preserved.
func (e *Engine) Rewrite(ctx context.Context, segments []transcribe.Segment, sourceLanguage, targetLanguage string) ([]Line, error) {
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "translate", "rewrite", "no segments to translate", nil)
	}
	targetLanguage = strings.TrimSpace(targetLanguage)
	if targetLanguage == "" {
		return nil, services.Wrap(services.ErrValidation, "translate", "rewrite", "target language required", nil)
	}

	lines := make([]Line, len(segments))
	var pending []transcribe.Segment
	for _, seg := range segments {
		if cached, ok := e.cacheGet(seg.Text, sourceLanguage, targetLanguage); ok {
			lines[seg.Index] = Line{
				Index:   seg.Index,
				Start:   seg.Start,
				End:     seg.End,
				Text:    cached.Text,
				Emotion: cached.Emotion,
			}
			continue
		}
		pending = append(pending, seg)
	}

	batches := makeBatches(pending, e.batchSize)
	if len(batches) > 0 {
		e.logger.Info("rewriting script",
			logging.Int("segments", len(segments)),
			logging.Int("cached", len(segments)-len(pending)),
			logging.Int("batches", len(batches)))
	}

	type batchResult struct {
		index int
		lines []Line
		err   error
	}

	results := make([]batchResult, len(batches))
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []transcribe.Segment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			batchLines, err := e.rewriteBatch(ctx, batch, sourceLanguage, targetLanguage)
			results[i] = batchResult{index: i, lines: batchLines, err: err}
		}(i, batch)
	}
	wg.Wait()

	for _, result := range results {
		if result.err != nil {
			return nil, result.err
		}
		for _, line := range result.lines {
			lines[line.Index] = line
			e.cachePut(segments[line.Index].Text, sourceLanguage, targetLanguage, cacheEntry{
				Text:    line.Text,
				Emotion: line.Emotion,
			})
		}
	}

	return lines, nil
}

func (e *Engine) rewriteBatch(ctx context.Context, batch []transcribe.Segment, sourceLanguage, targetLanguage string) ([]Line, error) {
	systemPrompt := rewriteSystemPrompt(sourceLanguage, targetLanguage)
	userPrompt, err := rewriteUserPrompt(batch)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "translate", "rewrite", "encode batch", err)
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		content, err := e.client.ChatJSON(ctx, systemPrompt, userPrompt)
		if err != nil {
			lastErr = err
			continue
		}
		lines, err := decodeBatch(content, batch)
		if err == nil {
			return lines, nil
		}
		lastErr = err
		e.logger.Warn("batch decode failed, retrying",
			logging.Int("attempt", attempt),
			logging.Error(err))
	}
	return nil, services.Wrap(services.ErrExternalTool, "translate", "rewrite",
		fmt.Sprintf("batch failed after %d attempts", e.maxRetries), lastErr)
}

type batchPayload struct {
	Segments []batchLine `json:"segments"`
}

type batchLine struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	Emotion string `json:"emotion"`
}

// decodeBatch parses the model response and validates it against the input
// batch. Timestamps always come from the source segments.
func decodeBatch(content string, batch []transcribe.Segment) ([]Line, error) {
	var payload batchPayload
	if err := openai.DecodeModelJSON(content, &payload); err != nil {
		repaired := RepairJSON(content)
		if repairErr := openai.DecodeModelJSON(repaired, &payload); repairErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnparseable, err)
		}
	}

	if len(payload.Segments) != len(batch) {
		return nil, fmt.Errorf("decode batch: got %d segments, want %d", len(payload.Segments), len(batch))
	}

	byIndex := make(map[int]batchLine, len(payload.Segments))
	for _, line := range payload.Segments {
		if _, dup := byIndex[line.Index]; dup {
			return nil, fmt.Errorf("decode batch: duplicate index %d", line.Index)
		}
		byIndex[line.Index] = line
	}

	lines := make([]Line, 0, len(batch))
	for _, seg := range batch {
		line, ok := byIndex[seg.Index]
		if !ok {
			return nil, fmt.Errorf("decode batch: missing index %d", seg.Index)
		}
		text := strings.TrimSpace(line.Text)
		if text == "" {
			return nil, fmt.Errorf("decode batch: empty text at index %d", seg.Index)
		}
		lines = append(lines, Line{
			Index:   seg.Index,
			Start:   seg.Start,
			End:     seg.End,
			Text:    text,
			Emotion: ValidEmotion(line.Emotion),
		})
	}
	return lines, nil
}

func makeBatches(segments []transcribe.Segment, size int) [][]transcribe.Segment {
	if len(segments) == 0 {
		return nil
	}
	var batches [][]transcribe.Segment
	for start := 0; start < len(segments); start += size {
		end := start + size
		if end > len(segments) {
			end = len(segments)
		}
		batches = append(batches, segments[start:end])
	}
	return batches
}

func (e *Engine) cacheGet(text, src, tgt string) (cacheEntry, bool) {
	if e.cache == nil {
		return cacheEntry{}, false
	}
	return e.cache.Get(CacheKey(text, src, tgt))
}

func (e *Engine) cachePut(text, src, tgt string, entry cacheEntry) {
	if e.cache == nil {
		return
	}
	e.cache.Put(CacheKey(text, src, tgt), entry)
}

// EncodeLines serializes lines for persistence.
func EncodeLines(lines []Line) (string, error) {
	data, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("encode script: %w", err)
	}
	return string(data), nil
}

// DecodeLines parses persisted script JSON.
func DecodeLines(payload string) ([]Line, error) {
	var lines []Line
	if err := json.Unmarshal([]byte(payload), &lines); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return lines, nil
}

package transcribe

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"redub/internal/logging"
	"redub/internal/openai"
	"redub/internal/services"
)

// Segment is a timed span of speech with absolute timestamps in seconds.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is a normalized transcription.
type Result struct {
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// Client is the subset of the API client the transcriber needs.
type Client interface {
	Transcribe(ctx context.Context, audioPath, language string) (openai.Transcription, error)
}

// Transcriber turns an audio file into normalized, ordered speech segments.
type Transcriber struct {
	client Client
	logger *slog.Logger
}

// New constructs a Transcriber.
func New(client Client, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Transcriber{
		client: client,
		logger: logging.WithComponent(logger, "transcribe"),
	}
}

// Transcribe runs speech recognition on audioPath. languageHint may be empty
// to let the model detect the language. An empty segment list is a valid
// result: it means the audio carries no recognizable speech, and the caller
// decides whether that ends the pipeline.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, languageHint string) (Result, error) {
	raw, err := t.client.Transcribe(ctx, audioPath, languageHint)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "whisper", "", err)
	}

	segments := NormalizeSegments(raw.Segments)

	t.logger.Info("transcription complete",
		logging.String("language", raw.Language),
		logging.Int("segments", len(segments)),
		logging.Float64("duration_sec", raw.Duration))

	return Result{
		Language: strings.ToLower(strings.TrimSpace(raw.Language)),
		Duration: raw.Duration,
		Segments: segments,
	}, nil
}

// NormalizeSegments cleans raw model segments: rounds timestamps to two
// decimals, trims text, drops empty and non-positive-duration spans, sorts
// by start time, and reindexes sequentially.
func NormalizeSegments(raw []openai.TranscriptSegment) []Segment {
	segments := make([]Segment, 0, len(raw))
	for _, seg := range raw {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		start := roundTimestamp(seg.Start)
		if start < 0 {
			start = 0
		}
		end := roundTimestamp(seg.End)
		if end <= start {
			continue
		}
		segments = append(segments, Segment{
			Start: start,
			End:   end,
			Text:  text,
		})
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
	for i := range segments {
		segments[i].Index = i
	}
	return segments
}

func roundTimestamp(seconds float64) float64 {
	return math.Round(seconds*100) / 100
}

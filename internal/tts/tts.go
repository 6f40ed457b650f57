package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/services"
	"redub/internal/translate"
)

const defaultOutputFormat = "riff-44100hz-16bit-mono-pcm"

// Sleeper pauses between retries and requests. Injectable for tests.
type Sleeper func(time.Duration)

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Synthesizer) { s.httpClient = client }
}

// WithEndpoint overrides the synthesis endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(s *Synthesizer) { s.endpoint = endpoint }
}

// WithSleeper overrides the sleep function.
func WithSleeper(sleep Sleeper) Option {
	return func(s *Synthesizer) { s.sleep = sleep }
}

// Synthesizer voices script lines through the Azure Speech REST API.
type Synthesizer struct {
	key          string
	endpoint     string
	outputFormat string
	concurrency  int
	requestDelay time.Duration
	maxRetries   int
	httpClient   *http.Client
	sleep        Sleeper
	logger       *slog.Logger
}

// New constructs a Synthesizer from the speech config section.
func New(cfg config.AzureSpeech, logger *slog.Logger, opts ...Option) *Synthesizer {
	outputFormat := cfg.OutputFormat
	if outputFormat == "" {
		outputFormat = defaultOutputFormat
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Synthesizer{
		key:          cfg.Key,
		endpoint:     fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region),
		outputFormat: outputFormat,
		concurrency:  concurrency,
		requestDelay: time.Duration(cfg.RequestDelayMS) * time.Millisecond,
		maxRetries:   maxRetries,
		httpClient:   &http.Client{Timeout: timeout},
		sleep:        time.Sleep,
		logger:       logging.WithComponent(logger, "tts"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request describes one synthesis job.
type Request struct {
	Voice    string
	Language string
}

// SegmentAudio is a voiced line written to disk.
type SegmentAudio struct {
	Index int
	Path  string
}

// SynthesizeSegments voices every line into outDir, one WAV per segment.
// All lines are attempted even when some fail; the combined error reports
// every failed index.
func (s *Synthesizer) SynthesizeSegments(ctx context.Context, lines []translate.Line, req Request, outDir string) ([]SegmentAudio, error) {
	if len(lines) == 0 {
		return nil, services.Wrap(services.ErrValidation, "tts", "synthesize", "no lines to voice", nil)
	}
	if req.Voice == "" {
		return nil, services.Wrap(services.ErrValidation, "tts", "synthesize", "voice required", nil)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "tts", "synthesize", "create output directory", err)
	}

	s.logger.Info("synthesizing speech",
		logging.String("voice", req.Voice),
		logging.Int("lines", len(lines)))

	results := make([]SegmentAudio, len(lines))
	errs := make([]error, len(lines))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, line := range lines {
		wg.Add(1)
		go func(i int, line translate.Line) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			path := filepath.Join(outDir, fmt.Sprintf("segment_%04d.wav", line.Index))
			if err := s.synthesizeLine(ctx, line, req, path); err != nil {
				errs[i] = fmt.Errorf("segment %d: %w", line.Index, err)
				return
			}
			results[i] = SegmentAudio{Index: line.Index, Path: path}
			if s.requestDelay > 0 {
				s.sleep(s.requestDelay)
			}
		}(i, line)
	}
	wg.Wait()

	var failed []string
	var firstErr error
	for _, err := range errs {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed = append(failed, err.Error())
		}
	}
	if firstErr != nil {
		return nil, services.Wrap(services.ErrExternalTool, "tts", "synthesize",
			fmt.Sprintf("%d of %d lines failed: %s", len(failed), len(lines), strings.Join(failed, "; ")), firstErr)
	}
	return results, nil
}

// synthesizeLine voices one line, retrying transient failures and falling
// back to the neutral voice style when the styled request cannot produce
// usable audio.
func (s *Synthesizer) synthesizeLine(ctx context.Context, line translate.Line, req Request, path string) error {
	styledSSML := BuildSSML(req.Voice, req.Language, line.Text, line.Emotion, true)
	data, err := s.synthesizeWithRetry(ctx, styledSSML)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		neutralSSML := BuildSSML(req.Voice, req.Language, line.Text, line.Emotion, false)
		if neutralSSML == styledSSML {
			return err
		}
		s.logger.Warn("styled synthesis failed, retrying with neutral delivery",
			logging.Int("segment", line.Index),
			logging.String("emotion", line.Emotion),
			logging.Error(err))
		data, err = s.synthesizeWithRetry(ctx, neutralSSML)
		if err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write segment audio: %w", err)
	}
	return nil
}

func (s *Synthesizer) synthesizeWithRetry(ctx context.Context, ssml string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		data, retryable, err := s.synthesizeOnce(ctx, ssml)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable || attempt == s.maxRetries {
			break
		}
		s.sleep(time.Duration(1<<(attempt-1)) * time.Second)
	}
	return nil, lastErr
}

func (s *Synthesizer) synthesizeOnce(ctx context.Context, ssml string) (data []byte, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", s.key)
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", s.outputFormat)
	httpReq.Header.Set("User-Agent", "redub")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read speech response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusRequestTimeout ||
			resp.StatusCode >= 500
		return nil, retry, fmt.Errorf("speech API returned status %d: %s", resp.StatusCode, summarizeBody(body))
	}
	if err := ValidateWAV(body); err != nil {
		return nil, true, err
	}
	return body, false, nil
}

func summarizeBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "(empty body)"
	}
	return text
}

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Transcription is the verbose whisper response with absolute segment
// timestamps.
type Transcription struct {
	Language string              `json:"language"`
	Duration float64             `json:"duration"`
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
}

// TranscriptSegment is a single timed span of recognized speech.
type TranscriptSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcribe uploads an audio file to the transcription endpoint and returns
// the verbose result. An empty language lets the model detect it.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (Transcription, error) {
	var empty Transcription
	if c.cfg.APIKey == "" {
		return empty, errors.New("transcribe: api key required")
	}
	audioPath = strings.TrimSpace(audioPath)
	if audioPath == "" {
		return empty, errors.New("transcribe: audio path required")
	}

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := c.transcribeOnce(ctx, audioPath, language)
		if err == nil {
			return result, nil
		}

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return empty, err
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return empty, sleepErr
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return empty, fmt.Errorf("transcribe: failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) transcribeOnce(ctx context.Context, audioPath, language string) (Transcription, error) {
	var empty Transcription

	file, err := os.Open(audioPath)
	if err != nil {
		return empty, fmt.Errorf("transcribe: open audio: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return empty, fmt.Errorf("transcribe: build form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return empty, fmt.Errorf("transcribe: read audio: %w", err)
	}

	fields := map[string]string{
		"model":           c.cfg.WhisperModel,
		"response_format": "verbose_json",
		"temperature":     "0",
	}
	if lang := strings.TrimSpace(language); lang != "" {
		fields["language"] = lang
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return empty, fmt.Errorf("transcribe: write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return empty, fmt.Errorf("transcribe: finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return empty, fmt.Errorf("transcribe: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("transcribe: http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("transcribe: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return empty, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var result Transcription
	if err := json.Unmarshal(body, &result); err != nil {
		return empty, fmt.Errorf("transcribe: decode response: %w", err)
	}
	return result, nil
}

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		ChatModel:    "gpt-4o-mini",
		WhisperModel: "whisper-1",
	}, WithSleeper(func(time.Duration) {}))
}

func chatResponse(content string) []byte {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}, "finish_reason": "stop"},
		},
	}
	data, _ := json.Marshal(payload)
	return data
}

func TestChatJSONReturnsContent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Write(chatResponse(`{"ok":true}`))
	}))

	content, err := client.ChatJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("ChatJSON failed: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestChatJSONRetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(chatResponse(`{"ok":true}`))
	}))

	content, err := client.ChatJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("ChatJSON failed: %v", err)
	}
	if content == "" || calls.Load() != 2 {
		t.Fatalf("expected retry then success, calls=%d content=%q", calls.Load(), content)
	}
}

func TestChatJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	if _, err := client.ChatJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error for 400")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single call, got %d", calls.Load())
	}
}

func TestChatJSONRetriesEmptyContent(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write(chatResponse(""))
			return
		}
		w.Write(chatResponse(`{"ok":true}`))
	}))

	content, err := client.ChatJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("ChatJSON failed: %v", err)
	}
	if content != `{"ok":true}` || calls.Load() != 2 {
		t.Fatalf("expected retry on empty content, calls=%d", calls.Load())
	}
}

func TestTranscribeParsesVerboseJSON(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		payload := Transcription{
			Language: "english",
			Duration: 4.2,
			Text:     "hello world",
			Segments: []TranscriptSegment{
				{ID: 0, Start: 0, End: 2.1, Text: " hello"},
				{ID: 1, Start: 2.1, End: 4.2, Text: " world"},
			},
		}
		json.NewEncoder(w).Encode(payload)
	}))

	audio := filepath.Join(t.TempDir(), "audio.mp3")
	if err := os.WriteFile(audio, []byte("fake-mp3"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	result, err := client.Transcribe(context.Background(), audio, "")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Language != "english" || len(result.Segments) != 2 {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	client := NewClient(Config{APIKey: "k"}, WithRetryBackoff(time.Second, 4*time.Second))
	if got := client.backoffDelay(1); got != time.Second {
		t.Fatalf("attempt 1 delay = %s", got)
	}
	if got := client.backoffDelay(2); got != 2*time.Second {
		t.Fatalf("attempt 2 delay = %s", got)
	}
	if got := client.backoffDelay(5); got != 4*time.Second {
		t.Fatalf("attempt 5 delay = %s", got)
	}
}

func TestDecodeModelJSONHandlesFences(t *testing.T) {
	var target struct {
		OK bool `json:"ok"`
	}
	cases := []string{
		`{"ok":true}`,
		"```json\n{\"ok\":true}\n```",
		"Here is the result:\n{\"ok\":true}\nDone.",
	}
	for _, input := range cases {
		target.OK = false
		if err := DecodeModelJSON(input, &target); err != nil {
			t.Errorf("DecodeModelJSON(%q) failed: %v", input, err)
		}
		if !target.OK {
			t.Errorf("DecodeModelJSON(%q) did not decode", input)
		}
	}
	if err := DecodeModelJSON("", &target); err == nil {
		t.Error("expected error for empty payload")
	}
}

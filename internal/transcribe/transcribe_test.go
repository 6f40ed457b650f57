package transcribe

import (
	"context"
	"errors"
	"testing"

	"redub/internal/openai"
	"redub/internal/services"
)

type stubClient struct {
	result openai.Transcription
	err    error
}

func (s stubClient) Transcribe(context.Context, string, string) (openai.Transcription, error) {
	return s.result, s.err
}

func TestNormalizeSegments(t *testing.T) {
	raw := []openai.TranscriptSegment{
		{ID: 2, Start: 5.0, End: 7.5, Text: " second "},
		{ID: 0, Start: -0.5, End: 2.0, Text: "first"},
		{ID: 1, Start: 3.0, End: 2.5, Text: "inverted"},
		{ID: 3, Start: 8.0, End: 9.0, Text: "   "},
		{ID: 4, Start: 10.004, End: 12.006, Text: "rounded"},
	}

	segments := NormalizeSegments(raw)
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d: %#v", len(segments), segments)
	}
	if segments[0].Start != 0 || segments[0].Text != "first" {
		t.Fatalf("negative start not clamped: %#v", segments[0])
	}
	if segments[1].Text != "second" {
		t.Fatalf("unexpected second segment: %#v", segments[1])
	}
	if segments[2].Start != 10.0 || segments[2].End != 12.01 {
		t.Fatalf("timestamps not rounded to 2 decimals: %#v", segments[2])
	}
	for i, seg := range segments {
		if seg.Index != i {
			t.Fatalf("segment %d has index %d", i, seg.Index)
		}
	}
}

func TestTranscribeNormalizesAndLowersLanguage(t *testing.T) {
	tr := New(stubClient{result: openai.Transcription{
		Language: "English",
		Duration: 10,
		Segments: []openai.TranscriptSegment{
			{Start: 0, End: 2, Text: " hello "},
		},
	}}, nil)

	result, err := tr.Transcribe(context.Background(), "audio.mp3", "")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Language != "english" {
		t.Fatalf("language = %q", result.Language)
	}
	if len(result.Segments) != 1 || result.Segments[0].Text != "hello" {
		t.Fatalf("unexpected segments: %#v", result.Segments)
	}
}

func TestTranscribeEmptyResultIsValid(t *testing.T) {
	// Speechless audio is a legitimate outcome; the pipeline decides what an
	// empty transcript means.
	tr := New(stubClient{result: openai.Transcription{Language: "english"}}, nil)

	result, err := tr.Transcribe(context.Background(), "audio.mp3", "")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(result.Segments) != 0 {
		t.Fatalf("expected no segments, got %#v", result.Segments)
	}
}

func TestTranscribeWrapsClientFailure(t *testing.T) {
	tr := New(stubClient{err: errors.New("boom")}, nil)

	_, err := tr.Transcribe(context.Background(), "audio.mp3", "")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

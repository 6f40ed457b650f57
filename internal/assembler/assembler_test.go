package assembler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"redub/internal/media"
	"redub/internal/services"
	"redub/internal/translate"
	"redub/internal/tts"
)

// stubFFmpeg installs a fake ffmpeg on PATH that creates its final argument
// as an empty file, which is how every toolkit operation names its output.
func stubFFmpeg(t *testing.T) {
	t.Helper()
	binDir := t.TempDir()
	script := "#!/bin/sh\nfor last in \"$@\"; do :; done\nprintf RIFF > \"$last\"\n"
	if err := os.WriteFile(filepath.Join(binDir, "ffmpeg"), []byte(script), 0o755); err != nil {
		t.Fatalf("write stub ffmpeg: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestBuildTrackRendersPartsAndConcats(t *testing.T) {
	stubFFmpeg(t)
	workDir := t.TempDir()
	dest := filepath.Join(workDir, "dub.wav")

	durations := map[string]float64{"a.wav": 2.0, "b.wav": 3.0}
	asm := New(media.NewToolkit("", "", nil), nil, WithDurationProbe(
		func(_ context.Context, path string) (float64, error) {
			return durations[filepath.Base(path)], nil
		}))

	lines := []translate.Line{
		{Index: 0, Start: 1, End: 3, Text: "uno"},
		{Index: 1, Start: 5, End: 7, Text: "dos"},
	}
	segments := []tts.SegmentAudio{
		{Index: 0, Path: filepath.Join(workDir, "a.wav")},
		{Index: 1, Path: filepath.Join(workDir, "b.wav")},
	}

	if err := asm.BuildTrack(context.Background(), lines, segments, workDir, dest); err != nil {
		t.Fatalf("BuildTrack failed: %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("dub track not written: %v", err)
	}

	// silence(1) speech(0) silence(2) speech(1 sped up and trimmed)
	parts, err := filepath.Glob(filepath.Join(workDir, "parts", "part_*.wav"))
	if err != nil || len(parts) != 4 {
		t.Fatalf("expected 4 parts, got %d (err=%v)", len(parts), err)
	}
	// The sped-up segment leaves its pre-trim intermediate behind.
	if _, err := os.Stat(filepath.Join(workDir, "parts", "tempo_0003.wav")); err != nil {
		t.Fatalf("expected tempo intermediate: %v", err)
	}
}

func TestBuildTrackRequiresAudioForEveryLine(t *testing.T) {
	asm := New(media.NewToolkit("", "", nil), nil, WithDurationProbe(
		func(context.Context, string) (float64, error) { return 1, nil }))

	lines := []translate.Line{{Index: 0, Start: 0, End: 1}}
	err := asm.BuildTrack(context.Background(), lines, nil, t.TempDir(), "out.wav")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildTrackWrapsProbeFailure(t *testing.T) {
	asm := New(media.NewToolkit("", "", nil), nil, WithDurationProbe(
		func(context.Context, string) (float64, error) { return 0, errors.New("probe boom") }))

	lines := []translate.Line{{Index: 0, Start: 0, End: 1}}
	segments := []tts.SegmentAudio{{Index: 0, Path: "a.wav"}}
	err := asm.BuildTrack(context.Background(), lines, segments, t.TempDir(), "out.wav")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

package separation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"redub/internal/services"
	"redub/internal/testsupport"
)

func TestStemPaths(t *testing.T) {
	stems := stemPaths("/tmp/out", "/tmp/in/original.mp3")
	wantVocals := filepath.Join("/tmp/out", "htdemucs", "original", "vocals.mp3")
	wantBackground := filepath.Join("/tmp/out", "htdemucs", "original", "no_vocals.mp3")
	if stems.Vocals != wantVocals {
		t.Fatalf("vocals = %q, want %q", stems.Vocals, wantVocals)
	}
	if stems.Background != wantBackground {
		t.Fatalf("background = %q, want %q", stems.Background, wantBackground)
	}
}

func TestSeparateRejectsShortInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sep := New(cfg, func(context.Context, string) (float64, error) {
		return 0.4, nil
	}, nil)

	_, err := sep.Separate(context.Background(), "/tmp/short.mp3", t.TempDir())
	if err == nil {
		t.Fatal("expected error for short input")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSeparateVerifiesOutputs(t *testing.T) {
	// The stub demucs exits 0 but writes nothing; the missing stems must be
	// reported as a tool failure.
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("demucs"))
	sep := New(cfg, func(context.Context, string) (float64, error) {
		return 30, nil
	}, nil)

	_, err := sep.Separate(context.Background(), filepath.Join(t.TempDir(), "original.mp3"), t.TempDir())
	if err == nil {
		t.Fatal("expected error when stems are missing")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestSeparateAcceptsStubbedStems(t *testing.T) {
	base := t.TempDir()
	outDir := filepath.Join(base, "out")
	stemDir := filepath.Join(outDir, "htdemucs", "original")

	// Stub demucs that fabricates the expected stem files.
	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	script := "#!/bin/sh\nmkdir -p '" + stemDir + "'\n" +
		"printf x > '" + filepath.Join(stemDir, "vocals.mp3") + "'\n" +
		"printf x > '" + filepath.Join(stemDir, "no_vocals.mp3") + "'\n"
	if err := os.WriteFile(filepath.Join(binDir, "demucs"), []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	oldPath := os.Getenv("PATH")
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath)

	cfg := testsupport.NewConfig(t)
	sep := New(cfg, func(context.Context, string) (float64, error) {
		return 30, nil
	}, nil)

	stems, err := sep.Separate(context.Background(), filepath.Join(base, "original.mp3"), outDir)
	if err != nil {
		t.Fatalf("Separate failed: %v", err)
	}
	if stems.Vocals != filepath.Join(stemDir, "vocals.mp3") {
		t.Fatalf("unexpected vocals path: %q", stems.Vocals)
	}
}

package finalizer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"redub/internal/blob"
	"redub/internal/media"
	"redub/internal/services"
	"redub/internal/testsupport"
)

func stubFFmpeg(t *testing.T) {
	t.Helper()
	binDir := t.TempDir()
	script := "#!/bin/sh\nfor last in \"$@\"; do :; done\nprintf data > \"$last\"\n"
	if err := os.WriteFile(filepath.Join(binDir, "ffmpeg"), []byte(script), 0o755); err != nil {
		t.Fatalf("write stub ffmpeg: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	testsupport.WriteFile(t, path, 64)
	return path
}

func newTestStore(t *testing.T) blob.Store {
	t.Helper()
	store, err := blob.NewFS(t.TempDir(), "https://cdn.example.com")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return store
}

func TestFinalizeMixesAndUploads(t *testing.T) {
	stubFFmpeg(t)
	store := newTestStore(t)
	fin := New(media.NewToolkit("", "", nil), store, nil)
	workDir := t.TempDir()

	result, err := fin.Finalize(context.Background(), Input{
		VideoPath:      writeFile(t, workDir, "input.mp4"),
		DubTrackPath:   writeFile(t, workDir, "dub.wav"),
		BackgroundPath: writeFile(t, workDir, "no_vocals.mp3"),
		WorkDir:        workDir,
		UserID:         "user1",
		VideoID:        "vid1",
	})
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if result.OutputKey != "completed/user1/vid1/output.mp4" {
		t.Fatalf("output key = %q", result.OutputKey)
	}
	if result.DownloadURL != "https://cdn.example.com/completed/user1/vid1/output.mp4" {
		t.Fatalf("download url = %q", result.DownloadURL)
	}

	reader, err := store.Get(context.Background(), result.OutputKey)
	if err != nil {
		t.Fatalf("uploaded output missing: %v", err)
	}
	defer reader.Close()
	if data, _ := io.ReadAll(reader); len(data) == 0 {
		t.Fatal("uploaded output is empty")
	}

	// The mix intermediate proves the background path was taken.
	if _, err := os.Stat(filepath.Join(workDir, "mixed.wav")); err != nil {
		t.Fatalf("expected mixed intermediate: %v", err)
	}
}

func TestFinalizeWithoutBackgroundUsesDubOnly(t *testing.T) {
	stubFFmpeg(t)
	store := newTestStore(t)
	fin := New(media.NewToolkit("", "", nil), store, nil)
	workDir := t.TempDir()

	_, err := fin.Finalize(context.Background(), Input{
		VideoPath:    writeFile(t, workDir, "input.mp4"),
		DubTrackPath: writeFile(t, workDir, "dub.wav"),
		WorkDir:      workDir,
		UserID:       "user1",
		VideoID:      "vid1",
	})
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(workDir, "mixed.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dub-only run should not mix: %v", err)
	}
}

func TestFinalizeValidatesInput(t *testing.T) {
	fin := New(media.NewToolkit("", "", nil), newTestStore(t), nil)
	_, err := fin.Finalize(context.Background(), Input{WorkDir: t.TempDir()})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

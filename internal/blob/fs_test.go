package blob_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"redub/internal/blob"
)

func newFSStore(t *testing.T) *blob.FSStore {
	t.Helper()
	store, err := blob.NewFS(t.TempDir(), "https://cdn.example")
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	return store
}

func TestFSPutGetRoundTrip(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "audio/user-1/vocals.mp3", strings.NewReader("payload"), ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rc, err := store.Get(ctx, "audio/user-1/vocals.mp3")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected contents: %q", data)
	}

	exists, err := store.Exists(ctx, "audio/user-1/vocals.mp3")
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v", exists, err)
	}
	exists, err = store.Exists(ctx, "audio/user-1/missing.mp3")
	if err != nil || exists {
		t.Fatalf("Exists for missing = %v, %v", exists, err)
	}
}

func TestFSDeletePrefix(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()

	keys := []string{
		"audio/user-1/vocals.mp3",
		"audio/user-1/no_vocals.mp3",
		"audio/user-2/vocals.mp3",
	}
	for _, key := range keys {
		if err := store.Put(ctx, key, strings.NewReader("x"), ""); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}

	deleted, err := store.DeletePrefix(ctx, "audio/user-1/")
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}

	remaining, err := store.List(ctx, "audio/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0] != "audio/user-2/vocals.mp3" {
		t.Fatalf("unexpected remaining keys: %v", remaining)
	}
}

func TestFSDeleteMissingIsNoError(t *testing.T) {
	store := newFSStore(t)
	if err := store.Delete(context.Background(), "nope/missing.bin"); err != nil {
		t.Fatalf("Delete of missing object: %v", err)
	}
}

func TestFSPublicURL(t *testing.T) {
	store := newFSStore(t)
	if got := store.PublicURL("outputs/user-1/dubbed.mp4"); got != "https://cdn.example/outputs/user-1/dubbed.mp4" {
		t.Fatalf("unexpected public URL: %q", got)
	}

	unconfigured, err := blob.NewFS(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	if got := unconfigured.PublicURL("k"); got != "" {
		t.Fatalf("expected empty URL, got %q", got)
	}
}

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"/a/b/c":    "a/b/c",
		"a//b":      "a/b",
		"a\\b\\c":   "a/b/c",
		"./a/../b":  "b",
		"outputs/x": "outputs/x",
	}
	for input, want := range cases {
		if got := blob.CleanKey(input); got != want {
			t.Errorf("CleanKey(%q) = %q, want %q", input, got, want)
		}
	}
}

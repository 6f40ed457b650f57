package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"redub/internal/store"
	"redub/internal/testsupport"
)

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, cliEnv{configPath: target}, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, cliEnv{configPath: target}, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
}

func TestQueueListEmpty(t *testing.T) {
	env := setupCLIEnv(t)

	out, err := runCLI(t, env, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueListAndStatus(t *testing.T) {
	env := setupCLIEnv(t)
	video := newCLIVideo(t, env, "user1")

	out, err := runCLI(t, env, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, shortID(video.ID))
	requireContains(t, out, "pending")

	// Full detail lookup accepts a unique id prefix.
	out, err = runCLI(t, env, "queue", "status", shortID(video.ID))
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, video.ID)
	requireContains(t, out, "spanish")
}

func TestQueueRetryChecksInputObject(t *testing.T) {
	env := setupCLIEnv(t)
	st := env.openStore(t)
	video := newCLIVideo(t, env, "user1")

	if err := st.SetVideoError(context.Background(), video.ID, "tts exploded"); err != nil {
		t.Fatalf("fail video: %v", err)
	}

	// The input object was deleted, so retry must refuse.
	blobs := env.openBlobs(t)
	if err := blobs.Delete(context.Background(), video.InputKey); err != nil {
		t.Fatalf("delete input: %v", err)
	}
	if _, err := runCLI(t, env, "queue", "retry", video.ID); err == nil || !strings.Contains(err.Error(), "gone") {
		t.Fatalf("expected missing-input refusal, got %v", err)
	}

	if err := blobs.Put(context.Background(), video.InputKey, strings.NewReader("bytes"), "video/mp4"); err != nil {
		t.Fatalf("restore input: %v", err)
	}
	out, err := runCLI(t, env, "queue", "retry", video.ID)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "requeued")
}

func TestRemoveDeletesArtifacts(t *testing.T) {
	env := setupCLIEnv(t)
	st := env.openStore(t)
	video := newCLIVideo(t, env, "user1")

	blobs := env.openBlobs(t)
	scriptKey := "scripts/user1/" + video.ID + "/rewritten-script.json"
	if err := blobs.Put(context.Background(), scriptKey, strings.NewReader("{}"), "application/json"); err != nil {
		t.Fatalf("seed artifact: %v", err)
	}

	out, err := runCLI(t, env, "remove", video.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	requireContains(t, out, "Removed video")

	if got, err := st.GetVideo(context.Background(), video.ID); err != nil || got != nil {
		t.Fatalf("video row should be gone: %v %v", got, err)
	}
	if ok, err := blobs.Exists(context.Background(), scriptKey); err != nil || ok {
		t.Fatalf("artifact should be gone (exists=%v err=%v)", ok, err)
	}
	if ok, err := blobs.Exists(context.Background(), video.InputKey); err != nil || ok {
		t.Fatalf("input object should be gone (exists=%v err=%v)", ok, err)
	}
}

func TestHealth(t *testing.T) {
	env := setupCLIEnv(t)

	out, err := runCLI(t, env, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "Database: ok")
	requireContains(t, out, "Jobs:")
}

// newCLIVideo seeds a pending video plus its input object, sharing the
// database file the CLI commands open.
func newCLIVideo(t *testing.T, env cliEnv, userID string) *store.Video {
	t.Helper()

	st := env.openStore(t)
	blobs := env.openBlobs(t)
	video := testsupport.NewVideo(t, st, userID, "spanish")
	if _, err := st.EnqueueJob(context.Background(), video.ID); err != nil {
		t.Fatalf("enqueue job: %v", err)
	}
	if err := blobs.Put(context.Background(), video.InputKey, strings.NewReader("video-bytes"), "video/mp4"); err != nil {
		t.Fatalf("seed input: %v", err)
	}
	return video
}

package testsupport

import (
	"context"
	"testing"

	"redub/internal/config"
	"redub/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg.Paths.Database, store.WithMaxAttempts(cfg.Worker.MaxAttempts))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewVideo creates a pending video row for tests using the provided store.
func NewVideo(t testing.TB, st *store.Store, userID, targetLanguage string) *store.Video {
	t.Helper()

	video, err := st.CreateVideo(context.Background(), store.NewVideoParams{
		UserID:         userID,
		Title:          "Test Video",
		TargetLanguage: targetLanguage,
		InputKey:       "videos/" + userID + "/input.mp4",
		DurationSec:    42.5,
		Format:         "mp4",
	})
	if err != nil {
		t.Fatalf("store.CreateVideo: %v", err)
	}
	return video
}

// NewQueuedVideo creates a video with a pending job attached.
func NewQueuedVideo(t testing.TB, st *store.Store, userID, targetLanguage string) (*store.Video, *store.Job) {
	t.Helper()

	video := NewVideo(t, st, userID, targetLanguage)
	job, err := st.EnqueueJob(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("store.EnqueueJob: %v", err)
	}
	return video, job
}

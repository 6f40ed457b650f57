package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"redub/internal/store"
	"redub/internal/testsupport"
)

func TestCreateAndGetVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	video, err := st.CreateVideo(ctx, store.NewVideoParams{
		UserID:         "user-1",
		Title:          "Interview",
		TargetLanguage: "hi",
		InputKey:       "videos/user-1/interview.mp4",
		DurationSec:    120.5,
		Format:         "mp4",
	})
	if err != nil {
		t.Fatalf("CreateVideo failed: %v", err)
	}
	if video.ID == "" {
		t.Fatal("expected video ID to be assigned")
	}
	if video.Status != store.VideoPending {
		t.Fatalf("expected pending status, got %s", video.Status)
	}

	fetched, err := st.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if fetched == nil || fetched.Title != "Interview" || fetched.InputDurationSec != 120.5 {
		t.Fatalf("unexpected fetched video: %#v", fetched)
	}
}

func TestCreateVideoRequiresFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := st.CreateVideo(ctx, store.NewVideoParams{TargetLanguage: "hi", InputKey: "k"}); err == nil {
		t.Fatal("expected error when user id missing")
	}
	if _, err := st.CreateVideo(ctx, store.NewVideoParams{UserID: "u", InputKey: "k"}); err == nil {
		t.Fatal("expected error when target language missing")
	}
	if _, err := st.CreateVideo(ctx, store.NewVideoParams{UserID: "u", TargetLanguage: "hi"}); err == nil {
		t.Fatal("expected error when input key missing")
	}
}

func TestClaimNextJobIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	_, job := testsupport.NewQueuedVideo(t, st, "user-1", "hi")

	claimed, err := st.ClaimNextJob(ctx, "worker-a", 5*time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("expected to claim job %d, got %#v", job.ID, claimed)
	}
	if claimed.Status != store.JobRunning || claimed.Attempts != 1 || claimed.LockedBy != "worker-a" {
		t.Fatalf("unexpected claimed job: %#v", claimed)
	}

	second, err := st.ClaimNextJob(ctx, "worker-b", 5*time.Minute)
	if err != nil {
		t.Fatalf("second ClaimNextJob failed: %v", err)
	}
	if second != nil {
		t.Fatalf("expected nil, second worker claimed %#v", second)
	}
}

func TestClaimNextJobOrdersFIFO(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var jobIDs []int64
	for i := 0; i < 3; i++ {
		_, job := testsupport.NewQueuedVideo(t, st, fmt.Sprintf("user-%d", i), "hi")
		jobIDs = append(jobIDs, job.ID)
	}

	for i, want := range jobIDs {
		claimed, err := st.ClaimNextJob(ctx, "worker", 5*time.Minute)
		if err != nil {
			t.Fatalf("claim %d failed: %v", i, err)
		}
		if claimed == nil || claimed.ID != want {
			t.Fatalf("claim %d: expected job %d, got %#v", i, want, claimed)
		}
	}
}

func TestClaimNextJobReclaimsExpiredLease(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewQueuedVideo(t, st, "user-1", "hi")

	first, err := st.ClaimNextJob(ctx, "worker-a", 5*time.Minute)
	if err != nil || first == nil {
		t.Fatalf("initial claim failed: %v %#v", err, first)
	}

	// Lease still fresh: not reclaimable.
	blocked, err := st.ClaimNextJob(ctx, "worker-b", 5*time.Minute)
	if err != nil {
		t.Fatalf("blocked claim failed: %v", err)
	}
	if blocked != nil {
		t.Fatalf("expected fresh lease to block reclaim, got %#v", blocked)
	}

	// A zero timeout makes every lease stale immediately.
	reclaimed, err := st.ClaimNextJob(ctx, "worker-b", 0)
	if err != nil {
		t.Fatalf("reclaim failed: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != first.ID {
		t.Fatalf("expected to reclaim job %d, got %#v", first.ID, reclaimed)
	}
	if reclaimed.Attempts != 2 || reclaimed.LockedBy != "worker-b" {
		t.Fatalf("unexpected reclaimed job: %#v", reclaimed)
	}
}

func TestFailJobRetriesUntilAttemptsExhausted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewQueuedVideo(t, st, "user-1", "hi")

	for attempt := 1; attempt <= store.DefaultMaxAttempts; attempt++ {
		claimed, err := st.ClaimNextJob(ctx, "worker", 5*time.Minute)
		if err != nil || claimed == nil {
			t.Fatalf("claim on attempt %d failed: %v %#v", attempt, err, claimed)
		}
		if claimed.Attempts != attempt {
			t.Fatalf("expected attempts %d, got %d", attempt, claimed.Attempts)
		}
		retry, err := st.FailJob(ctx, claimed.ID, "stage exploded")
		if err != nil {
			t.Fatalf("FailJob failed: %v", err)
		}
		wantRetry := attempt < store.DefaultMaxAttempts
		if retry != wantRetry {
			t.Fatalf("attempt %d: expected retry=%v, got %v", attempt, wantRetry, retry)
		}
	}

	// Attempts exhausted: queue must be empty and the job parked as failed.
	leftover, err := st.ClaimNextJob(ctx, "worker", 5*time.Minute)
	if err != nil {
		t.Fatalf("final claim failed: %v", err)
	}
	if leftover != nil {
		t.Fatalf("expected empty queue, claimed %#v", leftover)
	}
	jobs, err := st.ListJobs(ctx, store.JobFailed)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ErrorMessage != "stage exploded" {
		t.Fatalf("unexpected failed jobs: %#v", jobs)
	}
}

func TestReleaseJobDoesNotConsumeAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewQueuedVideo(t, st, "user-1", "hi")

	claimed, err := st.ClaimNextJob(ctx, "worker", 5*time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim failed: %v %#v", err, claimed)
	}
	if err := st.ReleaseJob(ctx, claimed.ID); err != nil {
		t.Fatalf("ReleaseJob failed: %v", err)
	}

	reclaimed, err := st.ClaimNextJob(ctx, "worker", 5*time.Minute)
	if err != nil || reclaimed == nil {
		t.Fatalf("reclaim failed: %v %#v", err, reclaimed)
	}
	if reclaimed.Attempts != 1 {
		t.Fatalf("expected release to refund the attempt, got attempts=%d", reclaimed.Attempts)
	}
}

func TestCompleteJobClearsLease(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewQueuedVideo(t, st, "user-1", "hi")

	claimed, err := st.ClaimNextJob(ctx, "worker", 5*time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim failed: %v %#v", err, claimed)
	}
	if err := st.CompleteJob(ctx, claimed.ID); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}

	job, err := st.GetJob(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != store.JobDone || job.LockedAt != nil || job.LockedBy != "" {
		t.Fatalf("unexpected completed job: %#v", job)
	}
}

func TestSaveAudioKeysIsAllOrNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	video := testsupport.NewVideo(t, st, "user-1", "hi")

	keys := store.AudioKeys{
		Original:   "audio/user-1/original.mp3",
		Voice:      "audio/user-1/vocals.mp3",
		Background: "audio/user-1/no_vocals.mp3",
		TTS:        "audio/user-1/dub.wav",
	}
	if err := st.SaveAudioKeys(ctx, video.ID, keys); err != nil {
		t.Fatalf("SaveAudioKeys failed: %v", err)
	}

	updated, err := st.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if updated.AudioOriginalKey != keys.Original ||
		updated.AudioVoiceKey != keys.Voice ||
		updated.AudioBackgroundKey != keys.Background ||
		updated.AudioTTSKey != keys.TTS {
		t.Fatalf("unexpected audio keys: %#v", updated)
	}
}

func TestSaveOutputCompletesVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	video := testsupport.NewVideo(t, st, "user-1", "hi")
	if err := st.SetVideoError(ctx, video.ID, "previous failure"); err != nil {
		t.Fatalf("SetVideoError failed: %v", err)
	}

	if err := st.SaveOutput(ctx, video.ID, "outputs/user-1/dubbed.mp4", "https://cdn.example/outputs/user-1/dubbed.mp4", "thumbnails/user-1/thumb.jpg"); err != nil {
		t.Fatalf("SaveOutput failed: %v", err)
	}

	updated, err := st.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if updated.Status != store.VideoCompleted {
		t.Fatalf("expected completed status, got %s", updated.Status)
	}
	if updated.ErrorMessage != "" {
		t.Fatalf("expected error cleared, got %q", updated.ErrorMessage)
	}
	if updated.DownloadURL == "" || updated.OutputKey == "" {
		t.Fatalf("expected output fields set: %#v", updated)
	}
}

func TestRetryVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	video := testsupport.NewVideo(t, st, "user-1", "hi")

	if _, err := st.RetryVideo(ctx, video.ID); err == nil {
		t.Fatal("expected retry of pending video to fail")
	}

	failed, err := st.EnqueueJob(ctx, video.ID)
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	if err := st.ParkJob(ctx, failed.ID, "tts exploded"); err != nil {
		t.Fatalf("ParkJob failed: %v", err)
	}
	if err := st.SetVideoError(ctx, video.ID, "tts exploded"); err != nil {
		t.Fatalf("SetVideoError failed: %v", err)
	}

	job, err := st.RetryVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("RetryVideo failed: %v", err)
	}
	if job == nil || job.Status != store.JobPending {
		t.Fatalf("unexpected retry job: %#v", job)
	}

	// The prior failed job is removed; exactly the fresh pending job remains.
	jobs, err := st.JobsForVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("JobsForVideo failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job after retry, got %d", len(jobs))
	}
	if jobs[0].ID != job.ID || jobs[0].Status != store.JobPending {
		t.Fatalf("unexpected surviving job: %#v", jobs[0])
	}

	updated, err := st.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if updated.Status != store.VideoPending || updated.RetryCount != 1 || updated.ErrorMessage != "" {
		t.Fatalf("unexpected video after retry: %#v", updated)
	}
}

func TestRetryVideoExhaustsBudget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	video := testsupport.NewVideo(t, st, "user-1", "hi")

	for i := 0; i < store.MaxUserRetries; i++ {
		if err := st.SetVideoError(ctx, video.ID, "boom"); err != nil {
			t.Fatalf("SetVideoError failed: %v", err)
		}
		if _, err := st.RetryVideo(ctx, video.ID); err != nil {
			t.Fatalf("retry %d failed: %v", i, err)
		}
	}

	if err := st.SetVideoError(ctx, video.ID, "boom"); err != nil {
		t.Fatalf("SetVideoError failed: %v", err)
	}
	if _, err := st.RetryVideo(ctx, video.ID); err == nil {
		t.Fatal("expected retry past budget to fail")
	}
}

func TestHealthSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewQueuedVideo(t, st, "user-1", "hi")
	testsupport.NewQueuedVideo(t, st, "user-2", "es")

	claimed, err := st.ClaimNextJob(ctx, "worker", 5*time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim failed: %v %#v", err, claimed)
	}
	if err := st.CompleteJob(ctx, claimed.ID); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}

	summary, err := st.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if summary.Total != 2 || summary.Pending != 1 || summary.Done != 1 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}

func TestOpenRejectsSchemaVersionMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MustOpenStore(t, cfg)

	db, err := sql.Open("sqlite", cfg.Paths.Database)
	if err != nil {
		t.Fatalf("open raw database: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("rewrite schema version: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close raw database: %v", err)
	}

	_, err = store.Open(cfg.Paths.Database)
	if !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "redub queue clear") {
		t.Fatalf("mismatch error should name a recovery command: %v", err)
	}
	if strings.Contains(err.Error(), "--all") {
		t.Fatalf("mismatch error names a flag that does not exist: %v", err)
	}
}

package worker

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"redub/internal/services"
	"redub/internal/store"
	"redub/internal/testsupport"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeProcessor) Process(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeProcessor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
}

func (r *sleepRecorder) last() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sleeps) == 0 {
		return 0, false
	}
	return r.sleeps[len(r.sleeps)-1], true
}

func newTestWorker(t *testing.T, proc Processor) (*Worker, *store.Store, *sleepRecorder) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	rec := &sleepRecorder{}
	w := New(cfg, st, proc, nil, WithSleeper(rec.sleep), WithID("test-worker"))
	return w, st, rec
}

func mustGetJob(t *testing.T, st *store.Store, id int64) *store.Job {
	t.Helper()
	job, err := st.GetJob(context.Background(), id)
	if err != nil || job == nil {
		t.Fatalf("get job %d: %v", id, err)
	}
	return job
}

func mustGetVideo(t *testing.T, st *store.Store, id string) *store.Video {
	t.Helper()
	video, err := st.GetVideo(context.Background(), id)
	if err != nil || video == nil {
		t.Fatalf("get video %s: %v", id, err)
	}
	return video
}

func TestWorkerCompletesJob(t *testing.T) {
	proc := &fakeProcessor{}
	w, st, _ := newTestWorker(t, proc)
	video, job := testsupport.NewQueuedVideo(t, st, "user1", "spanish")

	w.runOnce(context.Background())

	if proc.callCount() != 1 {
		t.Fatalf("processor ran %d times", proc.callCount())
	}
	if got := mustGetJob(t, st, job.ID); got.Status != store.JobDone || got.ErrorMessage != "" {
		t.Fatalf("job state = %s %q", got.Status, got.ErrorMessage)
	}
	if got := mustGetVideo(t, st, video.ID); got.Status != store.VideoCompleted {
		t.Fatalf("video status = %s", got.Status)
	}
}

func TestWorkerStageFailureConsumesAttempts(t *testing.T) {
	proc := &fakeProcessor{err: services.Wrap(services.ErrExternalTool, "tts", "synthesize",
		"1 of 3 lines failed", nil)}
	w, st, _ := newTestWorker(t, proc)
	video, job := testsupport.NewQueuedVideo(t, st, "user1", "spanish")

	w.runOnce(context.Background())

	got := mustGetJob(t, st, job.ID)
	if got.Status != store.JobPending || got.Attempts != 1 {
		t.Fatalf("after first failure: status=%s attempts=%d", got.Status, got.Attempts)
	}
	if !strings.Contains(got.ErrorMessage, "1 of 3 lines failed") {
		t.Fatalf("error not recorded: %q", got.ErrorMessage)
	}
	if v := mustGetVideo(t, st, video.ID); v.Status != store.VideoProcessing {
		t.Fatalf("video should stay processing while retries remain, got %s", v.Status)
	}

	w.runOnce(context.Background())
	w.runOnce(context.Background())

	got = mustGetJob(t, st, job.ID)
	if got.Status != store.JobFailed || got.Attempts != store.DefaultMaxAttempts {
		t.Fatalf("after exhausting attempts: status=%s attempts=%d", got.Status, got.Attempts)
	}
	v := mustGetVideo(t, st, video.ID)
	if v.Status != store.VideoFailed {
		t.Fatalf("video status = %s", v.Status)
	}
	if v.ErrorMessage != got.ErrorMessage {
		t.Fatalf("video and job disagree on the error: %q vs %q", v.ErrorMessage, got.ErrorMessage)
	}
}

func TestWorkerPermanentFailureDoesNotRetry(t *testing.T) {
	proc := &fakeProcessor{err: services.Wrap(services.ErrValidation, "separation", "probe",
		"input audio is 0.50s, need at least 1.0s", nil)}
	w, st, _ := newTestWorker(t, proc)
	video, job := testsupport.NewQueuedVideo(t, st, "user1", "spanish")

	w.runOnce(context.Background())

	got := mustGetJob(t, st, job.ID)
	if got.Status != store.JobFailed || got.Attempts != 1 {
		t.Fatalf("permanent failure should park immediately: status=%s attempts=%d", got.Status, got.Attempts)
	}
	if v := mustGetVideo(t, st, video.ID); v.Status != store.VideoFailed || !strings.Contains(v.ErrorMessage, "0.50s") {
		t.Fatalf("video state = %s %q", v.Status, v.ErrorMessage)
	}
	if proc.callCount() != 1 {
		t.Fatalf("processor ran %d times", proc.callCount())
	}
}

func TestWorkerInfrastructureFailureReleasesJob(t *testing.T) {
	proc := &fakeProcessor{err: services.Wrap(services.ErrTransient, "store", "save",
		"database is locked", nil)}
	w, st, rec := newTestWorker(t, proc)
	video, job := testsupport.NewQueuedVideo(t, st, "user1", "spanish")

	w.runOnce(context.Background())

	got := mustGetJob(t, st, job.ID)
	if got.Status != store.JobPending || got.Attempts != 0 {
		t.Fatalf("release should refund the attempt: status=%s attempts=%d", got.Status, got.Attempts)
	}
	if v := mustGetVideo(t, st, video.ID); v.Status == store.VideoFailed {
		t.Fatal("infrastructure failure must not fail the video")
	}
	if d, ok := rec.last(); !ok || d != w.dbRetryInterval {
		t.Fatalf("expected db retry backoff, got %v", d)
	}
}

func TestWorkerIdleSleepsPollInterval(t *testing.T) {
	w, _, rec := newTestWorker(t, &fakeProcessor{})

	w.runOnce(context.Background())

	if d, ok := rec.last(); !ok || d != w.pollInterval {
		t.Fatalf("expected poll interval sleep, got %v", d)
	}
}

func TestWorkerDeletedVideoSkipsProcessing(t *testing.T) {
	proc := &fakeProcessor{}
	w, st, _ := newTestWorker(t, proc)
	video, _ := testsupport.NewQueuedVideo(t, st, "user1", "spanish")

	job, err := st.ClaimNextJob(context.Background(), "test-worker", time.Minute)
	if err != nil || job == nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := st.DeleteVideo(context.Background(), video.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}

	w.execute(context.Background(), job)

	if proc.callCount() != 0 {
		t.Fatal("pipeline ran for a deleted video")
	}
}

func TestWorkerStartStop(t *testing.T) {
	w, _, _ := newTestWorker(t, &fakeProcessor{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

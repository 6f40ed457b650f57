package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/services"
	"redub/internal/store"
)

// Processor runs the dubbing pipeline for one video.
type Processor interface {
	Process(ctx context.Context, videoID string) error
}

// Sleeper pauses between poll iterations. Injectable for tests.
type Sleeper func(time.Duration)

// Option configures a Worker.
type Option func(*Worker)

// WithSleeper overrides the idle sleep function.
func WithSleeper(sleep Sleeper) Option {
	return func(w *Worker) { w.sleep = sleep }
}

// WithID overrides the worker identity recorded on claimed jobs.
func WithID(id string) Option {
	return func(w *Worker) { w.id = id }
}

// Worker polls the queue, claims one job at a time, and drives the pipeline
// for it. Jobs are processed strictly one at a time; running multiple
// worker processes against the same database is coordinated solely through
// the atomic claim.
type Worker struct {
	store     *store.Store
	processor Processor
	logger    *slog.Logger

	id              string
	pollInterval    time.Duration
	dbRetryInterval time.Duration
	lockTimeout     time.Duration
	jobTimeout      time.Duration

	sleep Sleeper

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New constructs a Worker from the worker config section.
func New(cfg *config.Config, st *store.Store, processor Processor, logger *slog.Logger, opts ...Option) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	hostname, _ := os.Hostname()
	w := &Worker{
		store:           st,
		processor:       processor,
		logger:          logging.WithComponent(logger, "worker"),
		id:              fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8]),
		pollInterval:    time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
		dbRetryInterval: time.Duration(cfg.Worker.DBRetryIntervalSeconds) * time.Second,
		lockTimeout:     time.Duration(cfg.Worker.LockTimeoutMinutes) * time.Minute,
		jobTimeout:      time.Duration(cfg.Worker.JobTimeoutMinutes) * time.Minute,
		sleep:           time.Sleep,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 3 * time.Second
	}
	if w.dbRetryInterval <= 0 {
		w.dbRetryInterval = 5 * time.Second
	}
	if w.lockTimeout <= 0 {
		w.lockTimeout = 5 * time.Minute
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the poll loop. It returns immediately; use Stop to shut
// the loop down and wait for the in-flight job to finish.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		w.logger.Info("worker started",
			logging.String("worker_id", w.id),
			logging.Duration("poll_interval", w.pollInterval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			default:
			}
			w.runOnce(ctx)
		}
	}()
}

// Stop requests shutdown and blocks until the loop exits.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

// runOnce performs one poll iteration: verify connectivity, claim a job,
// and execute it. Idle and connectivity pauses happen here.
func (w *Worker) runOnce(ctx context.Context) {
	if err := w.store.Ping(ctx); err != nil {
		w.logger.Warn("store unreachable, backing off", logging.Error(err))
		w.sleep(w.dbRetryInterval)
		return
	}

	job, err := w.store.ClaimNextJob(ctx, w.id, w.lockTimeout)
	if err != nil {
		w.logger.Warn("claim failed, backing off", logging.Error(err))
		w.sleep(w.dbRetryInterval)
		return
	}
	if job == nil {
		w.sleep(w.pollInterval)
		return
	}

	w.execute(ctx, job)
}

// execute runs the pipeline for a claimed job and records the outcome.
// Infrastructure failures release the job without consuming its attempt;
// permanent failures park it immediately; other stage failures burn an
// attempt and park the job once the budget is spent.
func (w *Worker) execute(ctx context.Context, job *store.Job) {
	ctx = services.WithJobID(services.WithVideoID(ctx, job.VideoID), job.ID)
	logger := logging.WithContext(ctx, w.logger)
	logger.Info("job claimed", logging.Int("attempt", job.Attempts))

	video, err := w.store.GetVideo(ctx, job.VideoID)
	if err != nil {
		logger.Warn("loading video failed, releasing job", logging.Error(err))
		w.release(ctx, logger, job)
		w.sleep(w.dbRetryInterval)
		return
	}
	if video == nil {
		logger.Error("video not found, parking job")
		if err := w.store.ParkJob(ctx, job.ID, "video not found"); err != nil {
			logger.Error("park failed", logging.Error(err))
		}
		return
	}

	if err := w.store.SetVideoStatus(ctx, video.ID, store.VideoProcessing); err != nil {
		logger.Warn("marking video processing failed, releasing job", logging.Error(err))
		w.release(ctx, logger, job)
		w.sleep(w.dbRetryInterval)
		return
	}

	runCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	heartbeatStop := make(chan struct{})
	go w.heartbeatLoop(runCtx, logger, job.ID, heartbeatStop)

	started := time.Now()
	procErr := w.processor.Process(runCtx, video.ID)
	close(heartbeatStop)
	if procErr == nil {
		if err := w.store.CompleteJob(ctx, job.ID); err != nil {
			logger.Error("completing job failed", logging.Error(err))
		}
		if err := w.store.SetVideoStatus(ctx, video.ID, store.VideoCompleted); err != nil {
			logger.Error("marking video completed failed", logging.Error(err))
		}
		logger.Info("job done", logging.Duration("elapsed", time.Since(started)))
		return
	}

	switch {
	case services.IsInfrastructure(procErr):
		logger.Warn("infrastructure failure, releasing job for redelivery", logging.Error(procErr))
		w.release(ctx, logger, job)
		w.sleep(w.dbRetryInterval)

	case services.IsPermanent(procErr):
		logger.Error("permanent failure, parking job", logging.Error(procErr))
		if err := w.store.ParkJob(ctx, job.ID, procErr.Error()); err != nil {
			logger.Error("park failed", logging.Error(err))
		}
		if err := w.store.SetVideoError(ctx, video.ID, procErr.Error()); err != nil {
			logger.Error("marking video failed", logging.Error(err))
		}

	default:
		retry, err := w.store.FailJob(ctx, job.ID, procErr.Error())
		if err != nil {
			logger.Error("recording job failure failed", logging.Error(err))
			return
		}
		if retry {
			logger.Warn("stage failure, job returned to queue",
				logging.Int("attempt", job.Attempts),
				logging.Error(procErr))
			return
		}
		logger.Error("stage failure, attempts exhausted", logging.Error(procErr))
		if err := w.store.SetVideoError(ctx, video.ID, procErr.Error()); err != nil {
			logger.Error("marking video failed", logging.Error(err))
		}
	}
}

// heartbeatLoop refreshes the job lease while a stage runs so jobs longer
// than the lock timeout are not reclaimed by another worker.
func (w *Worker) heartbeatLoop(ctx context.Context, logger *slog.Logger, jobID int64, stop <-chan struct{}) {
	interval := w.lockTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.Heartbeat(ctx, jobID, w.id); err != nil {
				logger.Warn("heartbeat failed", logging.Error(err))
			}
		}
	}
}

func (w *Worker) release(ctx context.Context, logger *slog.Logger, job *store.Job) {
	if err := w.store.ReleaseJob(ctx, job.ID); err != nil {
		logger.Error("release failed", logging.Error(err))
	}
}

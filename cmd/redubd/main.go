package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"redub/internal/blob"
	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/pipeline"
	"redub/internal/store"
	"redub/internal/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewForFile(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir, "redubd.log")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "redubd.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("acquire instance lock: %v", err)
	}
	if !locked {
		log.Fatal("another redubd instance is already running")
	}
	defer lock.Unlock() //nolint:errcheck

	st, err := store.Open(cfg.Paths.Database, store.WithMaxAttempts(cfg.Worker.MaxAttempts))
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	blobs, err := blob.New(ctx, cfg)
	if err != nil {
		log.Fatalf("open object store: %v", err)
	}

	deps := pipeline.DefaultDeps(cfg, blobs, logger)
	runner := pipeline.NewRunner(cfg, st, blobs, deps, logger)

	w := worker.New(cfg, st, runner, logger)
	w.Start(ctx)

	<-ctx.Done()
	logger.Info("redubd shutting down")
	w.Stop()
}

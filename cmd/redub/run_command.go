package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"redub/internal/blob"
	"redub/internal/logging"
	"redub/internal/pipeline"
	"redub/internal/store"
)

type videoProcessor interface {
	Process(ctx context.Context, videoID string) error
}

// newRunCommand executes the pipeline for one video in the foreground,
// bypassing the queue. Useful for debugging a single video with full
// console output.
func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <videoID>",
		Short: "Run the dubbing pipeline for one video synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: "console",
			})
			if err != nil {
				return err
			}

			return ctx.withStores(cmd.Context(), func(st *store.Store, blobs blob.Store) error {
				video, err := resolveVideo(cmd, st, args[0])
				if err != nil {
					return err
				}

				deps := pipeline.DefaultDeps(cfg, blobs, logger)
				runner := pipeline.NewRunner(cfg, st, blobs, deps, logger)
				return runVideoSync(cmd.Context(), st, runner, video.ID, cmd.OutOrStdout(), logger)
			})
		},
	}
}

// runVideoSync drives one pipeline run with the same video state
// transitions the worker produces for queued jobs.
func runVideoSync(ctx context.Context, st *store.Store, proc videoProcessor, videoID string, out io.Writer, logger *slog.Logger) error {
	if err := st.SetVideoStatus(ctx, videoID, store.VideoProcessing); err != nil {
		return err
	}
	if err := proc.Process(ctx, videoID); err != nil {
		if stateErr := st.SetVideoError(ctx, videoID, err.Error()); stateErr != nil {
			logger.Error("marking video failed", logging.Error(stateErr))
		}
		return err
	}
	if err := st.SetVideoStatus(ctx, videoID, store.VideoCompleted); err != nil {
		return err
	}

	updated, err := st.GetVideo(ctx, videoID)
	if err != nil || updated == nil {
		return err
	}
	if updated.OutputKey == "" {
		fmt.Fprintln(out, "Pipeline finished without producing a dub (no speech detected)")
		return nil
	}
	fmt.Fprintf(out, "Dub complete: %s\n", updated.OutputKey)
	if updated.DownloadURL != "" {
		fmt.Fprintf(out, "Download:     %s\n", updated.DownloadURL)
	}
	return nil
}

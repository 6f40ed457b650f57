package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"redub/internal/blob"
	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/media"
	"redub/internal/store"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var language string
	var sourceLanguage string
	var title string
	var voice string

	cmd := &cobra.Command{
		Use:   "add <video-file>",
		Short: "Upload a local video and enqueue it for dubbing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user is required")
			}
			if strings.TrimSpace(language) == "" {
				return fmt.Errorf("--language is required")
			}

			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("inspect video file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			toolkit := media.NewToolkit(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logging.NewNop())
			duration, err := toolkit.Duration(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("probe video duration: %w", err)
			}

			format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if format == "" {
				format = "mp4"
			}
			key := fmt.Sprintf("videos/%s/%s.%s", userID, uuid.NewString(), format)

			return ctx.withStores(cmd.Context(), func(st *store.Store, blobs blob.Store) error {
				file, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open video file: %w", err)
				}
				defer file.Close()

				if err := blobs.Put(cmd.Context(), key, file, blob.ContentTypeFor(key)); err != nil {
					return fmt.Errorf("upload video: %w", err)
				}

				if strings.TrimSpace(title) == "" {
					title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				video, err := st.CreateVideo(cmd.Context(), store.NewVideoParams{
					UserID:         userID,
					Title:          title,
					SourceLanguage: sourceLanguage,
					TargetLanguage: language,
					Voice:          voice,
					InputKey:       key,
					DurationSec:    duration,
					Format:         format,
				})
				if err != nil {
					return err
				}
				job, err := st.EnqueueJob(cmd.Context(), video.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Uploaded %s (%.1fs) to %s\n", filepath.Base(path), duration, key)
				fmt.Fprintf(out, "Video %s queued as job %d\n", video.ID, job.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner of the video (required)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Target dubbing language (required)")
	cmd.Flags().StringVar(&sourceLanguage, "source-language", "", "Spoken language hint for transcription")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Display title (defaults to the file name)")
	cmd.Flags().StringVar(&voice, "voice", "", "Synthesis voice override")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"redub/internal/blob"
	"redub/internal/store"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the dubbing queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var userFilter string
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos in the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				videos, err := st.ListVideos(cmd.Context(), strings.TrimSpace(userFilter))
				if err != nil {
					return err
				}

				wanted := strings.ToLower(strings.TrimSpace(statusFilter))
				rows := make([][]string, 0, len(videos))
				for _, video := range videos {
					if wanted != "" && string(video.Status) != wanted {
						continue
					}
					rows = append(rows, []string{
						shortID(video.ID),
						video.UserID,
						displayTitle(video),
						string(video.Status),
						video.TargetLanguage,
						fmt.Sprintf("%d", video.RetryCount),
						video.CreatedAt.Local().Format(time.DateTime),
					})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "User", "Title", "Status", "Language", "Retries", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userFilter, "user", "u", "", "Only show videos for this user")
	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Filter by video status")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [videoID]",
		Short: "Show queue summary, or full details for one video",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				if len(args) == 1 {
					return printVideoStatus(cmd, st, args[0])
				}

				summary, err := st.Health(cmd.Context())
				if err != nil {
					return err
				}
				if summary.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					[][]string{
						{"pending", fmt.Sprintf("%d", summary.Pending)},
						{"running", fmt.Sprintf("%d", summary.Running)},
						{"done", fmt.Sprintf("%d", summary.Done)},
						{"failed", fmt.Sprintf("%d", summary.Failed)},
						{"total", fmt.Sprintf("%d", summary.Total)},
					},
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

// resolveVideo accepts a full video id or a unique prefix of one.
func resolveVideo(cmd *cobra.Command, st *store.Store, arg string) (*store.Video, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, errors.New("video id is required")
	}

	video, err := st.GetVideo(cmd.Context(), arg)
	if err != nil {
		return nil, err
	}
	if video != nil {
		return video, nil
	}

	videos, err := st.ListVideos(cmd.Context(), "")
	if err != nil {
		return nil, err
	}
	var match *store.Video
	for _, candidate := range videos {
		if !strings.HasPrefix(candidate.ID, arg) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("video id %q is ambiguous", arg)
		}
		match = candidate
	}
	if match == nil {
		return nil, fmt.Errorf("video %s not found", arg)
	}
	return match, nil
}

func printVideoStatus(cmd *cobra.Command, st *store.Store, videoID string) error {
	video, err := resolveVideo(cmd, st, videoID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Video:    %s\n", video.ID)
	fmt.Fprintf(out, "User:     %s\n", video.UserID)
	fmt.Fprintf(out, "Title:    %s\n", displayTitle(video))
	fmt.Fprintf(out, "Status:   %s\n", video.Status)
	fmt.Fprintf(out, "Language: %s", video.TargetLanguage)
	if video.DetectedLanguage != "" {
		fmt.Fprintf(out, " (detected %s)", video.DetectedLanguage)
	}
	fmt.Fprintln(out)
	if video.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", video.ErrorMessage)
	}
	if video.OutputKey != "" {
		fmt.Fprintf(out, "Output:   %s\n", video.OutputKey)
	}
	if video.DownloadURL != "" {
		fmt.Fprintf(out, "URL:      %s\n", video.DownloadURL)
	}

	jobs, err := st.JobsForVideo(cmd.Context(), video.ID)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		fmt.Fprintf(out, "Job %d:   %s (attempt %d/%d)", job.ID, job.Status, job.Attempts, job.MaxAttempts)
		if job.ErrorMessage != "" {
			fmt.Fprintf(out, " %s", job.ErrorMessage)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <videoID>",
		Short: "Requeue a failed video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(st *store.Store, blobs blob.Store) error {
				video, err := resolveVideo(cmd, st, args[0])
				if err != nil {
					return err
				}

				ok, err := blobs.Exists(cmd.Context(), video.InputKey)
				if err != nil {
					return fmt.Errorf("check input object: %w", err)
				}
				if !ok {
					return fmt.Errorf("input object %s is gone, video cannot be retried", video.InputKey)
				}

				job, err := st.RetryVideo(cmd.Context(), video.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Video %s requeued as job %d\n", video.ID, job.ID)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearDone bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearDone && clearFailed {
				return errors.New("specify only one of --done or --failed")
			}
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				var statuses []store.JobStatus
				label := "queue"
				switch {
				case clearDone:
					statuses = []store.JobStatus{store.JobDone}
					label = "done"
				case clearFailed:
					statuses = []store.JobStatus{store.JobFailed}
					label = "failed"
				}
				removed, err := st.ClearJobs(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s jobs\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearDone, "done", false, "Remove only done jobs")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed jobs")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func displayTitle(video *store.Video) string {
	if strings.TrimSpace(video.Title) != "" {
		return video.Title
	}
	return "(untitled)"
}

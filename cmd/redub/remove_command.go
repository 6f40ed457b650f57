package main

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"redub/internal/blob"
	"redub/internal/store"
)

// artifactAreas are the object-store prefixes a video writes under.
var artifactAreas = []string{"extracted-audio", "scripts", "tts-audio", "completed"}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var keepBlobs bool

	cmd := &cobra.Command{
		Use:   "remove <videoID>",
		Short: "Delete a video, its jobs, and its stored artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(st *store.Store, blobs blob.Store) error {
				video, err := resolveVideo(cmd, st, args[0])
				if err != nil {
					return err
				}

				removed := 0
				if !keepBlobs {
					for _, area := range artifactAreas {
						prefix := path.Join(area, video.UserID, video.ID) + "/"
						n, err := blobs.DeletePrefix(cmd.Context(), prefix)
						if err != nil {
							return fmt.Errorf("delete %s artifacts: %w", area, err)
						}
						removed += n
					}
					if video.InputKey != "" {
						if err := blobs.Delete(cmd.Context(), video.InputKey); err != nil {
							return fmt.Errorf("delete input object: %w", err)
						}
						removed++
					}
				}

				if _, err := st.DeleteVideo(cmd.Context(), video.ID); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Removed video %s (%d stored objects deleted)\n", video.ID, removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&keepBlobs, "keep-blobs", false, "Delete only the database rows, leave stored objects")
	return cmd
}

package finalizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"redub/internal/blob"
	"redub/internal/logging"
	"redub/internal/media"
	"redub/internal/services"
)

// Input names the local artifacts the finalize stage works from.
// BackgroundPath may be empty when separation was skipped; the dub track is
// then used as the complete audio bed.
type Input struct {
	VideoPath      string
	DubTrackPath   string
	BackgroundPath string
	WorkDir        string
	UserID         string
	VideoID        string
}

// Result is the uploaded output video.
type Result struct {
	OutputKey   string
	DownloadURL string
}

// Finalizer mixes the dub against the background stem, remuxes the video,
// and uploads the finished file.
type Finalizer struct {
	toolkit *media.Toolkit
	store   blob.Store
	logger  *slog.Logger
}

// New constructs a Finalizer.
func New(toolkit *media.Toolkit, store blob.Store, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Finalizer{
		toolkit: toolkit,
		store:   store,
		logger:  logging.WithComponent(logger, "finalizer"),
	}
}

// OutputKey is where the finished video for a user/video pair is stored.
func OutputKey(userID, videoID string) string {
	return path.Join("completed", userID, videoID, "output.mp4")
}

// Finalize produces and uploads the dubbed video.
func (f *Finalizer) Finalize(ctx context.Context, in Input) (Result, error) {
	if in.VideoPath == "" || in.DubTrackPath == "" {
		return Result{}, services.Wrap(services.ErrValidation, "finalize", "mix", "video and dub track required", nil)
	}

	finalAudio := in.DubTrackPath
	if in.BackgroundPath != "" {
		mixed := filepath.Join(in.WorkDir, "mixed.wav")
		if err := f.toolkit.MixWithBackground(ctx, in.DubTrackPath, in.BackgroundPath, mixed); err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, "finalize", "mix", "", err)
		}
		finalAudio = mixed
	} else {
		f.logger.Info("no background stem, muxing dub track directly",
			logging.String(logging.FieldVideoID, in.VideoID))
	}

	output := filepath.Join(in.WorkDir, "output.mp4")
	if err := f.toolkit.ReplaceVideoAudio(ctx, in.VideoPath, finalAudio, output); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "finalize", "remux", "", err)
	}

	key := OutputKey(in.UserID, in.VideoID)
	if err := f.upload(ctx, output, key); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "finalize", "upload", "", err)
	}

	f.logger.Info("output video uploaded",
		logging.String(logging.FieldVideoID, in.VideoID),
		logging.String("key", key))

	return Result{
		OutputKey:   key,
		DownloadURL: f.store.PublicURL(key),
	}, nil
}

func (f *Finalizer) upload(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()
	return f.store.Put(ctx, key, file, blob.ContentTypeFor(key))
}

package separation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/services"
)

// Demucs writes its stems under <out>/htdemucs/<input base name>/.
const modelDirName = "htdemucs"

// Inputs shorter than this produce garbage stems, so they are rejected before
// the model runs.
const minInputSeconds = 1.0

// Stems holds the paths of the separated tracks on local disk.
type Stems struct {
	Vocals     string
	Background string
}

// Separator splits an audio track into vocal and background stems using the
// demucs CLI.
type Separator struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger

	durationFn func(ctx context.Context, path string) (float64, error)
}

// Option customizes a Separator.
type Option func(*Separator)

// WithDurationProbe overrides the audio duration probe. Used in tests.
func WithDurationProbe(fn func(ctx context.Context, path string) (float64, error)) Option {
	return func(s *Separator) {
		s.durationFn = fn
	}
}

// New constructs a Separator from configuration.
func New(cfg *config.Config, durationFn func(ctx context.Context, path string) (float64, error), logger *slog.Logger, opts ...Option) *Separator {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Separator{
		binary:     cfg.Separation.Binary,
		timeout:    time.Duration(cfg.Separation.TimeoutSeconds) * time.Second,
		logger:     logging.WithComponent(logger, "separation"),
		durationFn: durationFn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Separate runs stem separation on audioPath, writing model output under
// outDir. The returned stem paths are verified to exist; a zero demucs exit
// code with missing output files is still a failure.
func (s *Separator) Separate(ctx context.Context, audioPath, outDir string) (Stems, error) {
	if s.durationFn != nil {
		duration, err := s.durationFn(ctx, audioPath)
		if err != nil {
			return Stems{}, services.Wrap(services.ErrExternalTool, "separation", "probe", "measure input duration", err)
		}
		if duration < minInputSeconds {
			return Stems{}, services.Wrap(services.ErrValidation, "separation", "probe",
				fmt.Sprintf("input audio is %.2fs, need at least %.1fs", duration, minInputSeconds), nil)
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := []string{"--two-stems=vocals", "--mp3", "-o", outDir, audioPath}
	s.logger.Info("separating stems",
		logging.String("input", filepath.Base(audioPath)),
		logging.String("binary", s.binary))

	cmd := exec.CommandContext(ctx, s.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Stems{}, services.Wrap(services.ErrExternalTool, "separation", "demucs",
			strings.TrimSpace(string(output)), err)
	}

	stems := stemPaths(outDir, audioPath)
	for _, path := range []string{stems.Vocals, stems.Background} {
		info, statErr := os.Stat(path)
		if statErr != nil || info.Size() == 0 {
			return Stems{}, services.Wrap(services.ErrExternalTool, "separation", "verify",
				fmt.Sprintf("demucs exited cleanly but %s is missing or empty", filepath.Base(path)), nil)
		}
	}

	s.logger.Info("stems ready",
		logging.String("vocals", stems.Vocals),
		logging.String("background", stems.Background))
	return stems, nil
}

func stemPaths(outDir, audioPath string) Stems {
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	stemDir := filepath.Join(outDir, modelDirName, base)
	return Stems{
		Vocals:     filepath.Join(stemDir, "vocals.mp3"),
		Background: filepath.Join(stemDir, "no_vocals.mp3"),
	}
}

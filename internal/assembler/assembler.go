package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"redub/internal/logging"
	"redub/internal/media"
	"redub/internal/services"
	"redub/internal/translate"
	"redub/internal/tts"
)

// DurationFunc probes the duration of an audio file in seconds.
type DurationFunc func(ctx context.Context, path string) (float64, error)

// Option configures an Assembler.
type Option func(*Assembler)

// WithDurationProbe overrides how segment durations are measured.
func WithDurationProbe(fn DurationFunc) Option {
	return func(a *Assembler) { a.durationFn = fn }
}

// Assembler stitches synthesized segments into one continuous dub track
// aligned with the source timeline.
type Assembler struct {
	toolkit    *media.Toolkit
	durationFn DurationFunc
	logger     *slog.Logger
}

// New constructs an Assembler around the ffmpeg toolkit.
func New(toolkit *media.Toolkit, logger *slog.Logger, opts ...Option) *Assembler {
	if logger == nil {
		logger = logging.NewNop()
	}
	a := &Assembler{
		toolkit:    toolkit,
		durationFn: toolkit.Duration,
		logger:     logging.WithComponent(logger, "assembler"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildTrack renders the aligned dub track to dest. workDir holds the
// intermediate silence and tempo-adjusted parts; lines supply the timeline
// and segments the audio for each line index. The rendered track runs from
// zero to the last line's end timestamp.
func (a *Assembler) BuildTrack(ctx context.Context, lines []translate.Line, segments []tts.SegmentAudio, workDir, dest string) error {
	audioByIndex := make(map[int]string, len(segments))
	for _, seg := range segments {
		audioByIndex[seg.Index] = seg.Path
	}

	cues := make([]Cue, 0, len(lines))
	for _, line := range lines {
		path, ok := audioByIndex[line.Index]
		if !ok {
			return services.Wrap(services.ErrValidation, "assembler", "build",
				fmt.Sprintf("no audio for segment %d", line.Index), nil)
		}
		actual, err := a.durationFn(ctx, path)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "assembler", "build",
				fmt.Sprintf("probe segment %d", line.Index), err)
		}
		cues = append(cues, Cue{
			Index:          line.Index,
			Start:          line.Start,
			End:            line.End,
			ActualDuration: actual,
		})
	}

	plan, err := Plan(cues)
	if err != nil {
		return services.Wrap(services.ErrValidation, "assembler", "build", "", err)
	}

	partsDir := filepath.Join(workDir, "parts")
	if err := os.MkdirAll(partsDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "assembler", "build", "create parts directory", err)
	}

	parts, err := a.renderSteps(ctx, plan, audioByIndex, partsDir)
	if err != nil {
		return err
	}

	a.logger.Info("assembling dub track",
		logging.Int("steps", len(plan)),
		logging.Int("segments", len(cues)))

	joined := filepath.Join(workDir, "dub_raw.wav")
	if err := a.toolkit.Concat(ctx, parts, joined); err != nil {
		return services.Wrap(services.ErrExternalTool, "assembler", "concat", "", err)
	}
	if err := a.toolkit.NormalizeLoudness(ctx, joined, dest); err != nil {
		return services.Wrap(services.ErrExternalTool, "assembler", "normalize", "", err)
	}
	return nil
}

func (a *Assembler) renderSteps(ctx context.Context, plan []Step, audioByIndex map[int]string, partsDir string) ([]string, error) {
	parts := make([]string, 0, len(plan))
	for i, step := range plan {
		part := filepath.Join(partsDir, fmt.Sprintf("part_%04d.wav", i))
		switch step.Kind {
		case StepSilence:
			if err := a.toolkit.GenerateSilence(ctx, step.Duration, part); err != nil {
				return nil, services.Wrap(services.ErrExternalTool, "assembler", "silence", "", err)
			}
		case StepSpeech:
			if err := a.renderSpeech(ctx, step, audioByIndex[step.Index], part, partsDir, i); err != nil {
				return nil, err
			}
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// renderSpeech materializes one speech step: verbatim copy at tempo 1.0,
// otherwise a tempo pass, with an exact trim to the slot length when the
// speech was sped up.
func (a *Assembler) renderSpeech(ctx context.Context, step Step, source, part, partsDir string, ordinal int) error {
	if step.Tempo == 1.0 && !step.Trim {
		if err := a.toolkit.ConvertToWav(ctx, source, part); err != nil {
			return services.Wrap(services.ErrExternalTool, "assembler", "convert", "", err)
		}
		return nil
	}

	adjusted := part
	if step.Trim {
		adjusted = filepath.Join(partsDir, fmt.Sprintf("tempo_%04d.wav", ordinal))
	}
	if err := a.toolkit.AdjustTempo(ctx, source, adjusted, step.Tempo); err != nil {
		return services.Wrap(services.ErrExternalTool, "assembler", "tempo", "", err)
	}
	if step.Trim {
		if err := a.toolkit.Trim(ctx, adjusted, part, step.Duration); err != nil {
			return services.Wrap(services.ErrExternalTool, "assembler", "trim", "", err)
		}
	}
	return nil
}

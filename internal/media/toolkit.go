package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"redub/internal/logging"
)

// Working sample parameters shared by every intermediate audio artifact so
// the concat demuxer never has to resample mid-stream.
const (
	SampleRate = 44100
	Channels   = 2
)

// Loudness targets applied to the assembled dub track.
const loudnormFilter = "loudnorm=I=-16:TP=-1.5:LRA=11"

// Toolkit wraps the ffmpeg and ffprobe binaries used by the pipeline.
type Toolkit struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// NewToolkit builds a Toolkit. Empty binary names fall back to PATH lookups.
func NewToolkit(ffmpeg, ffprobe string, logger *slog.Logger) *Toolkit {
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}
	if strings.TrimSpace(ffprobe) == "" {
		ffprobe = "ffprobe"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Toolkit{
		ffmpeg:  ffmpeg,
		ffprobe: ffprobe,
		logger:  logging.WithComponent(logger, "media"),
	}
}

func (t *Toolkit) run(ctx context.Context, operation string, args ...string) error {
	cmd := exec.CommandContext(ctx, t.ffmpeg, args...) //nolint:gosec
	t.logger.Debug("running ffmpeg",
		logging.String("operation", operation),
		logging.String("args", strings.Join(args, " ")))
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", operation, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Duration probes a media file's duration in seconds.
func (t *Toolkit) Duration(ctx context.Context, path string) (float64, error) {
	result, err := Probe(ctx, t.ffprobe, path)
	if err != nil {
		return 0, err
	}
	return result.DurationSeconds(), nil
}

// ExtractAudio pulls the full audio track from a video into an MP3 file.
func (t *Toolkit) ExtractAudio(ctx context.Context, source, dest string) error {
	return t.run(ctx, "extract audio",
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", source,
		"-vn", "-sn", "-dn",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "libmp3lame", "-q:a", "2",
		dest,
	)
}

// ConvertToWav re-encodes any audio input to the shared PCM working format.
func (t *Toolkit) ConvertToWav(ctx context.Context, source, dest string) error {
	return t.run(ctx, "convert to wav",
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", source,
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	)
}

// GenerateSilence writes a PCM WAV of the requested duration.
func (t *Toolkit) GenerateSilence(ctx context.Context, durationSec float64, dest string) error {
	if durationSec <= 0 {
		return fmt.Errorf("generate silence: non-positive duration %f", durationSec)
	}
	return t.run(ctx, "generate silence",
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=stereo", SampleRate),
		"-t", formatSeconds(durationSec),
		"-c:a", "pcm_s16le",
		dest,
	)
}

// AdjustTempo speeds up or slows down audio without changing pitch. Tempo is
// the ratio of input duration to output duration; values outside the range a
// single atempo filter accepts are applied as a chain.
func (t *Toolkit) AdjustTempo(ctx context.Context, source, dest string, tempo float64) error {
	chain, err := TempoChain(tempo)
	if err != nil {
		return fmt.Errorf("adjust tempo: %w", err)
	}
	return t.run(ctx, "adjust tempo",
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", source,
		"-filter:a", chain,
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	)
}

// Trim cuts audio to exactly durationSec seconds.
func (t *Toolkit) Trim(ctx context.Context, source, dest string, durationSec float64) error {
	if durationSec <= 0 {
		return fmt.Errorf("trim: non-positive duration %f", durationSec)
	}
	return t.run(ctx, "trim",
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", source,
		"-t", formatSeconds(durationSec),
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	)
}

// Concat joins the given audio files in order using the concat demuxer and
// re-encodes to the shared working format.
func (t *Toolkit) Concat(ctx context.Context, inputs []string, dest string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("concat: no inputs")
	}
	listFile, err := writeConcatList(filepath.Dir(dest), inputs)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	return t.run(ctx, "concat",
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listFile,
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	)
}

// NormalizeLoudness applies broadcast loudness normalization.
func (t *Toolkit) NormalizeLoudness(ctx context.Context, source, dest string) error {
	return t.run(ctx, "normalize loudness",
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", source,
		"-filter:a", loudnormFilter,
		"-ar", strconv.Itoa(SampleRate),
		dest,
	)
}

// MixWithBackground lays the dubbed voice over the background stem. The
// background is attenuated and high-passed so low-frequency rumble does not
// mask the synthesized speech; output length follows the voice track.
func (t *Toolkit) MixWithBackground(ctx context.Context, voice, background, dest string) error {
	filter := "[1:a]volume=0.4,highpass=f=60[bg];" +
		"[0:a][bg]amix=inputs=2:duration=first:dropout_transition=2," +
		loudnormFilter
	return t.run(ctx, "mix background",
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", voice,
		"-i", background,
		"-filter_complex", filter,
		"-ar", strconv.Itoa(SampleRate),
		dest,
	)
}

// ReplaceVideoAudio remuxes the original video stream with the dubbed audio
// track. Video is copied untouched; audio is encoded to AAC.
func (t *Toolkit) ReplaceVideoAudio(ctx context.Context, video, audio, dest string) error {
	return t.run(ctx, "replace audio",
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		dest,
	)
}

// ExtractThumbnail grabs a single frame one second into the video.
func (t *Toolkit) ExtractThumbnail(ctx context.Context, video, dest string) error {
	return t.run(ctx, "extract thumbnail",
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", "1",
		"-i", video,
		"-vframes", "1",
		"-vf", "scale=640:-1",
		dest,
	)
}

func writeConcatList(dir string, inputs []string) (string, error) {
	f, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("concat list: %w", err)
	}
	defer f.Close()
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("concat list: %w", err)
		}
		// Single quotes in paths must be escaped for the concat demuxer.
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		if _, err := fmt.Fprintf(f, "file '%s'\n", escaped); err != nil {
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("concat list: %w", err)
		}
	}
	return f.Name(), nil
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"redub/internal/blob"
	"redub/internal/config"
	"redub/internal/finalizer"
	"redub/internal/logging"
	"redub/internal/separation"
	"redub/internal/services"
	"redub/internal/store"
	"redub/internal/transcribe"
	"redub/internal/translate"
	"redub/internal/tts"
)

// MediaTool is the subset of the ffmpeg toolkit the orchestrator itself
// uses; the heavier operations live behind the stage components.
type MediaTool interface {
	ExtractAudio(ctx context.Context, source, dest string) error
	ExtractThumbnail(ctx context.Context, video, dest string) error
}

// Separator isolates vocals from background music.
type Separator interface {
	Separate(ctx context.Context, audioPath, outDir string) (separation.Stems, error)
}

// Transcriber produces a timed transcript from an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, languageHint string) (transcribe.Result, error)
}

// Rewriter translates a transcript into the target language.
type Rewriter interface {
	Rewrite(ctx context.Context, segments []transcribe.Segment, sourceLanguage, targetLanguage string) ([]translate.Line, error)
}

// Synthesizer voices script lines into per-segment audio files.
type Synthesizer interface {
	SynthesizeSegments(ctx context.Context, lines []translate.Line, req tts.Request, outDir string) ([]tts.SegmentAudio, error)
}

// TrackBuilder assembles per-segment audio into one aligned dub track.
type TrackBuilder interface {
	BuildTrack(ctx context.Context, lines []translate.Line, segments []tts.SegmentAudio, workDir, dest string) error
}

// VideoFinalizer mixes, remuxes, and uploads the finished video.
type VideoFinalizer interface {
	Finalize(ctx context.Context, in finalizer.Input) (finalizer.Result, error)
}

// Deps bundles the stage components the orchestrator sequences. Separator
// may be nil when vocal separation is disabled; the full mixed audio is
// then transcribed directly and the finalizer muxes the dub track alone.
type Deps struct {
	Media       MediaTool
	Separator   Separator
	Transcriber Transcriber
	Rewriter    Rewriter
	Synthesizer Synthesizer
	Assembler   TrackBuilder
	Finalizer   VideoFinalizer
}

// Runner executes the dubbing pipeline for one video at a time.
type Runner struct {
	cfg    *config.Config
	store  *store.Store
	blobs  blob.Store
	deps   Deps
	logger *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(cfg *config.Config, st *store.Store, blobs blob.Store, deps Deps, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		store:  st,
		blobs:  blobs,
		deps:   deps,
		logger: logging.WithComponent(logger, "pipeline"),
	}
}

// scratch is the per-video local working directory layout. Paths are
// namespaced by video id so concurrent jobs for different videos never
// collide.
type scratch struct {
	root  string
	audio string
	stems string
	tts   string
	final string
}

func newScratch(workDir, videoID string) (scratch, error) {
	s := scratch{root: filepath.Join(workDir, videoID)}
	s.audio = filepath.Join(s.root, "audio")
	s.stems = filepath.Join(s.root, "stems")
	s.tts = filepath.Join(s.root, "tts")
	s.final = filepath.Join(s.root, "final")
	for _, dir := range []string{s.audio, s.stems, s.tts, s.final} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return scratch{}, fmt.Errorf("create scratch %s: %w", dir, err)
		}
	}
	return s, nil
}

// Process runs the full stage sequence for the given video. The caller owns
// job and video status bookkeeping; Process only persists stage outputs on
// the video row and returns the first stage error. A transcript with no
// speech segments ends the run successfully with no dub produced.
func (r *Runner) Process(ctx context.Context, videoID string) error {
	ctx = services.WithVideoID(ctx, videoID)
	logger := logging.WithContext(ctx, r.logger)

	video, err := r.store.GetVideo(ctx, videoID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "acquire", "load video", err)
	}
	if video == nil {
		return services.Wrap(services.ErrNotFound, "pipeline", "acquire",
			fmt.Sprintf("video %s not found", videoID), nil)
	}

	work, err := newScratch(r.cfg.Paths.WorkDir, video.ID)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "scratch", "", err)
	}
	defer func() {
		if err := os.RemoveAll(work.root); err != nil {
			logger.Warn("scratch cleanup failed",
				logging.String("dir", work.root),
				logging.Error(err))
		}
	}()

	sourcePath, err := r.download(ctx, video, work)
	if err != nil {
		return err
	}

	thumbnailKey := r.extractThumbnail(ctx, logger, video, sourcePath, work)

	originalPath, err := r.extractAudio(ctx, sourcePath, work)
	if err != nil {
		return err
	}

	voicePath, backgroundPath, err := r.separate(ctx, logger, originalPath, work)
	if err != nil {
		return err
	}

	keys, err := r.uploadStems(ctx, video, originalPath, voicePath, backgroundPath)
	if err != nil {
		return err
	}
	if err := r.store.SaveAudioKeys(ctx, video.ID, keys); err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "persist audio keys", "", err)
	}

	transcript, err := r.transcribeStage(ctx, video, voicePath)
	if err != nil {
		return err
	}
	if len(transcript.Segments) == 0 {
		logger.Info("no speech recognized, nothing to dub")
		return nil
	}

	lines, err := r.translateStage(ctx, video, transcript)
	if err != nil {
		return err
	}

	segments, err := r.deps.Synthesizer.SynthesizeSegments(services.WithStage(ctx, "synthesize"), lines, tts.Request{
		Voice:    video.Voice,
		Language: video.TargetLanguage,
	}, work.tts)
	if err != nil {
		return err
	}

	dubPath := filepath.Join(work.final, "dub.wav")
	if err := r.deps.Assembler.BuildTrack(services.WithStage(ctx, "assemble"), lines, segments, work.final, dubPath); err != nil {
		return err
	}

	keys.TTS, err = r.uploadDub(ctx, logger, video, dubPath, segments)
	if err != nil {
		return err
	}
	if err := r.store.SaveAudioKeys(ctx, video.ID, keys); err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "persist audio keys", "", err)
	}

	result, err := r.deps.Finalizer.Finalize(services.WithStage(ctx, "finalize"), finalizer.Input{
		VideoPath:      sourcePath,
		DubTrackPath:   dubPath,
		BackgroundPath: backgroundPath,
		WorkDir:        work.final,
		UserID:         video.UserID,
		VideoID:        video.ID,
	})
	if err != nil {
		return err
	}

	if err := r.store.SaveOutput(ctx, video.ID, result.OutputKey, result.DownloadURL, thumbnailKey); err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "persist output", "", err)
	}

	logger.Info("pipeline complete",
		logging.String("output_key", result.OutputKey),
		logging.Int("segments", len(lines)))
	return nil
}

func (r *Runner) download(ctx context.Context, video *store.Video, work scratch) (string, error) {
	ctx = services.WithStage(ctx, "download")
	reader, err := r.blobs.Get(ctx, video.InputKey)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "pipeline", "download",
			fmt.Sprintf("input blob %s", video.InputKey), err)
	}
	defer reader.Close()

	ext := strings.TrimPrefix(strings.ToLower(video.InputFormat), ".")
	if ext == "" {
		ext = "mp4"
	}
	sourcePath := filepath.Join(work.root, "source."+ext)
	file, err := os.Create(sourcePath)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "pipeline", "download", "create local copy", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, reader); err != nil {
		return "", services.Wrap(services.ErrTransient, "pipeline", "download", "copy input", err)
	}
	return sourcePath, nil
}

// extractThumbnail is best-effort; a missing thumbnail never fails the run.
func (r *Runner) extractThumbnail(ctx context.Context, logger *slog.Logger, video *store.Video, sourcePath string, work scratch) string {
	thumbPath := filepath.Join(work.root, "thumbnail.jpg")
	if err := r.deps.Media.ExtractThumbnail(ctx, sourcePath, thumbPath); err != nil {
		logger.Warn("thumbnail extraction failed", logging.Error(err))
		return ""
	}
	key := artifactKey("completed", video, "thumbnail.jpg")
	if err := r.uploadFile(ctx, thumbPath, key); err != nil {
		logger.Warn("thumbnail upload failed", logging.Error(err))
		return ""
	}
	return key
}

func (r *Runner) extractAudio(ctx context.Context, sourcePath string, work scratch) (string, error) {
	ctx = services.WithStage(ctx, "extract")
	originalPath := filepath.Join(work.audio, "original.mp3")
	if err := r.deps.Media.ExtractAudio(ctx, sourcePath, originalPath); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "pipeline", "extract audio", "", err)
	}
	return originalPath, nil
}

// separate runs vocal isolation when enabled. Without it the full mix
// doubles as the voice track and no background stem exists.
func (r *Runner) separate(ctx context.Context, logger *slog.Logger, originalPath string, work scratch) (voice, background string, err error) {
	if r.deps.Separator == nil {
		logger.Info("separation disabled, transcribing full mix")
		return originalPath, "", nil
	}
	stems, err := r.deps.Separator.Separate(services.WithStage(ctx, "separate"), originalPath, work.stems)
	if err != nil {
		return "", "", err
	}
	return stems.Vocals, stems.Background, nil
}

// uploadStems pushes the three audio artifacts concurrently. Either all
// uploads succeed and the caller persists the full key set, or the stage
// fails with no keys recorded.
func (r *Runner) uploadStems(ctx context.Context, video *store.Video, originalPath, voicePath, backgroundPath string) (store.AudioKeys, error) {
	ctx = services.WithStage(ctx, "upload stems")
	keys := store.AudioKeys{
		Original: artifactKey("extracted-audio", video, "original.mp3"),
		Voice:    artifactKey("extracted-audio", video, "vocals.mp3"),
	}
	uploads := map[string]string{
		originalPath: keys.Original,
	}
	if voicePath != originalPath {
		uploads[voicePath] = keys.Voice
	} else {
		keys.Voice = keys.Original
	}
	if backgroundPath != "" {
		keys.Background = artifactKey("extracted-audio", video, "no_vocals.mp3")
		uploads[backgroundPath] = keys.Background
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(uploads))
	for path, key := range uploads {
		wg.Add(1)
		go func(path, key string) {
			defer wg.Done()
			if err := r.uploadFile(ctx, path, key); err != nil {
				errs <- fmt.Errorf("upload %s: %w", key, err)
			}
		}(path, key)
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return store.AudioKeys{}, services.Wrap(services.ErrExternalTool, "pipeline", "upload stems", "", err)
	}
	return keys, nil
}

func (r *Runner) transcribeStage(ctx context.Context, video *store.Video, voicePath string) (transcribe.Result, error) {
	result, err := r.deps.Transcriber.Transcribe(services.WithStage(ctx, "transcribe"), voicePath, video.SourceLanguage)
	if err != nil {
		return transcribe.Result{}, err
	}

	transcriptJSON, err := encodeJSON(result.Segments)
	if err != nil {
		return transcribe.Result{}, services.Wrap(services.ErrValidation, "pipeline", "transcribe", "encode transcript", err)
	}
	if err := r.store.SaveTranscript(ctx, video.ID, result.Language, transcriptJSON); err != nil {
		return transcribe.Result{}, services.Wrap(services.ErrTransient, "pipeline", "persist transcript", "", err)
	}
	return result, nil
}

func (r *Runner) translateStage(ctx context.Context, video *store.Video, transcript transcribe.Result) ([]translate.Line, error) {
	sourceLanguage := transcript.Language
	if sourceLanguage == "" {
		sourceLanguage = video.SourceLanguage
	}
	lines, err := r.deps.Rewriter.Rewrite(services.WithStage(ctx, "translate"), transcript.Segments, sourceLanguage, video.TargetLanguage)
	if err != nil {
		return nil, err
	}

	scriptJSON, err := translate.EncodeLines(lines)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "translate", "", err)
	}
	scriptKey := artifactKey("scripts", video, "rewritten-script.json")
	if err := r.blobs.Put(ctx, scriptKey, strings.NewReader(scriptJSON), blob.ContentTypeFor(scriptKey)); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "pipeline", "upload script", "", err)
	}
	if err := r.store.SaveScript(ctx, video.ID, scriptJSON, scriptJSON); err != nil {
		return nil, services.Wrap(services.ErrTransient, "pipeline", "persist script", "", err)
	}
	return lines, nil
}

// uploadDub stores the assembled track and, when configured, the individual
// synthesis segments alongside it. Segment upload failures are logged only.
func (r *Runner) uploadDub(ctx context.Context, logger *slog.Logger, video *store.Video, dubPath string, segments []tts.SegmentAudio) (string, error) {
	ctx = services.WithStage(ctx, "upload dub")
	key := artifactKey("tts-audio", video, "dub.wav")
	if err := r.uploadFile(ctx, dubPath, key); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "pipeline", "upload dub", "", err)
	}
	if r.cfg.AzureSpeech.UploadSynthesis {
		for _, seg := range segments {
			segKey := artifactKey("tts-audio", video, filepath.Base(seg.Path))
			if err := r.uploadFile(ctx, seg.Path, segKey); err != nil {
				logger.Warn("segment upload failed",
					logging.String("key", segKey),
					logging.Error(err))
			}
		}
	}
	return key, nil
}

func (r *Runner) uploadFile(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()
	return r.blobs.Put(ctx, key, file, blob.ContentTypeFor(key))
}

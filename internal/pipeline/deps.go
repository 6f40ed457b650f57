package pipeline

import (
	"log/slog"
	"time"

	"redub/internal/assembler"
	"redub/internal/blob"
	"redub/internal/config"
	"redub/internal/finalizer"
	"redub/internal/media"
	"redub/internal/openai"
	"redub/internal/separation"
	"redub/internal/transcribe"
	"redub/internal/translate"
	"redub/internal/tts"
)

// DefaultDeps wires the production stage components from configuration.
// The daemon and the synchronous run command share this so both entry
// points execute the identical pipeline.
func DefaultDeps(cfg *config.Config, blobs blob.Store, logger *slog.Logger) Deps {
	toolkit := media.NewToolkit(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger)

	client := openai.NewClient(openai.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		ChatModel:      cfg.OpenAI.ChatModel,
		WhisperModel:   cfg.OpenAI.WhisperModel,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	})

	cache := translate.NewMemoryCache(
		cfg.Translation.CacheEntries,
		time.Duration(cfg.Translation.CacheTTLHours)*time.Hour,
	)
	engine := translate.New(client, cache, translate.Options{
		BatchSize:   cfg.Translation.BatchSize,
		Concurrency: cfg.Translation.BatchConcurrency,
		MaxRetries:  cfg.Translation.MaxRetries,
	}, logger)

	var separator Separator
	if cfg.Separation.Enabled {
		separator = separation.New(cfg, toolkit.Duration, logger)
	}

	return Deps{
		Media:       toolkit,
		Separator:   separator,
		Transcriber: transcribe.New(client, logger),
		Rewriter:    engine,
		Synthesizer: tts.New(cfg.AzureSpeech, logger),
		Assembler:   assembler.New(toolkit, logger),
		Finalizer:   finalizer.New(toolkit, blobs, logger),
	}
}

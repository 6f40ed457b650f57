package config

const (
	defaultWorkDir  = "~/.local/share/redub/work"
	defaultLogDir   = "~/.local/share/redub/logs"
	defaultDatabase = "~/.local/share/redub/queue.db"

	defaultStorageBackend = "fs"
	defaultStorageDir     = "~/.local/share/redub/store"

	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultWhisperModel         = "whisper-1"
	defaultChatModel            = "gpt-4o-mini"
	defaultOpenAITimeoutSeconds = 300

	defaultTranslationBatchSize   = 8
	defaultTranslationConcurrency = 2
	defaultTranslationMaxRetries  = 3
	defaultTranslationCacheSize   = 1000
	defaultTranslationCacheHours  = 24

	defaultSpeechOutputFormat   = "riff-44100hz-16bit-mono-pcm"
	defaultSpeechConcurrency    = 5
	defaultSpeechRequestDelayMS = 200
	defaultSpeechMaxRetries     = 3
	defaultSpeechTimeoutSeconds = 60

	defaultSeparationBinary  = "demucs"
	defaultSeparationTimeout = 1800

	defaultPollIntervalSeconds    = 3
	defaultDBRetryIntervalSeconds = 5
	defaultLockTimeoutMinutes     = 5
	defaultMaxAttempts            = 3
	defaultJobTimeoutMinutes      = 120

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
			Database: defaultDatabase,
		},
		Storage: Storage{
			Backend:  defaultStorageBackend,
			LocalDir: defaultStorageDir,
		},
		OpenAI: OpenAI{
			BaseURL:        defaultOpenAIBaseURL,
			WhisperModel:   defaultWhisperModel,
			ChatModel:      defaultChatModel,
			TimeoutSeconds: defaultOpenAITimeoutSeconds,
		},
		Translation: Translation{
			BatchSize:        defaultTranslationBatchSize,
			BatchConcurrency: defaultTranslationConcurrency,
			MaxRetries:       defaultTranslationMaxRetries,
			CacheEntries:     defaultTranslationCacheSize,
			CacheTTLHours:    defaultTranslationCacheHours,
		},
		AzureSpeech: AzureSpeech{
			OutputFormat:   defaultSpeechOutputFormat,
			Concurrency:    defaultSpeechConcurrency,
			RequestDelayMS: defaultSpeechRequestDelayMS,
			MaxRetries:     defaultSpeechMaxRetries,
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
		},
		Separation: Separation{
			Enabled:        true,
			Binary:         defaultSeparationBinary,
			TimeoutSeconds: defaultSeparationTimeout,
		},
		Worker: Worker{
			PollIntervalSeconds:    defaultPollIntervalSeconds,
			DBRetryIntervalSeconds: defaultDBRetryIntervalSeconds,
			LockTimeoutMinutes:     defaultLockTimeoutMinutes,
			MaxAttempts:            defaultMaxAttempts,
			JobTimeoutMinutes:      defaultJobTimeoutMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

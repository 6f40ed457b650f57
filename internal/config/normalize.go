package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeOpenAI()
	c.normalizeTranslation()
	c.normalizeAzureSpeech()
	c.normalizeSeparation()
	c.normalizeWorker()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.Database, err = expandPath(c.Paths.Database); err != nil {
		return fmt.Errorf("paths.database: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = strings.TrimSpace(os.Getenv("STORAGE_BUCKET"))
	}
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = "auto"
	}
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	if c.Storage.Endpoint == "" {
		c.Storage.Endpoint = strings.TrimSpace(os.Getenv("STORAGE_ENDPOINT"))
	}
	c.Storage.AccessKeyID = strings.TrimSpace(c.Storage.AccessKeyID)
	if c.Storage.AccessKeyID == "" {
		c.Storage.AccessKeyID = strings.TrimSpace(os.Getenv("STORAGE_ACCESS_KEY_ID"))
	}
	c.Storage.SecretKey = strings.TrimSpace(c.Storage.SecretKey)
	if c.Storage.SecretKey == "" {
		c.Storage.SecretKey = strings.TrimSpace(os.Getenv("STORAGE_SECRET_ACCESS_KEY"))
	}
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	if c.Storage.PublicBaseURL == "" {
		c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_PUBLIC_BASE_URL")), "/")
	}
	if strings.TrimSpace(c.Storage.LocalDir) == "" {
		c.Storage.LocalDir = defaultStorageDir
	}
	var err error
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeOpenAI() {
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = defaultOpenAIBaseURL
	}
	c.OpenAI.WhisperModel = strings.TrimSpace(c.OpenAI.WhisperModel)
	if c.OpenAI.WhisperModel == "" {
		c.OpenAI.WhisperModel = defaultWhisperModel
	}
	c.OpenAI.ChatModel = strings.TrimSpace(c.OpenAI.ChatModel)
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = defaultChatModel
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = defaultOpenAITimeoutSeconds
	}
}

func (c *Config) normalizeTranslation() {
	if c.Translation.BatchSize <= 0 {
		c.Translation.BatchSize = defaultTranslationBatchSize
	}
	if c.Translation.BatchConcurrency <= 0 {
		c.Translation.BatchConcurrency = defaultTranslationConcurrency
	}
	if c.Translation.MaxRetries <= 0 {
		c.Translation.MaxRetries = defaultTranslationMaxRetries
	}
	if c.Translation.CacheEntries <= 0 {
		c.Translation.CacheEntries = defaultTranslationCacheSize
	}
	if c.Translation.CacheTTLHours <= 0 {
		c.Translation.CacheTTLHours = defaultTranslationCacheHours
	}
}

func (c *Config) normalizeAzureSpeech() {
	c.AzureSpeech.Key = strings.TrimSpace(c.AzureSpeech.Key)
	if c.AzureSpeech.Key == "" {
		c.AzureSpeech.Key = strings.TrimSpace(os.Getenv("AZURE_SPEECH_KEY"))
	}
	c.AzureSpeech.Region = strings.TrimSpace(c.AzureSpeech.Region)
	if c.AzureSpeech.Region == "" {
		c.AzureSpeech.Region = strings.TrimSpace(os.Getenv("AZURE_SPEECH_REGION"))
	}
	c.AzureSpeech.OutputFormat = strings.TrimSpace(c.AzureSpeech.OutputFormat)
	if c.AzureSpeech.OutputFormat == "" {
		c.AzureSpeech.OutputFormat = defaultSpeechOutputFormat
	}
	if c.AzureSpeech.Concurrency <= 0 {
		c.AzureSpeech.Concurrency = defaultSpeechConcurrency
	}
	if c.AzureSpeech.RequestDelayMS < 0 {
		c.AzureSpeech.RequestDelayMS = defaultSpeechRequestDelayMS
	}
	if c.AzureSpeech.MaxRetries <= 0 {
		c.AzureSpeech.MaxRetries = defaultSpeechMaxRetries
	}
	if c.AzureSpeech.TimeoutSeconds <= 0 {
		c.AzureSpeech.TimeoutSeconds = defaultSpeechTimeoutSeconds
	}
}

func (c *Config) normalizeSeparation() {
	c.Separation.Binary = strings.TrimSpace(c.Separation.Binary)
	if c.Separation.Binary == "" {
		c.Separation.Binary = defaultSeparationBinary
	}
	if c.Separation.TimeoutSeconds <= 0 {
		c.Separation.TimeoutSeconds = defaultSeparationTimeout
	}
}

func (c *Config) normalizeWorker() {
	if c.Worker.PollIntervalSeconds <= 0 {
		c.Worker.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Worker.DBRetryIntervalSeconds <= 0 {
		c.Worker.DBRetryIntervalSeconds = defaultDBRetryIntervalSeconds
	}
	if c.Worker.LockTimeoutMinutes <= 0 {
		c.Worker.LockTimeoutMinutes = defaultLockTimeoutMinutes
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = defaultMaxAttempts
	}
	if c.Worker.JobTimeoutMinutes <= 0 {
		c.Worker.JobTimeoutMinutes = defaultJobTimeoutMinutes
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

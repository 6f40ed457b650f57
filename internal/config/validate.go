package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateOpenAI(); err != nil {
		return err
	}
	if err := c.validateAzureSpeech(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "fs":
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir must be set when storage.backend is \"fs\"")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required when storage.backend is \"s3\" (or set STORAGE_BUCKET)")
		}
		if c.Storage.AccessKeyID == "" || c.Storage.SecretKey == "" {
			return errors.New("storage credentials are required when storage.backend is \"s3\" (set storage.access_key_id and storage.secret_access_key or the STORAGE_* env vars)")
		}
	default:
		return fmt.Errorf("storage.backend must be \"s3\" or \"fs\", got %q", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateOpenAI() error {
	if c.OpenAI.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/redub/config.toml"
		}
		return fmt.Errorf("openai.api_key is required. Set OPENAI_API_KEY env var or edit %s (create with 'redub config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateAzureSpeech() error {
	if c.AzureSpeech.Key == "" {
		return errors.New("azure_speech.key is required (or set AZURE_SPEECH_KEY)")
	}
	if c.AzureSpeech.Region == "" {
		return errors.New("azure_speech.region is required (or set AZURE_SPEECH_REGION)")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if err := ensurePositiveMap(map[string]int{
		"worker.poll_interval_seconds":     c.Worker.PollIntervalSeconds,
		"worker.db_retry_interval_seconds": c.Worker.DBRetryIntervalSeconds,
		"worker.lock_timeout_minutes":      c.Worker.LockTimeoutMinutes,
		"worker.max_attempts":              c.Worker.MaxAttempts,
		"worker.job_timeout_minutes":       c.Worker.JobTimeoutMinutes,
	}); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

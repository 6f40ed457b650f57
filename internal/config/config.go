package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	Database string `toml:"database"`
}

// Storage contains object storage configuration. Backend selects between an
// S3-compatible store ("s3") and a plain directory on disk ("fs").
type Storage struct {
	Backend       string `toml:"backend"`
	Bucket        string `toml:"bucket"`
	Region        string `toml:"region"`
	Endpoint      string `toml:"endpoint"`
	AccessKeyID   string `toml:"access_key_id"`
	SecretKey     string `toml:"secret_access_key"`
	PublicBaseURL string `toml:"public_base_url"`
	LocalDir      string `toml:"local_dir"`
}

// OpenAI contains connection settings for transcription and translation.
type OpenAI struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	WhisperModel   string `toml:"whisper_model"`
	ChatModel      string `toml:"chat_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Translation contains tuning for the script rewrite engine.
type Translation struct {
	BatchSize        int `toml:"batch_size"`
	BatchConcurrency int `toml:"batch_concurrency"`
	MaxRetries       int `toml:"max_retries"`
	CacheEntries     int `toml:"cache_entries"`
	CacheTTLHours    int `toml:"cache_ttl_hours"`
}

// AzureSpeech contains configuration for text-to-speech synthesis.
type AzureSpeech struct {
	Key             string `toml:"key"`
	Region          string `toml:"region"`
	OutputFormat    string `toml:"output_format"`
	Concurrency     int    `toml:"concurrency"`
	RequestDelayMS  int    `toml:"request_delay_ms"`
	MaxRetries      int    `toml:"max_retries"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	UploadSynthesis bool   `toml:"upload_synthesis"`
}

// Separation contains configuration for vocal/background stem separation.
// When disabled the pipeline dubs over the full original audio.
type Separation struct {
	Enabled        bool   `toml:"enabled"`
	Binary         string `toml:"binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Worker contains daemon timing and retry policy.
type Worker struct {
	PollIntervalSeconds    int `toml:"poll_interval_seconds"`
	DBRetryIntervalSeconds int `toml:"db_retry_interval_seconds"`
	LockTimeoutMinutes     int `toml:"lock_timeout_minutes"`
	MaxAttempts            int `toml:"max_attempts"`
	JobTimeoutMinutes      int `toml:"job_timeout_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the dubbing daemon.
//
// Configuration sections by subsystem:
//   - Paths: scratch workspace, log directory, queue database
//   - Storage: S3-compatible or local filesystem object store
//   - OpenAI: transcription and translation connection settings
//   - Translation: batching, retries, and the rewrite cache
//   - AzureSpeech: voice synthesis settings
//   - Separation: demucs stem separation
//   - Worker: polling intervals, lock expiry, and attempt limits
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Storage     Storage     `toml:"storage"`
	OpenAI      OpenAI      `toml:"openai"`
	Translation Translation `toml:"translation"`
	AzureSpeech AzureSpeech `toml:"azure_speech"`
	Separation  Separation  `toml:"separation"`
	Worker      Worker      `toml:"worker"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/redub/config.toml")
}

// Load locates, parses, and validates a configuration file. Values absent from
// the file fall back to defaults and then to environment variables, so a
// dotenv file alone is enough to run the daemon.
func Load(path string) (*Config, string, bool, error) {
	// Best-effort; secrets commonly live in a .env next to the daemon.
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("redub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.LogDir, filepath.Dir(c.Paths.Database)}
	if c.Storage.Backend == "fs" {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

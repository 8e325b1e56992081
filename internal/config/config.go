package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kitbuilder587/valyu-go"
)

var (
	ErrMissingAPIKey       = errors.New("VALYU_API_KEY is required")
	ErrMissingToken        = errors.New("TELEGRAM_BOT_TOKEN is required")
	ErrInvalidPollInterval = errors.New("RESEARCH_POLL_INTERVAL_SEC must be positive")
	ErrInvalidMaxWait      = errors.New("RESEARCH_MAX_WAIT_SEC must not be negative")
)

type Config struct {
	Valyu     ValyuConfig
	Research  ResearchConfig
	Database  DatabaseConfig
	Telegram  TelegramConfig
	Log       LogConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

type ValyuConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// APIKeyID filters research list calls.
	APIKeyID string
}

// ResearchConfig overrides the per-mode wait budget. Zero MaxWait means use
// valyu.DefaultWaitOptions for the task's mode.
type ResearchConfig struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

type DatabaseConfig struct {
	// URL пустой - история задач в памяти
	URL string
}

type TelegramConfig struct {
	Token string
}

// LogConfig.Format is json (default) or console.
type LogConfig struct {
	Level   string
	Format  string
	Service string
}

type CacheConfig struct {
	TTL time.Duration
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type MetricsConfig struct {
	Addr string
}

// Load reads the environment, after applying any .env files. Missing files
// are ignored and variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		Valyu: ValyuConfig{
			APIKey:   os.Getenv("VALYU_API_KEY"),
			BaseURL:  getEnvOrDefault("VALYU_BASE_URL", valyu.DefaultBaseURL),
			Timeout:  time.Duration(getEnvIntOrDefault("VALYU_TIMEOUT_SEC", 60)) * time.Second,
			APIKeyID: os.Getenv("VALYU_API_KEY_ID"),
		},
		Research: ResearchConfig{
			PollInterval: time.Duration(getEnvIntOrDefault("RESEARCH_POLL_INTERVAL_SEC", 5)) * time.Second,
			MaxWait:      time.Duration(getEnvIntOrDefault("RESEARCH_MAX_WAIT_SEC", 0)) * time.Second,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
		Log: LogConfig{
			Level:   getEnvOrDefault("LOG_LEVEL", "info"),
			Format:  getEnvOrDefault("LOG_FORMAT", "json"),
			Service: "valyu",
		},
		Cache: CacheConfig{
			TTL: time.Duration(getEnvIntOrDefault("CACHE_TTL_SEC", 3600)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 10),
		},
		Metrics: MetricsConfig{
			Addr: os.Getenv("METRICS_ADDR"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Valyu.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Research.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.Research.MaxWait < 0 {
		return ErrInvalidMaxWait
	}
	return nil
}

// ValidateBot checks the extra settings the Telegram bot needs.
func (c *Config) ValidateBot() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	return nil
}

// ClientConfig builds the SDK configuration.
func (c *Config) ClientConfig(recorder valyu.Recorder) valyu.Config {
	return valyu.Config{
		APIKey:   c.Valyu.APIKey,
		BaseURL:  c.Valyu.BaseURL,
		Timeout:  c.Valyu.Timeout,
		Recorder: recorder,
	}
}

// WaitOptions returns the polling budget for a task of the given mode.
func (c *Config) WaitOptions(mode valyu.Mode) valyu.WaitOptions {
	opts := valyu.DefaultWaitOptions(mode)
	if c.Research.PollInterval > 0 {
		opts.PollInterval = c.Research.PollInterval
	}
	if c.Research.MaxWait > 0 {
		opts.MaxWait = c.Research.MaxWait
	}
	return opts
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

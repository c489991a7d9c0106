package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port         string     `env:"PORT" envDefault:"8080"`
	Environment  string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelName string     `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel     slog.Level `env:"-"`

	LLMProvider      string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string `env:"ANTHROPIC_BASE_URL"`
	ModelName        string `env:"MODEL_NAME" envDefault:"claude-3-5-haiku-latest"`

	// RedisURL enables the Redis turn lock and event broadcaster when set.
	RedisURL    string        `env:"REDIS_URL"`
	TurnLockTTL time.Duration `env:"TURN_LOCK_TTL" envDefault:"2m"`
	StateTTL    time.Duration `env:"STATE_TTL" envDefault:"24h"`

	DataDir            string        `env:"DATA_DIR" envDefault:"./data"`
	FetchTimeout       time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	PromptHistoryLimit int           `env:"PROMPT_HISTORY_LIMIT" envDefault:"6"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	cfg.LLMProvider = strings.ToLower(cfg.LLMProvider)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "mock":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (supported: anthropic, mock)", c.LLMProvider)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.PromptHistoryLimit < 0 {
		return fmt.Errorf("PROMPT_HISTORY_LIMIT cannot be negative, got %d", c.PromptHistoryLimit)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

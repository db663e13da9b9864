// Package config loads ruleware defaults from the environment.
//
// Command-line flags take precedence; the CLI only consults Config for
// flags the user did not set.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds environment-provided defaults.
type Config struct {
	// LogLevel is the minimum slog level: debug, info, warn, error.
	LogLevel string `env:"RULEWARE_LOG_LEVEL" envDefault:"warn"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `env:"RULEWARE_LOG_FORMAT" envDefault:"text"`

	// DB is the default journal path for the journal commands. Empty means an
	// in-memory journal for run.
	DB string `env:"RULEWARE_DB"`

	// Format is the default output format: text or json.
	Format string `env:"RULEWARE_FORMAT" envDefault:"text"`

	// MaxDepth limits nested dispatch depth. 0 uses the container default.
	MaxDepth int `env:"RULEWARE_MAX_DEPTH" envDefault:"64"`

	// MaxSteps limits dispatches per root dispatch. 0 uses the container default.
	MaxSteps int `env:"RULEWARE_MAX_STEPS" envDefault:"1000"`
}

// Load parses Config from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks enumerated and numeric fields.
func (c Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("RULEWARE_FORMAT: invalid format %q (valid: text, json)", c.Format)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("RULEWARE_LOG_FORMAT: invalid format %q (valid: text, json)", c.LogFormat)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("RULEWARE_MAX_DEPTH: must be >= 0, got %d", c.MaxDepth)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("RULEWARE_MAX_STEPS: must be >= 0, got %d", c.MaxSteps)
	}
	return nil
}

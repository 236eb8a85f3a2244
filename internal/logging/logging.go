// Package logging builds the zap logger for caseflowd.
//
// All packages take a *zap.Logger; this package owns construction:
// level/format configuration, optional sampling, and redaction of
// sensitive fields so client intake details and credentials never reach
// log output.
package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `koanf:"level"`

	// Format selects json or console encoding.
	Format string `koanf:"format"`

	Sampling  SamplingConfig  `koanf:"sampling"`
	Redaction RedactionConfig `koanf:"redaction"`
}

// SamplingConfig caps log volume per second at info level and below.
type SamplingConfig struct {
	Enabled    bool `koanf:"enabled"`
	Initial    int  `koanf:"initial"`
	Thereafter int  `koanf:"thereafter"`
}

// RedactionConfig controls sensitive data redaction.
type RedactionConfig struct {
	Enabled bool `koanf:"enabled"`

	// Fields are field names whose values are always masked.
	Fields []string `koanf:"fields"`

	// Patterns are regular expressions; string values matching any of
	// them are masked.
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns the production defaults: info-level JSON with
// credential fields and raw intake facts redacted.
func NewDefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Sampling: SamplingConfig{
			Enabled:    true,
			Initial:    100,
			Thereafter: 100,
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields:  []string{"api_key", "authorization", "token", "facts"},
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("invalid log format %q: want json or console", c.Format)
	}
	return nil
}

// NewLogger creates a zap logger from config.
func NewLogger(cfg Config) (*zap.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	level, _ := zapcore.ParseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	if cfg.Redaction.Enabled {
		var err error
		encoder, err = NewRedactingEncoder(encoder, cfg.Redaction)
		if err != nil {
			return nil, err
		}
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	if cfg.Sampling.Enabled {
		core = zapcore.NewSamplerWithOptions(core,
			time.Second, cfg.Sampling.Initial, cfg.Sampling.Thereafter)
	}

	return zap.New(core, zap.AddCaller()), nil
}

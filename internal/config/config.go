// Package config provides configuration management for the download
// engine. Values are resolved from a YAML file, environment variables and
// defaults, in that order of precedence, via Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jonesrussell/finfetch/internal/logger"
	"github.com/jonesrussell/finfetch/internal/retry"
)

// Download defaults.
const (
	DefaultDownloadDirectory = "downloads"
	DefaultCheckpointFile    = "checkpoint.json"
	DefaultMaxConcurrent     = 5
	DefaultRateLimitDelay    = time.Second
	DefaultDownloadTimeout   = 60 * time.Second
	DefaultUserAgent         = "finfetch/1.0 (+https://github.com/jonesrussell/finfetch)"
	DefaultMaxFilenameLen    = 200
	DefaultYearsBack         = 5
)

// Retry defaults.
const (
	DefaultRetryAttempts     = 3
	DefaultRetryInitialDelay = time.Second
	DefaultRetryMaxDelay     = 30 * time.Second
	DefaultRetryMultiplier   = 2.0
)

// Config is the application configuration.
type Config struct {
	// Company is the display name used for classification fallbacks.
	Company string `mapstructure:"company" yaml:"company"`
	// YearsBack bounds how far back filter iteration reaches.
	YearsBack int `mapstructure:"years_back" yaml:"years_back"`
	// Downloads holds download pipeline settings.
	Downloads DownloadsConfig `mapstructure:"downloads" yaml:"downloads"`
	// Retry holds the retry policy settings.
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`
	// Logger holds logging settings.
	Logger logger.Config `mapstructure:"logger" yaml:"logger"`
}

// DownloadsConfig configures the download pipeline.
type DownloadsConfig struct {
	// Directory is the download root.
	Directory string `mapstructure:"directory" yaml:"directory"`
	// CheckpointFile is the resumable state path. A relative path is
	// resolved against the download directory by the commands.
	CheckpointFile string `mapstructure:"checkpoint_file" yaml:"checkpoint_file"`
	// MaxConcurrent bounds parallel downloads.
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	// RateLimitDelay is the per-worker pause before each request.
	RateLimitDelay time.Duration `mapstructure:"rate_limit_delay" yaml:"rate_limit_delay"`
	// Timeout bounds a single document request.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// UserAgent is sent with every request.
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	// MaxFilenameLength bounds cleaned filenames.
	MaxFilenameLength int `mapstructure:"max_filename_length" yaml:"max_filename_length"`
}

// RetryConfig configures transient failure retries.
type RetryConfig struct {
	// MaxAttempts is the total attempts per document, including the first.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// InitialDelay is the backoff before the first retry.
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	// MaxDelay caps the backoff.
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64 `mapstructure:"multiplier" yaml:"multiplier"`
}

// Policy converts the retry settings into a retry.Policy. The retryable
// predicate is supplied by the caller.
func (r RetryConfig) Policy(isRetryable func(error) bool) retry.Policy {
	return retry.Policy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay,
		MaxDelay:     r.MaxDelay,
		Multiplier:   r.Multiplier,
		IsRetryable:  isRetryable,
	}
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Downloads.Directory == "" {
		return errors.New("downloads.directory must not be empty")
	}
	if c.Downloads.MaxConcurrent <= 0 {
		return fmt.Errorf("downloads.max_concurrent must be positive, got %d", c.Downloads.MaxConcurrent)
	}
	if c.Downloads.RateLimitDelay < 0 {
		return errors.New("downloads.rate_limit_delay must not be negative")
	}
	if c.Downloads.Timeout <= 0 {
		return errors.New("downloads.timeout must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1, got %v", c.Retry.Multiplier)
	}
	if c.YearsBack <= 0 {
		return fmt.Errorf("years_back must be positive, got %d", c.YearsBack)
	}
	return nil
}

// Load unmarshals the configuration from the given Viper instance after
// applying defaults. Duration strings like "500ms" decode into
// time.Duration fields.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	var cfg Config
	decodeErr := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if decodeErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", decodeErr)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// setDefaults applies default values to the Viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("company", "")
	v.SetDefault("years_back", DefaultYearsBack)

	v.SetDefault("downloads", map[string]any{
		"directory":           DefaultDownloadDirectory,
		"checkpoint_file":     DefaultCheckpointFile,
		"max_concurrent":      DefaultMaxConcurrent,
		"rate_limit_delay":    DefaultRateLimitDelay.String(),
		"timeout":             DefaultDownloadTimeout.String(),
		"user_agent":          DefaultUserAgent,
		"max_filename_length": DefaultMaxFilenameLen,
	})

	v.SetDefault("retry", map[string]any{
		"max_attempts":  DefaultRetryAttempts,
		"initial_delay": DefaultRetryInitialDelay.String(),
		"max_delay":     DefaultRetryMaxDelay.String(),
		"multiplier":    DefaultRetryMultiplier,
	})

	v.SetDefault("logger", map[string]any{
		"level":       "info",
		"encoding":    "console",
		"development": false,
	})
}

// Package config loads hopper settings from defaults, ~/.hopper/config.yaml
// and HOPPER_* environment variables, in increasing precedence.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/hopper/internal/engine"
	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/log"
	"github.com/felixgeelhaar/hopper/internal/oracle"
	"github.com/felixgeelhaar/hopper/internal/provider"
	"github.com/felixgeelhaar/hopper/internal/retry"
	"github.com/felixgeelhaar/hopper/internal/source"
	"github.com/felixgeelhaar/hopper/internal/workspace"
)

const (
	// EnvPrefix prefixes every environment override, e.g. HOPPER_ENGINE_TARGET_VERSION.
	EnvPrefix = "HOPPER"
	// DefaultRepository is scanned when no reference is given.
	DefaultRepository = "https://github.com/bezkoder/angular-11-crud-app"
)

// Config is the complete hopper configuration
type Config struct {
	Source  SourceConfig  `mapstructure:"source" yaml:"source"`
	Oracle  OracleConfig  `mapstructure:"oracle" yaml:"oracle"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Retry   RetryConfig   `mapstructure:"retry" yaml:"retry"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// SourceConfig selects where project files come from.
type SourceConfig struct {
	// Provider is github, git (local repository) or demo.
	Provider   string        `mapstructure:"provider" yaml:"provider" validate:"oneof=github git demo"`
	Repository string        `mapstructure:"repository" yaml:"repository"`
	Token      string        `mapstructure:"token" yaml:"-"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Filter     source.Filter `mapstructure:"filter" yaml:"filter"`
}

// OracleConfig selects and tunes the oracle backend.
type OracleConfig struct {
	// Provider is gemini or offline.
	Provider          string         `mapstructure:"provider" yaml:"provider" validate:"oneof=gemini offline"`
	APIKey            string         `mapstructure:"api_key" yaml:"-"`
	BaseURL           string         `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Model             string         `mapstructure:"model" yaml:"model"`
	Models            oracle.Models  `mapstructure:"models" yaml:"models"`
	Timeout           time.Duration  `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	RequestsPerSecond float64        `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int            `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
	Profile           oracle.Profile `mapstructure:"profile" yaml:"profile"`
}

// EngineConfig mirrors engine.Config for files and environment.
type EngineConfig struct {
	TargetVersion    string           `mapstructure:"target_version" yaml:"target_version" validate:"required"`
	Manifest         string           `mapstructure:"manifest" yaml:"manifest" validate:"required"`
	CriticalFiles    []string         `mapstructure:"critical_files" yaml:"critical_files" validate:"min=1"`
	MaxCriticalFiles int              `mapstructure:"max_critical_files" yaml:"max_critical_files" validate:"gte=1"`
	StepFilter       workspace.Filter `mapstructure:"step_filter" yaml:"step_filter"`
}

// RetryConfig tunes the resilient call wrapper.
type RetryConfig struct {
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay" validate:"gt=0"`
	Multiplier   float64       `mapstructure:"multiplier" yaml:"multiplier" validate:"gte=1"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// TracingConfig configures span export to stderr.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// Default returns the built-in configuration
func Default() *Config {
	ec := engine.DefaultConfig()
	rc := retry.DefaultConfig()
	return &Config{
		Source: SourceConfig{
			Provider:   "github",
			Repository: DefaultRepository,
			Filter:     source.DefaultFilter(),
		},
		Oracle: OracleConfig{
			Provider: "gemini",
			Model:    provider.DefaultGeminiModel,
			Timeout:  120 * time.Second,
			Profile:  oracle.DefaultProfile(),
		},
		Engine: EngineConfig{
			TargetVersion:    ec.TargetVersion,
			Manifest:         ec.Manifest,
			CriticalFiles:    ec.CriticalFiles,
			MaxCriticalFiles: ec.MaxCriticalFiles,
			StepFilter:       ec.StepFilter,
		},
		Retry: RetryConfig{
			MaxRetries:   rc.MaxRetries,
			InitialDelay: rc.InitialDelay,
			Multiplier:   rc.Multiplier,
		},
		Logging: LoggingConfig{Level: "warn", Format: "text"},
		Tracing: TracingConfig{SampleRate: 1.0},
	}
}

// DefaultPath returns ~/.hopper/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".hopper", "config.yaml"), nil
}

// envAliases binds keys to variables outside the HOPPER_ prefix scheme.
var envAliases = map[string][]string{
	"oracle.api_key": {"HOPPER_API_KEY", "GEMINI_API_KEY", "API_KEY"},
	"source.token":   {"HOPPER_GITHUB_TOKEN", "GITHUB_TOKEN"},
}

// Load reads the configuration. An explicit path must exist; the default
// path is optional.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := setDefaults(v, Default()); err != nil {
		return nil, err
	}
	for key, envs := range envAliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to bind environment", err)
		}
	}

	explicit := path != ""
	if !explicit {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := stderrors.As(err, &notFound) || stderrors.Is(err, os.ErrNotExist)
			if explicit || !missing {
				return nil, errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("failed to read configuration %s", path), err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to parse configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key of defaults so environment variables can
// override keys absent from the file.
func setDefaults(v *viper.Viper, defaults *Config) error {
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode defaults", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to decode defaults", err)
	}
	setTree(v, "", tree)
	return nil
}

func setTree(v *viper.Viper, prefix string, tree map[string]any) {
	for key, value := range tree {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if sub, ok := value.(map[string]any); ok {
			setTree(v, full, sub)
			continue
		}
		v.SetDefault(full, value)
	}
}

var configValidator = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "invalid configuration", err).
			WithSuggestion("Run 'hopper config show' to inspect the effective configuration")
	}
	return nil
}

// RequireAPIKey reports a missing oracle credential for providers that need one.
func (c *Config) RequireAPIKey() error {
	if c.Oracle.Provider == "gemini" && strings.TrimSpace(c.Oracle.APIKey) == "" {
		return errors.New(errors.ErrCodeConfigAPIKey, "no oracle API key configured").
			WithSuggestion("Set HOPPER_API_KEY (or GEMINI_API_KEY)").
			WithSuggestion("Use --demo to run with the offline oracle")
	}
	return nil
}

// Save writes the configuration as YAML. Secrets are never written.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode configuration", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create configuration directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

// EngineSettings returns the engine settings.
func (c *Config) EngineSettings() engine.Config {
	return engine.Config{
		TargetVersion:    c.Engine.TargetVersion,
		Manifest:         c.Engine.Manifest,
		CriticalFiles:    c.Engine.CriticalFiles,
		MaxCriticalFiles: c.Engine.MaxCriticalFiles,
		StepFilter:       c.Engine.StepFilter,
		Profile:          c.Oracle.Profile,
		Retry: retry.Config{
			MaxRetries:   c.Retry.MaxRetries,
			InitialDelay: c.Retry.InitialDelay,
			Multiplier:   c.Retry.Multiplier,
		},
	}
}

// ProviderSettings returns the oracle provider client settings.
func (c *Config) ProviderSettings() provider.Config {
	return provider.Config{
		Name:              c.Oracle.Provider,
		APIKey:            c.Oracle.APIKey,
		BaseURL:           c.Oracle.BaseURL,
		Model:             c.Oracle.Model,
		Timeout:           c.Oracle.Timeout,
		RequestsPerSecond: c.Oracle.RequestsPerSecond,
		Burst:             c.Oracle.Burst,
	}
}

// LogSettings returns the logger configuration.
func (c *Config) LogSettings() log.Config {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(c.Logging.Level)
	lc.Format = log.ParseFormat(c.Logging.Format)
	return lc
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "deckbuilder.yaml"

// Config represents the application configuration.
type Config struct {
	Sources   SourcesConfig   `yaml:"sources"`
	Output    OutputConfig    `yaml:"output"`
	Converter ConverterConfig `yaml:"converter"`
	Build     BuildConfig     `yaml:"build"`
	Publish   PublishConfig   `yaml:"publish"`
	Watch     WatchConfig     `yaml:"watch"`
	Server    ServerConfig    `yaml:"server"`
	Events    EventsConfig    `yaml:"events"`
	NavSync   NavSyncConfig   `yaml:"navsync"`
	History   HistoryConfig   `yaml:"history"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SourcesConfig describes where source decks live.
type SourcesConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions,omitempty"`
}

// OutputConfig describes where artifacts and the manifest are written.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	Manifest  string `yaml:"manifest"`
	URLPrefix string `yaml:"url_prefix,omitempty"`
}

// ConverterConfig configures the external renderer invocation.
//
// Command is an argv template; {input}, {output} and {style} are substituted
// per file. Arguments referencing {style} are dropped when Style is empty.
type ConverterConfig struct {
	Command []string      `yaml:"command,omitempty"`
	Style   string        `yaml:"style,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Retry   RetryConfig   `yaml:"retry"`
}

// RetryConfig controls retries of transient conversion failures.
type RetryConfig struct {
	MaxRetries *int             `yaml:"max_retries,omitempty"`
	Backoff    RetryBackoffMode `yaml:"backoff,omitempty"`
	Initial    time.Duration    `yaml:"initial,omitempty"`
	Max        time.Duration    `yaml:"max,omitempty"`
}

// BuildConfig controls batch build behavior.
type BuildConfig struct {
	Concurrency int `yaml:"concurrency,omitempty"`
}

// PublishConfig controls distribution into the served location.
type PublishConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Dir          string `yaml:"dir,omitempty"`
	SlidesDir    string `yaml:"slides_dir,omitempty"`
	ManifestName string `yaml:"manifest_name,omitempty"`
}

// WatchConfig controls the long-lived watch loop.
type WatchConfig struct {
	Debounce  time.Duration `yaml:"debounce,omitempty"`
	Reconcile time.Duration `yaml:"reconcile,omitempty"`
}

// ServerConfig controls the watch-mode HTTP surface.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr,omitempty"`
}

// EventsConfig configures out-of-band artifact-change transports.
type EventsConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures the optional NATS publisher.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// NavSyncConfig configures the cross-context navigation protocol.
type NavSyncConfig struct {
	TargetOrigin   string   `yaml:"target_origin,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	FramePrefix    string   `yaml:"frame_prefix,omitempty"`
}

// HistoryConfig configures the build-history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Load loads configuration from the specified file, applies defaults and validates it.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").
			WithContext("path", configPath).
			Build()
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns the default configuration when
// the file does not exist.
func LoadOrDefault(configPath string) (*Config, bool, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		loadEnvFiles()
		cfg := Default()
		return cfg, false, nil
	}
	cfg, err := Load(configPath)
	return cfg, true, err
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Default()
	example.Converter.Style = "themes/deck-theme.css"
	example.Publish.Enabled = true
	example.History.Enabled = true

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}

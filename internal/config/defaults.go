package config

import (
	"time"
)

// Default values. The converter command mirrors the marp-cli invocation used
// for HTML decks.
const (
	DefaultSourcesDir      = "slides"
	DefaultOutputDir       = "dist/slides"
	DefaultManifestPath    = "dist/slides-manifest.json"
	DefaultURLPrefix       = "/slide/"
	DefaultConvertTimeout  = 2 * time.Minute
	DefaultPublishDir      = "public"
	DefaultPublishSlides   = "slides"
	DefaultManifestName    = "slides-manifest.json"
	DefaultDebounce        = 300 * time.Millisecond
	DefaultServerAddr      = ":1316"
	DefaultNATSURL         = "nats://127.0.0.1:4222"
	DefaultNATSSubject     = "deckbuilder.slides.updated"
	DefaultTargetOrigin    = "*"
	DefaultFramePrefix     = "/slides/"
	DefaultHistoryPath     = ".deckbuilder/history.db"
	DefaultConvertRetries  = 1
	DefaultRetryInitial    = time.Second
	DefaultRetryMax        = 10 * time.Second
	DefaultBuildConcurrent = 1
)

// DefaultConverterCommand returns the default renderer argv template.
func DefaultConverterCommand() []string {
	return []string{
		"npx", "@marp-team/marp-cli@latest", "{input}",
		"--output", "{output}",
		"--html",
		"--css", "{style}",
		"--no-stdin",
	}
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero values with defaults in place.
func ApplyDefaults(cfg *Config) {
	if cfg.Sources.Dir == "" {
		cfg.Sources.Dir = DefaultSourcesDir
	}
	if len(cfg.Sources.Extensions) == 0 {
		cfg.Sources.Extensions = []string{".md"}
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if cfg.Output.Manifest == "" {
		cfg.Output.Manifest = DefaultManifestPath
	}
	if cfg.Output.URLPrefix == "" {
		cfg.Output.URLPrefix = DefaultURLPrefix
	}

	if len(cfg.Converter.Command) == 0 {
		cfg.Converter.Command = DefaultConverterCommand()
	}
	if cfg.Converter.Timeout <= 0 {
		cfg.Converter.Timeout = DefaultConvertTimeout
	}
	if cfg.Converter.Retry.MaxRetries == nil {
		n := DefaultConvertRetries
		cfg.Converter.Retry.MaxRetries = &n
	}
	if mode := NormalizeRetryBackoff(string(cfg.Converter.Retry.Backoff)); mode != "" {
		cfg.Converter.Retry.Backoff = mode
	} else {
		cfg.Converter.Retry.Backoff = RetryBackoffLinear
	}
	if cfg.Converter.Retry.Initial <= 0 {
		cfg.Converter.Retry.Initial = DefaultRetryInitial
	}
	if cfg.Converter.Retry.Max <= 0 {
		cfg.Converter.Retry.Max = DefaultRetryMax
	}

	if cfg.Build.Concurrency <= 0 {
		cfg.Build.Concurrency = DefaultBuildConcurrent
	}

	if cfg.Publish.Dir == "" {
		cfg.Publish.Dir = DefaultPublishDir
	}
	if cfg.Publish.SlidesDir == "" {
		cfg.Publish.SlidesDir = DefaultPublishSlides
	}
	if cfg.Publish.ManifestName == "" {
		cfg.Publish.ManifestName = DefaultManifestName
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}

	if cfg.Events.NATS.URL == "" {
		cfg.Events.NATS.URL = DefaultNATSURL
	}
	if cfg.Events.NATS.Subject == "" {
		cfg.Events.NATS.Subject = DefaultNATSSubject
	}

	if cfg.NavSync.TargetOrigin == "" {
		cfg.NavSync.TargetOrigin = DefaultTargetOrigin
	}
	if len(cfg.NavSync.AllowedOrigins) == 0 {
		cfg.NavSync.AllowedOrigins = []string{DefaultTargetOrigin}
	}
	if cfg.NavSync.FramePrefix == "" {
		cfg.NavSync.FramePrefix = DefaultFramePrefix
	}

	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}

	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
}

package config

import (
	"path/filepath"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

var converterPlaceholders = []string{"{input}", "{output}"}

// Validate checks a defaulted configuration for inconsistencies.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Sources.Dir) == "" {
		return ferrors.ValidationError("sources.dir must not be empty").Build()
	}
	for _, ext := range cfg.Sources.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return ferrors.ValidationError("source extensions must start with a dot").
				WithContext("extension", ext).
				Build()
		}
	}

	if filepath.Clean(cfg.Sources.Dir) == filepath.Clean(cfg.Output.Dir) {
		return ferrors.ValidationError("output.dir must differ from sources.dir").
			WithContext("dir", cfg.Output.Dir).
			Build()
	}
	if !strings.HasPrefix(cfg.Output.URLPrefix, "/") || !strings.HasSuffix(cfg.Output.URLPrefix, "/") {
		return ferrors.ValidationError("output.url_prefix must start and end with '/'").
			WithContext("url_prefix", cfg.Output.URLPrefix).
			Build()
	}

	joined := strings.Join(cfg.Converter.Command, " ")
	for _, p := range converterPlaceholders {
		if !strings.Contains(joined, p) {
			return ferrors.ValidationError("converter.command must reference "+p).
				WithContext("command", joined).
				Build()
		}
	}
	if cfg.Converter.Retry.MaxRetries != nil && *cfg.Converter.Retry.MaxRetries < 0 {
		return ferrors.ValidationError("converter.retry.max_retries must be >= 0").Build()
	}
	if cfg.Converter.Retry.Initial > cfg.Converter.Retry.Max {
		return ferrors.ValidationError("converter.retry.initial must not exceed converter.retry.max").Build()
	}

	if cfg.Publish.Enabled && strings.Contains(cfg.Publish.SlidesDir, "..") {
		return ferrors.ValidationError("publish.slides_dir must stay inside publish.dir").
			WithContext("slides_dir", cfg.Publish.SlidesDir).
			Build()
	}

	if cfg.Events.NATS.Enabled && strings.TrimSpace(cfg.Events.NATS.Subject) == "" {
		return ferrors.ValidationError("events.nats.subject is required when NATS is enabled").Build()
	}

	if cfg.NavSync.TargetOrigin != "*" && !slices.Contains(cfg.NavSync.AllowedOrigins, cfg.NavSync.TargetOrigin) &&
		!slices.Contains(cfg.NavSync.AllowedOrigins, "*") {
		return ferrors.ValidationError("navsync.target_origin must be listed in navsync.allowed_origins").
			WithContext("target_origin", cfg.NavSync.TargetOrigin).
			Build()
	}

	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return ferrors.ValidationError("history.path is required when history is enabled").Build()
	}
	return nil
}

// Package observability threads build identifiers through a context so every
// log line of a pass can be correlated.
package observability

import (
	"context"
	"log/slog"
)

// LogContext is the set of identifiers attached to log records.
type LogContext struct {
	BuildID string
	SlideID string
	Stage   string
}

type ctxKey struct{}

func with(ctx context.Context, set func(*LogContext)) context.Context {
	lc := GetContext(ctx)
	set(&lc)
	return context.WithValue(ctx, ctxKey{}, lc)
}

// WithBuildID tags ctx with the id of the running build pass.
func WithBuildID(ctx context.Context, id string) context.Context {
	return with(ctx, func(lc *LogContext) { lc.BuildID = id })
}

// WithSlideID tags ctx with the slug of the deck being processed.
func WithSlideID(ctx context.Context, slug string) context.Context {
	return with(ctx, func(lc *LogContext) { lc.SlideID = slug })
}

// WithStage tags ctx with the pipeline stage (convert, inject, ...).
func WithStage(ctx context.Context, stage string) context.Context {
	return with(ctx, func(lc *LogContext) { lc.Stage = stage })
}

// GetContext returns the identifiers stored in ctx, or the zero value.
func GetContext(ctx context.Context) LogContext {
	lc, _ := ctx.Value(ctxKey{}).(LogContext)
	return lc
}

func (lc LogContext) attrs(extra []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, 3+len(extra))
	if lc.BuildID != "" {
		out = append(out, slog.String("build.id", lc.BuildID))
	}
	if lc.SlideID != "" {
		out = append(out, slog.String("slide.id", lc.SlideID))
	}
	if lc.Stage != "" {
		out = append(out, slog.String("stage", lc.Stage))
	}
	return append(out, extra...)
}

func logAt(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	slog.LogAttrs(ctx, level, msg, GetContext(ctx).attrs(attrs)...)
}

func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAt(ctx, slog.LevelDebug, msg, attrs)
}

func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAt(ctx, slog.LevelInfo, msg, attrs)
}

func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAt(ctx, slog.LevelWarn, msg, attrs)
}

func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAt(ctx, slog.LevelError, msg, attrs)
}

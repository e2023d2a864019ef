package build

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/deckbuilder/internal/config"
	"git.home.luguber.info/inful/deckbuilder/internal/converter"
	"git.home.luguber.info/inful/deckbuilder/internal/events"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/git"
	"git.home.luguber.info/inful/deckbuilder/internal/history"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/manifest"
	"git.home.luguber.info/inful/deckbuilder/internal/metrics"
	"git.home.luguber.info/inful/deckbuilder/internal/observability"
)

// Trigger names recorded in build history.
const (
	TriggerBuild     = "build"
	TriggerWatch     = "watch"
	TriggerReconcile = "reconcile"
)

const (
	artifactExt = ".html"
	stagingDir  = ".staging"
)

// Builder executes deck passes. Its methods must not run concurrently with
// each other; the watch loop serializes them through a single worker.
type Builder struct {
	sourcesDir  string
	extensions  []string
	outputDir   string
	urlPrefix   string
	style       string
	concurrency int

	converter converter.Converter
	store     manifest.Store
	script    []byte

	recorder metrics.Recorder
	history  history.Store
	bus      *events.Bus

	lastDigest string
}

// NewBuilder creates a Builder for cfg. script is the tracker payload
// injected into every artifact.
func NewBuilder(cfg *config.Config, conv converter.Converter, store manifest.Store, script []byte) *Builder {
	concurrency := cfg.Build.Concurrency
	if concurrency < 1 {
		concurrency = config.DefaultBuildConcurrent
	}
	exts := cfg.Sources.Extensions
	if len(exts) == 0 {
		exts = []string{".md"}
	}
	return &Builder{
		sourcesDir:  cfg.Sources.Dir,
		extensions:  exts,
		outputDir:   cfg.Output.Dir,
		urlPrefix:   cfg.Output.URLPrefix,
		style:       cfg.Converter.Style,
		concurrency: concurrency,
		converter:   conv,
		store:       store,
		script:      script,
		recorder:    metrics.NoopRecorder{},
	}
}

// WithRecorder sets the metrics recorder.
func (b *Builder) WithRecorder(r metrics.Recorder) *Builder {
	if r != nil {
		b.recorder = r
	}
	return b
}

// WithHistory enables build-history recording.
func (b *Builder) WithHistory(h history.Store) *Builder {
	b.history = h
	return b
}

// WithBus publishes ManifestUpdated events on bus.
func (b *Builder) WithBus(bus *events.Bus) *Builder {
	b.bus = bus
	return b
}

// IsSource reports whether name (a base name) is a deck this builder handles.
func (b *Builder) IsSource(name string) bool {
	return IsSource(name, b.extensions)
}

// SourcesDir returns the watched source directory.
func (b *Builder) SourcesDir() string { return b.sourcesDir }

// ArtifactPath returns the published artifact path for slug.
func (b *Builder) ArtifactPath(slug string) string {
	return filepath.Join(b.outputDir, slug+artifactExt)
}

func (b *Builder) stagingPath(slug string) string {
	return filepath.Join(b.outputDir, stagingDir, slug+artifactExt)
}

// Build runs a full pass over the source directory.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	return b.run(ctx, TriggerBuild)
}

// Reconcile runs a full pass recorded under the reconcile trigger.
func (b *Builder) Reconcile(ctx context.Context) (*Report, error) {
	return b.run(ctx, TriggerReconcile)
}

func (b *Builder) run(ctx context.Context, trigger string) (*Report, error) {
	report := &Report{BuildID: uuid.NewString(), StartTime: time.Now()}
	ctx = observability.WithBuildID(ctx, report.BuildID)
	hist := history.NewRecorder(b.history, report.BuildID)

	sources, discErr := Discover(b.sourcesDir, b.extensions)
	if discErr != nil {
		observability.WarnContext(ctx, "Source discovery failed, continuing with no decks",
			logfields.Path(b.sourcesDir), logfields.Error(discErr))
		sources = nil
	}

	started := history.BuildStarted{Trigger: trigger, Sources: len(sources)}
	if b.history != nil {
		started.Revision, _ = git.Revision(b.sourcesDir)
	}
	hist.Record(ctx, history.TypeBuildStarted, started)
	observability.InfoContext(ctx, "Build started", logfields.Count(len(sources)), logfields.Path(b.sourcesDir))

	if err := os.MkdirAll(filepath.Join(b.outputDir, stagingDir), 0o750); err != nil {
		ferr := ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create output directory").
			WithContext("dir", b.outputDir).
			Build()
		return b.finish(ctx, hist, report, ferr)
	}

	report.Files = make([]FileResult, len(sources))
	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			report.Files[i] = b.process(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	records := make([]manifest.Record, 0, len(sources))
	for _, f := range report.Files {
		if f.OK() {
			report.Built++
			records = append(records, f.Record)
			hist.Record(ctx, history.TypeFileBuilt, history.FileBuilt{
				SlideID: f.Slug, Source: f.Source, DurationMS: f.Duration.Milliseconds(),
			})
			continue
		}
		report.Failed++
		hist.Record(ctx, history.TypeFileFailed, history.FileFailed{
			SlideID: f.Slug, Source: f.Source, Stage: f.Stage, Error: f.Err.Error(),
		})
	}

	if err := ctx.Err(); err != nil {
		report.Status = StatusCancelled
		return b.finish(ctx, hist, report, err)
	}

	m, err := b.writeManifest(ctx, records)
	if err != nil {
		return b.finish(ctx, hist, report, err)
	}
	report.Manifest = m
	hist.Record(ctx, history.TypeManifestWritten, history.ManifestWritten{
		Entries: len(m.Presentations), Digest: m.Digest(),
	})

	// An unreadable source directory says nothing about which decks are gone.
	if discErr == nil {
		keep := make(map[string]bool, len(sources))
		for _, s := range sources {
			keep[s.Slug] = true
		}
		report.Removed = b.removeOrphans(ctx, keep)
	}

	return b.finish(ctx, hist, report, nil)
}

func (b *Builder) finish(ctx context.Context, hist *history.Recorder, report *Report, err error) (*Report, error) {
	report.Duration = time.Since(report.StartTime)
	if report.Status == "" {
		report.Status = statusFor(report.Built, report.Failed)
		if err != nil {
			report.Status = StatusFailed
		}
	}
	if rmErr := os.RemoveAll(filepath.Join(b.outputDir, stagingDir)); rmErr != nil {
		observability.WarnContext(ctx, "Failed to clean staging directory", logfields.Error(rmErr))
	}

	outcome := metrics.OutcomeFor(report.Built, report.Failed)
	if err != nil {
		outcome = metrics.BuildOutcomeFailed
	}
	b.recorder.ObserveBuildDuration(report.Duration)
	b.recorder.IncBuildOutcome(outcome)

	finished := history.BuildFinished{
		Built:      report.Built,
		Failed:     report.Failed,
		Outcome:    string(report.Status),
		DurationMS: report.Duration.Milliseconds(),
	}
	if err != nil {
		finished.Error = err.Error()
	}
	// History outlives a cancelled pass context.
	hist.Record(context.WithoutCancel(ctx), history.TypeBuildFinished, finished)

	if err != nil {
		observability.ErrorContext(ctx, "Build failed", logfields.Error(err))
		return report, err
	}
	observability.InfoContext(ctx, "Build finished",
		logfields.Count(report.Built),
		slog.Int("failed", report.Failed),
		logfields.DurationMS(float64(report.Duration.Milliseconds())))
	return report, nil
}

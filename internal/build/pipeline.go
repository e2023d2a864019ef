package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/converter"
	"git.home.luguber.info/inful/deckbuilder/internal/events"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/manifest"
	"git.home.luguber.info/inful/deckbuilder/internal/metadata"
	"git.home.luguber.info/inful/deckbuilder/internal/metrics"
	"git.home.luguber.info/inful/deckbuilder/internal/observability"
	"git.home.luguber.info/inful/deckbuilder/internal/tracker"
)

// BuildFile runs the single-file pipeline for name, a file in the source
// directory. The manifest is not touched.
func (b *Builder) BuildFile(ctx context.Context, name string) (manifest.Record, error) {
	name = filepath.Base(name)
	if !b.IsSource(name) {
		return manifest.Record{}, ferrors.ValidationError("not a source deck").
			WithContext("file", name).
			Build()
	}
	if err := os.MkdirAll(filepath.Join(b.outputDir, stagingDir), 0o750); err != nil {
		return manifest.Record{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create output directory").
			WithContext("dir", b.outputDir).
			Build()
	}
	res := b.process(ctx, Source{Name: name, Path: filepath.Join(b.sourcesDir, name), Slug: SlugOf(name)})
	return res.Record, res.Err
}

// process runs Convert, Extract and Inject for one deck. Failures leave any
// previously published artifact in place.
func (b *Builder) process(ctx context.Context, src Source) FileResult {
	ctx = observability.WithSlideID(ctx, src.Slug)
	start := time.Now()
	res := FileResult{Slug: src.Slug, Source: src.Name}
	staged := b.stagingPath(src.Slug)

	fail := func(stage string, err error) FileResult {
		_ = os.Remove(staged)
		res.Stage, res.Err, res.Duration = stage, err, time.Since(start)
		b.recorder.IncFileResult(stage, metrics.ResultFailed)
		observability.WarnContext(observability.WithStage(ctx, stage), "Deck build failed",
			logfields.Source(src.Path), logfields.Error(err))
		return res
	}

	job := converter.Job{Source: src.Path, Output: staged, Style: b.style}
	if err := b.timed(metrics.StageConvert, func() error { return b.converter.Convert(ctx, job) }); err != nil {
		return fail(metrics.StageConvert, err)
	}

	var meta metadata.Metadata
	err := b.timed(metrics.StageExtract, func() error {
		// #nosec G304 -- path comes from discovery of the configured source directory
		content, rerr := os.ReadFile(src.Path)
		if rerr != nil {
			return ferrors.WrapError(rerr, ferrors.CategoryFileSystem, "failed to read source deck").
				WithContext("path", src.Path).
				Build()
		}
		meta = metadata.Extract(src.Slug, content)
		return nil
	})
	if err != nil {
		return fail(metrics.StageExtract, err)
	}

	final := b.ArtifactPath(src.Slug)
	if err := b.timed(metrics.StageInject, func() error { return tracker.InjectFile(staged, final, b.script) }); err != nil {
		return fail(metrics.StageInject, err)
	}

	res.Record = manifest.Record{
		Slug:        src.Slug,
		Title:       meta.Title,
		Description: meta.Description,
		SourceFile:  src.Name,
	}
	res.Duration = time.Since(start)
	b.recorder.IncFileResult(metrics.StageInject, metrics.ResultSuccess)
	observability.InfoContext(ctx, "Deck built",
		logfields.Artifact(final),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res
}

func (b *Builder) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	b.recorder.ObserveStageDuration(stage, time.Since(start))
	return err
}

// RemoveArtifact deletes the published artifact for slug. A missing artifact
// is not an error.
func (b *Builder) RemoveArtifact(slug string) error {
	path := b.ArtifactPath(slug)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to remove artifact").
			WithContext("path", path).
			Build()
	}
	return nil
}

// RebuildManifest regenerates the manifest from the published artifacts:
// one entry per discovered deck that has an artifact, in discovery order.
// Artifacts without a source are removed unless discovery failed.
func (b *Builder) RebuildManifest(ctx context.Context) (*manifest.Manifest, error) {
	sources, discErr := Discover(b.sourcesDir, b.extensions)
	if discErr != nil {
		observability.WarnContext(ctx, "Source discovery failed, keeping published artifacts",
			logfields.Path(b.sourcesDir), logfields.Error(discErr))
	}
	slugs, err := b.listArtifacts()
	if err != nil {
		return nil, err
	}
	published := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		published[slug] = true
	}

	keep := make(map[string]bool, len(sources))
	records := make([]manifest.Record, 0, len(sources))
	for _, src := range sources {
		keep[src.Slug] = true
		if !published[src.Slug] {
			continue
		}
		// #nosec G304 -- path comes from discovery of the configured source directory
		content, rerr := os.ReadFile(src.Path)
		if rerr != nil {
			observability.WarnContext(ctx, "Failed to read source deck",
				logfields.Source(src.Path), logfields.Error(rerr))
			continue
		}
		meta := metadata.Extract(src.Slug, content)
		records = append(records, manifest.Record{
			Slug:        src.Slug,
			Title:       meta.Title,
			Description: meta.Description,
			SourceFile:  src.Name,
		})
	}

	m, err := b.writeManifest(ctx, records)
	if err != nil {
		return nil, err
	}
	if discErr == nil {
		b.removeOrphans(ctx, keep)
	}
	return m, nil
}

func (b *Builder) writeManifest(ctx context.Context, records []manifest.Record) (*manifest.Manifest, error) {
	var m *manifest.Manifest
	err := b.timed(metrics.StageManifest, func() error {
		var berr error
		m, berr = manifest.Build(b.urlPrefix, records)
		if berr != nil {
			return berr
		}
		return b.store.Save(ctx, m)
	})
	if err != nil {
		b.recorder.IncFileResult(metrics.StageManifest, metrics.ResultFailed)
		return nil, err
	}
	b.recorder.SetManifestEntries(len(m.Presentations))

	digest := m.Digest()
	if digest != b.lastDigest {
		b.lastDigest = digest
		observability.InfoContext(ctx, "Manifest updated", logfields.Count(len(m.Presentations)))
		if b.bus != nil {
			_ = b.bus.Publish(ctx, events.ManifestUpdated{
				BuildID: observability.GetContext(ctx).BuildID,
				Entries: len(m.Presentations),
				Digest:  digest,
				At:      time.Now(),
			})
		}
	}
	return m, nil
}

// listArtifacts returns the slugs of published artifacts, sorted.
func (b *Builder) listArtifacts() ([]string, error) {
	entries, err := os.ReadDir(b.outputDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to list artifact directory").
			WithContext("dir", b.outputDir).
			Build()
	}
	var slugs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != artifactExt {
			continue
		}
		slugs = append(slugs, strings.TrimSuffix(name, artifactExt))
	}
	slices.Sort(slugs)
	return slugs, nil
}

// removeOrphans deletes artifacts whose slug is not in keep and returns the
// removed slugs.
func (b *Builder) removeOrphans(ctx context.Context, keep map[string]bool) []string {
	slugs, err := b.listArtifacts()
	if err != nil {
		observability.WarnContext(ctx, "Failed to list artifacts for cleanup", logfields.Error(err))
		return nil
	}
	var removed []string
	for _, slug := range slugs {
		if keep[slug] {
			continue
		}
		if err := b.RemoveArtifact(slug); err != nil {
			observability.WarnContext(ctx, "Failed to remove orphan artifact",
				logfields.SlideID(slug), logfields.Error(err))
			continue
		}
		removed = append(removed, slug)
	}
	return removed
}

// Package distribute publishes built artifacts and the manifest into the
// location served to browsers.
package distribute

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/manifest"
	"git.home.luguber.info/inful/deckbuilder/internal/metrics"
	"git.home.luguber.info/inful/deckbuilder/internal/observability"
	"git.home.luguber.info/inful/deckbuilder/internal/tracker"
)

// Options controls the published layout.
type Options struct {
	// SlidesDir is the artifact directory name under the public directory.
	SlidesDir string
	// ManifestName is the manifest file name under the public directory.
	ManifestName string
	Recorder     metrics.Recorder
}

// OptionsFrom builds Options from the publish configuration.
func OptionsFrom(cfg config.PublishConfig) Options {
	return Options{SlidesDir: cfg.SlidesDir, ManifestName: cfg.ManifestName}
}

// Result describes one completed sync.
type Result struct {
	Copied       int
	SlidesDir    string
	ManifestPath string
	Duration     time.Duration
}

// Sync copies the artifacts referenced by the manifest in store from
// artifactDir into publicDir and then writes the manifest next to them.
// Artifacts not listed in the manifest are not published. The slides
// directory is replaced as a whole; the manifest is written last so a reader
// never sees entries whose artifacts are missing.
func Sync(ctx context.Context, store manifest.Store, artifactDir, publicDir string, opts Options) (*Result, error) {
	start := time.Now()
	if opts.SlidesDir == "" {
		opts.SlidesDir = config.DefaultPublishSlides
	}
	if opts.ManifestName == "" {
		opts.ManifestName = config.DefaultManifestName
	}
	rec := opts.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	defer func() { rec.ObserveStageDuration(metrics.StageSync, time.Since(start)) }()

	m, err := store.Load(ctx)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryManifest, "manifest unavailable for sync").
			WithContext("public_dir", publicDir).
			Build()
	}

	if err := os.MkdirAll(publicDir, 0o750); err != nil {
		return nil, fsError(err, "failed to create public directory", publicDir)
	}

	target := filepath.Join(publicDir, opts.SlidesDir)
	stage, err := os.MkdirTemp(publicDir, "."+opts.SlidesDir+"-staging-")
	if err != nil {
		return nil, fsError(err, "failed to create staging directory", publicDir)
	}
	// #nosec G302 -- published slides are world-readable
	if err := os.Chmod(stage, 0o755); err != nil {
		_ = os.RemoveAll(stage)
		return nil, fsError(err, "failed to prepare staging directory", stage)
	}
	promoted := false
	defer func() {
		if !promoted {
			_ = os.RemoveAll(stage)
		}
	}()

	for _, e := range m.Presentations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.ID + ".html"
		src := filepath.Join(artifactDir, name)
		if err := copyFile(src, filepath.Join(stage, name)); err != nil {
			return nil, fsError(err, "failed to copy artifact", src)
		}
	}

	if err := promote(ctx, stage, target); err != nil {
		return nil, err
	}
	promoted = true

	data, err := m.ToJSON()
	if err != nil {
		return nil, err
	}
	manifestPath := filepath.Join(publicDir, opts.ManifestName)
	if err := tracker.WriteAtomic(manifestPath, data); err != nil {
		return nil, ferrors.WrapError(fmt.Errorf("%w: %w", manifest.ErrPersistFailed, err), ferrors.CategoryManifest,
			"failed to publish manifest").
			WithContext("path", manifestPath).
			Build()
	}

	res := &Result{
		Copied:       len(m.Presentations),
		SlidesDir:    target,
		ManifestPath: manifestPath,
		Duration:     time.Since(start),
	}
	observability.InfoContext(ctx, "Published slides",
		logfields.Path(target),
		logfields.Count(res.Copied),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res, nil
}

// promote replaces target with stage, keeping the previous directory as a
// backup until the rename succeeded.
func promote(ctx context.Context, stage, target string) error {
	prev := target + ".prev"
	if err := os.RemoveAll(prev); err != nil {
		observability.WarnContext(ctx, "Failed to remove previous backup", logfields.Path(prev), logfields.Error(err))
	}
	if _, err := os.Stat(target); err == nil {
		if err := os.Rename(target, prev); err != nil {
			return fsError(err, "failed to back up published slides", target)
		}
	}
	if err := os.Rename(stage, target); err != nil {
		// Put the previous generation back.
		_ = os.Rename(prev, target)
		return fsError(err, "failed to promote staged slides", target)
	}
	if err := os.RemoveAll(prev); err != nil {
		observability.WarnContext(ctx, "Failed to remove previous backup", logfields.Path(prev), logfields.Error(err))
	}
	return nil
}

// copyFile copies a single file from src to dst.
func copyFile(src, dst string) error {
	// #nosec G304 -- src is an artifact path derived from the manifest
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	// #nosec G304 -- dst is inside the staging directory
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func fsError(err error, msg, path string) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, msg).
		WithContext("path", path).
		Build()
}

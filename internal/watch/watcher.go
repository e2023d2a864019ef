// Package watch keeps artifacts, the manifest and the published tree in step
// with the source directory while the process runs.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/deckbuilder/internal/build"
	"git.home.luguber.info/inful/deckbuilder/internal/config"
	"git.home.luguber.info/inful/deckbuilder/internal/events"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/metrics"
	"git.home.luguber.info/inful/deckbuilder/internal/observability"
)

// PublishFunc distributes the current artifacts after a change.
type PublishFunc func(ctx context.Context) error

// Watcher reacts to source changes. Changes are debounced per file and
// processed one at a time by a single worker, so the builder never runs
// concurrently with itself.
type Watcher struct {
	builder   *build.Builder
	debounce  time.Duration
	reconcile time.Duration
	bus       *events.Bus
	recorder  metrics.Recorder
	publish   PublishFunc

	mu           sync.Mutex
	timers       map[string]*time.Timer
	pending      map[string]struct{}
	reconcileDue bool
	signal       chan struct{}
}

// NewWatcher creates a Watcher driving b.
func NewWatcher(b *build.Builder, cfg config.WatchConfig) *Watcher {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = config.DefaultDebounce
	}
	return &Watcher{
		builder:   b,
		debounce:  debounce,
		reconcile: cfg.Reconcile,
		recorder:  metrics.NoopRecorder{},
		timers:    make(map[string]*time.Timer),
		pending:   make(map[string]struct{}),
		signal:    make(chan struct{}, 1),
	}
}

// WithBus publishes ArtifactChanged events on bus.
func (w *Watcher) WithBus(bus *events.Bus) *Watcher {
	w.bus = bus
	return w
}

// WithRecorder sets the metrics recorder.
func (w *Watcher) WithRecorder(r metrics.Recorder) *Watcher {
	if r != nil {
		w.recorder = r
	}
	return w
}

// WithPublisher runs fn after every processed change and full pass.
func (w *Watcher) WithPublisher(fn PublishFunc) *Watcher {
	w.publish = fn
	return w
}

// Run performs an initial full pass, then watches until ctx is cancelled.
// Processing failures are logged and never end the loop.
func (w *Watcher) Run(ctx context.Context) error {
	dir := w.builder.SourcesDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create source directory").
			WithContext("dir", dir).
			Build()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create file watcher").Build()
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(dir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to watch source directory").
			WithContext("dir", dir).
			Build()
	}

	w.fullPass(ctx, w.builder.Build)

	scheduler, err := w.startScheduler()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()

	observability.InfoContext(ctx, "Watching for changes", logfields.Path(dir))
	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			if scheduler != nil {
				if serr := scheduler.Shutdown(); serr != nil {
					observability.WarnContext(ctx, "Scheduler shutdown error", logfields.Error(serr))
				}
			}
			wg.Wait()
			observability.InfoContext(ctx, "Watch stopped")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			observability.WarnContext(ctx, "Watcher error", logfields.Error(werr))
		}
	}
}

func (w *Watcher) startScheduler() (gocron.Scheduler, error) {
	if w.reconcile <= 0 {
		return nil, nil
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.reconcile),
		gocron.NewTask(w.requestReconcile),
		gocron.WithName("reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create reconcile job: %w", err)
	}
	s.Start()
	return s, nil
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	name := filepath.Base(ev.Name)
	if shouldIgnore(name) || !w.builder.IsSource(name) {
		return
	}
	op := opName(ev.Op)
	w.recorder.IncWatchEvent(op)
	observability.DebugContext(ctx, "Source change detected", logfields.Path(ev.Name), logfields.Event(op))

	w.mu.Lock()
	defer w.mu.Unlock()
	if t := w.timers[name]; t != nil {
		t.Stop()
	}
	w.timers[name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, name)
		w.pending[name] = struct{}{}
		w.mu.Unlock()
		w.notify()
	})
}

func (w *Watcher) requestReconcile() {
	w.mu.Lock()
	w.reconcileDue = true
	w.mu.Unlock()
	w.notify()
}

func (w *Watcher) notify() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
}

// take drains the pending work in file name order.
func (w *Watcher) take() (names []string, reconcile bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name := range w.pending {
		names = append(names, name)
	}
	clear(w.pending)
	slices.Sort(names)
	reconcile, w.reconcileDue = w.reconcileDue, false
	return names, reconcile
}

func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.signal:
		}
		for {
			names, reconcile := w.take()
			if len(names) == 0 && !reconcile {
				break
			}
			if reconcile {
				w.fullPass(ctx, w.builder.Reconcile)
			}
			for _, name := range names {
				if ctx.Err() != nil {
					return
				}
				w.processChange(ctx, name)
			}
		}
	}
}

func (w *Watcher) fullPass(ctx context.Context, pass func(context.Context) (*build.Report, error)) {
	report, err := pass(ctx)
	if err != nil {
		observability.ErrorContext(ctx, "Full pass failed", logfields.Error(err))
		return
	}
	if report.Failed > 0 {
		observability.WarnContext(ctx, "Full pass left decks out of the manifest", logfields.Count(report.Failed))
	}
	w.runPublish(ctx)
}

// processChange brings one deck up to date. Whether the deck is rebuilt or
// its artifact removed depends on the source existing once the burst of
// events has settled.
func (w *Watcher) processChange(ctx context.Context, name string) {
	slug := build.SlugOf(name)
	ctx = observability.WithSlideID(ctx, slug)
	path := filepath.Join(w.builder.SourcesDir(), name)

	removed, changed := false, true
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		removed = true
		if rerr := w.builder.RemoveArtifact(slug); rerr != nil {
			observability.WarnContext(ctx, "Failed to remove artifact", logfields.Error(rerr))
		}
	} else if _, berr := w.builder.BuildFile(ctx, name); berr != nil {
		// The deck keeps its previous artifact, so viewers are not signalled.
		observability.WarnContext(ctx, "Rebuild failed", logfields.Source(path), logfields.Error(berr))
		changed = false
	}

	// The catalog is recomputed from the artifact listing after every change.
	if _, err := w.builder.RebuildManifest(ctx); err != nil {
		observability.ErrorContext(ctx, "Manifest refresh failed", logfields.Error(err))
		return
	}
	w.runPublish(ctx)

	if changed && w.bus != nil {
		evt := events.ArtifactChanged{SlideID: slug, Removed: removed, At: time.Now()}
		if err := w.bus.Publish(ctx, evt); err != nil {
			observability.WarnContext(ctx, "Failed to publish artifact change", logfields.Error(err))
		}
	}
}

func (w *Watcher) runPublish(ctx context.Context) {
	if w.publish == nil {
		return
	}
	if err := w.publish(ctx); err != nil {
		observability.WarnContext(ctx, "Distribution sync failed", logfields.Error(err))
	}
}

// shouldIgnore reports editor scratch files that carry a deck extension.
func shouldIgnore(base string) bool {
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, "~") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Create):
		return "create"
	default:
		return "write"
	}
}

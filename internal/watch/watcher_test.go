package watch

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/deckbuilder/internal/build"
	"git.home.luguber.info/inful/deckbuilder/internal/config"
	"git.home.luguber.info/inful/deckbuilder/internal/converter"
	"git.home.luguber.info/inful/deckbuilder/internal/events"
	"git.home.luguber.info/inful/deckbuilder/internal/manifest"
)

type harness struct {
	src, out string
	store    *manifest.MemoryStore
	builder  *build.Builder
	bus      *events.Bus
	calls    sync.Map // slug -> *atomic.Int32
	failing  atomic.Value
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Sources.Dir = filepath.Join(root, "slides")
	cfg.Output.Dir = filepath.Join(root, "dist", "slides")

	h := &harness{src: cfg.Sources.Dir, out: cfg.Output.Dir, store: manifest.NewMemoryStore(), bus: events.NewBus()}
	h.failing.Store("")
	t.Cleanup(h.bus.Close)

	conv := converter.Func(func(_ context.Context, job converter.Job) error {
		slug := strings.TrimSuffix(filepath.Base(job.Source), filepath.Ext(job.Source))
		h.counter(slug).Add(1)
		if h.failing.Load().(string) == slug {
			return converter.ErrConversionFailed
		}
		return os.WriteFile(job.Output, []byte("<html><body>"+slug+"</body></html>"), 0o600)
	})
	h.builder = build.NewBuilder(cfg, conv, h.store, []byte("T()"))
	return h
}

func (h *harness) counter(slug string) *atomic.Int32 {
	c, _ := h.calls.LoadOrStore(slug, &atomic.Int32{})
	return c.(*atomic.Int32)
}

func (h *harness) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(h.src, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(h.src, name), []byte(content), 0o600))
}

func (h *harness) ids(t *testing.T) []string {
	m, err := h.store.Load(t.Context())
	if err != nil {
		return nil
	}
	return m.IDs()
}

// start runs w until the test ends.
func start(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
}

func fastConfig() config.WatchConfig {
	return config.WatchConfig{Debounce: 20 * time.Millisecond}
}

func TestWatcher_InitialPassAndCreate(t *testing.T) {
	h := newHarness(t)
	h.write(t, "first.md", "# First\n")

	changes, unsubscribe := events.Subscribe[events.ArtifactChanged](h.bus, 8)
	defer unsubscribe()

	start(t, NewWatcher(h.builder, fastConfig()).WithBus(h.bus))
	require.Eventually(t, func() bool {
		return len(h.ids(t)) == 1
	}, 3*time.Second, 10*time.Millisecond)

	h.write(t, "second.md", "# Second\n")
	require.Eventually(t, func() bool {
		ids := h.ids(t)
		return len(ids) == 2 && ids[1] == "second"
	}, 3*time.Second, 10*time.Millisecond)

	select {
	case evt := <-changes:
		require.Equal(t, "second", evt.SlideID)
		require.False(t, evt.Removed)
	case <-time.After(3 * time.Second):
		t.Fatal("no artifact change published")
	}
}

func TestWatcher_RemoveDeletesArtifact(t *testing.T) {
	h := newHarness(t)
	h.write(t, "gone.md", "# Gone\n")

	changes, unsubscribe := events.Subscribe[events.ArtifactChanged](h.bus, 8)
	defer unsubscribe()

	start(t, NewWatcher(h.builder, fastConfig()).WithBus(h.bus))
	require.Eventually(t, func() bool { return len(h.ids(t)) == 1 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(h.src, "gone.md")))
	select {
	case evt := <-changes:
		require.Equal(t, "gone", evt.SlideID)
		require.True(t, evt.Removed)
	case <-time.After(3 * time.Second):
		t.Fatal("no artifact change published")
	}
	require.Empty(t, h.ids(t))
	_, err := os.Stat(filepath.Join(h.out, "gone.html"))
	require.True(t, os.IsNotExist(err))
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	h := newHarness(t)
	start(t, NewWatcher(h.builder, config.WatchConfig{Debounce: 100 * time.Millisecond}))
	require.Eventually(t, func() bool { return h.store.Saves() == 1 }, 3*time.Second, 10*time.Millisecond)

	for i := range 5 {
		h.write(t, "deck.md", "# Deck "+strconv.Itoa(i)+"\n")
		time.Sleep(10 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return h.counter("deck").Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, int32(1), h.counter("deck").Load())
}

func TestWatcher_IgnoresNonSourceFiles(t *testing.T) {
	h := newHarness(t)
	var published atomic.Int32
	w := NewWatcher(h.builder, fastConfig()).WithPublisher(func(context.Context) error {
		published.Add(1)
		return nil
	})
	start(t, w)
	require.Eventually(t, func() bool { return published.Load() == 1 }, 3*time.Second, 10*time.Millisecond)

	h.write(t, "notes.txt", "x")
	h.write(t, ".deck.md", "# Hidden\n")
	h.write(t, "deck.md~", "# Backup\n")
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, int32(1), published.Load())
}

func TestWatcher_FailureKeepsLoopRunning(t *testing.T) {
	h := newHarness(t)
	h.failing.Store("bad")
	start(t, NewWatcher(h.builder, fastConfig()))
	require.Eventually(t, func() bool { return h.store.Saves() == 1 }, 3*time.Second, 10*time.Millisecond)

	h.write(t, "bad.md", "# Bad\n")
	require.Eventually(t, func() bool { return h.counter("bad").Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	// The manifest is refreshed even though the rebuild failed.
	require.Eventually(t, func() bool { return h.store.Saves() >= 2 }, 3*time.Second, 10*time.Millisecond)

	h.write(t, "good.md", "# Good\n")
	require.Eventually(t, func() bool {
		ids := h.ids(t)
		return len(ids) == 1 && ids[0] == "good"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_PeriodicReconcile(t *testing.T) {
	h := newHarness(t)
	h.write(t, "deck.md", "# Deck\n")
	cfg := fastConfig()
	cfg.Reconcile = 50 * time.Millisecond
	start(t, NewWatcher(h.builder, cfg))

	// Initial pass plus at least two scheduled passes.
	require.Eventually(t, func() bool { return h.counter("deck").Load() >= 3 }, 5*time.Second, 10*time.Millisecond)
}

func TestShouldIgnore(t *testing.T) {
	require.True(t, shouldIgnore(".#deck.md"))
	require.True(t, shouldIgnore("#deck.md#"))
	require.True(t, shouldIgnore("deck.md~"))
	require.False(t, shouldIgnore("deck.md"))
}

func TestOpName(t *testing.T) {
	require.Equal(t, "create", opName(fsnotify.Create))
	require.Equal(t, "write", opName(fsnotify.Write))
	require.Equal(t, "remove", opName(fsnotify.Remove))
	require.Equal(t, "rename", opName(fsnotify.Rename))
}

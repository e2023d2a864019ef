// Package livereload streams artifact-change signals to live hosts over
// server-sent events.
package livereload

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/events"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/metrics"
	"git.home.luguber.info/inful/deckbuilder/internal/navsync"
)

const (
	defaultHeartbeat = 30 * time.Second
	clientBuffer     = 8
)

// Hub manages SSE clients and broadcasts content and catalog updates to them.
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*client
	closed    bool
	recorder  metrics.Recorder
	heartbeat time.Duration
}

type client struct {
	ch   chan []byte
	done chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithRecorder reports client and broadcast metrics.
func WithRecorder(r metrics.Recorder) Option {
	return func(h *Hub) {
		if r != nil {
			h.recorder = r
		}
	}
}

// WithHeartbeat sets the keep-alive comment interval.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// NewHub returns an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:   map[int]*client{},
		recorder:  metrics.NoopRecorder{},
		heartbeat: defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	c := &client{ch: make(chan []byte, clientBuffer), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "live updates shutting down", http.StatusServiceUnavailable)
		return
	}
	id := h.nextID
	h.nextID++
	h.clients[id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetLiveClients(n)
	defer h.remove(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	write := func(s string) bool {
		if _, err := bw.WriteString(s); err != nil {
			slog.Debug("Live update write failed", logfields.Error(err))
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !write(": connected\n\n") {
		return
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-hb.C:
			if !write(": ping\n\n") {
				return
			}
		case payload := <-c.ch:
			if !write("data: " + string(payload) + "\n\n") {
				return
			}
		}
	}
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.recorder.SetLiveClients(n)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends update to every client. Every call is delivered; identical
// consecutive updates are not collapsed. Clients whose buffer is full are
// dropped.
func (h *Hub) Broadcast(update navsync.ContentUpdate) {
	total, dropped := h.send(update.Marshal())
	slog.Debug("Broadcast content update",
		logfields.SlideID(update.Data.SlideID),
		logfields.Count(total),
		slog.Int("dropped", dropped))
}

// BroadcastManifest announces a catalog change to every client.
func (h *Hub) BroadcastManifest(update navsync.ManifestUpdate) {
	total, dropped := h.send(update.Marshal())
	slog.Debug("Broadcast manifest update",
		slog.Int("entries", update.Data.Entries),
		logfields.Count(total),
		slog.Int("dropped", dropped))
}

func (h *Hub) send(payload []byte) (total, dropped int) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return 0, 0
	}
	var slow []int
	for id, c := range h.clients {
		select {
		case c.ch <- payload:
		default:
			slow = append(slow, id)
		}
	}
	total = len(h.clients)
	h.mu.RUnlock()

	for _, id := range slow {
		h.remove(id)
	}
	h.recorder.IncLiveBroadcast(len(slow))
	return total, len(slow)
}

// Run forwards ArtifactChanged and ManifestUpdated events from bus until ctx
// is done or the bus closes.
func (h *Hub) Run(ctx context.Context, bus *events.Bus) {
	changes, unsubscribeChanges := events.Subscribe[events.ArtifactChanged](bus, 16)
	defer unsubscribeChanges()
	manifests, unsubscribeManifests := events.Subscribe[events.ManifestUpdated](bus, 16)
	defer unsubscribeManifests()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-changes:
			if !ok {
				return
			}
			h.Broadcast(navsync.NewContentUpdate(evt.SlideID))
		case evt, ok := <-manifests:
			if !ok {
				return
			}
			h.BroadcastManifest(navsync.NewManifestUpdate(evt.Entries, evt.Digest))
		}
	}
}

// Shutdown disconnects all clients and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()

	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveClients(0)
}

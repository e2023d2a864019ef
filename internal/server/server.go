// Package server exposes the watch-mode HTTP surface: the live-update
// stream, the navigation scripts, the manifest and operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/livereload"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/manifest"
	"git.home.luguber.info/inful/deckbuilder/internal/metrics"
	"git.home.luguber.info/inful/deckbuilder/internal/navsync"
	"git.home.luguber.info/inful/deckbuilder/internal/server/middleware"
	"git.home.luguber.info/inful/deckbuilder/internal/version"
)

// Route paths.
const (
	PathEvents   = "/events"
	PathHostJS   = "/navsync/host.js"
	PathTracker  = "/navsync/tracker.js"
	PathManifest = "/slides-manifest.json"
	PathHealth   = "/healthz"
	PathMetrics  = "/metrics"
)

// Options configures a Server.
type Options struct {
	Addr          string
	Hub           *livereload.Hub
	Store         manifest.Store
	Registry      *prometheus.Registry // nil disables /metrics
	Policy        navsync.OriginPolicy
	HostScript    []byte
	TrackerScript []byte
	Logger        *slog.Logger
}

// Server represents the watch-mode HTTP server.
type Server struct {
	opts    Options
	router  *chi.Mux
	server  *http.Server
	adapter *ferrors.HTTPErrorAdapter
	started time.Time
}

// New creates a server with all routes registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Hub == nil {
		opts.Hub = livereload.NewHub()
	}
	s := &Server{
		opts:    opts,
		router:  chi.NewRouter(),
		adapter: ferrors.NewHTTPErrorAdapter(opts.Logger),
		started: time.Now(),
	}
	s.setupRoutes()

	// No WriteTimeout: the event stream is long-lived.
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Chain(s.opts.Logger, s.adapter))
	s.router.Use(middleware.CORS(s.opts.Policy))

	s.router.Get(PathEvents, s.opts.Hub.ServeHTTP)

	s.router.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.Get(PathHealth, s.handleHealth)
		r.Get(PathManifest, s.handleManifest)
		r.Get(PathHostJS, s.script(s.opts.HostScript))
		r.Get(PathTracker, s.script(s.opts.TrackerScript))
		if s.opts.Registry != nil {
			r.Method(http.MethodGet, PathMetrics, metrics.HTTPHandler(s.opts.Registry))
		}
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// Open event streams are closed before the listener drains.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to bind server address").
			WithContext("addr", s.opts.Addr).
			Build()
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(ln) }()
	slog.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "HTTP server failed").Build()
	case <-ctx.Done():
	}

	s.opts.Hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown error", logfields.Error(err))
	}
	return nil
}

type healthResponse struct {
	Status  string  `json:"status"`
	Version string  `json:"version"`
	Uptime  float64 `json:"uptime"`
	Clients int     `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: version.Version,
		Uptime:  time.Since(s.started).Seconds(),
		Clients: s.opts.Hub.Clients(),
	})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		s.adapter.WriteErrorResponse(w, r, ferrors.NotFoundError("manifest not configured").Build())
		return
	}
	m, err := s.opts.Store.Load(r.Context())
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	data, err := m.ToJSON()
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

func (s *Server) script(body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(body) == 0 {
			s.adapter.WriteErrorResponse(w, r, ferrors.NotFoundError("script not configured").
				WithContext("path", r.URL.Path).
				Build())
			return
		}
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(body)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

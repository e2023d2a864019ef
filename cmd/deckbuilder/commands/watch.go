package commands

import (
	"time"

	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/livereload"
	"git.home.luguber.info/inful/deckbuilder/internal/navsync"
	"git.home.luguber.info/inful/deckbuilder/internal/notify"
	"git.home.luguber.info/inful/deckbuilder/internal/server"
	"git.home.luguber.info/inful/deckbuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Addr      string        `help:"Override server.addr"`
	NoServer  bool          `name:"no-server" help:"Do not start the HTTP server"`
	Publish   bool          `short:"p" help:"Publish after every change (also enabled by publish.enabled)"`
	Reconcile time.Duration `help:"Override watch.reconcile (0 disables periodic full passes)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	if w.Addr != "" {
		cfg.Server.Addr = w.Addr
		cfg.Server.Enabled = true
	}
	if w.NoServer {
		cfg.Server.Enabled = false
	}
	if w.Reconcile > 0 {
		cfg.Watch.Reconcile = w.Reconcile
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	watcher := watch.NewWatcher(p.builder, cfg.Watch).
		WithBus(p.bus).
		WithRecorder(p.recorder)
	if w.Publish || cfg.Publish.Enabled {
		watcher = watcher.WithPublisher(p.publish)
	}

	eg, ctx := errgroup.WithContext(ctx)

	hub := livereload.NewHub(livereload.WithRecorder(p.recorder))
	eg.Go(func() error {
		hub.Run(ctx, p.bus)
		return nil
	})

	if cfg.Events.NATS.Enabled {
		pub, nerr := notify.Connect(cfg.Events.NATS)
		if nerr != nil {
			return nerr
		}
		defer pub.Close()
		eg.Go(func() error {
			pub.Run(ctx, p.bus)
			return nil
		})
	}

	if cfg.Server.Enabled {
		srv, serr := newServer(p, hub)
		if serr != nil {
			return serr
		}
		eg.Go(func() error { return srv.ListenAndServe(ctx) })
	}

	eg.Go(func() error { return watcher.Run(ctx) })

	err = eg.Wait()
	g.Logger.Info("Watch finished")
	return err
}

func newServer(p *pipeline, hub *livereload.Hub) (*server.Server, error) {
	policy := navsync.NewOriginPolicy(p.cfg.NavSync.AllowedOrigins)
	host, err := navsync.HostScript(navsync.HostOptions{
		EventsURL:      server.PathEvents,
		FramePrefix:    p.cfg.NavSync.FramePrefix,
		AllowedOrigins: policy.Origins(),
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to render host script").Build()
	}
	tracker, err := navsync.TrackerScript(p.cfg.NavSync.TargetOrigin)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to render tracker script").Build()
	}

	return server.New(server.Options{
		Addr:          p.cfg.Server.Addr,
		Hub:           hub,
		Store:         p.store,
		Registry:      p.registry,
		Policy:        policy,
		HostScript:    host,
		TrackerScript: tracker,
	}), nil
}

package commands

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/deckbuilder/internal/build"
	"git.home.luguber.info/inful/deckbuilder/internal/config"
	"git.home.luguber.info/inful/deckbuilder/internal/converter"
	"git.home.luguber.info/inful/deckbuilder/internal/distribute"
	"git.home.luguber.info/inful/deckbuilder/internal/events"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/history"
	"git.home.luguber.info/inful/deckbuilder/internal/manifest"
	"git.home.luguber.info/inful/deckbuilder/internal/metrics"
	"git.home.luguber.info/inful/deckbuilder/internal/navsync"
)

// pipeline holds the components shared by the build, watch and sync commands.
type pipeline struct {
	cfg      *config.Config
	store    manifest.Store
	registry *prometheus.Registry
	recorder metrics.Recorder
	history  history.Store
	bus      *events.Bus
	builder  *build.Builder
}

func newPipeline(cfg *config.Config) (*pipeline, error) {
	p := &pipeline{
		cfg:      cfg,
		store:    manifest.NewFileStore(cfg.Output.Manifest),
		recorder: metrics.NoopRecorder{},
		bus:      events.NewBus(),
	}

	if cfg.Metrics.Enabled {
		p.registry = prometheus.NewRegistry()
		p.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		p.recorder = metrics.NewPrometheusRecorder(p.registry)
	}

	if cfg.History.Enabled {
		hs, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			p.bus.Close()
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to open build history").
				WithContext("path", cfg.History.Path).
				Build()
		}
		p.history = hs
	}

	script, err := navsync.TrackerScript(cfg.NavSync.TargetOrigin)
	if err != nil {
		p.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to render tracker script").Build()
	}

	p.builder = build.NewBuilder(cfg, converter.NewCommandConverter(cfg.Converter), p.store, script).
		WithRecorder(p.recorder).
		WithHistory(p.history).
		WithBus(p.bus)
	return p, nil
}

// publish runs a distribution sync into the configured public directory.
func (p *pipeline) publish(ctx context.Context) error {
	opts := distribute.OptionsFrom(p.cfg.Publish)
	opts.Recorder = p.recorder
	_, err := distribute.Sync(ctx, p.store, p.cfg.Output.Dir, p.cfg.Publish.Dir, opts)
	return err
}

func (p *pipeline) Close() {
	p.bus.Close()
	if p.history != nil {
		_ = p.history.Close()
	}
}

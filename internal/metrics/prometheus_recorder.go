package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "deckbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration   *prom.HistogramVec
	buildDuration   prom.Histogram
	fileResults     *prom.CounterVec
	buildOutcome    *prom.CounterVec
	manifestEntries prom.Gauge
	watchEvents     *prom.CounterVec
	liveClients     prom.Gauge
	liveBroadcasts  prom.Counter
	liveDropped     prom.Counter
}

// NewPrometheusRecorder constructs and registers the metrics on reg (a fresh
// registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of per-file pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total batch pass duration",
			Buckets:   prom.DefBuckets,
		}),
		fileResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "file_results_total",
			Help:      "Per-file pipeline results by failing stage",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Batch pass outcomes",
		}, []string{"outcome"}),
		manifestEntries: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "manifest_entries",
			Help:      "Presentations in the last written manifest",
		}),
		watchEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "Source change events handled by the watch loop",
		}, []string{"op"}),
		liveClients: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "live_clients",
			Help:      "Connected artifact-change stream clients",
		}),
		liveBroadcasts: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "live_broadcasts_total",
			Help:      "Artifact-change signals broadcast to stream clients",
		}),
		liveDropped: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "live_dropped_clients_total",
			Help:      "Stream clients dropped because they fell behind",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.fileResults, pr.buildOutcome,
		pr.manifestEntries, pr.watchEvents, pr.liveClients, pr.liveBroadcasts, pr.liveDropped)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFileResult(stage string, result ResultLabel) {
	p.fileResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetManifestEntries(n int) {
	p.manifestEntries.Set(float64(n))
}

func (p *PrometheusRecorder) IncWatchEvent(op string) {
	p.watchEvents.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) SetLiveClients(n int) {
	p.liveClients.Set(float64(n))
}

func (p *PrometheusRecorder) IncLiveBroadcast(dropped int) {
	p.liveBroadcasts.Inc()
	if dropped > 0 {
		p.liveDropped.Add(float64(dropped))
	}
}

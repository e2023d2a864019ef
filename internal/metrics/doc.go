// Package metrics provides build and live-preview metrics behind the Recorder
// interface.
//
// Components default to NoopRecorder so metrics collection needs no nil checks.
// When metrics are enabled the CLI injects a PrometheusRecorder bound to a
// registry that the watch-mode server exposes on /metrics:
//
//	reg := prom.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	builder := build.New(cfg, conv, store, build.WithRecorder(rec))
//	router.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics

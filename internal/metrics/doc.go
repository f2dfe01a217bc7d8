// Package metrics provides observability hooks for docsetbot runs.
//
// Components receive a Recorder through dependency injection. NoopRecorder is
// the default so callers never check for nil; the daemon swaps in a
// PrometheusRecorder and serves it on the admin listener via HTTPHandler.
//
//	rec := metrics.NewPrometheusRecorder(reg)
//	p := pipeline.New(cfg, pipeline.WithRecorder(rec))
package metrics

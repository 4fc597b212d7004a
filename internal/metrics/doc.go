// Package metrics records pipeline observability through a Recorder.
//
// Components accept a Recorder and default to NoopRecorder, so metrics are
// optional everywhere. When monitoring.metrics.enabled is set the daemon injects
// a PrometheusRecorder and serves its registry through HTTPHandler.
package metrics

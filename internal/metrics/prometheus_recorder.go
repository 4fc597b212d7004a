package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shadowjar"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration  *prom.HistogramVec
	stageResults   *prom.CounterVec
	runDuration    prom.Histogram
	runOutcome     *prom.CounterVec
	toolAcquired   *prom.CounterVec
	catalogRetries prom.Counter
	pending        prom.Gauge
	running        prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	// Builds run for minutes; default buckets top out at 10s.
	buildBuckets := prom.ExponentialBuckets(1, 2, 12)

	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   buildBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total duration of a scheduled run",
			Buckets:   buildBuckets,
		}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"}),
		toolAcquired: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "tool_acquisitions_total",
			Help:      "Build tool acquisitions by flavor and status",
		}, []string{"flavor", "status"}),
		catalogRetries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_write_retries_total",
			Help:      "Catalog write attempts that were retried",
		}),
		pending: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_pending_records",
			Help:      "Built artifacts waiting to be recorded in the catalog",
		}),
		running: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 while a pipeline run is in progress",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.runDuration, pr.runOutcome,
		pr.toolAcquired, pr.catalogRetries, pr.pending, pr.running)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome RunOutcomeLabel) {
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncToolAcquisition(flavor, status string) {
	p.toolAcquired.WithLabelValues(flavor, status).Inc()
}

func (p *PrometheusRecorder) IncCatalogRetry() { p.catalogRetries.Inc() }

func (p *PrometheusRecorder) SetPendingRecords(n int) { p.pending.Set(float64(n)) }

func (p *PrometheusRecorder) SetRunning(running bool) {
	if running {
		p.running.Set(1)
		return
	}
	p.running.Set(0)
}

// HTTPHandler returns an http.Handler that serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

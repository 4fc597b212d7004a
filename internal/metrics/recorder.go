package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultSkipped  ResultLabel = "skipped"
	ResultWarning  ResultLabel = "warning"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// RunOutcomeLabel is the final status of one scheduled run.
type RunOutcomeLabel string

const (
	RunSuccess  RunOutcomeLabel = "success"
	RunPartial  RunOutcomeLabel = "partial"
	RunFailed   RunOutcomeLabel = "failed"
	RunCanceled RunOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for pipeline runs. Implementations must
// be safe for concurrent use.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome RunOutcomeLabel)
	IncToolAcquisition(flavor, status string)
	IncCatalogRetry()
	SetPendingRecords(n int)
	SetRunning(running bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(RunOutcomeLabel)              {}
func (NoopRecorder) IncToolAcquisition(string, string)          {}
func (NoopRecorder) IncCatalogRetry()                           {}
func (NoopRecorder) SetPendingRecords(int)                      {}
func (NoopRecorder) SetRunning(bool)                            {}

package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultSkipped  ResultLabel = "skipped"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// CheckLabel enumerates release check outcomes.
type CheckLabel string

const (
	CheckChanged   CheckLabel = "changed"
	CheckUnchanged CheckLabel = "unchanged"
	CheckError     CheckLabel = "error"
)

// Recorder defines observability hooks for runs, stages and release checks.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome ResultLabel)
	IncReleaseCheck(result CheckLabel)
	SetLastPublished(t time.Time)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(ResultLabel)                  {}
func (NoopRecorder) IncReleaseCheck(CheckLabel)                 {}
func (NoopRecorder) SetLastPublished(time.Time)                 {}

var _ Recorder = NoopRecorder{}

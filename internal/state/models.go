package state

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunSkipped   RunStatus = "skipped"
)

// Run is one pipeline invocation.
type Run struct {
	ID         string
	Library    string
	Version    string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Status     RunStatus
	PRURL      string
}

// Duration is the wall time of a finished run, or zero.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// EventKind classifies stage events.
type EventKind string

const (
	EventStageStarted   EventKind = "stage.started"
	EventStageSucceeded EventKind = "stage.succeeded"
	EventStageFailed    EventKind = "stage.failed"
	EventStageSkipped   EventKind = "stage.skipped"
)

// Event is a recorded stage transition.
type Event struct {
	ID        int64
	RunID     string
	Stage     string
	Kind      EventKind
	Timestamp time.Time
	Payload   map[string]string
}

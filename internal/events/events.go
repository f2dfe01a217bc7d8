// Package events publishes run lifecycle notifications.
package events

import (
	"context"
	"sync"
	"time"
)

// Kind names a run lifecycle notification.
type Kind string

const (
	KindRunStarted   Kind = "run.started"
	KindRunFinished  Kind = "run.finished"
	KindStageStarted Kind = "stage.started"
	KindStageFailed  Kind = "stage.failed"
	KindStageDone    Kind = "stage.succeeded"
	KindStageSkipped Kind = "stage.skipped"
	KindRelease      Kind = "release.detected"
)

// RunEvent is the JSON document sent for each notification.
type RunEvent struct {
	Kind      Kind      `json:"kind"`
	RunID     string    `json:"run_id,omitempty"`
	Library   string    `json:"library"`
	Version   string    `json:"version,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	PRURL     string    `json:"pr_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers run events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event RunEvent) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, RunEvent) error { return nil }
func (Noop) Close() error                            { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []RunEvent
}

func (r *Recorder) Publish(_ context.Context, event RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []RunEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RunEvent(nil), r.events...)
}

// Kinds lists the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

var (
	_ Publisher = Noop{}
	_ Publisher = (*Recorder)(nil)
)

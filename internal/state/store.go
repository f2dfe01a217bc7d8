package state

import "context"

// Store persists runs and their events.
type Store interface {
	// StartRun creates a running run and returns it with a fresh ID.
	StartRun(ctx context.Context, library, version string) (Run, error)

	// FinishRun records the terminal status and, when published, the PR URL.
	FinishRun(ctx context.Context, id string, status RunStatus, prURL string) error

	// AppendEvent adds a stage event to a run.
	AppendEvent(ctx context.Context, runID, stage string, kind EventKind, payload map[string]string) error

	// EventsForRun returns a run's events in insertion order.
	EventsForRun(ctx context.Context, runID string) ([]Event, error)

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]Run, error)

	// PublishedPR returns the PR URL recorded for (library, version), or "".
	PublishedPR(ctx context.Context, library, version string) (string, error)

	Close() error
}

// Discard is a Store that records nothing and never reports a published PR.
type Discard struct{}

func (Discard) StartRun(_ context.Context, library, version string) (Run, error) {
	return Run{ID: newRunID(), Library: library, Version: version, Status: RunRunning}, nil
}

func (Discard) FinishRun(context.Context, string, RunStatus, string) error {
	return nil
}

func (Discard) AppendEvent(context.Context, string, string, EventKind, map[string]string) error {
	return nil
}

func (Discard) EventsForRun(context.Context, string) ([]Event, error) {
	return nil, nil
}

func (Discard) RecentRuns(context.Context, int) ([]Run, error) {
	return nil, nil
}

func (Discard) PublishedPR(context.Context, string, string) (string, error) {
	return "", nil
}

func (Discard) Close() error {
	return nil
}

var _ Store = Discard{}

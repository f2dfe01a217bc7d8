package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	// Deterministic, strictly increasing clock.
	base := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	run, err := store.StartRun(ctx, "seaborn", "0.13.2")
	require.NoError(t, err)
	_, err = uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)

	require.NoError(t, store.FinishRun(ctx, run.ID, RunSucceeded, "https://github.com/Kapeli/Dash-User-Contributions/pull/1"))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunSucceeded, runs[0].Status)
	assert.Equal(t, "0.13.2", runs[0].Version)
	assert.Equal(t, time.Second, runs[0].Duration())

	url, err := store.PublishedPR(ctx, "seaborn", "0.13.2")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/Kapeli/Dash-User-Contributions/pull/1", url)

	url, err = store.PublishedPR(ctx, "seaborn", "0.14.0")
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestFinishRunKeepsRecordedPR(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	run, err := store.StartRun(ctx, "seaborn", "0.13.2")
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, run.ID, RunFailed, "https://example.test/pull/2"))
	require.NoError(t, store.FinishRun(ctx, run.ID, RunFailed, ""))

	url, err := store.PublishedPR(ctx, "seaborn", "0.13.2")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/pull/2", url)
}

func TestFinishUnknownRun(t *testing.T) {
	store := newStore(t)
	err := store.FinishRun(t.Context(), "nope", RunFailed, "")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestEventsForRun(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	a, err := store.StartRun(ctx, "seaborn", "0.13.2")
	require.NoError(t, err)
	b, err := store.StartRun(ctx, "seaborn", "0.13.2")
	require.NoError(t, err)

	require.NoError(t, store.AppendEvent(ctx, a.ID, "clone", EventStageStarted, nil))
	require.NoError(t, store.AppendEvent(ctx, b.ID, "clone", EventStageStarted, nil))
	require.NoError(t, store.AppendEvent(ctx, a.ID, "clone", EventStageFailed, map[string]string{"error": "boom"}))

	events, err := store.EventsForRun(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventStageStarted, events[0].Kind)
	assert.Nil(t, events[0].Payload)
	assert.Equal(t, EventStageFailed, events[1].Kind)
	assert.Equal(t, "boom", events[1].Payload["error"])
	assert.True(t, events[1].Timestamp.After(events[0].Timestamp))
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	for _, v := range []string{"0.11.0", "0.12.0", "0.13.0"} {
		_, err := store.StartRun(ctx, "seaborn", v)
		require.NoError(t, err)
	}

	runs, err := store.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "0.13.0", runs[0].Version)
	assert.Equal(t, "0.12.0", runs[1].Version)
	assert.Zero(t, runs[0].Duration())

	all, err := store.RecentRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPersistentStoreReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "state.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	run, err := store.StartRun(t.Context(), "seaborn", "0.13.2")
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(t.Context(), run.ID, RunSucceeded, "https://example.test/pull/3"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	url, err := reopened.PublishedPR(t.Context(), "seaborn", "0.13.2")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/pull/3", url)
}

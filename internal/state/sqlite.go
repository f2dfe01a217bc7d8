package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// NewSQLiteStore opens (and if needed creates) the state database.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, derrors.Wrap(err, derrors.CategoryFileSystem, derrors.SeverityFatal, "create state directory").
				WithContext("path", dbPath)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryRuntime, derrors.SeverityFatal, "open state database").
			WithContext("path", dbPath)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, derrors.Wrap(err, derrors.CategoryRuntime, derrors.SeverityFatal, "initialize state schema")
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		library TEXT NOT NULL,
		version TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		status TEXT NOT NULL,
		pr_url TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_runs_library_version ON runs(library, version);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		stage TEXT NOT NULL,
		kind TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// StartRun inserts a new running run.
func (s *SQLiteStore) StartRun(ctx context.Context, library, version string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := Run{
		ID:        newRunID(),
		Library:   library,
		Version:   version,
		StartedAt: s.now().UTC(),
		Status:    RunRunning,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, library, version, started_at, status) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.Library, run.Version, run.StartedAt.UnixMilli(), string(run.Status),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun sets the terminal status. An empty prURL leaves any recorded URL untouched.
func (s *SQLiteStore) FinishRun(ctx context.Context, id string, status RunStatus, prURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, status = ?, pr_url = CASE WHEN ? = '' THEN pr_url ELSE ? END WHERE id = ?",
		s.now().UTC().UnixMilli(), string(status), prURL, prURL, id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// AppendEvent adds a stage event.
func (s *SQLiteStore) AppendEvent(ctx context.Context, runID, stage string, kind EventKind, payload map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payloadJSON []byte
	if len(payload) > 0 {
		var err error
		if payloadJSON, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (run_id, stage, kind, timestamp, payload) VALUES (?, ?, ?, ?, ?)",
		runID, stage, string(kind), s.now().UTC().UnixMilli(), string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// EventsForRun returns the events of one run ordered by insertion.
func (s *SQLiteStore) EventsForRun(ctx context.Context, runID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, stage, kind, timestamp, payload FROM events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			kind    string
			ts      int64
			payload sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Stage, &kind, &ts, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = EventKind(kind)
		e.Timestamp = time.UnixMilli(ts).UTC()
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// RecentRuns returns the newest runs first. A non-positive limit returns all runs.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, library, version, started_at, finished_at, status, pr_url FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
			status   string
		)
		if err := rows.Scan(&r.ID, &r.Library, &r.Version, &started, &finished, &status, &r.PRURL); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64).UTC()
		}
		r.Status = RunStatus(status)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// PublishedPR returns the most recent PR URL recorded for (library, version).
func (s *SQLiteStore) PublishedPR(ctx context.Context, library, version string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var url string
	err := s.db.QueryRowContext(ctx,
		"SELECT pr_url FROM runs WHERE library = ? AND version = ? AND pr_url != '' ORDER BY started_at DESC, rowid DESC LIMIT 1",
		library, version,
	).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query published pr: %w", err)
	}
	return url, nil
}

func newRunID() string { return uuid.NewString() }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)

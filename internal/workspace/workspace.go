package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/logfields"
)

// Subdirectories of a run workspace.
const (
	SourceDir     = "source"     // documentation source checkout
	OutputDir     = "output"     // generated icons and docset
	AggregatorDir = "aggregator" // fork of the aggregator repository
)

// Manager owns the working directory of a pipeline run.
type Manager struct {
	baseDir    string
	root       string
	persistent bool // If true, baseDir is reused across runs and never removed
}

// NewManager creates a manager that makes a fresh temporary directory per run.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// NewPersistentManager creates a manager that reuses dir for every run.
// Subdirectories survive between runs, so a contribute-only run can pick up
// the docset an earlier build-only run produced.
func NewPersistentManager(dir string) *Manager {
	return &Manager{baseDir: dir, root: dir, persistent: true}
}

// ForPath picks a persistent manager when dir is set, otherwise an ephemeral one.
func ForPath(dir string) *Manager {
	if dir == "" {
		return NewManager("")
	}
	return NewPersistentManager(dir)
}

// Create prepares an empty workspace for the given run.
func (m *Manager) Create(runID string) error {
	if m.persistent {
		if err := os.MkdirAll(m.root, 0o750); err != nil {
			return derrors.WorkspaceError("create", err).WithContext("path", m.root)
		}
		slog.Info("Using persistent workspace", logfields.Path(m.root), logfields.RunID(runID))
		return nil
	}

	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return derrors.WorkspaceError("create", err).WithContext("path", m.baseDir)
	}
	dir, err := os.MkdirTemp(m.baseDir, fmt.Sprintf("docsetbot-%s-", shortID(runID)))
	if err != nil {
		return derrors.WorkspaceError("create", err).WithContext("path", m.baseDir)
	}
	m.root = dir
	slog.Info("Created workspace", logfields.Path(dir), logfields.RunID(runID))
	return nil
}

// Root returns the workspace directory, or "" before Create.
func (m *Manager) Root() string {
	return m.root
}

// Path returns a subdirectory path of the workspace without creating it.
func (m *Manager) Path(name string) string {
	if m.root == "" {
		return ""
	}
	return filepath.Join(m.root, name)
}

// Subdir creates and returns a subdirectory of the workspace.
func (m *Manager) Subdir(name string) (string, error) {
	if m.root == "" {
		return "", derrors.WorkspaceError("subdir", fmt.Errorf("workspace not created"))
	}
	dir := filepath.Join(m.root, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", derrors.WorkspaceError("subdir", err).WithContext("path", dir)
	}
	return dir, nil
}

// Reset empties a subdirectory, creating it if needed. Clones require empty targets.
func (m *Manager) Reset(name string) (string, error) {
	if m.root == "" {
		return "", derrors.WorkspaceError("reset", fmt.Errorf("workspace not created"))
	}
	dir := filepath.Join(m.root, name)
	if err := os.RemoveAll(dir); err != nil {
		return "", derrors.WorkspaceError("reset", err).WithContext("path", dir)
	}
	return m.Subdir(name)
}

// Persistent reports whether the workspace outlives a run.
func (m *Manager) Persistent() bool {
	return m.persistent
}

// Cleanup removes an ephemeral workspace. Persistent workspaces are kept.
func (m *Manager) Cleanup() error {
	if m.root == "" {
		return nil
	}
	if m.persistent {
		slog.Debug("Keeping persistent workspace", logfields.Path(m.root))
		return nil
	}
	if err := os.RemoveAll(m.root); err != nil {
		return derrors.WorkspaceError("cleanup", err).WithContext("path", m.root)
	}
	slog.Info("Cleaned up workspace", logfields.Path(m.root))
	m.root = ""
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "run"
	}
	return id
}

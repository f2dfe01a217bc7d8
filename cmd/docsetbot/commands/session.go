package commands

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docsetbot/internal/config"
	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/events"
	"git.home.luguber.info/inful/docsetbot/internal/logfields"
	"git.home.luguber.info/inful/docsetbot/internal/pipeline"
	"git.home.luguber.info/inful/docsetbot/internal/state"
)

// session holds what a command needs once the configuration is loaded.
type session struct {
	cfg     *config.Config
	baseDir string
	store   state.Store
	events  events.Publisher
}

// loadConfig reads and validates the configuration for scope.
func (c *CLI) loadConfig(scope config.Scope) (*config.Config, error) {
	if _, err := os.Stat(c.Config); errors.Is(err, fs.ErrNotExist) {
		return nil, derrors.ConfigNotFound(c.Config)
	}
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, "cannot load configuration").
			WithContext("path", c.Config)
	}
	if err := config.Validate(cfg, scope); err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, err.Error())
	}
	c.applyLogging(cfg)
	return cfg, nil
}

// open loads the configuration and connects the state store and event bus.
func (c *CLI) open(scope config.Scope) (*session, error) {
	cfg, err := c.loadConfig(scope)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, baseDir: filepath.Dir(c.Config)}

	store, err := state.NewSQLiteStore(s.resolve(cfg.Storage.StateDB))
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryFileSystem, derrors.SeverityFatal, "cannot open state database").
			WithContext("path", s.resolve(cfg.Storage.StateDB))
	}
	s.store = store

	pub, err := events.FromConfig(cfg)
	if err != nil {
		// Publishing docsets does not depend on the event bus.
		slog.Warn("Event publishing disabled", logfields.Error(err))
		pub = events.Noop{}
	}
	s.events = pub
	return s, nil
}

func (s *session) resolve(path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

func (s *session) pipeline(ctx context.Context, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	base := []pipeline.Option{
		pipeline.WithStore(s.store),
		pipeline.WithPublisher(s.events),
		pipeline.WithBaseDir(s.baseDir),
	}
	return pipeline.New(ctx, s.cfg, append(base, opts...)...)
}

func (s *session) Close() {
	if err := s.events.Close(); err != nil {
		slog.Warn("Failed to close event publisher", logfields.Error(err))
	}
	if err := s.store.Close(); err != nil {
		slog.Warn("Failed to close state database", logfields.Error(err))
	}
}

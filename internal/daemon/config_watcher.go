package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docsetbot/internal/config"
	"git.home.luguber.info/inful/docsetbot/internal/logfields"
)

// defaultDebounce absorbs the burst of events editors produce when saving.
const defaultDebounce = 2 * time.Second

// ReloadFunc applies a freshly loaded and validated configuration.
type ReloadFunc func(ctx context.Context, cfg *config.Config) error

// ConfigWatcher monitors the configuration file and triggers reloads.
type ConfigWatcher struct {
	configPath string
	reload     ReloadFunc
	debounce   time.Duration
	watcher    *fsnotify.Watcher
	stopOnce   sync.Once
	stopChan   chan struct{}
}

// NewConfigWatcher creates a watcher for configPath. A non-positive debounce uses the default.
func NewConfigWatcher(configPath string, debounce time.Duration, reload ReloadFunc) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &ConfigWatcher{
		configPath: absPath,
		reload:     reload,
		debounce:   debounce,
		watcher:    watcher,
		stopChan:   make(chan struct{}),
	}, nil
}

// Start watches the directory holding the configuration file. Editors often
// save by replacing the file, which would drop a watch on the file itself.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}
	slog.Info("Watching configuration", logfields.Path(cw.configPath), slog.Duration("debounce", cw.debounce))
	go cw.loop(ctx)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.stopChan)
		err = cw.watcher.Close()
	})
	return err
}

// loop collapses bursts of file events into one reload per quiet period.
func (cw *ConfigWatcher) loop(ctx context.Context) {
	name := filepath.Base(cw.configPath)
	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Remove) {
				slog.Warn("Config file removed, keeping the current configuration", logfields.Path(event.Name))
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				slog.Debug("Config file changed", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				settle.Reset(cw.debounce)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		case <-settle.C:
			if err := cw.apply(ctx); err != nil {
				slog.Error("Configuration not reloaded", logfields.Error(err))
			}
		}
	}
}

// apply loads, validates and hands over the configuration on disk.
func (cw *ConfigWatcher) apply(ctx context.Context) error {
	cfg, err := config.Load(cw.configPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg, config.ScopeAll); err != nil {
		return err
	}
	if err := cw.reload(ctx, cfg); err != nil {
		return err
	}
	slog.Info("Configuration reloaded", logfields.Path(cw.configPath))
	return nil
}

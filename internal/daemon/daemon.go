package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docsetbot/internal/config"
	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/events"
	"git.home.luguber.info/inful/docsetbot/internal/logfields"
	"git.home.luguber.info/inful/docsetbot/internal/metrics"
	"git.home.luguber.info/inful/docsetbot/internal/pipeline"
	"git.home.luguber.info/inful/docsetbot/internal/state"
)

// jobName names the scheduled release check.
const jobName = "release-check"

// shutdownTimeout bounds the admin server drain on exit.
const shutdownTimeout = 10 * time.Second

// ErrTickInProgress is returned when a tick starts while another is running.
var ErrTickInProgress = errors.New("a release check is already running")

// Runner is the pipeline surface the daemon drives.
type Runner interface {
	Check(ctx context.Context, write bool) (*pipeline.CheckResult, error)
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// PipelineFactory builds a pipeline for the current configuration.
type PipelineFactory func(ctx context.Context, cfg *config.Config) (Runner, error)

// TickStatus summarizes the most recent scheduled check.
type TickStatus struct {
	At      time.Time `json:"at"`
	Current string    `json:"current,omitempty"`
	Latest  string    `json:"latest,omitempty"`
	Ran     bool      `json:"ran"`
	RunID   string    `json:"run_id,omitempty"`
	PRURL   string    `json:"pr_url,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Daemon schedules release checks and serves the admin endpoints.
type Daemon struct {
	configPath  string
	baseDir     string
	store       state.Store
	events      events.Publisher
	registry    *prom.Registry
	recorder    metrics.Recorder
	newPipeline PipelineFactory
	scheduler   *Scheduler
	debounce    time.Duration

	mu        sync.RWMutex
	cfg       *config.Config
	addr      string
	startTime time.Time
	last      *TickStatus
	ticking   atomic.Bool
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithStore sets the run state store shared with every pipeline run.
func WithStore(s state.Store) Option { return func(d *Daemon) { d.store = s } }

// WithPublisher sets the event publisher shared with every pipeline run.
func WithPublisher(p events.Publisher) Option { return func(d *Daemon) { d.events = p } }

// WithRegistry sets the Prometheus registry served on /metrics.
func WithRegistry(reg *prom.Registry) Option { return func(d *Daemon) { d.registry = reg } }

// WithPipelineFactory replaces how pipelines are built.
func WithPipelineFactory(f PipelineFactory) Option { return func(d *Daemon) { d.newPipeline = f } }

// WithBaseDir sets the directory the pin file is resolved against.
// Defaults to the directory of the configuration file.
func WithBaseDir(dir string) Option { return func(d *Daemon) { d.baseDir = dir } }

// WithDebounce sets how long configuration edits settle before a reload.
func WithDebounce(wait time.Duration) Option { return func(d *Daemon) { d.debounce = wait } }

// New creates a daemon. configPath may be empty to disable live reload.
func New(configPath string, cfg *config.Config, opts ...Option) (*Daemon, error) {
	if err := config.Validate(cfg, config.ScopeAll); err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, "invalid daemon configuration")
	}
	sched, err := NewScheduler()
	if err != nil {
		return nil, err
	}
	d := &Daemon{configPath: configPath, cfg: cfg, scheduler: sched}
	if configPath != "" {
		d.baseDir = filepath.Dir(configPath)
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.store == nil {
		d.store = state.Discard{}
	}
	if d.events == nil {
		d.events = events.Noop{}
	}
	if d.registry == nil {
		d.registry = metrics.NewRegistry()
	}
	d.recorder = metrics.NewPrometheusRecorder(d.registry)
	if d.newPipeline == nil {
		d.newPipeline = d.defaultPipeline
	}
	return d, nil
}

func (d *Daemon) defaultPipeline(ctx context.Context, cfg *config.Config) (Runner, error) {
	opts := []pipeline.Option{
		pipeline.WithStore(d.store),
		pipeline.WithPublisher(d.events),
		pipeline.WithRecorder(d.recorder),
	}
	if d.baseDir != "" {
		opts = append(opts, pipeline.WithBaseDir(d.baseDir))
	}
	return pipeline.New(ctx, cfg, opts...)
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Addr returns the admin server address once it is listening.
func (d *Daemon) Addr() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.addr
}

// LastTick returns the most recent tick, or nil before the first one.
func (d *Daemon) LastTick() *TickStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.last == nil {
		return nil
	}
	last := *d.last
	return &last
}

// Run schedules the release check, serves the admin endpoints and watches the
// configuration until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.Config()
	if _, err := d.scheduler.ScheduleCron(jobName, cfg.Schedule.Cron, func() { d.scheduledTick(ctx) }); err != nil {
		return derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, "cannot schedule release check").
			WithContext("cron", cfg.Schedule.Cron)
	}

	ln, err := net.Listen("tcp", cfg.Monitoring.AdminAddr)
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryRuntime, derrors.SeverityFatal, "cannot listen on admin address").
			WithContext("addr", cfg.Monitoring.AdminAddr)
	}
	srv := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	d.mu.Lock()
	d.addr = ln.Addr().String()
	d.startTime = time.Now()
	d.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	d.scheduler.Start(ctx)

	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d.debounce, d.Reload)
		if err != nil {
			slog.Warn("Configuration watcher disabled", logfields.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			slog.Warn("Configuration watcher disabled", logfields.Error(err))
			_ = watcher.Stop()
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	slog.Info("Daemon started",
		slog.String("admin_addr", d.Addr()),
		slog.String("cron", cfg.Schedule.Cron),
		slog.Time("next_run", d.scheduler.NextRun()),
		logfields.Library(cfg.Library.Name))

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = derrors.Wrap(err, derrors.CategoryRuntime, derrors.SeverityFatal, "admin server failed")
		}
	}

	slog.Info("Daemon stopping")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Admin server shutdown failed", logfields.Error(err))
	}
	if err := d.scheduler.Stop(shutdownCtx); err != nil {
		slog.Warn("Scheduler shutdown failed", logfields.Error(err))
	}
	return runErr
}

func (d *Daemon) scheduledTick(ctx context.Context) {
	status, err := d.Tick(ctx)
	switch {
	case errors.Is(err, ErrTickInProgress):
		slog.Debug("Skipping overlapping release check")
	case err != nil:
		slog.Error("Scheduled release check failed", logfields.Error(err))
	default:
		slog.Info("Scheduled release check finished",
			logfields.Version(status.Latest),
			slog.Bool("ran", status.Ran),
			logfields.URL(status.PRURL))
	}
}

// Tick checks for a new release, updating the pin, and runs every stage when
// the pin moved or the pinned version has no recorded pull request.
func (d *Daemon) Tick(ctx context.Context) (TickStatus, error) {
	if !d.ticking.CompareAndSwap(false, true) {
		return TickStatus{}, ErrTickInProgress
	}
	defer d.ticking.Store(false)

	status := TickStatus{At: time.Now().UTC()}
	err := d.tick(ctx, &status)
	if err != nil {
		status.Error = err.Error()
	}
	d.mu.Lock()
	d.last = &status
	d.mu.Unlock()
	return status, err
}

func (d *Daemon) tick(ctx context.Context, status *TickStatus) error {
	cfg := d.Config()
	p, err := d.newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	check, err := p.Check(ctx, true)
	if err != nil {
		return err
	}
	status.Current, status.Latest = check.Current, check.Latest
	log := slog.With(logfields.Library(cfg.Library.Name), logfields.Version(check.Latest))

	if !check.Changed {
		published, err := d.store.PublishedPR(ctx, cfg.Library.Name, check.Latest)
		if err != nil {
			return derrors.Wrap(err, derrors.CategoryRuntime, derrors.SeverityError, "state lookup failed")
		}
		if published != "" {
			log.Info("Docset already published", logfields.URL(published))
			status.PRURL = published
			return nil
		}
		log.Info("Pinned version has no published docset yet")
	}

	status.Ran = true
	res, err := p.Run(ctx, pipeline.Request{})
	if res != nil {
		status.RunID, status.PRURL = res.RunID, res.PRURL
	}
	return err
}

// Reload applies a new configuration. The library cannot change while running.
func (d *Daemon) Reload(_ context.Context, cfg *config.Config) error {
	current := d.Config()
	if cfg.Library.Name != current.Library.Name {
		return fmt.Errorf("library change from %q to %q requires a restart", current.Library.Name, cfg.Library.Name)
	}
	if cfg.Monitoring.AdminAddr != current.Monitoring.AdminAddr {
		slog.Warn("Admin address change requires a restart", slog.String("admin_addr", cfg.Monitoring.AdminAddr))
	}
	if d.scheduler.Cron() != "" {
		if err := d.scheduler.Reschedule(cfg.Schedule.Cron); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	return nil
}

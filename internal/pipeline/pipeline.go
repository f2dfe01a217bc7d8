package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docsetbot/internal/config"
	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/events"
	"git.home.luguber.info/inful/docsetbot/internal/forge"
	"git.home.luguber.info/inful/docsetbot/internal/generate"
	"git.home.luguber.info/inful/docsetbot/internal/git"
	"git.home.luguber.info/inful/docsetbot/internal/logfields"
	"git.home.luguber.info/inful/docsetbot/internal/metrics"
	"git.home.luguber.info/inful/docsetbot/internal/pin"
	"git.home.luguber.info/inful/docsetbot/internal/retry"
	"git.home.luguber.info/inful/docsetbot/internal/state"
	"git.home.luguber.info/inful/docsetbot/internal/workspace"
)

// Forge is the subset of the forge client the pipeline uses.
type Forge interface {
	LatestRelease(ctx context.Context, repo forge.Repo) (forge.Release, error)
	GetRepository(ctx context.Context, repo forge.Repo) (forge.Repository, error)
	EnsureFork(ctx context.Context, upstream forge.Repo) (forge.Repository, error)
	CreatePullRequest(ctx context.Context, upstream forge.Repo, spec forge.PullRequestSpec) (*forge.PullRequest, error)
}

// Git is the subset of the git client the pipeline uses.
type Git interface {
	CloneAtTag(ctx context.Context, url, tag, dir string) (string, error)
	PrepareContribution(ctx context.Context, opts git.Contribution) error
	CommitAll(dir, subpath, message string, sig git.Signature) (string, error)
	Push(ctx context.Context, dir, branch string) error
}

// Pipeline runs stages for one configured library.
type Pipeline struct {
	cfg      *config.Config
	baseDir  string
	forge    Forge
	git      Git
	gen      *generate.Generator
	runner   generate.Runner
	ws       *workspace.Manager
	store    state.Store
	events   events.Publisher
	recorder metrics.Recorder
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithForge sets the forge client.
func WithForge(f Forge) Option { return func(p *Pipeline) { p.forge = f } }

// WithGit sets the git client.
func WithGit(g Git) Option { return func(p *Pipeline) { p.git = g } }

// WithRunner sets the command runner used for the docs build and the generator.
func WithRunner(r generate.Runner) Option { return func(p *Pipeline) { p.runner = r } }

// WithWorkspace sets the workspace manager.
func WithWorkspace(ws *workspace.Manager) Option { return func(p *Pipeline) { p.ws = ws } }

// WithStore sets the run state store.
func WithStore(s state.Store) Option { return func(p *Pipeline) { p.store = s } }

// WithPublisher sets the event publisher.
func WithPublisher(pub events.Publisher) Option { return func(p *Pipeline) { p.events = pub } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(p *Pipeline) { p.recorder = r } }

// WithBaseDir sets the directory relative paths in the configuration (the pin
// file) are resolved against. Defaults to the working directory.
func WithBaseDir(dir string) Option { return func(p *Pipeline) { p.baseDir = dir } }

// New builds a pipeline. Collaborators not supplied through options get
// production defaults derived from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, baseDir: ".", now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	policy := retry.FromConfig(cfg)
	if p.forge == nil {
		var fopts []forge.Option
		if cfg.GitHub.APIURL != "" {
			fopts = append(fopts, forge.WithAPIURL(cfg.GitHub.APIURL))
		}
		fopts = append(fopts, forge.WithRetryPolicy(policy))
		client, err := forge.NewClient(ctx, cfg.GitHub.Token, fopts...)
		if err != nil {
			return nil, err
		}
		p.forge = client
	}
	if p.git == nil {
		p.git = git.NewClient(git.WithToken(cfg.GitHub.Token), git.WithRetryPolicy(policy))
	}
	if p.ws == nil {
		p.ws = workspace.ForPath(p.resolve(cfg.Storage.Workspace))
	}
	if p.store == nil {
		p.store = state.Discard{}
	}
	if p.events == nil {
		p.events = events.Noop{}
	}
	if p.recorder == nil {
		p.recorder = metrics.NoopRecorder{}
	}
	p.gen = generate.New(cfg, p.runner)
	return p, nil
}

// Request selects what a run does.
type Request struct {
	Stages []StageName
	Tags   []Tag
	// Force re-runs contribute stages even when a pull request for the pinned
	// version is already recorded.
	Force bool
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Name     StageName
	Result   metrics.ResultLabel
	Duration time.Duration
	Err      error
}

// Result summarizes a run.
type Result struct {
	RunID   string
	Library string
	Version string
	Stages  []StageResult
	PRURL   string
	// Skipped is true when every selected stage was skipped.
	Skipped bool
}

// PinPath is the resolved location of the version pin file.
func (p *Pipeline) PinPath() string {
	return p.resolve(p.cfg.Library.PinFile)
}

// resolve anchors a configured relative path at the base directory.
func (p *Pipeline) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.baseDir, path)
}

// Run executes the requested stages in order and stops at the first failure.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	selected, err := ResolveStages(req.Stages, req.Tags)
	if err != nil {
		return nil, err
	}
	if !p.ws.Persistent() {
		if missing := missingInputs(selected); len(missing) > 0 {
			return nil, derrors.ValidationFailed("stages", "stage inputs are not produced by this run; set storage.workspace to keep them between runs").
				WithContext("missing", missing)
		}
	}

	pinned, err := pin.ParseFile(p.PinPath())
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, "cannot read version pin").
			WithContext("path", p.PinPath())
	}
	lib := p.cfg.Library.Name

	skipContribute := ""
	if !req.Force && hasTag(selected, TagContribute) {
		existing, err := p.store.PublishedPR(ctx, lib, pinned.Version)
		if err != nil {
			return nil, derrors.Wrap(err, derrors.CategoryRuntime, derrors.SeverityError, "state lookup failed")
		}
		skipContribute = existing
	}

	run, err := p.store.StartRun(ctx, lib, pinned.Version)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryRuntime, derrors.SeverityError, "cannot record run")
	}
	rc := &runContext{ctx: ctx, id: run.ID, pin: pinned, version: pinned.Version}
	res := &Result{RunID: run.ID, Library: lib, Version: pinned.Version, PRURL: skipContribute}
	log := slog.With(logfields.RunID(run.ID), logfields.Library(lib), logfields.Version(pinned.Version))
	log.Info("Run started", slog.Any("stages", selected))
	p.publish(ctx, events.RunEvent{Kind: events.KindRunStarted, RunID: run.ID, Library: lib, Version: pinned.Version})

	started := p.now()
	runErr := p.runStages(rc, selected, skipContribute, res, log)
	p.recorder.ObserveRunDuration(p.now().Sub(started))

	if rc.pr != nil {
		res.PRURL = rc.pr.URL
	}
	status, outcome := state.RunSucceeded, metrics.ResultSuccess
	switch {
	case runErr != nil && ctx.Err() != nil:
		status, outcome = state.RunFailed, metrics.ResultCanceled
	case runErr != nil:
		status, outcome = state.RunFailed, metrics.ResultFailed
	case res.Skipped:
		status, outcome = state.RunSkipped, metrics.ResultSkipped
	}
	p.recorder.IncRunOutcome(outcome)

	prURL := ""
	if rc.pr != nil {
		prURL = rc.pr.URL
	}
	// The run may already be canceled; the bookkeeping still has to land.
	finishCtx := context.WithoutCancel(ctx)
	if err := p.store.FinishRun(finishCtx, run.ID, status, prURL); err != nil {
		log.Warn("Failed to record run result", logfields.Error(err))
	}
	finished := events.RunEvent{Kind: events.KindRunFinished, RunID: run.ID, Library: lib, Version: pinned.Version, Status: string(status), PRURL: res.PRURL}
	if runErr != nil {
		finished.Error = runErr.Error()
	}
	p.publish(finishCtx, finished)

	if runErr != nil {
		log.Error("Run failed", logfields.Error(runErr))
		return res, runErr
	}
	log.Info("Run finished", slog.String("status", string(status)), logfields.URL(res.PRURL))
	return res, nil
}

func (p *Pipeline) runStages(rc *runContext, selected []StageName, skipContribute string, res *Result, log *slog.Logger) error {
	if err := p.ws.Create(rc.id); err != nil {
		return err
	}
	defer func() {
		if err := p.ws.Cleanup(); err != nil {
			log.Warn("Workspace cleanup failed", logfields.Error(err))
		}
	}()

	skipped := 0
	for _, name := range selected {
		def, _ := lookupStage(name)
		if def.tag == TagContribute && skipContribute != "" {
			log.Info("Pull request already published, skipping stage", logfields.Stage(string(name)), logfields.URL(skipContribute))
			p.recordStage(rc, name, state.EventStageSkipped, metrics.ResultSkipped, 0, map[string]string{"pr_url": skipContribute})
			res.Stages = append(res.Stages, StageResult{Name: name, Result: metrics.ResultSkipped})
			skipped++
			continue
		}
		if err := rc.ctx.Err(); err != nil {
			return err
		}

		p.recordStage(rc, name, state.EventStageStarted, "", 0, nil)
		log.Info("Stage started", logfields.Stage(string(name)))
		start := p.now()
		err := def.run(p, rc)
		d := p.now().Sub(start)
		p.recorder.ObserveStageDuration(string(name), d)

		if err != nil {
			label := metrics.ResultFailed
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				label = metrics.ResultCanceled
			}
			p.recordStage(rc, name, state.EventStageFailed, label, d, map[string]string{"error": err.Error()})
			res.Stages = append(res.Stages, StageResult{Name: name, Result: label, Duration: d, Err: err})
			return derrors.StageFailed(string(name), err)
		}
		p.recordStage(rc, name, state.EventStageSucceeded, metrics.ResultSuccess, d, rc.takeNotes())
		res.Stages = append(res.Stages, StageResult{Name: name, Result: metrics.ResultSuccess, Duration: d})
		log.Info("Stage finished", logfields.Stage(string(name)), logfields.DurationMS(float64(d.Milliseconds())))
	}
	res.Skipped = len(selected) > 0 && skipped == len(selected)
	return nil
}

// recordStage writes a stage transition to the store, the event bus and metrics.
func (p *Pipeline) recordStage(rc *runContext, name StageName, kind state.EventKind, result metrics.ResultLabel, d time.Duration, payload map[string]string) {
	ctx := context.WithoutCancel(rc.ctx)
	if d > 0 {
		if payload == nil {
			payload = map[string]string{}
		}
		payload["duration_ms"] = fmt.Sprint(d.Milliseconds())
	}
	if err := p.store.AppendEvent(ctx, rc.id, string(name), kind, payload); err != nil {
		slog.Warn("Failed to record stage event", logfields.RunID(rc.id), logfields.Stage(string(name)), logfields.Error(err))
	}
	if result != "" {
		p.recorder.IncStageResult(string(name), result)
	}

	ev := events.RunEvent{RunID: rc.id, Library: p.cfg.Library.Name, Version: rc.version, Stage: string(name)}
	switch kind {
	case state.EventStageStarted:
		ev.Kind = events.KindStageStarted
	case state.EventStageSucceeded:
		ev.Kind = events.KindStageDone
	case state.EventStageSkipped:
		ev.Kind = events.KindStageSkipped
		ev.PRURL = payload["pr_url"]
	case state.EventStageFailed:
		ev.Kind = events.KindStageFailed
		ev.Error = payload["error"]
	}
	p.publish(ctx, ev)
}

func (p *Pipeline) publish(ctx context.Context, ev events.RunEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = p.now().UTC()
	}
	if err := p.events.Publish(ctx, ev); err != nil {
		slog.Warn("Failed to publish event", slog.String("kind", string(ev.Kind)), logfields.Error(err))
	}
}

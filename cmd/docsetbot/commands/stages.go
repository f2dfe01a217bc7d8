package commands

import (
	"context"
	"fmt"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"git.home.luguber.info/inful/docsetbot/internal/config"
	"git.home.luguber.info/inful/docsetbot/internal/pipeline"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct{}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	return runStages(g, root, pipeline.Request{Tags: []pipeline.Tag{pipeline.TagBuild}})
}

// ContributeCmd implements the 'contribute' command.
type ContributeCmd struct {
	Force bool `help:"Contribute even when a pull request for the pinned version was already opened"`
}

func (c *ContributeCmd) Run(g *Global, root *CLI) error {
	return runStages(g, root, pipeline.Request{Tags: []pipeline.Tag{pipeline.TagContribute}, Force: c.Force})
}

// RunCmd implements the 'run' command.
type RunCmd struct {
	Stage []string `short:"s" help:"Stage to run; repeat to select several (default: all). One of ${stages}" placeholder:"NAME"`
	Force bool     `help:"Contribute even when a pull request for the pinned version was already opened"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	req := pipeline.Request{Force: r.Force}
	for _, name := range r.Stage {
		req.Stages = append(req.Stages, pipeline.StageName(name))
	}
	return runStages(g, root, req)
}

// StageList is the help text value for ${stages}.
func StageList() string {
	names := make([]string, 0, len(pipeline.StageNames()))
	for _, name := range pipeline.StageNames() {
		names = append(names, string(name))
	}
	return strings.Join(names, ", ")
}

// scopeFor returns the configuration a stage selection needs.
func scopeFor(req pipeline.Request) (config.Scope, error) {
	selected, err := pipeline.ResolveStages(req.Stages, req.Tags)
	if err != nil {
		return 0, err
	}
	contribute := pipeline.StagesForTag(pipeline.TagContribute)
	var scope config.Scope
	for _, name := range selected {
		if slices.Contains(contribute, name) {
			scope |= config.ScopeContribute
		} else {
			scope |= config.ScopeBuild
		}
	}
	return scope, nil
}

func runStages(g *Global, root *CLI, req pipeline.Request) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scope, err := scopeFor(req)
	if err != nil {
		return err
	}
	s, err := root.open(scope)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.pipeline(ctx)
	if err != nil {
		return err
	}
	res, runErr := p.Run(ctx, req)
	if res != nil {
		_, _ = fmt.Fprintln(g.Out, renderResult(res))
	}
	return runErr
}

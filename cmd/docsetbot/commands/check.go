package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docsetbot/internal/config"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct {
	Write bool `short:"w" help:"Update the pin file when a newer release exists"`
}

func (c *CheckCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := root.open(config.ScopeBuild)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.pipeline(ctx)
	if err != nil {
		return err
	}
	res, err := p.Check(ctx, c.Write)
	if err != nil {
		return err
	}

	lib := s.cfg.Library.Name
	switch {
	case !res.Changed:
		_, _ = fmt.Fprintf(g.Out, "%s %s is the latest release\n", lib, res.Current)
	case res.Written:
		_, _ = fmt.Fprintf(g.Out, "%s %s -> %s (release %s), pin updated\n", lib, res.Current, res.Latest, res.Release.Tag)
	default:
		_, _ = fmt.Fprintf(g.Out, "%s %s -> %s (release %s), run with --write to update the pin\n", lib, res.Current, res.Latest, res.Release.Tag)
	}
	return nil
}

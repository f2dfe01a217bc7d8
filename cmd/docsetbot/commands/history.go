package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/docsetbot/internal/config"
	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of runs to list (0 for all)" default:"10"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	if h.Limit < 0 {
		return derrors.ValidationFailed("limit", "must not be negative")
	}
	s, err := root.open(config.Scope(0))
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.store.RecentRuns(context.Background(), h.Limit)
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryRuntime, derrors.SeverityError, "cannot list runs")
	}
	_, _ = fmt.Fprintln(g.Out, renderRuns(runs))
	return nil
}

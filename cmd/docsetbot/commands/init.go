package commands

import (
	"fmt"

	"git.home.luguber.info/inful/docsetbot/internal/config"
	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	if err := config.Init(root.Config, i.Force); err != nil {
		return derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, err.Error())
	}
	_, _ = fmt.Fprintf(g.Out, "Wrote example configuration to %s\n", root.Config)
	_, _ = fmt.Fprintln(g.Out, "Set library, author and publisher, then export GITHUB_TOKEN.")
	return nil
}

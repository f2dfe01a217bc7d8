package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docsetbot/cmd/docsetbot/commands"
	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("docsetbot"),
		kong.Description("Generate Dash docsets for new upstream releases and open pull requests for them."),
		kong.UsageOnError(),
		kong.Vars{
			"version": version.String(),
			"stages":  commands.StageList(),
		},
	)

	err := parser.Run(commands.NewGlobal(), cli)
	derrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}

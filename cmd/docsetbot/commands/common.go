package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docsetbot/internal/config"
)

// Global carries process-wide collaborators into every command.
type Global struct {
	Out io.Writer
}

// NewGlobal writes command output to stdout.
func NewGlobal() *Global {
	return &Global{Out: os.Stdout}
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"docsetbot.yaml" type:"path"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log output format: text or json (default from configuration)"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init       InitCmd       `cmd:"" help:"Write an example configuration file"`
	Check      CheckCmd      `cmd:"" help:"Compare the pinned version with the latest upstream release"`
	Build      BuildCmd      `cmd:"" help:"Clone the documentation source and generate the docset"`
	Contribute ContributeCmd `cmd:"" help:"Publish the generated docset to the aggregator repository"`
	Run        RunCmd        `cmd:"" help:"Run every stage, or only the selected ones"`
	Daemon     DaemonCmd     `cmd:"" help:"Check for releases on a schedule and publish new docsets"`
	History    HistoryCmd    `cmd:"" help:"List recent runs"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(NewLogger(os.Stderr, config.NormalizeLogFormat(c.LogFormat), c.level("")))
	return nil
}

// applyLogging re-applies logging once the configuration is known. Flags win
// over the configuration.
func (c *CLI) applyLogging(cfg *config.Config) {
	format := cfg.Monitoring.Logging.Format
	if c.LogFormat != "" {
		format = config.NormalizeLogFormat(c.LogFormat)
	}
	slog.SetDefault(NewLogger(os.Stderr, format, c.level(cfg.Monitoring.Logging.Level)))
}

func (c *CLI) level(configured config.LogLevel) slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch configured {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, format config.LogFormat, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

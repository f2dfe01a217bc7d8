package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docsetbot/internal/config"
	"git.home.luguber.info/inful/docsetbot/internal/daemon"
	"git.home.luguber.info/inful/docsetbot/internal/metrics"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	NoWatch bool `name:"no-watch" help:"Do not reload the configuration when the file changes"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	s, err := root.open(config.ScopeAll)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	watchPath := root.Config
	if d.NoWatch {
		watchPath = ""
	}
	dm, err := daemon.New(watchPath, s.cfg,
		daemon.WithStore(s.store),
		daemon.WithPublisher(s.events),
		daemon.WithRegistry(metrics.NewRegistry()),
		daemon.WithBaseDir(s.baseDir),
	)
	if err != nil {
		return err
	}

	slog.Info("Starting daemon mode", slog.String("config", root.Config))
	if err := dm.Run(ctx); err != nil {
		return err
	}
	slog.Info("Daemon stopped successfully")
	return nil
}

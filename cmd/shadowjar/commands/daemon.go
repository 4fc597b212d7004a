package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/shadowjar/internal/config"
	"git.home.luguber.info/inful/shadowjar/internal/daemon"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	NoWatch bool `help:"Do not reload build targets when the configuration file changes"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	watchPath := root.Config
	if d.NoWatch {
		watchPath = ""
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunDaemon(ctx, cfg, watchPath)
}

// RunDaemon runs the daemon until ctx is canceled.
func RunDaemon(ctx context.Context, cfg *config.Config, configPath string) error {
	slog.Info("Starting daemon mode",
		slog.String("build_dir", cfg.Paths.BuildDir),
		slog.String("db_path", cfg.Paths.DBPath))

	d, err := daemon.New(cfg, configPath)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}

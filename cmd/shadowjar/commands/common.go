// Package commands implements the shadowjar subcommands.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/shadowjar/internal/config"
)

// Global carries state shared by every subcommand.
type Global struct {
	Out io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"shadowjar.yaml" env:"SHADOWJAR_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Daemon   DaemonCmd   `cmd:"" help:"Run the scheduled build pipeline and the query surface"`
	Build    BuildCmd    `cmd:"" help:"Run the build pipeline once and exit"`
	Versions VersionsCmd `cmd:"" help:"List cataloged versions of a flavor"`
	Record   RecordCmd   `cmd:"" help:"Record a version in the catalog without building it"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; it installs a logger until the
// configuration supplies its own settings.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// LoadConfig loads the configuration file and reconfigures logging from it.
// -v overrides the configured level.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	logging := cfg.Monitoring.Logging
	if c.Verbose {
		logging.Level = config.LogLevelDebug
	}
	slog.SetDefault(config.NewLogger(os.Stderr, logging))
	return cfg, nil
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/shadowjar/cmd/shadowjar/commands"
	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("shadowjar"),
		kong.Description("Builds Minecraft server artifacts on a schedule and serves the version catalog."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	if err := parser.Run(&commands.Global{Out: os.Stdout}, cli); err != nil {
		adapter := errors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
		os.Exit(adapter.Report(os.Stderr, err))
	}
}

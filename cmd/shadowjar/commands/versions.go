package commands

import (
	"context"
	"fmt"
	"io"

	"git.home.luguber.info/inful/shadowjar/internal/catalog"
	"git.home.luguber.info/inful/shadowjar/internal/config"
	"git.home.luguber.info/inful/shadowjar/internal/flavor"
	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
)

// ErrNoVersion is returned by 'versions --latest' for a flavor with no records.
var ErrNoVersion = errors.NotFoundError("no version recorded").Build()

// VersionsCmd implements the 'versions' command.
type VersionsCmd struct {
	Flavor string `arg:"" help:"Flavor to list (Spigot, Paper, Fabric)"`
	Latest bool   `help:"Print only the newest version"`
}

func (v *VersionsCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	return RunVersions(context.Background(), g.out(), cfg, v.Flavor, v.Latest)
}

// RunVersions prints cataloged versions of flavorID, one per line.
func RunVersions(ctx context.Context, w io.Writer, cfg *config.Config, flavorID string, latest bool) error {
	f, err := flavor.Parse(flavorID)
	if err != nil {
		return err
	}
	cat, err := catalog.Open(cfg.Paths.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	if latest {
		v, ok, err := cat.Latest(ctx, string(f))
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoVersion.WithContext("flavor", string(f))
		}
		_, _ = fmt.Fprintln(w, v)
		return nil
	}

	versions, err := cat.List(ctx, string(f))
	if err != nil {
		return err
	}
	for _, v := range versions {
		_, _ = fmt.Fprintln(w, v)
	}
	return nil
}

// RecordCmd implements the 'record' command, seeding the catalog by hand.
type RecordCmd struct {
	Flavor  string `arg:"" help:"Flavor of the artifact"`
	Version string `arg:"" help:"Version of the artifact"`
}

func (r *RecordCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	return RunRecord(context.Background(), g.out(), cfg, r.Flavor, r.Version)
}

// RunRecord appends (flavor, version) to the catalog.
func RunRecord(ctx context.Context, w io.Writer, cfg *config.Config, flavorID, version string) error {
	f, err := flavor.Parse(flavorID)
	if err != nil {
		return err
	}
	if version == "" {
		return errors.ValidationError("version must not be empty").Build()
	}
	cat, err := catalog.Open(cfg.Paths.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	if err := cat.Record(ctx, string(f), version); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "recorded %s %s\n", f, version)
	return nil
}

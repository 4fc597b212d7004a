package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/shadowjar/internal/catalog"
	"git.home.luguber.info/inful/shadowjar/internal/config"
	"git.home.luguber.info/inful/shadowjar/internal/flavor"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
	"git.home.luguber.info/inful/shadowjar/internal/notify"
	"git.home.luguber.info/inful/shadowjar/internal/pipeline"
)

// BuildCmd implements the 'build' command: one pipeline run, no scheduler.
type BuildCmd struct {
	Flavor  string `short:"f" help:"Build only this flavor instead of the configured targets"`
	Version string `name:"mc-version" help:"Minecraft version to build with --flavor" default:"latest"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunBuild(ctx, g.out(), cfg, b.Flavor, b.Version)
}

// RunBuild performs one pipeline run and prints a summary to w. An empty
// flavorID builds the configured targets.
func RunBuild(ctx context.Context, w io.Writer, cfg *config.Config, flavorID, version string) error {
	var opts []pipeline.Option
	if flavorID != "" {
		f, err := flavor.Parse(flavorID)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithTargets([]pipeline.Target{{Flavor: string(f), Version: version}}))
	}

	cat, err := catalog.Open(cfg.Paths.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	pub := notify.FromConfig(cfg.Events)
	defer func() { _ = pub.Close() }()
	opts = append(opts, pipeline.WithPublisher(pub))

	p, err := pipeline.NewFromConfig(cfg, cat, nil, opts...)
	if err != nil {
		return err
	}

	report, runErr := p.Run(ctx)
	printReport(w, report)
	if n := p.PendingRecords(); n > 0 {
		slog.Error("Built artifacts could not be cataloged", slog.Int("pending", n))
	}
	if runErr != nil {
		slog.Error("Build run finished with failures", logfields.RunID(report.RunID), logfields.Error(runErr))
	}
	return runErr
}

func printReport(w io.Writer, r *pipeline.RunReport) {
	for _, a := range r.Built {
		_, _ = fmt.Fprintf(w, "built    %s %s -> %s\n", a.Flavor, a.Version, a.Path)
		for _, warn := range a.Warnings {
			_, _ = fmt.Fprintf(w, "  warning: %s\n", warn)
		}
	}
	for _, t := range r.Skipped {
		_, _ = fmt.Fprintf(w, "skipped  %s (already cataloged)\n", t)
	}
	for _, f := range r.Failed {
		_, _ = fmt.Fprintf(w, "failed   %s: %v\n", f.Target, f.Err)
	}
	_, _ = fmt.Fprintf(w, "run %s: %d built, %d skipped, %d failed in %s\n",
		r.RunID, len(r.Built), len(r.Skipped), len(r.Failed), r.Duration.Round(time.Millisecond))
}

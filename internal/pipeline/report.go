package pipeline

import (
	"time"

	"git.home.luguber.info/inful/shadowjar/internal/config"
	"git.home.luguber.info/inful/shadowjar/internal/metrics"
	"git.home.luguber.info/inful/shadowjar/internal/tool"
)

// Target is one (flavor, version) to build. Version may be "latest".
type Target struct {
	Flavor  string
	Version string
}

func (t Target) String() string { return t.Flavor + "@" + t.Version }

// TargetsFromConfig converts configured targets.
func TargetsFromConfig(in []config.Target) []Target {
	out := make([]Target, 0, len(in))
	for _, t := range in {
		out = append(out, Target{Flavor: t.Flavor, Version: t.Version})
	}
	return out
}

// Artifact describes one successfully built and recorded target.
type Artifact struct {
	Target     Target
	Flavor     string
	Version    string
	Path       string
	ToolStatus tool.Status
	Warnings   []string
	Duration   time.Duration
}

// Failure pairs a target with the error that stopped it.
type Failure struct {
	Target Target
	Err    error
}

// RunReport summarizes one run.
type RunReport struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Built    []Artifact
	Skipped  []Target
	Failed   []Failure
	// Flushed counts queued catalog records written at the start of the run.
	Flushed int
	Canceled bool
}

// Outcome classifies the run for metrics.
func (r *RunReport) Outcome() metrics.RunOutcomeLabel {
	switch {
	case r.Canceled:
		return metrics.RunCanceled
	case len(r.Failed) == 0:
		return metrics.RunSuccess
	case len(r.Built) > 0 || len(r.Skipped) > 0:
		return metrics.RunPartial
	default:
		return metrics.RunFailed
	}
}

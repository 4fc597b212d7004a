package pipeline

import (
	"git.home.luguber.info/inful/shadowjar/internal/build"
	"git.home.luguber.info/inful/shadowjar/internal/catalog"
	"git.home.luguber.info/inful/shadowjar/internal/config"
	"git.home.luguber.info/inful/shadowjar/internal/flavor"
	"git.home.luguber.info/inful/shadowjar/internal/metrics"
	"git.home.luguber.info/inful/shadowjar/internal/process"
	"git.home.luguber.info/inful/shadowjar/internal/retry"
	"git.home.luguber.info/inful/shadowjar/internal/tool"
	"git.home.luguber.info/inful/shadowjar/internal/upstream"
	"git.home.luguber.info/inful/shadowjar/internal/workspace"
)

// NewFromConfig assembles the production pipeline: shell runner, tool
// acquirer, executor and manifest resolver, all configured from cfg. The build
// root is created here; failing to create it is fatal.
func NewFromConfig(cfg *config.Config, cat catalog.Writer, recorder metrics.Recorder, opts ...Option) (*Pipeline, error) {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	ws := workspace.NewManager(cfg.Paths.BuildDir)
	if err := ws.EnsureRoot(); err != nil {
		return nil, err
	}

	runner := process.NewShellRunner(cfg.Build.Shell)
	acq := tool.NewAcquirer(cfg.Paths.ToolsDir, runner,
		tool.WithUserAgent(cfg.Build.UserAgent),
		tool.WithMinSize(cfg.Build.MinToolSize),
		tool.WithSelfCheckTimeout(cfg.Build.SelfCheckTimeoutDuration()),
		tool.WithRecorder(recorder),
	)
	exec := build.NewExecutor(cfg.Paths.ToolsDir, runner)

	urls := map[flavor.Flavor]string{}
	for _, f := range flavor.All() {
		if u := cfg.ToolURL(string(f)); u != "" {
			urls[f] = u
		}
	}

	base := []Option{
		WithTargets(TargetsFromConfig(cfg.Build.Targets)),
		WithResolver(upstream.NewClient(cfg.Build.VersionManifestURL, cfg.Build.UserAgent, nil)),
		WithRecorder(recorder),
		WithRetryPolicy(retry.FromConfig(cfg.Build.CatalogRetry)),
		WithToolURLs(urls),
		WithCleanup(cfg.Build.CleanupEnabled()),
		WithSkipExisting(cfg.Build.SkipExisting),
	}
	return New(ws, acq, exec, cat, append(base, opts...)...), nil
}

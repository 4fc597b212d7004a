package pipeline

import (
	"context"
	stderrors "errors"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/shadowjar/internal/build"
	"git.home.luguber.info/inful/shadowjar/internal/catalog"
	"git.home.luguber.info/inful/shadowjar/internal/flavor"
	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
	"git.home.luguber.info/inful/shadowjar/internal/metrics"
	"git.home.luguber.info/inful/shadowjar/internal/notify"
	"git.home.luguber.info/inful/shadowjar/internal/retry"
	"git.home.luguber.info/inful/shadowjar/internal/tool"
	"git.home.luguber.info/inful/shadowjar/internal/upstream"
	"git.home.luguber.info/inful/shadowjar/internal/workspace"
)

// Stage names used in logs and metrics.
const (
	StageResolve   = "resolve"
	StageAcquire   = "acquire"
	StageExecute   = "execute"
	StageReconcile = "reconcile"
	StageRecord    = "record"
	StageNotify    = "notify"
)

// ToolAcquirer ensures a verified build tool is on disk.
type ToolAcquirer interface {
	Ensure(ctx context.Context, d flavor.Descriptor) (tool.Status, error)
}

// Executor runs a build in a workspace.
type Executor interface {
	Execute(ctx context.Context, d flavor.Descriptor, workspaceDir, version string) (*build.Outcome, error)
}

// VersionResolver maps "latest" to a concrete version.
type VersionResolver interface {
	Resolve(ctx context.Context, version string) (string, error)
}

// ErrNoResolver is returned for a "latest" target when no resolver is configured.
var ErrNoResolver = errors.ConfigError("target uses latest but no version resolver is configured").Build()

type pendingRecord struct {
	flavor  string
	version string
}

// Pipeline builds the configured targets. Run must not be called concurrently;
// the scheduler guarantees a single run at a time.
type Pipeline struct {
	workspaces *workspace.Manager
	acquirer   ToolAcquirer
	executor   Executor
	catalog    catalog.Writer

	resolver     VersionResolver
	publisher    notify.Publisher
	recorder     metrics.Recorder
	policy       retry.Policy
	toolURLs     map[flavor.Flavor]string
	cleanup      bool
	skipExisting bool

	mu      sync.Mutex
	targets []Target
	pending []pendingRecord
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithTargets(t []Target) Option             { return func(p *Pipeline) { p.targets = slices.Clone(t) } }
func WithResolver(r VersionResolver) Option     { return func(p *Pipeline) { p.resolver = r } }
func WithPublisher(pub notify.Publisher) Option { return func(p *Pipeline) { p.publisher = pub } }
func WithRecorder(r metrics.Recorder) Option    { return func(p *Pipeline) { p.recorder = r } }
func WithRetryPolicy(rp retry.Policy) Option    { return func(p *Pipeline) { p.policy = rp } }
func WithCleanup(enabled bool) Option           { return func(p *Pipeline) { p.cleanup = enabled } }
func WithSkipExisting(skip bool) Option         { return func(p *Pipeline) { p.skipExisting = skip } }

// WithToolURLs overrides tool download sources per flavor.
func WithToolURLs(urls map[flavor.Flavor]string) Option {
	return func(p *Pipeline) {
		for f, u := range urls {
			p.toolURLs[f] = u
		}
	}
}

// New wires a pipeline from its stage implementations.
func New(ws *workspace.Manager, acq ToolAcquirer, exec Executor, cat catalog.Writer, opts ...Option) *Pipeline {
	p := &Pipeline{
		workspaces: ws,
		acquirer:   acq,
		executor:   exec,
		catalog:    cat,
		publisher:  notify.NoopPublisher{},
		recorder:   metrics.NoopRecorder{},
		policy:     retry.DefaultPolicy(),
		toolURLs:   map[flavor.Flavor]string{},
		cleanup:    true,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetTargets replaces the targets used by subsequent runs.
func (p *Pipeline) SetTargets(t []Target) {
	p.mu.Lock()
	p.targets = slices.Clone(t)
	p.mu.Unlock()
}

// Targets returns the current targets.
func (p *Pipeline) Targets() []Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.targets)
}

// PendingRecords returns how many built artifacts still wait for the catalog.
func (p *Pipeline) PendingRecords() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Run builds every target once. Target failures are joined into the returned
// error; the report is always non-nil.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString(), Started: time.Now()}
	log := slog.With(logfields.RunID(report.RunID))
	log.Info("Pipeline run started")

	report.Flushed = p.flushPending(ctx, log)

	var errs []error
	for _, t := range p.Targets() {
		if err := ctx.Err(); err != nil {
			report.Canceled = true
			errs = append(errs, err)
			break
		}
		artifact, skipped, err := p.runTarget(ctx, log, report.RunID, t)
		switch {
		case err != nil:
			report.Failed = append(report.Failed, Failure{Target: t, Err: err})
			errs = append(errs, err)
			log.Error("Target failed", slog.String("target", t.String()), logfields.Error(err))
		case skipped:
			report.Skipped = append(report.Skipped, t)
		default:
			report.Built = append(report.Built, *artifact)
		}
	}
	if ctx.Err() != nil {
		report.Canceled = true
	}

	report.Duration = time.Since(report.Started)
	p.recorder.ObserveRunDuration(report.Duration)
	p.recorder.IncRunOutcome(report.Outcome())
	log.Info("Pipeline run finished",
		slog.String("outcome", string(report.Outcome())),
		slog.Int("built", len(report.Built)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("failed", len(report.Failed)),
		logfields.Duration(report.Duration))

	return report, stderrors.Join(errs...)
}

func (p *Pipeline) runTarget(ctx context.Context, runLog *slog.Logger, runID string, t Target) (*Artifact, bool, error) {
	start := time.Now()
	log := runLog.With(logfields.Flavor(t.Flavor))

	var version string
	var desc flavor.Descriptor
	err := p.stage(StageResolve, func() error {
		v, err := p.resolveVersion(ctx, t.Version)
		if err != nil {
			return err
		}
		version = v
		d, err := flavor.Resolve(t.Flavor, version)
		if err != nil {
			return err
		}
		desc = flavor.WithToolURL(d, p.toolURLs[d.Flavor])
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	flavorName := string(desc.Flavor)
	log = log.With(logfields.Version(version))

	if p.skipExisting {
		has, err := p.catalog.Has(ctx, flavorName, version)
		if err != nil {
			log.Warn("Could not check catalog, building anyway", logfields.Error(err))
		} else if has {
			log.Info("Already cataloged, skipping")
			p.recorder.IncStageResult(StageExecute, metrics.ResultSkipped)
			return nil, true, nil
		}
	}

	dir, err := p.workspaces.Path(flavorName, version)
	if err != nil {
		return nil, false, err
	}

	var status tool.Status
	if err := p.stage(StageAcquire, func() error {
		status, err = p.acquirer.Ensure(ctx, desc)
		return err
	}); err != nil {
		return nil, false, err
	}
	log.Debug("Tool ready", logfields.Tool(desc.ToolFilename), slog.String("status", string(status)))

	var outcome *build.Outcome
	if err := p.stage(StageExecute, func() error {
		outcome, err = p.executor.Execute(ctx, desc, dir, version)
		return err
	}); err != nil {
		return nil, false, err
	}

	if p.cleanup {
		_ = p.stage(StageReconcile, func() error {
			rep, err := workspace.Reconcile(dir, filepath.Base(outcome.ArtifactPath))
			if err != nil {
				// Cleanup never blocks cataloging a built artifact.
				log.Warn("Workspace reconciliation incomplete", logfields.Path(dir), logfields.Error(err))
				return err
			}
			log.Debug("Workspace reconciled", slog.Int("removed", len(rep.Removed)))
			return nil
		})
	}

	catalogVersion := outcome.CatalogVersion()
	if err := p.stage(StageRecord, func() error {
		return p.record(ctx, log, flavorName, catalogVersion)
	}); err != nil {
		return nil, false, err
	}

	artifact := &Artifact{
		Target:     t,
		Flavor:     flavorName,
		Version:    catalogVersion,
		Path:       outcome.ArtifactPath,
		ToolStatus: status,
		Warnings:   outcome.Warnings,
		Duration:   time.Since(start),
	}

	_ = p.stage(StageNotify, func() error {
		err := p.publisher.PublishBuildCompleted(ctx, notify.BuildCompleted{
			RunID:            runID,
			Flavor:           flavorName,
			Version:          catalogVersion,
			RequestedVersion: t.Version,
			Artifact:         outcome.ArtifactPath,
			DurationMS:       artifact.Duration.Milliseconds(),
			CompletedAt:      time.Now().UTC(),
		})
		if err != nil {
			log.Warn("Failed to publish build event", logfields.Error(err))
		}
		return err
	})

	log.Info("Target built and cataloged", logfields.Path(outcome.ArtifactPath), logfields.Duration(artifact.Duration))
	return artifact, false, nil
}

func (p *Pipeline) resolveVersion(ctx context.Context, v string) (string, error) {
	if !strings.EqualFold(v, upstream.LatestAlias) {
		return v, nil
	}
	if p.resolver == nil {
		return "", ErrNoResolver
	}
	return p.resolver.Resolve(ctx, v)
}

// record writes to the catalog with backoff. When retries run out the record
// is queued for the next run and the error is still reported.
func (p *Pipeline) record(ctx context.Context, log *slog.Logger, flavorName, version string) error {
	err := p.policy.Do(ctx, func() error {
		return p.catalog.Record(ctx, flavorName, version)
	}, func(attempt int, err error) {
		p.recorder.IncCatalogRetry()
		log.Warn("Catalog write failed, retrying", logfields.Attempt(attempt), logfields.Error(err))
	})
	if err == nil {
		return nil
	}
	p.mu.Lock()
	p.pending = append(p.pending, pendingRecord{flavor: flavorName, version: version})
	n := len(p.pending)
	p.mu.Unlock()
	p.recorder.SetPendingRecords(n)
	log.Error("Catalog write exhausted retries, queued for next run", logfields.Error(err), slog.Int("pending", n))
	return err
}

// flushPending records queued artifacts, keeping any that still fail.
func (p *Pipeline) flushPending(ctx context.Context, log *slog.Logger) int {
	p.mu.Lock()
	queued := p.pending
	p.pending = nil
	p.mu.Unlock()
	if len(queued) == 0 {
		return 0
	}

	var still []pendingRecord
	for _, r := range queued {
		if err := p.catalog.Record(ctx, r.flavor, r.version); err != nil {
			log.Warn("Queued catalog write failed again",
				logfields.Flavor(r.flavor), logfields.Version(r.version), logfields.Error(err))
			still = append(still, r)
		}
	}

	p.mu.Lock()
	p.pending = append(still, p.pending...)
	n := len(p.pending)
	p.mu.Unlock()
	p.recorder.SetPendingRecords(n)

	flushed := len(queued) - len(still)
	if flushed > 0 {
		log.Info("Recorded queued catalog entries", slog.Int("count", flushed))
	}
	return flushed
}

// stage times fn and records its result under name.
func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.recorder.ObserveStageDuration(name, time.Since(start))
	result := metrics.ResultSuccess
	switch {
	case err == nil:
	case stderrors.Is(err, context.Canceled):
		result = metrics.ResultCanceled
	case errors.GetSeverity(err) == errors.SeverityWarning:
		result = metrics.ResultWarning
	default:
		result = metrics.ResultFailed
	}
	p.recorder.IncStageResult(name, result)
	return err
}

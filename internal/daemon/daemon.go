// Package daemon runs the pipeline on an interval next to the query surface,
// and hot-reloads build targets when the configuration file changes.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/shadowjar/internal/catalog"
	"git.home.luguber.info/inful/shadowjar/internal/config"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
	"git.home.luguber.info/inful/shadowjar/internal/metrics"
	"git.home.luguber.info/inful/shadowjar/internal/notify"
	"git.home.luguber.info/inful/shadowjar/internal/pipeline"
	"git.home.luguber.info/inful/shadowjar/internal/server"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// Daemon owns every long-lived component of a running shadowjar process.
type Daemon struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configPath string

	catalog   *catalog.Catalog
	pipeline  *pipeline.Pipeline
	scheduler *Scheduler
	server    *server.Server
	watcher   *ConfigWatcher
	publisher notify.Publisher
	registry  *prom.Registry
}

// New wires the daemon from cfg. Failing to create the build root or to open
// the catalog is fatal; an unreachable NATS server is not.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	d := &Daemon{cfg: cfg, configPath: configPath, registry: prom.NewRegistry()}
	d.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(d.registry)

	cat, err := catalog.Open(cfg.Paths.DBPath)
	if err != nil {
		return nil, err
	}
	d.catalog = cat

	d.publisher = notify.FromConfig(cfg.Events)

	p, err := pipeline.NewFromConfig(cfg, cat, recorder, pipeline.WithPublisher(d.publisher))
	if err != nil {
		d.closeStores()
		return nil, err
	}
	d.pipeline = p

	run := func(ctx context.Context) error {
		_, err := p.Run(ctx)
		return err
	}
	d.scheduler, err = NewScheduler(run, cfg.Build.IntervalDuration(),
		WithInitialDelay(cfg.Build.InitialDelayDuration()),
		WithSchedulerRecorder(recorder),
	)
	if err != nil {
		d.closeStores()
		return nil, err
	}

	srvOpts := []server.Option{server.WithScheduler(d.scheduler)}
	if cfg.Monitoring.Metrics.Enabled {
		srvOpts = append(srvOpts, server.WithMetrics(cfg.Monitoring.Metrics.Path, d.registry))
	}
	d.server = server.New(cfg.API.Addr(), cat, srvOpts...)

	if configPath != "" {
		d.watcher, err = NewConfigWatcher(configPath, d.ReloadConfig, DefaultReloadDebounce)
		if err != nil {
			d.closeStores()
			return nil, err
		}
	}
	return d, nil
}

// Run starts the scheduler, config watcher and query surface and blocks until
// ctx is canceled or the listener fails.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.scheduler.Start(ctx); err != nil {
		d.closeStores()
		return err
	}
	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			slog.Warn("Config hot reload disabled", logfields.Error(err))
			d.watcher = nil
		}
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- d.server.ListenAndServe() }()

	slog.Info("Daemon started",
		slog.String("addr", d.server.Addr()),
		slog.Duration("interval", d.scheduler.Interval()),
		slog.Int("targets", len(d.pipeline.Targets())))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	d.shutdown(shutdownCtx)
	return runErr
}

func (d *Daemon) shutdown(ctx context.Context) {
	slog.Info("Daemon stopping")
	if err := d.server.Shutdown(ctx); err != nil {
		slog.Warn("Query surface shutdown incomplete", logfields.Error(err))
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if err := d.scheduler.Stop(ctx); err != nil {
		slog.Warn("Scheduler shutdown incomplete", logfields.Error(err))
	}
	if n := d.pipeline.PendingRecords(); n > 0 {
		slog.Warn("Uncataloged builds dropped at shutdown", slog.Int("pending", n))
	}
	d.closeStores()
	slog.Info("Daemon stopped")
}

func (d *Daemon) closeStores() {
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			slog.Warn("Event publisher close failed", logfields.Error(err))
		}
	}
	if d.catalog != nil {
		if err := d.catalog.Close(); err != nil {
			slog.Warn("Catalog close failed", logfields.Error(err))
		}
	}
}

// ReloadConfig applies the hot-reloadable parts of cfg: build targets and the
// run interval. Other changes take effect on restart.
func (d *Daemon) ReloadConfig(cfg *config.Config) {
	d.mu.Lock()
	old := d.cfg
	d.cfg = cfg
	d.mu.Unlock()

	targets := pipeline.TargetsFromConfig(cfg.Build.Targets)
	d.pipeline.SetTargets(targets)
	d.scheduler.SetInterval(cfg.Build.IntervalDuration())
	slog.Info("Build targets reloaded",
		slog.Int("targets", len(targets)),
		slog.Duration("interval", d.scheduler.Interval()))

	if old.Paths != cfg.Paths || old.API != cfg.API || old.Events != cfg.Events {
		slog.Warn("Path, API and event settings changed; restart to apply")
	}
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Scheduler exposes the run scheduler.
func (d *Daemon) Scheduler() *Scheduler { return d.scheduler }

// Server exposes the query surface.
func (d *Daemon) Server() *server.Server { return d.server }

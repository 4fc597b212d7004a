package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/shadowjar/internal/config"
	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
)

// DefaultReloadDebounce collapses the burst of events editors emit on save.
const DefaultReloadDebounce = 2 * time.Second

// ReloadFunc receives a freshly loaded and validated configuration.
type ReloadFunc func(cfg *config.Config)

// ConfigWatcher reloads the configuration file when it changes on disk.
// It watches the containing directory so that atomic renames are seen.
type ConfigWatcher struct {
	path     string
	reload   ReloadFunc
	debounce time.Duration

	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// NewConfigWatcher creates a watcher for configPath.
func NewConfigWatcher(configPath string, reload ReloadFunc, debounce time.Duration) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to resolve config path").
			WithContext("path", configPath).Build()
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	return &ConfigWatcher{
		path:     abs,
		reload:   reload,
		debounce: debounce,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns once the watch is registered.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to watch config directory").
			WithContext("path", dir).Build()
	}
	w.watcher = watcher

	slog.Info("Config watcher started", logfields.Path(w.path))
	go w.loop(ctx)
	return nil
}

// Stop ends the watch and waits for the event loop to exit.
func (w *ConfigWatcher) Stop() {
	if w.watcher == nil {
		return
	}
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
	}
	<-w.done

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *ConfigWatcher) loop(ctx context.Context) {
	defer close(w.done)
	defer func() { _ = w.watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("Config file changed", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", logfields.Error(err))
		}
	}
}

func (w *ConfigWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.apply)
}

func (w *ConfigWatcher) apply() {
	select {
	case <-w.stop:
		return
	default:
	}
	cfg, err := config.Load(w.path)
	if err != nil {
		slog.Error("Config reload rejected; keeping current configuration",
			logfields.Path(w.path), logfields.Error(err))
		return
	}
	slog.Info("Config reloaded", logfields.Path(w.path))
	w.reload(cfg)
}

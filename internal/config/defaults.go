package config

import (
	"path/filepath"
	"strings"
)

// Default values.
const (
	DefaultInterval           = "6h"
	DefaultSelfCheckTimeout   = "30s"
	DefaultMinToolSize        = 100000
	DefaultUserAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultVersionManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"
	DefaultBuildDir           = "Builds"
	DefaultDBPath             = "versions.db"
	DefaultAPIBind            = "127.0.0.1"
	DefaultAPIPort            = 8080
	DefaultMetricsPath        = "/metrics"
	DefaultEventSubject       = "shadowjar.build.completed"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// ApplyDefaults runs every domain applier in order.
func ApplyDefaults(cfg *Config) error {
	appliers := []DefaultApplier{
		&BuildDefaultApplier{},
		&PathsDefaultApplier{},
		&APIDefaultApplier{},
		&MonitoringDefaultApplier{},
		&EventsDefaultApplier{},
	}
	for _, a := range appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

// BuildDefaultApplier handles build configuration defaults.
type BuildDefaultApplier struct{}

func (b *BuildDefaultApplier) Domain() string { return "build" }

func (b *BuildDefaultApplier) ApplyDefaults(cfg *Config) error {
	bc := &cfg.Build
	if len(bc.Targets) == 0 {
		bc.Targets = []Target{{Flavor: "Spigot", Version: "latest"}}
	}
	for i := range bc.Targets {
		bc.Targets[i].Flavor = strings.TrimSpace(bc.Targets[i].Flavor)
		bc.Targets[i].Version = strings.TrimSpace(bc.Targets[i].Version)
		if bc.Targets[i].Version == "" {
			bc.Targets[i].Version = "latest"
		}
	}
	if bc.Interval == "" {
		bc.Interval = DefaultInterval
	}
	if bc.SelfCheckTimeout == "" {
		bc.SelfCheckTimeout = DefaultSelfCheckTimeout
	}
	if bc.MinToolSize == 0 {
		bc.MinToolSize = DefaultMinToolSize
	}
	if bc.UserAgent == "" {
		bc.UserAgent = DefaultUserAgent
	}
	if bc.VersionManifestURL == "" {
		bc.VersionManifestURL = DefaultVersionManifestURL
	}

	r := &bc.CatalogRetry
	if r.MaxRetries <= 0 {
		r.MaxRetries = 3
	}
	if r.Backoff == "" {
		r.Backoff = RetryBackoffExponential
	} else if m := NormalizeRetryBackoff(string(r.Backoff)); m != "" {
		r.Backoff = m
	}
	if r.InitialDelay == "" {
		r.InitialDelay = "500ms"
	}
	if r.MaxDelay == "" {
		r.MaxDelay = "10s"
	}
	return nil
}

// PathsDefaultApplier handles filesystem path defaults.
type PathsDefaultApplier struct{}

func (p *PathsDefaultApplier) Domain() string { return "paths" }

func (p *PathsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Paths.BuildDir == "" {
		cfg.Paths.BuildDir = DefaultBuildDir
	}
	if cfg.Paths.ToolsDir == "" {
		cfg.Paths.ToolsDir = filepath.Join(cfg.Paths.BuildDir, "tools")
	}
	if cfg.Paths.DBPath == "" {
		cfg.Paths.DBPath = DefaultDBPath
	}
	return nil
}

// APIDefaultApplier handles query surface defaults.
type APIDefaultApplier struct{}

func (a *APIDefaultApplier) Domain() string { return "api" }

func (a *APIDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.API.Bind == "" {
		cfg.API.Bind = DefaultAPIBind
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = DefaultAPIPort
	}
	return nil
}

// MonitoringDefaultApplier handles metrics and logging defaults.
type MonitoringDefaultApplier struct{}

func (m *MonitoringDefaultApplier) Domain() string { return "monitoring" }

func (m *MonitoringDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Monitoring.Metrics.Path == "" {
		cfg.Monitoring.Metrics.Path = DefaultMetricsPath
	}
	cfg.Monitoring.Logging.Level = NormalizeLogLevel(string(cfg.Monitoring.Logging.Level))
	cfg.Monitoring.Logging.Format = NormalizeLogFormat(string(cfg.Monitoring.Logging.Format))
	if cfg.Debug.Enabled {
		cfg.Monitoring.Logging.Level = LogLevelDebug
	}
	return nil
}

// EventsDefaultApplier handles notification defaults.
type EventsDefaultApplier struct{}

func (e *EventsDefaultApplier) Domain() string { return "events" }

func (e *EventsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultEventSubject
	}
	return nil
}

// Package config loads, defaults and validates the shadowjar YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
)

// CurrentVersion is the configuration schema version written by Init.
const CurrentVersion = "1.0"

// Config is the root configuration document.
type Config struct {
	Version    string                `yaml:"version"`
	Build      BuildConfig           `yaml:"build"`
	Tools      map[string]ToolConfig `yaml:"tools,omitempty"`
	Paths      PathsConfig           `yaml:"paths"`
	API        APIConfig             `yaml:"api"`
	Monitoring MonitoringConfig      `yaml:"monitoring"`
	Events     EventsConfig          `yaml:"events"`
	Debug      DebugConfig           `yaml:"debug"`
}

// Target is one (flavor, version) pair built on every run. Version may be "latest".
type Target struct {
	Flavor  string `yaml:"flavor"`
	Version string `yaml:"version"`
}

func (t Target) String() string { return t.Flavor + "@" + t.Version }

// BuildConfig controls the scheduled pipeline.
type BuildConfig struct {
	Targets            []Target    `yaml:"targets"`
	Interval           string      `yaml:"interval"`
	InitialDelay       string      `yaml:"initial_delay,omitempty"`
	EnableCleanup      *bool       `yaml:"enable_cleanup,omitempty"`
	SkipExisting       bool        `yaml:"skip_existing"`
	Shell              string      `yaml:"shell,omitempty"`
	SelfCheckTimeout   string      `yaml:"self_check_timeout"`
	MinToolSize        int64       `yaml:"min_tool_size"`
	UserAgent          string      `yaml:"user_agent"`
	VersionManifestURL string      `yaml:"version_manifest_url"`
	CatalogRetry       RetryConfig `yaml:"catalog_retry"`
}

// RetryConfig describes the backoff applied to catalog writes.
type RetryConfig struct {
	MaxRetries   int              `yaml:"max_retries"`
	Backoff      RetryBackoffMode `yaml:"backoff"`
	InitialDelay string           `yaml:"initial_delay"`
	MaxDelay     string           `yaml:"max_delay"`
}

// ToolConfig overrides the download source of a flavor's build tool.
type ToolConfig struct {
	URL string `yaml:"url"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	BuildDir string `yaml:"build_dir"`
	ToolsDir string `yaml:"tools_dir"`
	DBPath   string `yaml:"db_path"`
}

// APIConfig configures the query surface listener.
type APIConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (a APIConfig) Addr() string { return fmt.Sprintf("%s:%d", a.Bind, a.Port) }

// MonitoringConfig represents metrics and logging configuration.
type MonitoringConfig struct {
	Metrics MonitoringMetrics `yaml:"metrics"`
	Logging MonitoringLogging `yaml:"logging"`
}

// MonitoringMetrics represents metrics configuration.
type MonitoringMetrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MonitoringLogging represents logging configuration.
type MonitoringLogging struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// EventsConfig configures build-completed notifications. An empty NATSURL disables publishing.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// DebugConfig toggles verbose diagnostics.
type DebugConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CleanupEnabled reports whether workspaces are reconciled after a build. Defaults to true.
func (b BuildConfig) CleanupEnabled() bool {
	return b.EnableCleanup == nil || *b.EnableCleanup
}

// IntervalDuration returns the parsed run interval.
func (b BuildConfig) IntervalDuration() time.Duration { return mustDuration(b.Interval) }

// InitialDelayDuration returns the delay before the first run (zero when unset).
func (b BuildConfig) InitialDelayDuration() time.Duration { return mustDuration(b.InitialDelay) }

// SelfCheckTimeoutDuration returns the tool self-check timeout.
func (b BuildConfig) SelfCheckTimeoutDuration() time.Duration {
	return mustDuration(b.SelfCheckTimeout)
}

// InitialDelayDuration returns the first retry delay.
func (r RetryConfig) InitialDelayDuration() time.Duration { return mustDuration(r.InitialDelay) }

// MaxDelayDuration returns the retry delay cap.
func (r RetryConfig) MaxDelayDuration() time.Duration { return mustDuration(r.MaxDelay) }

// ToolURL returns the configured download URL for flavor, or "" when not overridden.
func (c *Config) ToolURL(flavor string) string {
	if c.Tools == nil {
		return ""
	}
	return c.Tools[strings.ToLower(flavor)].URL
}

// mustDuration parses values already checked by Validate; invalid input yields zero.
func mustDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Load reads configPath, expands ${ENV} references, applies defaults and validates.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).Fatal().Build()
	}
	return Parse(data)
}

// Parse decodes a YAML document and returns the defaulted, validated configuration.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}
	if cfg.Version != CurrentVersion {
		return nil, errors.ConfigError("unsupported configuration version").
			WithContext("version", cfg.Version).
			WithContext("expected", CurrentVersion).Build()
	}
	if err := ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no file involved.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	_ = ApplyDefaults(cfg)
	return cfg
}

// loadEnvFiles loads .env then .env.local. Variables already present in the
// process environment are never overridden.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		_ = godotenv.Load(name)
	}
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	example := Default()
	example.Build.Targets = []Target{
		{Flavor: "Spigot", Version: "latest"},
		{Flavor: "Fabric", Version: "1.21.4"},
	}
	example.Tools = map[string]ToolConfig{
		"paper": {},
	}
	example.Events = EventsConfig{NATSURL: "${NATS_URL}", Subject: DefaultEventSubject}

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	header := "# shadowjar configuration\n# Targets are rebuilt every build.interval; version \"latest\" follows the newest release.\n" +
		"# Paper has no default tool source: set tools.paper.url to a Paperclip jar before adding a Paper target.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).Build()
	}
	return nil
}

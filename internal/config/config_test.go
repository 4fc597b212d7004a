package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("version: \"1.0\"\n"))
	require.NoError(t, err)

	require.Equal(t, []Target{{Flavor: "Spigot", Version: "latest"}}, cfg.Build.Targets)
	require.Equal(t, 6*time.Hour, cfg.Build.IntervalDuration())
	require.Equal(t, 30*time.Second, cfg.Build.SelfCheckTimeoutDuration())
	require.Zero(t, cfg.Build.InitialDelayDuration())
	require.EqualValues(t, 100000, cfg.Build.MinToolSize)
	require.True(t, cfg.Build.CleanupEnabled())
	require.Contains(t, cfg.Build.UserAgent, "Mozilla/5.0")
	require.Equal(t, "Builds", cfg.Paths.BuildDir)
	require.Equal(t, filepath.Join("Builds", "tools"), cfg.Paths.ToolsDir)
	require.Equal(t, "versions.db", cfg.Paths.DBPath)
	require.Equal(t, "127.0.0.1:8080", cfg.API.Addr())
	require.Equal(t, LogLevelInfo, cfg.Monitoring.Logging.Level)
	require.Equal(t, LogFormatText, cfg.Monitoring.Logging.Format)
	require.Equal(t, RetryBackoffExponential, cfg.Build.CatalogRetry.Backoff)
	require.Equal(t, 3, cfg.Build.CatalogRetry.MaxRetries)
}

func TestParseFullDocument(t *testing.T) {
	t.Setenv("SHADOWJAR_TEST_NATS", "nats://127.0.0.1:4222")
	doc := `
version: "1.0"
build:
  targets:
    - flavor: spigot
      version: 1.21.4
    - flavor: Fabric
  interval: 30m
  initial_delay: 5s
  enable_cleanup: false
  skip_existing: true
  catalog_retry:
    backoff: LINEAR
    max_retries: 5
    initial_delay: 1s
    max_delay: 4s
tools:
  paper:
    url: https://example.invalid/paperclip.jar
paths:
  build_dir: /srv/builds
api:
  bind: 0.0.0.0
  port: 9000
monitoring:
  logging:
    level: WARN
    format: json
events:
  nats_url: ${SHADOWJAR_TEST_NATS}
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	require.Equal(t, []Target{{Flavor: "spigot", Version: "1.21.4"}, {Flavor: "Fabric", Version: "latest"}}, cfg.Build.Targets)
	require.Equal(t, 30*time.Minute, cfg.Build.IntervalDuration())
	require.Equal(t, 5*time.Second, cfg.Build.InitialDelayDuration())
	require.False(t, cfg.Build.CleanupEnabled())
	require.True(t, cfg.Build.SkipExisting)
	require.Equal(t, RetryBackoffLinear, cfg.Build.CatalogRetry.Backoff)
	require.Equal(t, 4*time.Second, cfg.Build.CatalogRetry.MaxDelayDuration())
	require.Equal(t, "https://example.invalid/paperclip.jar", cfg.ToolURL("Paper"))
	require.Empty(t, cfg.ToolURL("Spigot"))
	require.Equal(t, filepath.Join("/srv/builds", "tools"), cfg.Paths.ToolsDir)
	require.Equal(t, "0.0.0.0:9000", cfg.API.Addr())
	require.Equal(t, LogLevelWarn, cfg.Monitoring.Logging.Level)
	require.Equal(t, LogFormatJSON, cfg.Monitoring.Logging.Format)
	require.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATSURL)
	require.Equal(t, DefaultEventSubject, cfg.Events.Subject)
}

func TestDebugForcesDebugLevel(t *testing.T) {
	cfg, err := Parse([]byte("debug:\n  enabled: true\n"))
	require.NoError(t, err)
	require.Equal(t, LogLevelDebug, cfg.Monitoring.Logging.Level)
}

func TestParseValidationErrors(t *testing.T) {
	cases := map[string]string{
		"unsupported version": "version: \"2.0\"\n",
		"unknown flavor":      "build:\n  targets:\n    - flavor: Forge\n      version: 1.20.1\n",
		"bad interval":        "build:\n  interval: often\n",
		"zero interval":       "build:\n  interval: 0s\n",
		"negative min size":   "build:\n  min_tool_size: -1\n",
		"unknown backoff":     "build:\n  catalog_retry:\n    backoff: random\n",
		"inverted delays":     "build:\n  catalog_retry:\n    initial_delay: 10s\n    max_delay: 1s\n",
		"bad tool flavor":     "tools:\n  forge:\n    url: https://example.invalid\n",
		"upper-case tool key": "tools:\n  Paper:\n    url: https://example.invalid\n",
		"port out of range":   "api:\n  port: 70000\n",
		"relative metrics":    "monitoring:\n  metrics:\n    path: metrics\n",
		"malformed yaml":      "build: [\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			require.Equal(t, errors.CategoryConfig, errors.GetCategory(err))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestInitRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shadowjar.yaml")
	require.NoError(t, Init(path, false))

	err := Init(path, false)
	require.Error(t, err)
	require.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
	require.NoError(t, Init(path, true))

	t.Setenv("NATS_URL", "nats://localhost:4222")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Build.Targets, 2)
	require.Equal(t, "nats://localhost:4222", cfg.Events.NATSURL)
	require.Empty(t, cfg.ToolURL("Paper"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "set tools.paper.url")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNormalizers(t *testing.T) {
	require.Equal(t, LogLevelWarn, NormalizeLogLevel(" Warning "))
	require.Equal(t, LogLevelInfo, NormalizeLogLevel("verbose"))
	require.Equal(t, LogFormatText, NormalizeLogFormat("xml"))
	require.Equal(t, RetryBackoffFixed, NormalizeRetryBackoff("FIXED"))
	require.Empty(t, NormalizeRetryBackoff("jitter"))
}

package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/shadowjar/internal/config"
	"git.home.luguber.info/inful/shadowjar/internal/pipeline"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.BuildDir = filepath.Join(dir, "Builds")
	cfg.Paths.ToolsDir = filepath.Join(dir, "Builds", "tools")
	cfg.Paths.DBPath = filepath.Join(dir, "versions.db")
	cfg.Build.InitialDelay = "1h"
	cfg.Build.Targets = []config.Target{{Flavor: "Spigot", Version: "1.21.4"}}
	cfg.API.Port = freePort(t)
	cfg.Monitoring.Metrics.Enabled = true
	return cfg
}

func TestDaemonServesAndStops(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg, "")
	require.NoError(t, err)
	require.DirExists(t, cfg.Paths.BuildDir)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	base := fmt.Sprintf("http://%s", cfg.API.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + cfg.Monitoring.Metrics.Path)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, Idle, d.Scheduler().State())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestDaemonReloadConfigUpdatesTargetsAndInterval(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg, "")
	require.NoError(t, err)
	t.Cleanup(d.closeStores)

	next := *cfg
	next.Build.Targets = []config.Target{
		{Flavor: "Paper", Version: "1.21.4"},
		{Flavor: "Fabric", Version: "1.20.1"},
	}
	next.Build.Interval = "15m"
	d.ReloadConfig(&next)

	require.Equal(t, []pipeline.Target{
		{Flavor: "Paper", Version: "1.21.4"},
		{Flavor: "Fabric", Version: "1.20.1"},
	}, d.pipeline.Targets())
	require.Equal(t, 15*time.Minute, d.Scheduler().Interval())
	require.Same(t, &next, d.Config())
}

func TestNewFailsWhenCatalogCannotOpen(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	cfg.Paths.DBPath = filepath.Join(blocker, "versions.db")
	_, err := New(cfg, "")
	require.Error(t, err)
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/shadowjar/internal/catalog"
	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/metrics"
)

type fakeScheduler struct {
	running  atomic.Bool
	triggers atomic.Int32
}

var errBusy = errors.NewError(errors.CategoryAlreadyExists, "busy").Build()

func (f *fakeScheduler) Running() bool { return f.running.Load() }

func (f *fakeScheduler) TriggerNow() error {
	if !f.running.CompareAndSwap(false, true) {
		return errBusy
	}
	f.triggers.Add(1)
	return nil
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *catalog.Catalog) {
	t.Helper()
	c, err := catalog.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return New("127.0.0.1:0", c, opts...), c
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{"/health", "/healthz"} {
		rec := do(t, s, http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	}
}

func TestVersions(t *testing.T) {
	s, c := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, c.Record(ctx, "Spigot", "1.19.4"))
	require.NoError(t, c.Record(ctx, "Spigot", "1.21.4"))
	require.NoError(t, c.Record(ctx, "Spigot", "1.21.4"))

	t.Run("lists distinct versions", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/version/Spigot")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp VersionsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, "Spigot", resp.ServerType)
		require.Equal(t, []string{"1.19.4", "1.21.4"}, resp.Version)
	})

	t.Run("flavor lookup is case insensitive", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/version/spigot")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"server_type":"Spigot"`)
	})

	t.Run("supported flavor without records is empty", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/version/Paper")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"server_type":"Paper","version":[]}`, rec.Body.String())
	})

	t.Run("unknown flavor is an empty result", func(t *testing.T) {
		for _, id := range []string{"Forge", "bukkit"} {
			rec := do(t, s, http.MethodGet, "/api/version/"+id)
			require.Equal(t, http.StatusOK, rec.Code)
			require.JSONEq(t, `{"server_type":"`+id+`","version":[]}`, rec.Body.String())
		}
	})
}

func TestLatest(t *testing.T) {
	s, c := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, c.Record(ctx, "Spigot", "1.21.4"))
	require.NoError(t, c.Record(ctx, "Spigot", "1.9.4"))

	rec := do(t, s, http.MethodGet, "/api/version/Spigot/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"server_type":"Spigot","version":"1.21.4"}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/version/Fabric/latest")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/version/Forge/latest")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "no version recorded")
}

func TestFlavors(t *testing.T) {
	s, c := newTestServer(t)
	require.NoError(t, c.Record(context.Background(), "Paper", "1.21.4"))

	rec := do(t, s, http.MethodGet, "/api/flavors")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp FlavorsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.ElementsMatch(t, []string{"Spigot", "Paper", "Fabric"}, resp.Supported)
	require.Equal(t, []string{"Paper"}, resp.Cataloged)
}

func TestTrigger(t *testing.T) {
	t.Run("without scheduler", func(t *testing.T) {
		s, _ := newTestServer(t)
		rec := do(t, s, http.MethodPost, "/api/build/trigger")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("accepts then rejects while running", func(t *testing.T) {
		sched := &fakeScheduler{}
		s, _ := newTestServer(t, WithScheduler(sched))

		rec := do(t, s, http.MethodPost, "/api/build/trigger")
		require.Equal(t, http.StatusAccepted, rec.Code)

		rec = do(t, s, http.MethodPost, "/api/build/trigger")
		require.Equal(t, http.StatusConflict, rec.Code)
		require.EqualValues(t, 1, sched.triggers.Load())

		rec = do(t, s, http.MethodGet, "/api/status")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"state":"running"`)
	})

	t.Run("get is not routed", func(t *testing.T) {
		s, _ := newTestServer(t, WithScheduler(&fakeScheduler{}))
		rec := do(t, s, http.MethodGet, "/api/build/trigger")
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	rec.SetRunning(true)

	s, _ := newTestServer(t, WithMetrics("/metrics", reg))
	resp := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	require.True(t, strings.Contains(resp.Body.String(), "shadowjar_"))
}

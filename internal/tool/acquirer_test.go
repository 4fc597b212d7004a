package tool

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/shadowjar/internal/flavor"
	"git.home.luguber.info/inful/shadowjar/internal/process"
	"git.home.luguber.info/inful/shadowjar/internal/process/processtest"
)

const goodMagic = "PK-good-tool"

// toolRunner passes the self-check only when the tool file starts with goodMagic.
func toolRunner(dir string) *processtest.FakeRunner {
	return processtest.New(func(cmd process.Command) (process.Result, error) {
		data, err := os.ReadFile(filepath.Join(dir, cmd.Args[1]))
		if err != nil || !bytes.HasPrefix(data, []byte(goodMagic)) {
			return process.Result{ExitCode: 1, Stderr: "Error: Invalid or corrupt jarfile"}, nil
		}
		return process.Result{Stdout: "usage"}, nil
	})
}

type downloadServer struct {
	*httptest.Server
	hits      atomic.Int32
	userAgent atomic.Value
}

func newDownloadServer(t *testing.T, status int, body []byte) *downloadServer {
	t.Helper()
	ds := &downloadServer{}
	ds.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ds.hits.Add(1)
		ds.userAgent.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(ds.Close)
	return ds
}

func goodPayload() []byte {
	return append([]byte(goodMagic), bytes.Repeat([]byte{0x42}, defaultMinSize)...)
}

func spigotFrom(t *testing.T, url string) flavor.Descriptor {
	t.Helper()
	d, err := flavor.Resolve("Spigot", "1.21.4")
	require.NoError(t, err)
	return flavor.WithToolURL(d, url)
}

func TestEnsureDownloadsThenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	srv := newDownloadServer(t, http.StatusOK, goodPayload())
	runner := toolRunner(dir)
	a := NewAcquirer(dir, runner, WithUserAgent("test-agent/1.0"))
	d := spigotFrom(t, srv.URL+"/BuildTools.jar")

	status, err := a.Ensure(t.Context(), d)
	require.NoError(t, err)
	require.Equal(t, Fetched, status)
	require.EqualValues(t, 1, srv.hits.Load())
	require.Equal(t, "test-agent/1.0", srv.userAgent.Load())

	status, err = a.Ensure(t.Context(), d)
	require.NoError(t, err)
	require.Equal(t, Ready, status)
	require.EqualValues(t, 1, srv.hits.Load(), "second ensure must not touch the network")

	for _, c := range runner.Calls() {
		require.Equal(t, dir, c.Dir)
		require.Equal(t, defaultSelfCheckTimeout, c.Timeout)
		require.Equal(t, []string{"-jar", "BuildTools.jar", "--help"}, c.Args)
	}
}

func TestEnsureRejectsSmallPayload(t *testing.T) {
	dir := t.TempDir()
	srv := newDownloadServer(t, http.StatusOK, []byte("<html>rate limited</html>"))
	a := NewAcquirer(dir, toolRunner(dir))

	_, err := a.Ensure(t.Context(), spigotFrom(t, srv.URL))
	require.ErrorIs(t, err, ErrTooSmall)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "partial download must be removed")
}

func TestEnsureHTTPStatus(t *testing.T) {
	dir := t.TempDir()
	srv := newDownloadServer(t, http.StatusNotFound, goodPayload())
	a := NewAcquirer(dir, toolRunner(dir))

	_, err := a.Ensure(t.Context(), spigotFrom(t, srv.URL))
	require.ErrorIs(t, err, ErrHTTPStatus)
	require.NoFileExists(t, filepath.Join(dir, "BuildTools.jar"))
}

func TestEnsureCorruptAfterDownload(t *testing.T) {
	dir := t.TempDir()
	srv := newDownloadServer(t, http.StatusOK, bytes.Repeat([]byte{0}, defaultMinSize+1))
	a := NewAcquirer(dir, toolRunner(dir))

	_, err := a.Ensure(t.Context(), spigotFrom(t, srv.URL))
	require.ErrorIs(t, err, ErrCorruptAfterDownload)
	require.NoFileExists(t, filepath.Join(dir, "BuildTools.jar"))
}

func TestEnsureReplacesBrokenLocalTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BuildTools.jar"), []byte("truncated"), 0o600))
	srv := newDownloadServer(t, http.StatusOK, goodPayload())
	a := NewAcquirer(dir, toolRunner(dir))

	status, err := a.Ensure(t.Context(), spigotFrom(t, srv.URL))
	require.NoError(t, err)
	require.Equal(t, Fetched, status)
	require.EqualValues(t, 1, srv.hits.Load())
}

func TestEnsureTreatsSelfCheckTimeoutAsFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BuildTools.jar"), goodPayload(), 0o600))
	srv := newDownloadServer(t, http.StatusOK, goodPayload())

	calls := 0
	runner := processtest.New(func(process.Command) (process.Result, error) {
		calls++
		if calls == 1 {
			return process.Result{}, process.ErrTimeout
		}
		return process.Result{}, nil
	})
	a := NewAcquirer(dir, runner)

	status, err := a.Ensure(t.Context(), spigotFrom(t, srv.URL))
	require.NoError(t, err)
	require.Equal(t, Fetched, status)
	require.Equal(t, 2, runner.CallCount())
}

func TestEnsureNoSource(t *testing.T) {
	dir := t.TempDir()
	d, err := flavor.Resolve("Paper", "1.21.4")
	require.NoError(t, err)

	_, err = NewAcquirer(dir, toolRunner(dir)).Ensure(t.Context(), d)
	require.ErrorIs(t, err, ErrNoSource)
}

func TestEnsureTransportFailure(t *testing.T) {
	dir := t.TempDir()
	srv := newDownloadServer(t, http.StatusOK, goodPayload())
	url := srv.URL
	srv.Close()

	_, err := NewAcquirer(dir, toolRunner(dir)).Ensure(t.Context(), spigotFrom(t, url))
	require.ErrorIs(t, err, ErrDownloadFailed)
	require.False(t, errors.Is(err, ErrHTTPStatus))
}

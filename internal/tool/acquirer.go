// Package tool acquires and verifies the external build tool for a flavor.
package tool

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/shadowjar/internal/flavor"
	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
	"git.home.luguber.info/inful/shadowjar/internal/metrics"
	"git.home.luguber.info/inful/shadowjar/internal/process"
)

// Status is the terminal state of a successful Ensure.
type Status string

const (
	// Ready means the tool already on disk passed its self-check.
	Ready Status = "ready"
	// Fetched means the tool was downloaded and then passed its self-check.
	Fetched Status = "fetched"
)

// Acquisition failures.
var (
	ErrHTTPStatus           = errors.NetworkError("tool download returned non-success status").Build()
	ErrTooSmall             = errors.NetworkError("downloaded tool is below minimum size").Build()
	ErrCorruptAfterDownload = errors.BuildError("downloaded tool failed self-check").Build()
	ErrNoSource             = errors.ConfigError("no download source configured for tool").Build()
	ErrDownloadFailed       = errors.NetworkError("tool download failed").Build()
)

const (
	defaultMinSize          = 100000
	defaultSelfCheckTimeout = 30 * time.Second
	defaultUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Acquirer keeps tool binaries in one directory and verifies them before use.
type Acquirer struct {
	dir              string
	runner           process.Runner
	client           *http.Client
	userAgent        string
	minSize          int64
	selfCheckTimeout time.Duration
	recorder         metrics.Recorder
}

// Option configures an Acquirer.
type Option func(*Acquirer)

func WithHTTPClient(c *http.Client) Option { return func(a *Acquirer) { a.client = c } }
func WithUserAgent(ua string) Option       { return func(a *Acquirer) { a.userAgent = ua } }
func WithMinSize(n int64) Option           { return func(a *Acquirer) { a.minSize = n } }
func WithRecorder(r metrics.Recorder) Option {
	return func(a *Acquirer) { a.recorder = r }
}

// WithSelfCheckTimeout bounds each self-check invocation.
func WithSelfCheckTimeout(d time.Duration) Option {
	return func(a *Acquirer) { a.selfCheckTimeout = d }
}

// NewAcquirer returns an Acquirer storing tools in dir and running self-checks through runner.
func NewAcquirer(dir string, runner process.Runner, opts ...Option) *Acquirer {
	a := &Acquirer{
		dir:              dir,
		runner:           runner,
		client:           &http.Client{Timeout: 10 * time.Minute},
		userAgent:        defaultUserAgent,
		minSize:          defaultMinSize,
		selfCheckTimeout: defaultSelfCheckTimeout,
		recorder:         metrics.NoopRecorder{},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Path returns where the tool for d lives.
func (a *Acquirer) Path(d flavor.Descriptor) string {
	return filepath.Join(a.dir, d.ToolFilename)
}

// Ensure makes sure a verified tool for d is on disk. Every write to the tool
// file is followed by a self-check; a tool that fails it is removed.
func (a *Acquirer) Ensure(ctx context.Context, d flavor.Descriptor) (Status, error) {
	status, err := a.ensure(ctx, d)
	result := string(status)
	if err != nil {
		result = "failed"
	}
	a.recorder.IncToolAcquisition(string(d.Flavor), result)
	return status, err
}

func (a *Acquirer) ensure(ctx context.Context, d flavor.Descriptor) (Status, error) {
	path := a.Path(d)
	log := slog.With(logfields.Flavor(string(d.Flavor)), logfields.Tool(d.ToolFilename))

	if _, err := os.Stat(path); err == nil {
		ok, err := a.selfCheck(ctx, d)
		if err != nil {
			return "", err
		}
		if ok {
			log.Debug("Tool passed self-check")
			return Ready, nil
		}
		log.Warn("Tool failed self-check, downloading again", logfields.Path(path))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to remove tool").
				WithContext("path", path).Build()
		}
	}

	if err := a.download(ctx, d, path); err != nil {
		return "", err
	}

	ok, err := a.selfCheck(ctx, d)
	if err != nil {
		return "", err
	}
	if !ok {
		_ = os.Remove(path)
		return "", ErrCorruptAfterDownload.WithContext("tool", d.ToolFilename).WithContext("url", d.ToolURL)
	}
	log.Info("Tool downloaded and verified", logfields.URL(d.ToolURL))
	return Fetched, nil
}

// selfCheck reports whether the tool answered its harmless invocation. A
// timeout counts as a failed check; only cancellation of ctx is an error.
func (a *Acquirer) selfCheck(ctx context.Context, d flavor.Descriptor) (bool, error) {
	args := d.SelfCheckArgs()
	if len(args) == 0 {
		return true, nil
	}
	res, err := a.runner.Run(ctx, process.Command{
		Name:    args[0],
		Args:    args[1:],
		Dir:     a.dir,
		Timeout: a.selfCheckTimeout,
	})
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		slog.Debug("Tool self-check did not complete", logfields.Tool(d.ToolFilename), logfields.Error(err))
		return false, nil
	}
	return res.Success(), nil
}

func (a *Acquirer) download(ctx context.Context, d flavor.Descriptor, path string) error {
	if d.ToolURL == "" {
		return ErrNoSource.WithContext("flavor", string(d.Flavor))
	}
	if err := os.MkdirAll(a.dir, 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create tools directory").
			WithContext("path", a.dir).Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.ToolURL, nil)
	if err != nil {
		return ErrDownloadFailed.WithCause(err).WithContext("url", d.ToolURL)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return ErrDownloadFailed.WithCause(err).WithContext("url", d.ToolURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ErrHTTPStatus.WithContext("url", d.ToolURL).WithContext("status", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(a.dir, "."+d.ToolFilename+".*.part")
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create temporary file").
			WithContext("path", a.dir).Build()
	}
	tmpName := tmp.Name()
	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		cause := copyErr
		if cause == nil {
			cause = closeErr
		}
		return ErrDownloadFailed.WithCause(cause).WithContext("url", d.ToolURL)
	}
	if n < a.minSize {
		_ = os.Remove(tmpName)
		return ErrTooSmall.WithContext("url", d.ToolURL).
			WithContext("bytes", n).
			WithContext("min_bytes", a.minSize)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to install tool").
			WithContext("path", path).Build()
	}
	slog.Debug("Tool downloaded", logfields.Path(path), logfields.Bytes(n))
	return nil
}

// Package upstream looks up the newest Minecraft release from the launcher manifest.
package upstream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
)

// LatestAlias is the target version that follows the newest release.
const LatestAlias = "latest"

// ErrManifest covers every failure to obtain a usable release from the manifest.
var ErrManifest = errors.NetworkError("failed to resolve latest release from version manifest").Build()

// maxManifestBytes bounds the manifest body; the real document is well under 1 MiB.
const maxManifestBytes = 8 << 20

type manifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
}

// Client fetches the version manifest.
type Client struct {
	url       string
	userAgent string
	http      *http.Client
}

// NewClient returns a Client for the manifest at url.
func NewClient(url, userAgent string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: url, userAgent: userAgent, http: hc}
}

// LatestRelease returns the newest release version.
func (c *Client) LatestRelease(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", ErrManifest.WithCause(err).WithContext("url", c.url)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", ErrManifest.WithCause(err).WithContext("url", c.url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", ErrManifest.WithContext("url", c.url).WithContext("status", resp.StatusCode)
	}

	var m manifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxManifestBytes)).Decode(&m); err != nil {
		return "", ErrManifest.WithCause(err).WithContext("url", c.url)
	}
	release := strings.TrimSpace(m.Latest.Release)
	if release == "" {
		return "", ErrManifest.WithContext("url", c.url).WithContext("reason", "manifest has no latest release")
	}
	slog.Debug("Resolved latest release", logfields.Version(release), logfields.URL(c.url))
	return release, nil
}

// Resolve returns version unchanged unless it is LatestAlias (case-insensitive),
// in which case the newest release is looked up.
func (c *Client) Resolve(ctx context.Context, version string) (string, error) {
	if !strings.EqualFold(version, LatestAlias) {
		return version, nil
	}
	return c.LatestRelease(ctx)
}

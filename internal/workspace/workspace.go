package workspace

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
)

// Manager owns the build root directory.
type Manager struct {
	root string
}

// NewManager returns a Manager rooted at root.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Root returns the build root.
func (m *Manager) Root() string { return m.root }

// EnsureRoot creates the build root. Failure is fatal at startup.
func (m *Manager) EnsureRoot() error {
	if err := os.MkdirAll(m.root, 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create build root").
			WithContext("path", m.root).Fatal().Build()
	}
	slog.Debug("Build root ready", logfields.Path(m.root))
	return nil
}

// Path returns the workspace directory for (flavor, version). Components that
// could escape the root are rejected.
func (m *Manager) Path(flavor, version string) (string, error) {
	for _, part := range []string{flavor, version} {
		if !safeComponent(part) {
			return "", errors.ValidationError("unsafe workspace path component").
				WithContext("component", part).Build()
		}
	}
	return filepath.Join(m.root, flavor, version), nil
}

func safeComponent(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\:`) && !strings.ContainsRune(s, 0)
}

package workspace

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
)

// ErrReconcileFailed reports a workspace that could not be fully pruned. It
// never fails a pipeline run.
var ErrReconcileFailed = errors.FileSystemError("workspace reconciliation failed").Warning().Build()

// LogSuffix marks files retained as build logs.
const LogSuffix = ".log"

var versionedName = regexp.MustCompile(`\b\d+\.\d+(\.\d+)?\b`)

// Report lists what a reconciliation kept and deleted, by entry name.
type Report struct {
	Retained []string
	Removed  []string
}

// Retain reports whether an entry survives reconciliation.
func Retain(name string, regular bool) bool {
	if strings.HasSuffix(name, LogSuffix) {
		return true
	}
	return regular && versionedName.MatchString(name)
}

// isRegular follows symlinks; a dangling link is not regular.
func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Reconcile prunes dir to its retained set. The first pass decides every
// entry against one directory snapshot; the second deletes. Names in keep are
// retained regardless of the policy. Running it again is a no-op.
func Reconcile(dir string, keep ...string) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ErrReconcileFailed.WithCause(err).WithContext("path", dir)
	}

	retained := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		name := e.Name()
		if slices.Contains(keep, name) || Retain(name, isRegular(filepath.Join(dir, name))) {
			retained[name] = struct{}{}
		}
	}

	report := &Report{}
	var failed []string
	var firstErr error
	for _, e := range entries {
		name := e.Name()
		if _, ok := retained[name]; ok {
			report.Retained = append(report.Retained, name)
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.RemoveAll(path); err != nil {
			failed = append(failed, name)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		report.Removed = append(report.Removed, name)
	}

	slog.Debug("Workspace reconciled",
		logfields.Path(dir),
		slog.Int("retained", len(report.Retained)),
		slog.Int("removed", len(report.Removed)))

	if firstErr != nil {
		return report, ErrReconcileFailed.WithCause(firstErr).
			WithContext("path", dir).
			WithContext("failed", failed)
	}
	return report, nil
}

package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/shadowjar/internal/flavor"
	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
	"git.home.luguber.info/inful/shadowjar/internal/process"
)

// OutputLogName is written into the workspace with the captured tool output.
const OutputLogName = "shadowjar-build.log"

// maxContextOutput bounds how much captured output is attached to an error.
const maxContextOutput = 8 << 10

// Outcome describes a successful build.
type Outcome struct {
	Flavor           flavor.Flavor
	RequestedVersion string
	// Version is extracted from the artifact filename, or PlaceholderVersion.
	Version      string
	ArtifactPath string
	ExitCode     int
	Stdout       string
	Stderr       string
	Warnings     []string
	Duration     time.Duration
}

// CatalogVersion is the version to record: the extracted token, or the
// requested version when extraction fell back to the placeholder.
func (o *Outcome) CatalogVersion() string {
	if o.Version == PlaceholderVersion && o.RequestedVersion != "" {
		return o.RequestedVersion
	}
	return o.Version
}

// Executor runs build tools staged from toolsDir.
type Executor struct {
	toolsDir string
	runner   process.Runner
}

// NewExecutor returns an Executor copying verified tools from toolsDir.
func NewExecutor(toolsDir string, runner process.Runner) *Executor {
	return &Executor{toolsDir: toolsDir, runner: runner}
}

// Execute builds version of d inside workspaceDir. The build has no timeout
// beyond ctx.
func (e *Executor) Execute(ctx context.Context, d flavor.Descriptor, workspaceDir, version string) (*Outcome, error) {
	log := slog.With(logfields.Flavor(string(d.Flavor)), logfields.Version(version))

	if err := os.MkdirAll(workspaceDir, 0o750); err != nil {
		return nil, ErrWorkspace.WithCause(err).WithContext("path", workspaceDir)
	}
	if err := e.stageTool(d, workspaceDir); err != nil {
		return nil, err
	}
	absDir, err := filepath.Abs(workspaceDir)
	if err != nil {
		return nil, ErrWorkspace.WithCause(err).WithContext("path", workspaceDir)
	}

	args := d.InvocationArgs(version)
	cmd := process.Command{Name: args[0], Args: args[1:], Dir: filepath.ToSlash(absDir)}

	log.Info("Starting build", logfields.Path(absDir), logfields.Command(process.CommandLine(cmd)))
	start := time.Now()
	res, err := e.runner.Run(ctx, cmd)
	elapsed := time.Since(start)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryProcess, "build tool could not be run").
			WithContext("flavor", string(d.Flavor)).
			WithContext("version", version).NextInterval().Build()
	}
	writeOutputLog(absDir, res)

	if !res.Success() {
		return nil, ErrNonZeroExit.
			WithContext("flavor", string(d.Flavor)).
			WithContext("version", version).
			WithContext("exit_code", res.ExitCode).
			WithContext("stdout", tail(res.Stdout)).
			WithContext("stderr", tail(res.Stderr))
	}

	artifact, err := locateArtifact(absDir, d.ExpectedOutput)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Flavor:           d.Flavor,
		RequestedVersion: version,
		ArtifactPath:     artifact,
		ExitCode:         res.ExitCode,
		Stdout:           res.Stdout,
		Stderr:           res.Stderr,
		Duration:         elapsed,
	}
	v, ok := ExtractVersion(filepath.Base(artifact))
	out.Version = v
	if !ok {
		msg := fmt.Sprintf("no version token in artifact name %q, using %q", filepath.Base(artifact), PlaceholderVersion)
		out.Warnings = append(out.Warnings, msg)
		log.Warn("Artifact name has no version token", logfields.Path(artifact))
	}

	log.Info("Build finished", logfields.Path(artifact), logfields.Duration(elapsed))
	return out, nil
}

// stageTool copies the tool into the workspace unless it is already there.
func (e *Executor) stageTool(d flavor.Descriptor, workspaceDir string) error {
	dst := filepath.Join(workspaceDir, d.ToolFilename)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	src := filepath.Join(e.toolsDir, d.ToolFilename)
	if err := copyFile(src, dst); err != nil {
		return ErrWorkspace.WithCause(err).WithContext("tool", src)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- tools dir is operator controlled
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// locateArtifact finds the artifact matching pattern and returns its path in
// the workspace root, moving it there when the tool wrote it deeper.
func locateArtifact(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, filepath.FromSlash(pattern)))
	if err != nil {
		return "", ErrArtifactMissing.WithCause(err).WithContext("pattern", pattern)
	}
	matches = slices.DeleteFunc(matches, func(p string) bool {
		info, err := os.Stat(p)
		return err != nil || !info.Mode().IsRegular()
	})
	if len(matches) == 0 {
		return "", ErrArtifactMissing.WithContext("pattern", pattern).WithContext("path", dir)
	}
	slices.Sort(matches)
	found := matches[0]
	if filepath.Dir(found) == filepath.Clean(dir) {
		return found, nil
	}
	dst := filepath.Join(dir, filepath.Base(found))
	if err := os.Rename(found, dst); err != nil {
		return "", ErrWorkspace.WithCause(err).WithContext("path", found)
	}
	return dst, nil
}

func writeOutputLog(dir string, res process.Result) {
	var b strings.Builder
	b.WriteString(res.Stdout)
	if res.Stderr != "" {
		b.WriteString("\n--- stderr ---\n")
		b.WriteString(res.Stderr)
	}
	path := filepath.Join(dir, OutputLogName)
	if err := os.WriteFile(path, []byte(b.String()), 0o640); err != nil {
		slog.Warn("Failed to write build output log", logfields.Path(path), logfields.Error(err))
	}
}

func tail(s string) string {
	if len(s) <= maxContextOutput {
		return s
	}
	return "..." + s[len(s)-maxContextOutput:]
}

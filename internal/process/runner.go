// Package process runs external programs through the host shell.
package process

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
)

// ErrTimeout is returned when a command exceeds its Timeout.
var ErrTimeout = errors.ProcessError("process timed out").Build()

// waitDelay bounds how long Run waits for output pipes after the shell exits or is killed.
const waitDelay = 5 * time.Second

// Command describes one program invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty runs in the current directory.
	Dir string
	// Timeout of zero means no limit beyond ctx.
	Timeout time.Duration
}

// Result is the outcome of a process that ran to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports a zero exit code.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Runner executes commands. A non-zero exit status is reported through
// Result.ExitCode; the error return is reserved for commands that could not be
// started, timed out or were canceled.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ShellRunner runs each command as a single `<shell> -c` line.
type ShellRunner struct {
	Shell string
}

// NewShellRunner returns a runner for shell, or DefaultShell() when shell is empty.
func NewShellRunner(shell string) *ShellRunner {
	if shell == "" {
		shell = DefaultShell()
	}
	return &ShellRunner{Shell: shell}
}

// DefaultShell returns the host shell used to run build tools.
func DefaultShell() string {
	if runtime.GOOS == "windows" {
		return `C:\Program Files\Git\bin\bash.exe`
	}
	if _, err := os.Stat("/bin/bash"); err == nil {
		return "/bin/bash"
	}
	return "/bin/sh"
}

// Quote wraps s in single quotes for a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// CommandLine renders cmd as the line passed to the shell.
func CommandLine(cmd Command) string {
	var b strings.Builder
	if cmd.Dir != "" {
		b.WriteString("cd ")
		b.WriteString(Quote(cmd.Dir))
		b.WriteString(" && ")
	}
	b.WriteString(Quote(cmd.Name))
	for _, a := range cmd.Args {
		b.WriteByte(' ')
		b.WriteString(Quote(a))
	}
	return b.String()
}

// Run implements Runner.
func (r *ShellRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	line := CommandLine(cmd)
	// #nosec G204 -- every argument is single-quoted by CommandLine
	c := exec.CommandContext(runCtx, r.Shell, "-c", line)
	c.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	slog.Debug("Running process", logfields.Command(line), slog.String("shell", r.Shell))
	start := time.Now()
	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	switch {
	case err == nil:
	case ctx.Err() != nil:
		return res, ctx.Err()
	case runCtx.Err() != nil:
		return res, ErrTimeout.
			WithContext("command", line).
			WithContext("timeout", cmd.Timeout.String())
	default:
		var exitErr *exec.ExitError
		if !stderrors.As(err, &exitErr) {
			return res, errors.WrapError(err, errors.CategoryProcess, "failed to start process").
				WithContext("shell", r.Shell).
				WithContext("command", line).Build()
		}
		res.ExitCode = exitErr.ExitCode()
	}

	slog.Debug("Process finished",
		logfields.Command(line),
		logfields.ExitCode(res.ExitCode),
		logfields.Duration(time.Since(start)))
	return res, nil
}

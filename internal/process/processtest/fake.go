// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"slices"
	"sync"

	"git.home.luguber.info/inful/shadowjar/internal/process"
)

// Handler decides the outcome of one command.
type Handler func(cmd process.Command) (process.Result, error)

// FakeRunner records every command and answers through Handler.
// A nil Handler succeeds with empty output.
type FakeRunner struct {
	mu      sync.Mutex
	calls   []process.Command
	Handler Handler
}

// New returns a FakeRunner driven by h.
func New(h Handler) *FakeRunner { return &FakeRunner{Handler: h} }

// Run implements process.Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd process.Command) (process.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	h := f.Handler
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return process.Result{}, err
	}
	if h == nil {
		return process.Result{}, nil
	}
	return h(cmd)
}

// Calls returns a copy of the recorded commands.
func (f *FakeRunner) Calls() []process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallCount returns how many commands ran.
func (f *FakeRunner) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Exit returns a Handler that always exits with code and the given output.
func Exit(code int, stdout, stderr string) Handler {
	return func(process.Command) (process.Result, error) {
		return process.Result{ExitCode: code, Stdout: stdout, Stderr: stderr}, nil
	}
}

package daemon

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
	"git.home.luguber.info/inful/shadowjar/internal/metrics"
)

// ErrAlreadyRunning is returned when a run is requested while another is in
// flight. It classifies as a conflict.
var ErrAlreadyRunning = errors.NewError(errors.CategoryAlreadyExists, "a pipeline run is already in progress").Build()

// ErrSchedulerStopped is returned by TriggerNow after Stop.
var ErrSchedulerStopped = errors.DaemonError("scheduler is stopped").Build()

// State is the scheduler's run state.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// RunFunc performs one pipeline run.
type RunFunc func(ctx context.Context) error

// RunStatus describes the most recently finished run.
type RunStatus struct {
	Trigger  string
	Started  time.Time
	Finished time.Time
	Err      error
}

// Scheduler drives RunFunc on an interval measured from the end of the
// previous run. Runs never overlap: Idle→Running is a compare-and-swap and a
// request that loses it is rejected.
type Scheduler struct {
	cron     gocron.Scheduler
	run      RunFunc
	recorder metrics.Recorder

	interval     atomic.Int64
	initialDelay time.Duration

	state   atomic.Int32
	stopped atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending uuid.UUID
	last    *RunStatus
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

func WithInitialDelay(d time.Duration) SchedulerOption         { return func(s *Scheduler) { s.initialDelay = d } }
func WithSchedulerRecorder(r metrics.Recorder) SchedulerOption { return func(s *Scheduler) { s.recorder = r } }

// NewScheduler creates a stopped scheduler; call Start to begin.
func NewScheduler(run RunFunc, interval time.Duration, opts ...SchedulerOption) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.ValidationError("interval must be positive").
			WithContext("interval", interval.String()).Build()
	}
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to create scheduler").Build()
	}
	s := &Scheduler{cron: cron, run: run, recorder: metrics.NoopRecorder{}}
	s.interval.Store(int64(interval))
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins scheduling. The first run goes out after the initial delay,
// or immediately when none is configured. Runs use a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	return s.scheduleNext(s.initialDelay)
}

// Stop cancels an in-flight run, waits for it to finish and shuts gocron down.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := s.cron.Shutdown(); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to shut down scheduler").Build()
	}
	return nil
}

// State reports whether a run is in flight.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Running reports whether a run is in flight.
func (s *Scheduler) Running() bool { return s.State() == Running }

// Interval returns the current delay between runs.
func (s *Scheduler) Interval() time.Duration { return time.Duration(s.interval.Load()) }

// SetInterval changes the delay used after the next run completes.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval.Store(int64(d))
	}
}

// LastRun returns the most recently finished run, if any.
func (s *Scheduler) LastRun() (RunStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return RunStatus{}, false
	}
	return *s.last, true
}

// NextRun returns when the next scheduled run fires.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	id := s.pending
	s.mu.Unlock()
	if id == uuid.Nil {
		return time.Time{}, false
	}
	for _, j := range s.cron.Jobs() {
		if j.ID() != id {
			continue
		}
		next, err := j.NextRun()
		if err != nil || next.IsZero() {
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

// TriggerNow starts a run immediately. It returns ErrAlreadyRunning when a
// run is in flight. The pending interval run is replaced; the next one is
// scheduled when this run ends.
func (s *Scheduler) TriggerNow() error {
	if err := s.begin(); err != nil {
		return err
	}
	s.removePending()
	go func() {
		defer s.wg.Done()
		s.execute("manual")
	}()
	return nil
}

// fire is the gocron task for interval runs.
func (s *Scheduler) fire() {
	switch err := s.begin(); {
	case err == nil:
	case stderrors.Is(err, ErrAlreadyRunning):
		slog.Warn("Skipping scheduled run; a run is already in progress")
		return
	default:
		return
	}
	defer s.wg.Done()
	s.execute("interval")
}

// begin claims the Running state and registers the run with the wait group.
// Both happen under mu so Stop never misses a run that has been admitted.
func (s *Scheduler) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.Load() || s.ctx == nil {
		return ErrSchedulerStopped
	}
	if !s.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrAlreadyRunning
	}
	s.wg.Add(1)
	return nil
}

// execute performs one run with the state already set to Running.
func (s *Scheduler) execute(trigger string) {
	s.recorder.SetRunning(true)
	status := RunStatus{Trigger: trigger, Started: time.Now()}

	defer func() {
		status.Finished = time.Now()
		s.mu.Lock()
		s.last = &status
		s.mu.Unlock()

		s.state.Store(int32(Idle))
		s.recorder.SetRunning(false)

		if err := s.scheduleNext(s.Interval()); err != nil {
			slog.Error("Failed to schedule next run", logfields.Error(err))
		}
	}()

	slog.Info("Pipeline run starting", slog.String("trigger", trigger))
	status.Err = s.safeRun()
	if status.Err != nil {
		slog.Error("Pipeline run finished with failures",
			slog.String("trigger", trigger),
			logfields.Duration(time.Since(status.Started)),
			logfields.Error(status.Err))
		return
	}
	slog.Info("Pipeline run finished",
		slog.String("trigger", trigger),
		logfields.Duration(time.Since(status.Started)))
}

func (s *Scheduler) safeRun() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.InternalError(fmt.Sprintf("pipeline run panicked: %v", r)).Build()
		}
	}()
	return s.run(s.ctx)
}

func (s *Scheduler) scheduleNext(delay time.Duration) error {
	if s.stopped.Load() {
		return nil
	}
	start := gocron.OneTimeJobStartImmediately()
	if delay > 0 {
		start = gocron.OneTimeJobStartDateTime(time.Now().Add(delay))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removePendingLocked()
	job, err := s.cron.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(s.fire),
		gocron.WithName("pipeline-run"),
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to schedule pipeline run").Build()
	}
	s.pending = job.ID()
	slog.Debug("Next pipeline run scheduled", slog.Duration("delay", delay))
	return nil
}

func (s *Scheduler) removePending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removePendingLocked()
}

func (s *Scheduler) removePendingLocked() {
	if s.pending == uuid.Nil {
		return
	}
	// A fired one-time job may already be gone.
	_ = s.cron.RemoveJob(s.pending)
	s.pending = uuid.Nil
}

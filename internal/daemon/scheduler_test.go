package daemon

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
)

func startScheduler(t *testing.T, run RunFunc, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	t.Helper()
	s, err := NewScheduler(run, interval, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestNewSchedulerRejectsNonPositiveInterval(t *testing.T) {
	_, err := NewScheduler(func(context.Context) error { return nil }, 0)
	require.Error(t, err)
	require.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
}

func TestSchedulerRunsImmediatelyThenOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := startScheduler(t, func(context.Context) error {
		runs.Add(1)
		return nil
	}, 50*time.Millisecond)

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 5*time.Second, 10*time.Millisecond)
	last, ok := s.LastRun()
	require.True(t, ok)
	require.Equal(t, "interval", last.Trigger)
	require.NoError(t, last.Err)
}

func TestSchedulerHonorsInitialDelay(t *testing.T) {
	var runs atomic.Int32
	s := startScheduler(t, func(context.Context) error {
		runs.Add(1)
		return nil
	}, time.Hour, WithInitialDelay(time.Hour))

	time.Sleep(100 * time.Millisecond)
	require.Zero(t, runs.Load())
	next, ok := s.NextRun()
	require.True(t, ok)
	require.True(t, next.After(time.Now().Add(59*time.Minute)))
}

func TestSchedulerRejectsOverlappingTrigger(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var active, maxActive atomic.Int32

	s := startScheduler(t, func(ctx context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, time.Hour, WithInitialDelay(time.Hour))

	require.Equal(t, Idle, s.State())
	require.NoError(t, s.TriggerNow())
	<-started
	require.Equal(t, Running, s.State())

	err := s.TriggerNow()
	require.ErrorIs(t, err, ErrAlreadyRunning)
	require.Equal(t, errors.CategoryAlreadyExists, errors.GetCategory(err))

	close(release)
	require.Eventually(t, func() bool { return s.State() == Idle }, 5*time.Second, 10*time.Millisecond)
	require.EqualValues(t, 1, maxActive.Load())

	last, ok := s.LastRun()
	require.True(t, ok)
	require.Equal(t, "manual", last.Trigger)
}

func TestSchedulerReturnsToIdleAfterFailure(t *testing.T) {
	var runs atomic.Int32
	boom := stderrors.New("build tool exited 1")
	s := startScheduler(t, func(context.Context) error {
		if runs.Add(1) == 1 {
			return boom
		}
		return nil
	}, 30*time.Millisecond)

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s.State() == Idle }, 5*time.Second, 10*time.Millisecond)
}

func TestSchedulerRecoversFromPanic(t *testing.T) {
	var runs atomic.Int32
	s := startScheduler(t, func(context.Context) error {
		runs.Add(1)
		panic("unexpected")
	}, time.Hour, WithInitialDelay(time.Hour))

	require.NoError(t, s.TriggerNow())
	require.Eventually(t, func() bool {
		last, ok := s.LastRun()
		return ok && last.Err != nil
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s.State() == Idle }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.TriggerNow())
	require.Eventually(t, func() bool { return runs.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestSchedulerStopCancelsRun(t *testing.T) {
	canceled := make(chan struct{})
	s, err := NewScheduler(func(ctx context.Context) error {
		<-ctx.Done()
		close(canceled)
		return ctx.Err()
	}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, s.Running, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	<-canceled
	require.ErrorIs(t, s.TriggerNow(), ErrSchedulerStopped)
}

func TestSchedulerTimerAfterStopDoesNotRun(t *testing.T) {
	var runs atomic.Int32
	s, err := NewScheduler(func(context.Context) error {
		runs.Add(1)
		return nil
	}, time.Hour, WithInitialDelay(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	s.fire()
	require.Zero(t, runs.Load())
	require.Equal(t, Idle, s.State())

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a run was admitted after Stop")
	}
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/shadowjar/internal/config"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.Equal(t, config.RetryBackoffExponential, p.Mode)
	require.Equal(t, 500*time.Millisecond, p.Initial)
	require.Equal(t, 10*time.Second, p.Max)
	require.Equal(t, 3, p.MaxRetries)
	require.NoError(t, p.Validate())
}

func TestNewPolicyClampsInitial(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	require.Equal(t, 2*time.Second, p.Initial)
	require.Equal(t, config.RetryBackoffFixed, p.Mode)
	require.Equal(t, 5, p.MaxRetries)

	unknown := NewPolicy("jitter", 0, 0, -1)
	require.Equal(t, DefaultPolicy(), unknown)
}

func TestDelayModes(t *testing.T) {
	ms := time.Millisecond
	fixed := NewPolicy(config.RetryBackoffFixed, 100*ms, 500*ms, 3)
	linear := NewPolicy(config.RetryBackoffLinear, 100*ms, 250*ms, 5)
	exp := NewPolicy(config.RetryBackoffExponential, 50*ms, 160*ms, 5)

	cases := []struct {
		name    string
		p       Policy
		attempt int
		want    time.Duration
	}{
		{"fixed-1", fixed, 1, 100 * ms},
		{"fixed-3", fixed, 3, 100 * ms},
		{"linear-2", linear, 2, 200 * ms},
		{"linear-cap", linear, 4, 250 * ms},
		{"exp-2", exp, 2, 100 * ms},
		{"exp-cap", exp, 3, 160 * ms},
		{"exp-huge", exp, 80, 160 * ms},
		{"zero", linear, 0, 0},
		{"negative", linear, -1, 0},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.p.Delay(c.attempt), c.name)
	}
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(config.RetryConfig{MaxRetries: 2, Backoff: config.RetryBackoffLinear, InitialDelay: "1s", MaxDelay: "3s"})
	require.Equal(t, Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 3 * time.Second, MaxRetries: 2}, p)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	var retried []int
	err := p.Do(t.Context(), func() error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	}, func(attempt int, _ error) { retried = append(retried, attempt) })
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []int{1, 2}, retried)
}

func TestDoExhausts(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
	boom := errors.New("locked")
	calls := 0
	err := p.Do(t.Context(), func() error { calls++; return boom }, nil)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnCancel(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 5)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	calls := 0
	err := p.Do(ctx, func() error { calls++; return errors.New("x") }, nil)
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

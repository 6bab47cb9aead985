package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func failN(t *testing.T, cb *CircuitBreaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return errUpstream })
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("nasapower", BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	failN(t, cb, 2)
	assert.Equal(t, CircuitClosed, cb.State())
	failN(t, cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "nasapower")
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("openweather", BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	failN(t, cb, 1)
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	failN(t, cb, 1)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("nasapower", BreakerConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second})
	cb.now = func() time.Time { return now }

	failN(t, cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())

	now = now.Add(31 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("nasapower", BreakerConfig{FailureThreshold: 2, ResetTimeout: 30 * time.Second})
	cb.now = func() time.Time { return now }

	failN(t, cb, 2)
	now = now.Add(time.Minute)
	failN(t, cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_ShouldTripFiltersErrors(t *testing.T) {
	cb := NewCircuitBreaker("openweather", FromBreakerConfig(1, 30))
	failN(t, cb, 3)
	assert.Equal(t, CircuitClosed, cb.State())

	_ = cb.Execute(context.Background(), func(context.Context) error {
		return NewTransientError(errUpstream, 503)
	})
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker("nasapower", BreakerConfig{FailureThreshold: 1})
	failN(t, cb, 1)
	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestBreakers_GetAndStates(t *testing.T) {
	b := NewBreakers(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	assert.Same(t, b.Get("nasapower"), b.Get("nasapower"))

	failN(t, b.Get("openweather"), 1)
	assert.Equal(t, map[string]string{
		"nasapower":   "closed",
		"openweather": "open",
	}, b.States())
}

func TestCall_BreakerWrapsRetries(t *testing.T) {
	cb := NewCircuitBreaker("nasapower", BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	g := NewGuard(cb, fastRetry(), "nasapower", "soil_moisture")

	calls := 0
	_, err := Call(context.Background(), g, func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errUpstream, 503)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// three attempts count as one breaker failure
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCall_ZeroGuard(t *testing.T) {
	calls := 0
	v, err := Call(context.Background(), Guard{}, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
}

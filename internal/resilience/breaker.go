// Package resilience wraps calls to sensing providers with retries and
// circuit breakers so a flaky upstream degrades to missing data quickly.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the provider while its breaker is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls when a breaker opens and how long it stays open.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	// ShouldTrip decides which errors count as failures. Nil counts all.
	ShouldTrip func(err error) bool
}

// DefaultBreakerConfig returns 5 consecutive failures and a 30s cool-down.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second}
}

// CircuitBreaker guards a single provider. After FailureThreshold consecutive
// failures it rejects calls until ResetTimeout passes, then lets one probe through.
type CircuitBreaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker named after the provider it guards.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	return &CircuitBreaker{name: name, cfg: cfg, now: time.Now}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteVal is Execute for calls that produce a value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allow(); err != nil {
		return zero, eris.Wrapf(err, "%s", cb.name)
	}
	val, err := fn(ctx)
	cb.record(err)
	return val, err
}

// State reports the current state, treating an expired open circuit as half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.transition(CircuitClosed)
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitOpen {
		return nil
	}
	if cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		cb.transition(CircuitHalfOpen)
		return nil
	}
	return ErrCircuitOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	trip := err != nil
	if trip && cb.cfg.ShouldTrip != nil {
		trip = cb.cfg.ShouldTrip(err)
	}
	if !trip {
		cb.failures = 0
		cb.transition(CircuitClosed)
		return
	}

	cb.failures++
	if cb.state == CircuitHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		cb.openedAt = cb.now()
		cb.transition(CircuitOpen)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	if cb.state == to {
		return
	}
	zap.L().Info("resilience: circuit state change",
		zap.String("provider", cb.name),
		zap.Stringer("from", cb.state),
		zap.Stringer("to", to),
	)
	cb.state = to
}

// Breakers holds one CircuitBreaker per provider.
type Breakers struct {
	mu       sync.RWMutex
	cfg      BreakerConfig
	breakers map[string]*CircuitBreaker
}

// NewBreakers creates an empty registry sharing cfg.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, breakers: make(map[string]*CircuitBreaker)}
}

// Get returns the breaker for provider, creating it on first use.
func (b *Breakers) Get(provider string) *CircuitBreaker {
	b.mu.RLock()
	cb, ok := b.breakers[provider]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok = b.breakers[provider]; ok {
		return cb
	}
	cb = NewCircuitBreaker(provider, b.cfg)
	b.breakers[provider] = cb
	return cb
}

// States snapshots every breaker for the health endpoint.
func (b *Breakers) States() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.breakers))
	for name, cb := range b.breakers {
		out[name] = cb.State().String()
	}
	return out
}

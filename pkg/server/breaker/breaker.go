// Package breaker guards upstream services with per-service circuit
// breakers so a failing provider stops receiving traffic until it has had
// time to recover.
package breaker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the condition of one service's circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrOpen is returned when a circuit rejects a call without attempting it.
var ErrOpen = errors.New("circuit breaker is open")

// DefaultFailureThreshold opens the circuit after this many consecutive
// failures.
const DefaultFailureThreshold = 5

// DefaultTimeout is how long an open circuit waits before probing again.
const DefaultTimeout = 60 * time.Second

type circuit struct {
	state       State
	failures    int
	lastFailure time.Time
}

// Breaker tracks circuits per service name.
type Breaker struct {
	threshold int
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuit
}

// Config tunes a Breaker. Zero values use the defaults.
type Config struct {
	FailureThreshold int
	Timeout          time.Duration
	Logger           *slog.Logger
}

// New creates a breaker.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Breaker{
		threshold: cfg.FailureThreshold,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
		now:       time.Now,
		circuits:  make(map[string]*circuit),
	}
}

// State reports the circuit state for a service.
func (b *Breaker) State(service string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.circuits[service]; ok {
		return c.state
	}
	return StateClosed
}

// Call runs fn under the service's circuit. When the circuit is open and the
// recovery timeout has not elapsed, fn is not invoked and ErrOpen is
// returned. One probe call is allowed through after the timeout.
func (b *Breaker) Call(service string, fn func() error) error {
	if err := b.before(service); err != nil {
		return err
	}
	err := fn()
	b.after(service, err)
	return err
}

func (b *Breaker) before(service string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[service]
	if !ok {
		c = &circuit{}
		b.circuits[service] = c
	}
	if c.state == StateOpen {
		if b.now().Sub(c.lastFailure) <= b.timeout {
			return fmt.Errorf("%w for %s", ErrOpen, service)
		}
		c.state = StateHalfOpen
		b.logger.Info("circuit breaker half-open", "service", service)
	}
	return nil
}

func (b *Breaker) after(service string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuits[service]
	if err == nil {
		if c.state == StateHalfOpen {
			b.logger.Info("circuit breaker closed", "service", service)
		}
		c.state = StateClosed
		c.failures = 0
		return
	}

	c.failures++
	c.lastFailure = b.now()
	if c.state == StateHalfOpen || c.failures >= b.threshold {
		if c.state != StateOpen {
			b.logger.Error("circuit breaker opened", "service", service, "failures", c.failures)
		}
		c.state = StateOpen
	}
}

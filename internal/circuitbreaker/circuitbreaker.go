// Package circuitbreaker guards the store's disk commit path. Repeated
// environmental failures (disk full, permissions) open the breaker so
// the store degrades to memory-only operation instead of hammering a
// broken filesystem; after the timeout a half-open probe decides
// whether to resume.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/onnwee/nstore/internal/metrics"
)

// ErrOpen is returned when the breaker rejects an attempt.
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker state.
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
		return "unknown"
	}
}

// Config holds breaker tuning.
type Config struct {
	Name             string
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // successes needed to close from half-open
	Timeout          time.Duration // open duration before a half-open probe
}

// Breaker implements a closed/open/half-open circuit breaker.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time

	name             string
	failureThreshold int
	successThreshold int
	timeout          time.Duration
}

// New creates a breaker. Zero config fields get defaults of 5 failures,
// 2 successes and a 60s timeout.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	b := &Breaker{
		state:            StateClosed,
		name:             cfg.Name,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
	}
	metrics.CircuitBreakerState.WithLabelValues(b.name).Set(float64(StateClosed))
	return b
}

// Call runs fn if the breaker allows it, recording the outcome.
// Returns ErrOpen without running fn when the breaker is open.
func (b *Breaker) Call(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(b.lastFailure) > b.timeout {
			b.setState(StateHalfOpen)
			b.successes = 0
			return true
		}
		return false
	default:
		return false
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()
	b.successes = 0

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		b.failures = 0
		b.trip()
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.failures = 0
			b.successes = 0
			b.setState(StateClosed)
		}
	}
}

func (b *Breaker) trip() {
	b.setState(StateOpen)
	metrics.CircuitBreakerTrips.WithLabelValues(b.name).Inc()
}

func (b *Breaker) setState(s State) {
	b.state = s
	metrics.CircuitBreakerState.WithLabelValues(b.name).Set(float64(s))
}

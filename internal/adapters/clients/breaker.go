package clients

import (
	"sync"
	"time"

	"github.com/feedmill/quote-service/internal/platform/config"
)

// State is the position of a Breaker.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota
	// StateOpen rejects requests until the open timeout passes.
	StateOpen
	// StateHalfOpen admits a limited number of probes.
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

// Breaker is a consecutive-failure circuit breaker.
//
//   - closed → open after MaxFailures consecutive failures
//   - open → half-open once Timeout has passed since the last failure
//   - half-open → closed after HalfOpenLimit successful probes
//   - half-open → open on any failure
type Breaker struct {
	cfg      config.CircuitBreakerConfig
	onChange func(from, to State)
	now      func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	probes      int
	lastFailure time.Time

	// pending transition, reported once the lock is released
	changed bool
	from    State
}

// NewBreaker creates a closed breaker. onChange, when non-nil, is called
// after every state transition outside the breaker's lock.
func NewBreaker(cfg config.CircuitBreakerConfig, onChange func(from, to State)) *Breaker {
	return &Breaker{cfg: cfg, onChange: onChange, now: time.Now}
}

// Allow reports whether a request may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.cfg.Timeout {
			return false
		}
		b.moveTo(StateHalfOpen)
		b.probes = 1
		return true
	case StateHalfOpen:
		if b.probes >= b.cfg.HalfOpenLimit {
			return false
		}
		b.probes++
		return true
	default:
		return false
	}
}

// Success records a request that reached the service.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.probes--
		b.successes++
		if b.successes >= b.cfg.HalfOpenLimit {
			b.moveTo(StateClosed)
		}
	}
}

// Failure records a request that could not be served.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.unlock()

	b.lastFailure = b.now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			b.moveTo(StateOpen)
		}
	case StateHalfOpen:
		b.moveTo(StateOpen)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// moveTo changes state and resets the counters. Caller holds mu.
func (b *Breaker) moveTo(to State) {
	if b.state == to {
		return
	}
	if !b.changed {
		b.from = b.state
		b.changed = true
	}
	b.state = to
	b.failures, b.successes, b.probes = 0, 0, 0
}

func (b *Breaker) unlock() {
	changed, from, to := b.changed, b.from, b.state
	b.changed = false
	b.mu.Unlock()

	if changed && from != to && b.onChange != nil {
		b.onChange(from, to)
	}
}

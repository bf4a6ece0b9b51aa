// Package resilience provides reliability patterns for backend calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the externally visible breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Breaker implements a circuit breaker guarding one backend.
// It opens after maxFailures consecutive failures and rejects calls until
// timeout elapses. It then lets a single trial call through: success closes
// the circuit, failure re-opens it.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	trialActive bool
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	now         func() time.Time // for testing
}

// NewBreaker creates a circuit breaker that opens after maxFailures consecutive
// failures and stays open for the given timeout before transitioning to half-open.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open.
// Returns ErrCircuitOpen without calling fn when it is.
func (b *Breaker) Execute(fn func() error) error {
	trial, ok := b.allowRequest()
	if !ok {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialActive = false
		if err != nil {
			b.trip()
			return err
		}
		b.onSuccess()
		return nil
	}

	// Admitted while closed but finished after the circuit opened: the
	// outcome belongs to the old period and must not decide the trial.
	if b.state != StateClosed {
		return err
	}
	if err != nil {
		b.onFailure()
		return err
	}
	b.failures = 0
	return nil
}

// State reports the current state, promoting an expired open circuit to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.timeout {
		return StateHalfOpen
	}
	return b.state
}

// allowRequest reports whether a call may run and whether it is the
// half-open trial.
func (b *Breaker) allowRequest() (trial, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return false, false
		}
		b.state = StateHalfOpen
		b.trialActive = true
		return true, true
	case StateHalfOpen:
		if b.trialActive {
			return false, false
		}
		b.trialActive = true
		return true, true
	}
	return false, false
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure() {
	b.failures++
	if b.failures >= b.maxFailures {
		b.trip()
	}
}

// trip must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	b.failures = 0
	b.state = StateClosed
}

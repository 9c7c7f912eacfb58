package session

import (
	"sync"
	"time"
)

// breaker trips after maxFailures consecutive failures and resets after the
// cooldown elapses or on the first success.
type breaker struct {
	mu          sync.Mutex
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	failures    int
	lastFailure time.Time
	open        bool
}

func newBreaker(maxFailures int, cooldown time.Duration, now func() time.Time) *breaker {
	if now == nil {
		now = time.Now
	}
	return &breaker{maxFailures: maxFailures, cooldown: cooldown, now: now}
}

// Allow reports whether a call may proceed, closing the circuit first when
// the cooldown has elapsed.
func (b *breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil
	}
	if b.now().Sub(b.lastFailure) > b.cooldown {
		b.open = false
		b.failures = 0
		return nil
	}
	return ErrBreakerOpen
}

func (b *breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

// Failure records one more consecutive failure and reports whether this one
// tripped the circuit.
func (b *breaker) Failure() (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	if !b.open && b.failures >= b.maxFailures {
		b.open = true
		return true
	}
	return false
}

func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
	b.lastFailure = time.Time{}
}

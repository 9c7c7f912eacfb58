package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newBreaker(3, 30*time.Second, clock.Now)

	require.NoError(t, b.Allow())
	require.False(t, b.Failure())
	require.False(t, b.Failure())
	require.True(t, b.Failure(), "third failure trips the circuit")

	require.ErrorIs(t, b.Allow(), ErrBreakerOpen)
}

func TestBreakerClosesAfterCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newBreaker(3, 30*time.Second, clock.Now)

	b.Failure()
	b.Failure()
	b.Failure()
	require.ErrorIs(t, b.Allow(), ErrBreakerOpen)

	clock.Advance(29 * time.Second)
	require.ErrorIs(t, b.Allow(), ErrBreakerOpen)

	clock.Advance(2 * time.Second)
	require.NoError(t, b.Allow())
	require.NoError(t, b.Allow(), "circuit stays closed once reopened")
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newBreaker(3, 30*time.Second, clock.Now)

	b.Failure()
	b.Failure()
	b.Success()

	require.False(t, b.Failure())
	require.False(t, b.Failure())
	require.True(t, b.Failure())
}

func TestBreakerReset(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newBreaker(1, time.Minute, clock.Now)

	require.True(t, b.Failure())
	require.ErrorIs(t, b.Allow(), ErrBreakerOpen)

	b.Reset()
	require.NoError(t, b.Allow())
}

package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when After is called, so waits complete instantly.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	waited []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.waited = append(c.waited, d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRateLimiter_ImmediateBurst(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiterWithClock(5, 60.0, clock)

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(context.Background()), "burst token %d", i)
	}
	assert.Empty(t, clock.waited)
}

func TestRateLimiter_WaitsAfterBurst(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiterWithClock(1, 600.0, clock) // 10/sec refill

	require.NoError(t, rl.Wait(context.Background()))
	require.NoError(t, rl.Wait(context.Background()))

	require.Len(t, clock.waited, 1)
	assert.InDelta(t, float64(100*time.Millisecond), float64(clock.waited[0]), float64(time.Millisecond))
}

func TestRateLimiter_DeadlineTooShortFailsFast(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiterWithClock(1, 1.0, clock) // one token a minute

	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(ctx), ErrRateLimited)
	assert.Empty(t, clock.waited)
}

func TestRateLimiter_CancelledContext(t *testing.T) {
	rl := NewRateLimiterWithClock(1, 1.0, newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, rl.Wait(ctx))
	cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.Canceled)
}

func TestRateLimiter_DefaultValues(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	assert.Equal(t, 10.0, rl.max)
	assert.InDelta(t, 0.5, rl.rate, 1e-9)
}

func TestRateLimiter_TokenRefill(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiterWithClock(2, 6000.0, clock) // 100/sec refill

	require.NoError(t, rl.Wait(context.Background()))
	require.NoError(t, rl.Wait(context.Background()))

	clock.Advance(30 * time.Millisecond)
	require.NoError(t, rl.Wait(context.Background()))
	assert.Empty(t, clock.waited, "refilled token should not wait")
}

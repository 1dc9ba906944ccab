package agent

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when no token frees up before the caller's
// deadline.
var ErrRateLimited = errors.New("rate limited")

// Clock is the time source of a RateLimiter.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RateLimiter is a token bucket for throttling LLM API calls.
type RateLimiter struct {
	mu       sync.Mutex
	clock    Clock
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastTime time.Time
}

func NewRateLimiter(maxBurst int, ratePerMinute float64) *RateLimiter {
	return NewRateLimiterWithClock(maxBurst, ratePerMinute, realClock{})
}

func NewRateLimiterWithClock(maxBurst int, ratePerMinute float64, clock Clock) *RateLimiter {
	if maxBurst <= 0 {
		maxBurst = 10
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 30
	}
	if clock == nil {
		clock = realClock{}
	}
	return &RateLimiter{
		clock:    clock,
		tokens:   float64(maxBurst),
		max:      float64(maxBurst),
		rate:     ratePerMinute / 60.0,
		lastTime: clock.Now(),
	}
}

// Wait blocks until a token is available. When ctx has a deadline that ends
// before the next token, it returns ErrRateLimited without waiting.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rl.mu.Lock()
		now := rl.clock.Now()
		elapsed := now.Sub(rl.lastTime).Seconds()
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.max {
			rl.tokens = rl.max
		}
		rl.lastTime = now

		if rl.tokens >= 1.0 {
			rl.tokens -= 1.0
			rl.mu.Unlock()
			return nil
		}

		wait := time.Duration((1.0 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		// Context deadlines are wall-clock time whatever the bucket's clock.
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return ErrRateLimited
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rl.clock.After(wait):
		}
	}
}

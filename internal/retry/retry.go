// Package retry wraps fallible operations with bounded, jittered backoff.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"
)

// BackoffFunc returns the wait duration before the given (zero-based) attempt.
type BackoffFunc func(attempt int) time.Duration

// Config controls how Do behaves.
type Config struct {
	MaxAttempts int
	Backoff     BackoffFunc
}

// DefaultConfig returns a policy with sane defaults: three attempts with
// exponential backoff starting at 250ms and capped at 5s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Backoff:     Exponential(250*time.Millisecond, 5*time.Second),
	}
}

// Exponential builds a BackoffFunc doubling from base up to cap, with jitter.
// Jitter keeps concurrent retry storms from synchronizing.
func Exponential(base, cap time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		delay := float64(base) * math.Pow(2, float64(attempt))
		if delay > float64(cap) {
			delay = float64(cap)
		}
		half := time.Duration(delay / 2)
		return half + randomJitter(half)
	}
}

// Do runs op, retrying on failure up to cfg.MaxAttempts times. It never
// retries once the context is canceled or its deadline has passed, and it
// returns the last error wrapped with the attempt count.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff == nil {
		cfg.Backoff = Exponential(250*time.Millisecond, 5*time.Second)
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, cfg.Backoff(attempt-1)); err != nil {
				return err
			}
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}
	return fmt.Errorf("after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

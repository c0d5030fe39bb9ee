// Package retry repeats idempotent remote calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int           // total attempts, including the first; must be >= 1
	InitialWait time.Duration // wait before the second attempt
	MaxWait     time.Duration // cap on any single wait
	Multiplier  float64       // growth per attempt
	Jitter      float64       // fraction of the wait randomised either way (0-1)
}

// DefaultConfig returns the settings used by the HTTP gateway.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// None performs a single attempt.
func None() Config {
	return Config{MaxAttempts: 1}
}

type retryableError struct {
	err error
}

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryableError{err: err}
}

// IsRetryable reports whether err was marked by Retryable.
func IsRetryable(err error) bool {
	var r retryableError
	return errors.As(err, &r)
}

// Unwrap strips the retry marker from err.
func Unwrap(err error) error {
	var r retryableError
	if errors.As(err, &r) {
		return r.err
	}
	return err
}

// Backoff returns the wait before attempt+1, without jitter.
func (c Config) Backoff(attempt int) time.Duration {
	mult := c.Multiplier
	if mult <= 0 {
		mult = 1
	}
	wait := float64(c.InitialWait) * math.Pow(mult, float64(attempt-1))
	if c.MaxWait > 0 && wait > float64(c.MaxWait) {
		wait = float64(c.MaxWait)
	}
	return time.Duration(wait)
}

func (c Config) jittered(attempt int) time.Duration {
	wait := float64(c.Backoff(attempt))
	if c.Jitter > 0 {
		wait += wait * c.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(wait)
}

// Do runs fn until it succeeds, returns an error not marked retryable, or
// runs out of attempts. The last error is returned without its marker.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	attempts := max(cfg.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == attempts {
			break
		}

		timer := time.NewTimer(cfg.jittered(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, Unwrap(lastErr)
		case <-timer.C:
		}
	}
	return zero, Unwrap(lastErr)
}

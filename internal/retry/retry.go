// Package retry wraps calls to oracles and source providers with a uniform
// retry discipline: transient failures are retried with exponential backoff,
// everything else is returned to the caller untouched.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 4
	// DefaultInitialDelay is the wait before the first retry.
	DefaultInitialDelay = 2 * time.Second
	// DefaultMultiplier grows the delay between consecutive retries.
	DefaultMultiplier = 1.5

	maxInterval = 24 * time.Hour
)

// Attempt describes a failed call that is about to be retried.
type Attempt struct {
	// Number is the 1-based attempt that failed.
	Number int
	// Delay is how long the wrapper waits before the next attempt.
	Delay time.Duration
	Err   error
}

// Config controls the retry behaviour.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	// OnRetry is called before every wait. It must not block.
	OnRetry func(Attempt)
}

// DefaultConfig returns the standard retry budget: 4 retries starting at 2s, growing by 1.5x.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		Multiplier:   DefaultMultiplier,
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxRetries = n
		}
	}
}

// WithInitialDelay overrides the first backoff delay.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

// WithOnRetry registers an observer for retried attempts.
func WithOnRetry(fn func(Attempt)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// Do invokes fn and retries it while it fails with a transient error and the
// retry budget is not exhausted. Non-transient errors and the last transient
// error are returned exactly as fn produced them.
func Do[T any](ctx context.Context, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = DefaultMultiplier
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = maxInterval

	attempt := 0
	operation := func() (T, error) {
		attempt++
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		if !IsTransient(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}

	value, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(cfg.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			if cfg.OnRetry != nil {
				cfg.OnRetry(Attempt{Number: attempt, Delay: next, Err: err})
			}
		}),
	)
	// Retry stops on MaxTries before it unwraps a permanent error.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return value, err
}

package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig shapes the exponential backoff applied between attempts.
// Zero fields take the defaults noted on each.
type RetryConfig struct {
	// MaxAttempts counts every try including the first; 1 disables
	// retrying entirely. Default 5.
	MaxAttempts int

	// InitialBackoff seeds the delay schedule. Default 3s.
	InitialBackoff time.Duration

	// MaxBackoff bounds how far the schedule can grow. Default 15s.
	MaxBackoff time.Duration

	// Multiplier grows the delay between consecutive attempts. Default 2.
	Multiplier float64

	// JitterFraction spreads each delay by the given fraction in both
	// directions so concurrent workers don't lockstep. Zero disables
	// jitter; DefaultRetryConfig uses 0.25.
	JitterFraction float64

	// ShouldRetry decides whether an error is worth another attempt.
	// Nil means IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry observes each scheduled retry before its backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the schedule used against the Census Bureau
// hosts: five attempts, 3s base backoff capped at 15s, quarter jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 3 * time.Second,
		MaxBackoff:     15 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// Do runs fn until it succeeds, the attempt budget runs out, the error is
// ruled permanent, or ctx is done.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that produce a value. The successful call's
// value is returned; failures return the zero value with the last error.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	retryable := cfg.ShouldRetry
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		// ctx expiry and permanent errors end the loop with the attempt's
		// error; so does running out of budget.
		if ctx.Err() != nil || !retryable(err) || attempt == cfg.MaxAttempts {
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		timer := time.NewTimer(cfg.backoffFor(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	return c
}

// backoffFor returns the sleep that follows the given attempt, grown
// exponentially from InitialBackoff and jittered.
func (c RetryConfig) backoffFor(attempt int) time.Duration {
	d := float64(c.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= c.Multiplier
		if d >= float64(c.MaxBackoff) {
			d = float64(c.MaxBackoff)
			break
		}
	}
	if c.JitterFraction > 0 {
		spread := d * c.JitterFraction
		d += (rand.Float64()*2 - 1) * spread
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// RetryLogger returns an OnRetry callback that logs each retry at warn
// level, including the HTTP status when the error carries one.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		fields := []zap.Field{
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		}
		if status := StatusOf(err); status != 0 {
			fields = append(fields, zap.Int("status", status))
		}
		zap.L().Warn("retrying operation", fields...)
	}
}

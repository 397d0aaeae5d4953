package queue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mmynk/billbuddy/internal/apperr"
)

// RetryConfig controls the backoff of a single remote call.
type RetryConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxRetries   int

	// OnAttempt, if set, is called after every attempt with its 1-based
	// number and result.
	OnAttempt func(attempt int, err error)
}

// DefaultRetryConfig returns 1s initial delay, ×2 growth, 10s cap, 3 retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		MaxRetries:   3,
	}
}

// Delay returns the wait after the failed attempt with 0-based index n:
// min(InitialDelay * Multiplier^n, MaxDelay).
func (c RetryConfig) Delay(n int) time.Duration {
	d := time.Duration(float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(n)))
	if d > c.MaxDelay || d < 0 {
		d = c.MaxDelay
	}
	return d
}

// Retry calls fn up to 1+MaxRetries times, sleeping with exponential backoff
// between failures. Validation, permission, unauthorized and other
// non-retryable errors are returned after the first attempt.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if cfg.OnAttempt != nil {
			cfg.OnAttempt(attempt+1, err)
		}
		if err == nil {
			return nil
		}
		if !apperr.IsRetryable(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		delay := cfg.Delay(attempt)
		slog.Debug("Retrying remote call", "attempt", attempt+2, "backoff", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", err)
		case <-timer.C:
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", cfg.MaxRetries+1, err)
}

package notification

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const (
	defaultMaxAttempts = 5
	defaultFactor      = 10 * time.Second
	defaultBase        = 2.0
)

// RetryPolicy retries transient failures with exponential backoff. The wait
// before retry n (n starting at 1) is Factor * Base^(n-1).
type RetryPolicy struct {
	MaxAttempts int
	Factor      time.Duration
	Base        float64
	// Jitter picks a random wait in [0, backoff) instead of the full backoff.
	Jitter bool
	// Retryable decides whether an error is retried. Defaults to IsTransient.
	Retryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultRetryPolicy returns 5 attempts waiting 10s, 20s, 40s, 80s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		Factor:      defaultFactor,
		Base:        defaultBase,
	}
}

// Backoff returns the wait before the given retry (1-based), without jitter.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	p = p.normalized()
	if retry < 1 {
		return 0
	}
	return time.Duration(float64(p.Factor) * math.Pow(p.Base, float64(retry-1)))
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out.
func (p RetryPolicy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	p = p.normalized()
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := p.Backoff(attempt - 1)
			if p.Jitter && wait > 0 {
				wait = time.Duration(rand.Int64N(int64(wait)))
			}
			if p.OnRetry != nil {
				p.OnRetry(attempt, wait, lastErr)
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: retry aborted: %w: %w", name, ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil {
			return err
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, p.MaxAttempts, lastErr)
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Factor < 0 {
		p.Factor = 0
	}
	if p.Base < 1 {
		p.Base = defaultBase
	}
	return p
}

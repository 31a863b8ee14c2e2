// Package retry implements the capped exponential backoff policy
// dbcrossbar allows drivers to apply to idempotent GETs: at most five
// attempts, only for errors dbcerrors.IsRetryable reports as
// transient. It is adapted from the sliding-window/backoff bookkeeping
// in pkg/clients' circuit breaker and rate limiter.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
)

// Policy configures capped exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default is dbcrossbar's standard policy: at most 5 attempts.
var Default = Policy{
	MaxAttempts: 5,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    10 * time.Second,
}

// Do runs fn, retrying with capped exponential backoff and full
// jitter while dbcerrors.IsRetryable(err) is true, up to
// p.MaxAttempts. Non-retryable errors and context cancellation return
// immediately. The core never retries non-idempotent requests
// silently; callers are responsible for only passing this an
// idempotent operation (a schema GET, a HEAD, a metadata lookup).
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return dbcerrors.Wrap(err, dbcerrors.KindCancelled, "retry aborted")
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !dbcerrors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		delay := p.backoff(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return dbcerrors.Wrap(ctx.Err(), dbcerrors.KindCancelled, "retry aborted")
		}
	}
	return lastErr
}

func (p Policy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = Default.BaseDelay
	}
	max := p.MaxDelay
	if max <= 0 {
		max = Default.MaxDelay
	}
	d := base << attempt
	if d <= 0 || d > max {
		d = max
	}
	// full jitter: uniform in [0, d)
	return time.Duration(rand.Int63n(int64(d)))
}

// Do runs fn with the Default policy.
func Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return Default.Do(ctx, fn)
}

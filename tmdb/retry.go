package tmdb

import (
	"context"
	"time"

	"github.com/teranos/matinee/logger"
)

// RetryPolicy retries transient catalog failures with doubling backoff.
// MaxRetries counts attempts after the first, so the default allows three
// calls in total. The policy is passed into the client rather than baked in,
// so call sites and tests control their own budgets.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// Retryable classifies errors; nil falls back to the transient default
	// (429, 5xx, timeouts, network failures).
	Retryable func(error) bool
}

// DefaultRetryPolicy returns the standard catalog policy: three attempts,
// 500ms doubling to an 8s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
		Retryable:  isTransient,
	}
}

// Backoff returns the delay before retrying after the given zero-based
// failed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do runs fn, retrying retryable failures until the attempt budget or the
// context runs out.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = isTransient
	}

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || attempt >= p.MaxRetries || !retryable(err) {
			return err
		}

		delay := p.Backoff(attempt)
		logger.Warnw("Retrying catalog call",
			"attempt", attempt+1,
			"delay", delay,
			logger.FieldError, err,
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

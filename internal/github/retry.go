package github

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/smy-101/skillpack/internal/logger"
)

// RetryPolicy decides how transient failures are retried. Quota waits are
// handled separately and never consume an attempt.
type RetryPolicy struct {
	MaxAttempts uint
	// BaseDelay doubles after every failed attempt.
	BaseDelay time.Duration
	Retryable func(error) bool
}

// DefaultRetryPolicy allows three attempts with 1s, 2s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Retryable:   IsTransient,
	}
}

// NoDelayRetryPolicy keeps the attempt budget but never sleeps between tries.
func NoDelayRetryPolicy(attempts uint) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   0,
		Retryable:   IsTransient,
	}
}

func (p RetryPolicy) do(ctx context.Context, url string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("url", url).
				WithField("attempt", n+1).
				WithField("max_attempts", attempts).
				Debug("retrying GitHub request")
		}),
	}
	if p.BaseDelay > 0 {
		opts = append(opts, retry.Delay(p.BaseDelay), retry.DelayType(retry.BackOffDelay))
	} else {
		opts = append(opts, retry.Delay(0), retry.DelayType(retry.FixedDelay))
	}

	return retry.Do(fn, opts...)
}

package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxConflictRetries bounds read-modify-write loops that lose a version race.
const maxConflictRetries = 8

// RetryPolicy bounds automatic retries of transient infrastructure failures.
// Domain errors are never retried.
type RetryPolicy struct {
	Attempts  uint64
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, p.Attempts), ctx)
}

// Do runs op, retrying infrastructure failures. Exhaustion is reported as ErrUnavailable.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	err := backoff.Retry(func() error {
		err := op()
		if err != nil && isDomain(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx))
	if err == nil || isDomain(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

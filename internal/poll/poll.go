// Package poll waits for asynchronous GemPlay state (bots placing bets,
// games changing status) by re-checking at a constant interval.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrTimeout is returned when the condition never held before the deadline.
var ErrTimeout = errors.New("poll: condition not met before timeout")

// DefaultInterval is used when a non-positive interval is given.
const DefaultInterval = time.Second

// errPending marks an attempt whose condition did not hold yet.
var errPending = errors.New("pending")

// Func checks the condition once. Returning an error stops polling
// immediately with that error.
type Func func(ctx context.Context) (done bool, err error)

// Until calls fn every interval until it reports done, returns an error,
// timeout elapses, or ctx is cancelled. fn is always called at least once.
func Until(ctx context.Context, interval, timeout time.Duration, fn Func) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	b := retry.WithMaxDuration(timeout, retry.NewConstant(interval))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if !done {
			return retry.RetryableError(errPending)
		}
		return nil
	})
	if errors.Is(err, errPending) {
		return ErrTimeout
	}
	return err
}

// Attempts calls fn up to n times with interval between calls. It is for
// checks bounded by a count rather than wall time.
func Attempts(ctx context.Context, interval time.Duration, n uint64, fn Func) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if n == 0 {
		n = 1
	}
	b := retry.WithMaxRetries(n-1, retry.NewConstant(interval))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if !done {
			return retry.RetryableError(errPending)
		}
		return nil
	})
	if errors.Is(err, errPending) {
		return ErrTimeout
	}
	return err
}

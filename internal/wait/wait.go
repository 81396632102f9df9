// Package wait provides a bounded fixed-interval polling primitive.
//
// Every long-running AWS state transition (load balancer becoming active,
// service reaching its desired count, resources confirmed deleted) is
// expressed as one [Until] call with a resource-specific probe and budget.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Probe reports whether the awaited condition holds. A non-nil error aborts
// the wait immediately.
type Probe func(ctx context.Context) (bool, error)

// TimeoutError is returned when a condition does not hold within its budget.
type TimeoutError struct {
	Desc    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %v waiting for %s", e.Timeout, e.Desc)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Until polls probe at a fixed interval until it returns true, the timeout
// budget is exhausted, or ctx is cancelled. There is no backoff or jitter;
// the probe runs once immediately before any sleep. The timeout is checked
// only after a failed probe, so a budget of zero still allows one attempt.
func Until(ctx context.Context, probe Probe, desc string, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := probe(ctx)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", desc, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return &TimeoutError{Desc: desc, Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", desc, ctx.Err())
		case <-time.After(interval):
		}
	}
}

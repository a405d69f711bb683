// Package wait provides the bounded polling loop used when a remote
// change (service restart, account propagation) is observable only by
// re-checking.
package wait

import (
	"context"
	"fmt"
	"time"
)

// DefaultInterval is the default time between probe attempts.
const DefaultInterval = 5 * time.Second

// DefaultTimeout is the default overall polling deadline.
const DefaultTimeout = 2 * time.Minute

// Probe checks a condition once. done=true stops the loop successfully.
// A non-nil error stops the loop immediately and is returned as-is.
type Probe func(ctx context.Context) (done bool, err error)

// For invokes probe at the given interval until it reports done, fails,
// the timeout elapses, or ctx is cancelled. The probe runs once
// immediately before the first tick.
func For(ctx context.Context, interval, timeout time.Duration, probe Probe) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	done, err := probe(ctx)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("polling cancelled: %w", ctx.Err())
		case <-deadline.C:
			return fmt.Errorf("condition not met within %s", timeout)
		case <-ticker.C:
			done, err := probe(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

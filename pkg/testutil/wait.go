package testutil

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// WaitFor polls condition every interval until it holds, or fails once
// timeout elapses.
func WaitFor(timeout, interval time.Duration, condition func() bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return WaitForContext(ctx, interval, condition)
}

// WaitForContext polls condition every interval until it holds or ctx is done.
func WaitForContext(ctx context.Context, interval time.Duration, condition func() bool) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if condition() {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "condition not met")
		case <-ticker.C:
		}
	}
}

package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/code-payments/sol-trust/pkg/retry/backoff"
)

// Strategy decides whether an action that failed with err after attempts
// tries should run again. Strategies may sleep before returning.
type Strategy func(attempts uint, err error) bool

// Limit allows at most maxAttempts attempts in total, including the first.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only retries errors matching one of retriableErrors, as
// determined by errors.Is.
func RetriableErrors(retriableErrors ...error) Strategy {
	return func(_ uint, err error) bool {
		for _, target := range retriableErrors {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// Context stops retrying once ctx is done.
func Context(ctx context.Context) Strategy {
	return func(_ uint, _ error) bool {
		return ctx.Err() == nil
	}
}

// Backoff sleeps for the delay strategy gives, capped at maxBackoff, before
// every retry.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return func(attempts uint, _ error) bool {
		sleeperImpl.Sleep(capDelay(strategy(attempts), maxBackoff))
		return true
	}
}

// BackoffWithJitter is Backoff with the capped delay moved randomly by up to
// jitter, a fraction of the delay, in either direction.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(attempts uint, _ error) bool {
		delay := capDelay(strategy(attempts), maxBackoff)
		offset := (rand.Float64()*2 - 1) * jitter
		sleeperImpl.Sleep(time.Duration(float64(delay) * (1 + offset)))
		return true
	}
}

func capDelay(delay, maxDelay time.Duration) time.Duration {
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

type sleeper interface {
	Sleep(time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

var sleeperImpl sleeper = realSleeper{}

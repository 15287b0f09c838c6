// Package backoff provides delay schedules for retry.Backoff.
package backoff

import (
	"math"
	"time"
)

const maxDelay = time.Duration(math.MaxInt64)

// Strategy returns how long to wait after the given attempt, counting from 1.
type Strategy func(attempts uint) time.Duration

// Constant waits interval after every attempt.
func Constant(interval time.Duration) Strategy {
	return func(_ uint) time.Duration {
		return interval
	}
}

// Linear waits baseDelay times the number of attempts: 1x, 2x, 3x, ...
func Linear(baseDelay time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		if attempts > 0 && uint64(baseDelay) > uint64(maxDelay)/uint64(attempts) {
			return maxDelay
		}
		return baseDelay * time.Duration(attempts)
	}
}

// Exponential waits baseDelay * base^(attempts-1).
func Exponential(baseDelay time.Duration, base float64) Strategy {
	return func(attempts uint) time.Duration {
		delay := float64(baseDelay) * math.Pow(base, float64(attempts)-1)
		if delay >= float64(maxDelay) {
			return maxDelay
		}
		return time.Duration(delay)
	}
}

// BinaryExponential doubles the delay after every attempt.
func BinaryExponential(baseDelay time.Duration) Strategy {
	return Exponential(baseDelay, 2)
}

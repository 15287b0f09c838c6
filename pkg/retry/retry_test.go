package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/sol-trust/pkg/retry/backoff"
)

func TestRetry_RealSleeper(t *testing.T) {
	sleeperImpl = realSleeper{}

	start := time.Now()
	attempts, err := Retry(
		func() error { return errors.New("err") },
		Limit(3),
		Backoff(backoff.Constant(100*time.Millisecond), time.Second),
	)
	elapsed := time.Since(start)

	assert.Error(t, err)
	assert.EqualValues(t, 3, attempts)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestRetry_SucceedsEventually(t *testing.T) {
	ts := &testSleeper{}
	sleeperImpl = ts

	var calls int
	attempts, err := Retry(
		func() error {
			calls++
			if calls < 4 {
				return errors.New("not yet")
			}
			return nil
		},
		Limit(10),
		Backoff(backoff.Linear(time.Millisecond), time.Second),
	)

	assert.NoError(t, err)
	assert.EqualValues(t, 4, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, ts.sleepTimes)
}

func TestRetrier(t *testing.T) {
	retriableErr := errors.New("retriable")
	r := NewRetrier(Limit(5), RetriableErrors(retriableErr))

	attempts, err := r.Retry(func() error { return nil })
	assert.NoError(t, err)
	assert.EqualValues(t, 1, attempts)

	// Either strategy can end the loop.
	attempts, err = r.Retry(func() error { return errors.New("unknown") })
	assert.EqualError(t, err, "unknown")
	assert.EqualValues(t, 1, attempts)

	attempts, err = r.Retry(func() error { return retriableErr })
	assert.Equal(t, retriableErr, err)
	assert.EqualValues(t, 5, attempts)
}

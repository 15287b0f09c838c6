package soltrust

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/sol-trust/pkg/solana/soltrust"
)

func TestCalculateReward(t *testing.T) {
	for _, tc := range []struct {
		balance      uint64
		rateBps      uint64
		lockDuration int64
		expected     uint64
	}{
		{5_000_000_000, 500, 0, 0},
		{0, 500, 86400, 0},
		{1_000_000_000, 0, 86400, 0},
		// 1 SOL at 5% for a day
		{1_000_000_000, 500, 86400, 136_986},
		// 1 SOL at 5% for a year
		{1_000_000_000, 500, secondsPerYear, 50_000_000},
		// 100% for a year returns the balance
		{math.MaxUint64, basisPoints, secondsPerYear, math.MaxUint64},
	} {
		actual, err := CalculateReward(tc.balance, tc.rateBps, tc.lockDuration)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, actual, "balance=%d rate=%d duration=%d", tc.balance, tc.rateBps, tc.lockDuration)
	}
}

func TestCalculateReward_Overflow(t *testing.T) {
	_, err := CalculateReward(math.MaxUint64, basisPoints, 2*secondsPerYear)
	assert.Equal(t, soltrust.ErrArithmeticOverflow, err)

	_, err = CalculateReward(math.MaxUint64, math.MaxUint64, math.MaxInt64)
	assert.Equal(t, soltrust.ErrArithmeticOverflow, err)

	_, err = CalculateReward(1, 500, -1)
	assert.Equal(t, soltrust.ErrInvalidLockDuration, err)
}

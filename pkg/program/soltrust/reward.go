package soltrust

import (
	"math/bits"

	"github.com/code-payments/sol-trust/pkg/solana/soltrust"
)

const (
	basisPoints    = 10_000
	secondsPerYear = 365 * 24 * 60 * 60
)

// CalculateReward returns the simple interest earned by balance at
// rateBps per year over lockDuration seconds, rounded down.
//
// The intermediate product can exceed 128 bits, so it's computed over three
// 64 bit limbs.
func CalculateReward(balance, rateBps uint64, lockDuration int64) (uint64, error) {
	if lockDuration < 0 {
		return 0, soltrust.ErrInvalidLockDuration
	}
	if balance == 0 || rateBps == 0 || lockDuration == 0 {
		return 0, nil
	}

	// balance * rateBps
	hi, lo := bits.Mul64(balance, rateBps)

	// (hi, lo) * lockDuration
	duration := uint64(lockDuration)
	midHi, low := bits.Mul64(lo, duration)
	topHi, topLo := bits.Mul64(hi, duration)
	mid, carry := bits.Add64(midHi, topLo, 0)
	top := topHi + carry

	const divisor = basisPoints * secondsPerYear

	var quotient, remainder uint64
	for i, limb := range []uint64{top, mid, low} {
		quotient, remainder = bits.Div64(remainder, limb, divisor)
		if i < 2 && quotient != 0 {
			return 0, soltrust.ErrArithmeticOverflow
		}
	}
	return quotient, nil
}

package bankrewards

import (
	"errors"
	"fmt"

	"github.com/code-payments/sol-trust/pkg/solana"
)

// RewardsError is a custom program error returned by the rewards program.
// Codes start above the vault program's range so the two never collide.
type RewardsError uint32

const (
	// The treasury does not hold enough lamports for the requested payout
	ErrInsufficientRewardFunds RewardsError = iota + 0x1b58

	// The caller is not the authorized program
	ErrUnauthorizedCaller

	// Treasury accounts do not match the derived addresses
	ErrInvalidTreasury

	// The treasury already exists
	ErrAlreadyInitialized

	// Signer is not the treasury admin
	ErrUnauthorized

	// Amount must be positive
	ErrInvalidAmount

	// Checked arithmetic overflowed
	ErrArithmeticOverflow

	// Unknown instruction
	ErrInvalidInstruction
)

var rewardsErrorNames = map[RewardsError]string{
	ErrInsufficientRewardFunds: "InsufficientRewardFunds",
	ErrUnauthorizedCaller:      "UnauthorizedCaller",
	ErrInvalidTreasury:         "InvalidTreasury",
	ErrAlreadyInitialized:      "AlreadyInitialized",
	ErrUnauthorized:            "Unauthorized",
	ErrInvalidAmount:           "InvalidAmount",
	ErrArithmeticOverflow:      "ArithmeticOverflow",
	ErrInvalidInstruction:      "InvalidInstruction",
}

func (e RewardsError) String() string {
	if name, ok := rewardsErrorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("RewardsError(%d)", uint32(e))
}

func (e RewardsError) Error() string {
	return fmt.Sprintf("rewards error %s (0x%x)", e.String(), uint32(e))
}

func (e RewardsError) Custom() solana.CustomError {
	return solana.CustomError(e)
}

// ErrorFromTransactionError extracts the RewardsError carried by err, if any.
func ErrorFromTransactionError(err error) (RewardsError, bool) {
	var custom solana.CustomError
	if !errors.As(err, &custom) {
		return 0, false
	}

	v := RewardsError(custom)
	if _, ok := rewardsErrorNames[v]; !ok {
		return 0, false
	}
	return v, true
}

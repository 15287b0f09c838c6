package soltrust

import (
	"errors"
	"fmt"

	"github.com/code-payments/sol-trust/pkg/solana"
)

// VaultError is a custom program error returned by the vault program.
type VaultError uint32

const (
	// The vault state record already exists
	ErrAlreadyInitialized VaultError = iota + 0x1770

	// Lock duration must be non-negative
	ErrInvalidLockDuration

	// Signer is not the vault owner
	ErrUnauthorized

	// The lock period has not elapsed
	ErrVaultNotMature

	// No viable bump seed exists for the derived address
	ErrAddressDerivationFailure

	// Deposit amount must be positive
	ErrInvalidAmount

	// The vault is not active
	ErrVaultNotActive

	// State account does not match the derived address
	ErrInvalidStateAccount

	// Vault account does not match the derived address
	ErrInvalidVaultAccount

	// Rewards program does not match the configured program
	ErrInvalidRewardsProgram

	// Checked arithmetic overflowed
	ErrArithmeticOverflow

	// Premature close is disabled
	ErrPrematureCloseDisabled

	// Unknown instruction
	ErrInvalidInstruction

	// Deposits are closed once a nonzero lock has elapsed
	ErrDepositAfterUnlock
)

var vaultErrorNames = map[VaultError]string{
	ErrAlreadyInitialized:       "AlreadyInitialized",
	ErrInvalidLockDuration:      "InvalidLockDuration",
	ErrUnauthorized:             "Unauthorized",
	ErrVaultNotMature:           "VaultNotMature",
	ErrAddressDerivationFailure: "AddressDerivationFailure",
	ErrInvalidAmount:            "InvalidAmount",
	ErrVaultNotActive:           "VaultNotActive",
	ErrInvalidStateAccount:      "InvalidStateAccount",
	ErrInvalidVaultAccount:      "InvalidVaultAccount",
	ErrInvalidRewardsProgram:    "InvalidRewardsProgram",
	ErrArithmeticOverflow:       "ArithmeticOverflow",
	ErrPrematureCloseDisabled:   "PrematureCloseDisabled",
	ErrInvalidInstruction:       "InvalidInstruction",
	ErrDepositAfterUnlock:       "DepositAfterUnlock",
}

func (e VaultError) String() string {
	if name, ok := vaultErrorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("VaultError(%d)", uint32(e))
}

func (e VaultError) Error() string {
	return fmt.Sprintf("vault error %s (0x%x)", e.String(), uint32(e))
}

// Custom converts the error into the code surfaced in transaction results.
func (e VaultError) Custom() solana.CustomError {
	return solana.CustomError(e)
}

// ErrorFromTransactionError extracts the VaultError carried by err, if any.
func ErrorFromTransactionError(err error) (VaultError, bool) {
	var custom solana.CustomError
	if !errors.As(err, &custom) {
		return 0, false
	}

	v := VaultError(custom)
	if _, ok := vaultErrorNames[v]; !ok {
		return 0, false
	}
	return v, true
}

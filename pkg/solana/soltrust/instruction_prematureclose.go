package soltrust

import (
	"crypto/ed25519"

	"github.com/code-payments/sol-trust/pkg/solana"
)

var prematureCloseInstructionDiscriminator = []byte{
	207, 116, 222, 199, 21, 82, 184, 95,
}

type PrematureCloseInstructionAccounts struct {
	Owner       ed25519.PublicKey
	Vault       ed25519.PublicKey
	State       ed25519.PublicKey
	AdminWallet ed25519.PublicKey
}

// NewPrematureCloseInstruction requests an early close. The program rejects
// it with ErrPrematureCloseDisabled.
//
// Accounts:
//  0. [WRITE, SIGNER] owner
//  1. [WRITE] vault
//  2. [WRITE] state
//  3. [WRITE] admin wallet
//  4. [] system program
func NewPrematureCloseInstruction(
	programId ed25519.PublicKey,
	accounts *PrematureCloseInstructionAccounts,
) solana.Instruction {
	data := make([]byte, len(prematureCloseInstructionDiscriminator))
	copy(data, prematureCloseInstructionDiscriminator)

	return solana.NewInstruction(
		programId,
		data,
		solana.NewAccountMeta(accounts.Owner, true),
		solana.NewAccountMeta(accounts.Vault, false),
		solana.NewAccountMeta(accounts.State, false),
		solana.NewAccountMeta(accounts.AdminWallet, false),
		solana.NewReadonlyAccountMeta(SYSTEM_PROGRAM_ID, false),
	)
}

package soltrust

import (
	"crypto/ed25519"

	"github.com/code-payments/sol-trust/pkg/solana"
)

var matureCloseInstructionDiscriminator = []byte{
	166, 185, 158, 169, 228, 50, 248, 61,
}

type MatureCloseInstructionAccounts struct {
	Owner              ed25519.PublicKey
	Vault              ed25519.PublicKey
	State              ed25519.PublicKey
	BankVault          ed25519.PublicKey
	BankVaultState     ed25519.PublicKey
	BankRewardsProgram ed25519.PublicKey
}

// NewMatureCloseInstruction pays out a matured vault and its reward, then
// closes it.
//
// Accounts:
//  0. [WRITE, SIGNER] owner
//  1. [WRITE] vault
//  2. [WRITE] state
//  3. [WRITE] bank vault
//  4. [WRITE] bank vault state
//  5. [] bank rewards program
//  6. [] system program
func NewMatureCloseInstruction(
	programId ed25519.PublicKey,
	accounts *MatureCloseInstructionAccounts,
) solana.Instruction {
	data := make([]byte, len(matureCloseInstructionDiscriminator))
	copy(data, matureCloseInstructionDiscriminator)

	return solana.NewInstruction(
		programId,
		data,
		solana.NewAccountMeta(accounts.Owner, true),
		solana.NewAccountMeta(accounts.Vault, false),
		solana.NewAccountMeta(accounts.State, false),
		solana.NewAccountMeta(accounts.BankVault, false),
		solana.NewAccountMeta(accounts.BankVaultState, false),
		solana.NewReadonlyAccountMeta(accounts.BankRewardsProgram, false),
		solana.NewReadonlyAccountMeta(SYSTEM_PROGRAM_ID, false),
	)
}

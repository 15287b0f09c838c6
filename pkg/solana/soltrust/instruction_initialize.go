package soltrust

import (
	"crypto/ed25519"

	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/binary"
)

var initializeInstructionDiscriminator = []byte{
	175, 175, 109, 31, 13, 152, 155, 237,
}

const (
	InitializeInstructionArgsSize = 8 // lock_duration
)

type InitializeInstructionArgs struct {
	LockDuration int64
}

type InitializeInstructionAccounts struct {
	Owner ed25519.PublicKey
	State ed25519.PublicKey
	Vault ed25519.PublicKey
}

// NewInitializeInstruction creates the vault state record and custody account
// for the owner.
//
// Accounts:
//  0. [WRITE, SIGNER] owner
//  1. [WRITE] state
//  2. [WRITE] vault
//  3. [] system program
func NewInitializeInstruction(
	programId ed25519.PublicKey,
	accounts *InitializeInstructionAccounts,
	args *InitializeInstructionArgs,
) solana.Instruction {
	var offset int

	data := make([]byte, len(initializeInstructionDiscriminator)+InitializeInstructionArgsSize)
	binary.PutDiscriminator(data, initializeInstructionDiscriminator, &offset)
	binary.PutInt64(data[offset:], args.LockDuration, &offset)

	return solana.NewInstruction(
		programId,
		data,
		solana.NewAccountMeta(accounts.Owner, true),
		solana.NewAccountMeta(accounts.State, false),
		solana.NewAccountMeta(accounts.Vault, false),
		solana.NewReadonlyAccountMeta(SYSTEM_PROGRAM_ID, false),
	)
}

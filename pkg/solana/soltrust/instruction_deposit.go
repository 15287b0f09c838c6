package soltrust

import (
	"crypto/ed25519"

	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/binary"
)

var depositInstructionDiscriminator = []byte{
	242, 35, 198, 137, 82, 225, 242, 182,
}

const (
	DepositInstructionArgsSize = 8 // amount
)

type DepositInstructionArgs struct {
	Amount uint64
}

type DepositInstructionAccounts struct {
	Owner ed25519.PublicKey
	State ed25519.PublicKey
	Vault ed25519.PublicKey
}

// NewDepositInstruction moves lamports from the owner into the custody account.
//
// Accounts:
//  0. [WRITE, SIGNER] owner
//  1. [WRITE] state
//  2. [WRITE] vault
//  3. [] system program
func NewDepositInstruction(
	programId ed25519.PublicKey,
	accounts *DepositInstructionAccounts,
	args *DepositInstructionArgs,
) solana.Instruction {
	var offset int

	data := make([]byte, len(depositInstructionDiscriminator)+DepositInstructionArgsSize)
	binary.PutDiscriminator(data, depositInstructionDiscriminator, &offset)
	binary.PutUint64(data[offset:], args.Amount, &offset)

	return solana.NewInstruction(
		programId,
		data,
		solana.NewAccountMeta(accounts.Owner, true),
		solana.NewAccountMeta(accounts.State, false),
		solana.NewAccountMeta(accounts.Vault, false),
		solana.NewReadonlyAccountMeta(SYSTEM_PROGRAM_ID, false),
	)
}

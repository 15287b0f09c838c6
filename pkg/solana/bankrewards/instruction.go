package bankrewards

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/binary"
)

var (
	initializeInstructionDiscriminator = []byte{175, 175, 109, 31, 13, 152, 155, 237}
	fundInstructionDiscriminator       = []byte{218, 188, 111, 221, 152, 113, 174, 7}
	withdrawInstructionDiscriminator   = []byte{183, 18, 70, 156, 148, 109, 161, 34}
)

const (
	InitializeInstructionArgsSize = 32 // authorized_program
	FundInstructionArgsSize       = 8  // amount
	WithdrawInstructionArgsSize   = 8  // amount
)

type InstructionType uint8

const (
	InstructionTypeUnknown InstructionType = iota
	InstructionTypeInitialize
	InstructionTypeFund
	InstructionTypeWithdraw
)

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeInitialize:
		return "initialize"
	case InstructionTypeFund:
		return "fund"
	case InstructionTypeWithdraw:
		return "withdraw"
	}
	return "unknown"
}

type InstructionData struct {
	Type              InstructionType
	AuthorizedProgram ed25519.PublicKey
	Amount            uint64
}

func UnmarshalInstructionData(data []byte) (*InstructionData, error) {
	if len(data) < 8 {
		return nil, ErrInvalidInstructionData
	}

	offset := 8
	discriminator := data[:8]
	args := data[offset:]

	switch {
	case bytes.Equal(discriminator, initializeInstructionDiscriminator):
		if len(args) != InitializeInstructionArgsSize {
			return nil, ErrInvalidInstructionData
		}
		v := &InstructionData{Type: InstructionTypeInitialize}
		binary.GetKey32(args, &v.AuthorizedProgram, &offset)
		return v, nil
	case bytes.Equal(discriminator, fundInstructionDiscriminator):
		if len(args) != FundInstructionArgsSize {
			return nil, ErrInvalidInstructionData
		}
		v := &InstructionData{Type: InstructionTypeFund}
		binary.GetUint64(args, &v.Amount, &offset)
		return v, nil
	case bytes.Equal(discriminator, withdrawInstructionDiscriminator):
		if len(args) != WithdrawInstructionArgsSize {
			return nil, ErrInvalidInstructionData
		}
		v := &InstructionData{Type: InstructionTypeWithdraw}
		binary.GetUint64(args, &v.Amount, &offset)
		return v, nil
	}

	return nil, ErrInvalidInstructionData
}

type InitializeInstructionAccounts struct {
	Admin ed25519.PublicKey
	State ed25519.PublicKey
	Vault ed25519.PublicKey
}

type InitializeInstructionArgs struct {
	AuthorizedProgram ed25519.PublicKey
}

// NewInitializeInstruction creates a treasury for the admin.
//
// Accounts:
//  0. [WRITE, SIGNER] admin
//  1. [WRITE] treasury state
//  2. [WRITE] treasury vault
//  3. [] system program
func NewInitializeInstruction(
	programId ed25519.PublicKey,
	accounts *InitializeInstructionAccounts,
	args *InitializeInstructionArgs,
) solana.Instruction {
	var offset int

	data := make([]byte, len(initializeInstructionDiscriminator)+InitializeInstructionArgsSize)
	binary.PutDiscriminator(data, initializeInstructionDiscriminator, &offset)
	binary.PutKey32(data[offset:], args.AuthorizedProgram, &offset)

	return solana.NewInstruction(
		programId,
		data,
		solana.NewAccountMeta(accounts.Admin, true),
		solana.NewAccountMeta(accounts.State, false),
		solana.NewAccountMeta(accounts.Vault, false),
		solana.NewReadonlyAccountMeta(SYSTEM_PROGRAM_ID, false),
	)
}

type FundInstructionAccounts struct {
	Admin ed25519.PublicKey
	State ed25519.PublicKey
	Vault ed25519.PublicKey
}

type FundInstructionArgs struct {
	Amount uint64
}

// NewFundInstruction moves lamports from the admin into the treasury vault.
//
// Accounts:
//  0. [WRITE, SIGNER] admin
//  1. [WRITE] treasury state
//  2. [WRITE] treasury vault
//  3. [] system program
func NewFundInstruction(
	programId ed25519.PublicKey,
	accounts *FundInstructionAccounts,
	args *FundInstructionArgs,
) solana.Instruction {
	var offset int

	data := make([]byte, len(fundInstructionDiscriminator)+FundInstructionArgsSize)
	binary.PutDiscriminator(data, fundInstructionDiscriminator, &offset)
	binary.PutUint64(data[offset:], args.Amount, &offset)

	return solana.NewInstruction(
		programId,
		data,
		solana.NewAccountMeta(accounts.Admin, true),
		solana.NewAccountMeta(accounts.State, false),
		solana.NewAccountMeta(accounts.Vault, false),
		solana.NewReadonlyAccountMeta(SYSTEM_PROGRAM_ID, false),
	)
}

type WithdrawInstructionAccounts struct {
	Recipient     ed25519.PublicKey
	CustodyVault  ed25519.PublicKey
	CustodyState  ed25519.PublicKey
	TreasuryVault ed25519.PublicKey
	TreasuryState ed25519.PublicKey
}

type WithdrawInstructionArgs struct {
	Amount uint64
}

// NewWithdrawInstruction pays a reward from the treasury. It is only
// accepted when invoked by the authorized program signing for its custody
// vault.
//
// Accounts:
//  0. [WRITE] recipient
//  1. [SIGNER] custody vault
//  2. [] custody state
//  3. [WRITE] treasury vault
//  4. [WRITE] treasury state
//  5. [] system program
func NewWithdrawInstruction(
	programId ed25519.PublicKey,
	accounts *WithdrawInstructionAccounts,
	args *WithdrawInstructionArgs,
) solana.Instruction {
	var offset int

	data := make([]byte, len(withdrawInstructionDiscriminator)+WithdrawInstructionArgsSize)
	binary.PutDiscriminator(data, withdrawInstructionDiscriminator, &offset)
	binary.PutUint64(data[offset:], args.Amount, &offset)

	return solana.NewInstruction(
		programId,
		data,
		solana.NewAccountMeta(accounts.Recipient, false),
		solana.NewReadonlyAccountMeta(accounts.CustodyVault, true),
		solana.NewReadonlyAccountMeta(accounts.CustodyState, false),
		solana.NewAccountMeta(accounts.TreasuryVault, false),
		solana.NewAccountMeta(accounts.TreasuryState, false),
		solana.NewReadonlyAccountMeta(SYSTEM_PROGRAM_ID, false),
	)
}

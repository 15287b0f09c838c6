package ledger

import (
	"crypto/ed25519"
	"fmt"

	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/system"
)

// SystemError is a custom error returned by the system program.
//
// Reference: https://github.com/solana-labs/solana/blob/v1.17.0/sdk/program/src/system_instruction.rs#L24
type SystemError uint32

const (
	SystemErrorAccountAlreadyInUse SystemError = iota
	SystemErrorResultWithNegativeLamports
	SystemErrorInvalidProgramId
	SystemErrorInvalidAccountDataLength
)

func (e SystemError) Error() string {
	switch e {
	case SystemErrorAccountAlreadyInUse:
		return "account already in use"
	case SystemErrorResultWithNegativeLamports:
		return "insufficient lamports"
	case SystemErrorInvalidProgramId:
		return "invalid program id"
	case SystemErrorInvalidAccountDataLength:
		return "invalid account data length"
	}
	return fmt.Sprintf("system error %d", uint32(e))
}

func (e SystemError) Custom() solana.CustomError {
	return solana.CustomError(e)
}

type systemProgram struct{}

// NewSystemProgram returns the native system program, supporting account
// creation, assignment, allocation and transfers.
func NewSystemProgram() Program {
	return systemProgram{}
}

func (systemProgram) Id() ed25519.PublicKey {
	return system.ProgramKey[:]
}

func (p systemProgram) Process(ic *InvokeContext, data []byte) error {
	args, err := system.UnmarshalInstructionData(data)
	if err != nil {
		return solana.InstructionErrorInvalidInstructionData
	}

	switch args.Command {
	case system.CommandCreateAccount:
		return p.createAccount(ic, args)
	case system.CommandAssign:
		return p.assign(ic, args)
	case system.CommandTransfer:
		return p.transfer(ic, args)
	case system.CommandAllocate:
		return p.allocate(ic, args)
	}
	return solana.InstructionErrorInvalidInstructionData
}

func (p systemProgram) createAccount(ic *InvokeContext, args *system.InstructionData) error {
	funder, err := ic.Account(0)
	if err != nil {
		return err
	}
	account, err := ic.Account(1)
	if err != nil {
		return err
	}

	// An account with lamports can't be created. Funded system accounts are
	// set up with allocate and assign instead.
	if account.Lamports > 0 {
		ic.Log("Create Account: account %s already in use", account)
		return SystemErrorAccountAlreadyInUse
	}

	if err := doAllocate(ic, account, args.Space); err != nil {
		return err
	}
	if err := doAssign(ic, account, args.Owner); err != nil {
		return err
	}
	return doTransfer(ic, funder, account, args.Lamports)
}

func (p systemProgram) assign(ic *InvokeContext, args *system.InstructionData) error {
	account, err := ic.Account(0)
	if err != nil {
		return err
	}
	return doAssign(ic, account, args.Owner)
}

func (p systemProgram) transfer(ic *InvokeContext, args *system.InstructionData) error {
	from, err := ic.Account(0)
	if err != nil {
		return err
	}
	to, err := ic.Account(1)
	if err != nil {
		return err
	}

	if len(from.Data) > 0 {
		ic.Log("Transfer: `from` must not carry data")
		return solana.InstructionErrorInvalidArgument
	}
	return doTransfer(ic, from, to, args.Lamports)
}

func (p systemProgram) allocate(ic *InvokeContext, args *system.InstructionData) error {
	account, err := ic.Account(0)
	if err != nil {
		return err
	}
	return doAllocate(ic, account, args.Space)
}

func doAllocate(ic *InvokeContext, account *AccountInfo, space uint64) error {
	if !account.IsSigner {
		ic.Log("Allocate: 'to' account %s must sign", account)
		return solana.InstructionErrorMissingRequiredSignature
	}

	if len(account.Data) > 0 || !account.IsOwnedBy(system.ProgramKey[:]) {
		ic.Log("Allocate: account %s already in use", account)
		return SystemErrorAccountAlreadyInUse
	}

	if space > system.MaxPermittedDataLen {
		ic.Log("Allocate: requested %d, max allowed %d", space, system.MaxPermittedDataLen)
		return SystemErrorInvalidAccountDataLength
	}

	account.Data = make([]byte, space)
	return nil
}

func doAssign(ic *InvokeContext, account *AccountInfo, owner ed25519.PublicKey) error {
	if account.IsOwnedBy(owner) {
		return nil
	}

	if !account.IsSigner {
		ic.Log("Assign: account %s must sign", account)
		return solana.InstructionErrorMissingRequiredSignature
	}

	account.Owner = owner
	return nil
}

func doTransfer(ic *InvokeContext, from, to *AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		ic.Log("Transfer: `from` account %s must sign", from)
		return solana.InstructionErrorMissingRequiredSignature
	}

	if from.Lamports < lamports {
		ic.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return SystemErrorResultWithNegativeLamports
	}

	if to.Lamports+lamports < to.Lamports {
		return solana.InstructionErrorArithmeticOverflow
	}

	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

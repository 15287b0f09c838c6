package system

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/sol-trust/pkg/solana"
)

// ProgramKey is the system program address (the zero key).
var ProgramKey [32]byte

// Command is the little endian u32 prefix identifying a system instruction.
type Command uint32

const (
	CommandCreateAccount Command = iota
	CommandAssign
	CommandTransfer
	CommandCreateAccountWithSeed
	CommandAdvanceNonceAccount
	CommandWithdrawNonceAccount
	CommandInitializeNonceAccount
	CommandAuthorizeNonceAccount
	CommandAllocate
	CommandAllocateWithSeed
	CommandAssignWithSeed
	CommandTransferWithSeed
)

const (
	commandSize         = 4
	createAccountSize   = commandSize + 8 + 8 + ed25519.PublicKeySize
	assignSize          = commandSize + ed25519.PublicKeySize
	transferSize        = commandSize + 8
	allocateSize        = commandSize + 8
	MaxPermittedDataLen = 10 * 1024 * 1024
)

func (c Command) String() string {
	switch c {
	case CommandCreateAccount:
		return "create_account"
	case CommandAssign:
		return "assign"
	case CommandTransfer:
		return "transfer"
	case CommandAllocate:
		return "allocate"
	}
	return "unsupported"
}

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	//
	// CreateAccount {
	//   // Number of lamports to transfer to the new account
	//   lamports: u64,
	//   // Number of bytes of memory to allocate
	//   space: u64,
	//
	//   //Address of program that will own the new account
	//   owner: Pubkey,
	// }
	//
	data := make([]byte, createAccountSize)
	binary.LittleEndian.PutUint32(data, uint32(CommandCreateAccount))
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[4+8:], size)
	copy(data[4+2*8:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// Assign reassigns the account to the owner program.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L74-L78
func Assign(address, owner ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Assigned account public key
	data := make([]byte, assignSize)
	binary.LittleEndian.PutUint32(data, uint32(CommandAssign))
	copy(data[4:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(address, true),
	)
}

// Transfer moves lamports between two accounts. The from account must be
// owned by the system program and carry no data.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L80-L85
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Recipient account
	data := make([]byte, transferSize)
	binary.LittleEndian.PutUint32(data, uint32(CommandTransfer))
	binary.LittleEndian.PutUint64(data[4:], lamports)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

// Allocate sets the data size of a system owned account.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L158-L163
func Allocate(address ed25519.PublicKey, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] New account
	data := make([]byte, allocateSize)
	binary.LittleEndian.PutUint32(data, uint32(CommandAllocate))
	binary.LittleEndian.PutUint64(data[4:], size)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(address, true),
	)
}

// InstructionData is the decoded payload of a supported system instruction.
// Only the fields relevant to Command are populated.
type InstructionData struct {
	Command  Command
	Lamports uint64
	Space    uint64
	Owner    ed25519.PublicKey
}

// UnmarshalInstructionData decodes raw system instruction data.
func UnmarshalInstructionData(data []byte) (*InstructionData, error) {
	if len(data) < commandSize {
		return nil, solana.ErrIncorrectInstruction
	}

	v := &InstructionData{
		Command: Command(binary.LittleEndian.Uint32(data)),
	}

	expectedSize := func(size int) error {
		if len(data) != size {
			return errors.Errorf("invalid %s instruction data size: %d", v.Command, len(data))
		}
		return nil
	}

	switch v.Command {
	case CommandCreateAccount:
		if err := expectedSize(createAccountSize); err != nil {
			return nil, err
		}
		v.Lamports = binary.LittleEndian.Uint64(data[4:])
		v.Space = binary.LittleEndian.Uint64(data[4+8:])
		v.Owner = make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(v.Owner, data[4+2*8:])
	case CommandAssign:
		if err := expectedSize(assignSize); err != nil {
			return nil, err
		}
		v.Owner = make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(v.Owner, data[4:])
	case CommandTransfer:
		if err := expectedSize(transferSize); err != nil {
			return nil, err
		}
		v.Lamports = binary.LittleEndian.Uint64(data[4:])
	case CommandAllocate:
		if err := expectedSize(allocateSize); err != nil {
			return nil, err
		}
		v.Space = binary.LittleEndian.Uint64(data[4:])
	default:
		return nil, solana.ErrIncorrectInstruction
	}

	return v, nil
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	i, data, err := decompile(m, index, CommandCreateAccount, 2)
	if err != nil {
		return nil, err
	}

	return &DecompiledCreateAccount{
		Funder:   m.Accounts[i.Accounts[0]],
		Address:  m.Accounts[i.Accounts[1]],
		Lamports: data.Lamports,
		Size:     data.Space,
		Owner:    data.Owner,
	}, nil
}

type DecompiledTransfer struct {
	From     ed25519.PublicKey
	To       ed25519.PublicKey
	Lamports uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	i, data, err := decompile(m, index, CommandTransfer, 2)
	if err != nil {
		return nil, err
	}

	return &DecompiledTransfer{
		From:     m.Accounts[i.Accounts[0]],
		To:       m.Accounts[i.Accounts[1]],
		Lamports: data.Lamports,
	}, nil
}

func decompile(m solana.Message, index int, command Command, numAccounts int) (*solana.CompiledInstruction, *InstructionData, error) {
	if index >= len(m.Instructions) {
		return nil, nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	var prefix [commandSize]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(command))
	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey[:]) {
		return nil, nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(i.Data, prefix[:]) {
		return nil, nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != numAccounts {
		return nil, nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	data, err := UnmarshalInstructionData(i.Data)
	if err != nil {
		return nil, nil, err
	}

	return &i, data, nil
}

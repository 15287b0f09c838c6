package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
)

var (
	ErrIncorrectProgram     = errors.New("instruction is for a different program")
	ErrIncorrectInstruction = errors.New("instruction does not match the expected layout")
)

// accountRole orders the account list of a compiled message: the fee payer
// comes first and invoked programs come last.
type accountRole uint8

const (
	roleAccount accountRole = iota
	rolePayer
	roleProgram
)

// AccountMeta describes how an instruction uses an account.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool

	role accountRole
}

// NewAccountMeta returns a writable AccountMeta.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{PublicKey: pub, IsSigner: isSigner, IsWritable: true}
}

// NewReadonlyAccountMeta returns a read-only AccountMeta.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{PublicKey: pub, IsSigner: isSigner}
}

// merge promotes m to the union of both permission sets.
func (m *AccountMeta) merge(other AccountMeta) {
	m.IsSigner = m.IsSigner || other.IsSigner
	m.IsWritable = m.IsWritable || other.IsWritable
	if other.role == rolePayer {
		m.role = rolePayer
	}
}

// compareAccountMeta orders accounts the way the runtime expects them in a
// message: payer, then signers before non-signers, writable before read-only
// within each group, and programs at the end. Ties are broken by key.
//
// Reference: https://docs.solana.com/transaction#account-addresses-format
func compareAccountMeta(a, b AccountMeta) int {
	if (a.role == rolePayer) != (b.role == rolePayer) {
		if a.role == rolePayer {
			return -1
		}
		return 1
	}
	if (a.role == roleProgram) != (b.role == roleProgram) {
		if b.role == roleProgram {
			return -1
		}
		return 1
	}
	if a.IsSigner != b.IsSigner {
		if a.IsSigner {
			return -1
		}
		return 1
	}
	if a.IsWritable != b.IsWritable {
		if a.IsWritable {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.PublicKey, b.PublicKey)
}

// Instruction is a single program invocation within a transaction.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// CompiledInstruction references its program and accounts by their index in
// the message account list.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}

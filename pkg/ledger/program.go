package ledger

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// Program is a native program executed by the ledger.
type Program interface {
	// Id returns the address the program is deployed to.
	Id() ed25519.PublicKey

	// Process executes a single instruction addressed to the program. Account
	// changes are made directly on the accounts exposed by ic.
	Process(ic *InvokeContext, data []byte) error
}

// Account is the in-transaction state of a ledger account. Instructions that
// reference the same address share the same Account.
type Account struct {
	Address    ed25519.PublicKey
	Lamports   uint64
	Owner      ed25519.PublicKey
	Data       []byte
	Executable bool
}

func (a *Account) IsOwnedBy(program ed25519.PublicKey) bool {
	return bytes.Equal(a.Owner, program)
}

func (a *Account) String() string {
	return base58.Encode(a.Address)
}

func (a *Account) clone() *Account {
	data := make([]byte, len(a.Data))
	copy(data, a.Data)

	return &Account{
		Address:    a.Address,
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Data:       data,
		Executable: a.Executable,
	}
}

// AccountInfo is an account along with the privileges granted to the
// currently executing instruction.
type AccountInfo struct {
	*Account

	IsSigner   bool
	IsWritable bool
}

type privileges struct {
	isSigner   bool
	isWritable bool
}

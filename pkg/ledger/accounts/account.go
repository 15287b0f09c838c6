package accounts

import (
	"bytes"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	ErrAccountNotFound   = errors.New("no account could be found")
	ErrInvalidAccount    = errors.New("invalid account")
	ErrStaleAccountState = errors.New("account state is stale")
)

// Record is the persisted state of a single ledger account.
//
// Version is bumped on every committed change. A record that has never been
// committed has version zero. Accounts are removed from the store once their
// lamport balance drops to zero.
type Record struct {
	Address string

	Lamports   uint64
	Owner      string
	Data       []byte
	Executable bool

	Version uint64
	Slot    uint64

	LastUpdatedAt time.Time
}

// NewEmptyRecord returns the state of an address that holds nothing.
func NewEmptyRecord(address, systemProgram string) *Record {
	return &Record{
		Address: address,
		Owner:   systemProgram,
	}
}

func (r *Record) Validate() error {
	if err := validateAddress(r.Address); err != nil {
		return errors.Wrap(err, "invalid address")
	}

	if err := validateAddress(r.Owner); err != nil {
		return errors.Wrap(err, "invalid owner")
	}

	return nil
}

// IsEmpty reports whether the account holds no lamports, in which case it is
// not retained by the store.
func (r *Record) IsEmpty() bool {
	return r.Lamports == 0
}

// HasChanged reports whether the observable account state differs from other.
func (r *Record) HasChanged(other *Record) bool {
	return r.Lamports != other.Lamports ||
		r.Owner != other.Owner ||
		r.Executable != other.Executable ||
		!bytes.Equal(r.Data, other.Data)
}

func (r *Record) Clone() *Record {
	var data []byte
	if r.Data != nil {
		data = make([]byte, len(r.Data))
		copy(data, r.Data)
	}

	return &Record{
		Address: r.Address,

		Lamports:   r.Lamports,
		Owner:      r.Owner,
		Data:       data,
		Executable: r.Executable,

		Version: r.Version,
		Slot:    r.Slot,

		LastUpdatedAt: r.LastUpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Address = r.Address

	dst.Lamports = r.Lamports
	dst.Owner = r.Owner
	dst.Data = r.Data
	dst.Executable = r.Executable

	dst.Version = r.Version
	dst.Slot = r.Slot

	dst.LastUpdatedAt = r.LastUpdatedAt
}

func validateAddress(address string) error {
	decoded, err := base58.Decode(address)
	if err != nil {
		return err
	}
	if len(decoded) != 32 {
		return errors.Errorf("expected 32 bytes, got %d", len(decoded))
	}
	return nil
}

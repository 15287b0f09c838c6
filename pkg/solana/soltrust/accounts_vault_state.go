package soltrust

import (
	"bytes"
	"crypto/ed25519"
	"strconv"
	"time"

	"github.com/mr-tron/base58/base58"

	"github.com/code-payments/sol-trust/pkg/solana/binary"
)

type VaultStatus uint8

const (
	VaultStatusUninitialized VaultStatus = iota
	VaultStatusActive
	VaultStatusClosed
)

func (s VaultStatus) String() string {
	switch s {
	case VaultStatusUninitialized:
		return "uninitialized"
	case VaultStatusActive:
		return "active"
	case VaultStatusClosed:
		return "closed"
	}
	return "unknown"
}

const VaultStateAccountSize = (8 + // discriminator
	32 + // owner
	1 + // state_bump
	1 + // vault_bump
	8 + // balance
	8 + // reserve
	8 + // lock_duration
	8 + // created_at
	8 + // deposited_at
	8 + // unlock_at
	1) // status

// VaultStateOwnerOffset is the offset of the owner key, for filtering
// program accounts by owner.
const VaultStateOwnerOffset = 8

var vaultStateAccountDiscriminator = []byte{228, 196, 82, 165, 98, 210, 235, 152}

// VaultStateAccount is the per-owner record describing a time-locked vault.
//
// Balance counts deposited lamports. Reserve is the portion of the custody
// account that keeps it rent exempt, so the custody account always holds
// exactly Balance + Reserve.
type VaultStateAccount struct {
	Owner        ed25519.PublicKey
	StateBump    uint8
	VaultBump    uint8
	Balance      uint64
	Reserve      uint64
	LockDuration int64
	CreatedAt    int64
	DepositedAt  int64
	UnlockAt     int64
	Status       VaultStatus
}

func (obj *VaultStateAccount) Clone() *VaultStateAccount {
	owner := make(ed25519.PublicKey, len(obj.Owner))
	copy(owner, obj.Owner)

	cloned := *obj
	cloned.Owner = owner
	return &cloned
}

// VaultStateAccountDiscriminator returns the prefix shared by every vault
// state record.
func VaultStateAccountDiscriminator() []byte {
	discriminator := make([]byte, len(vaultStateAccountDiscriminator))
	copy(discriminator, vaultStateAccountDiscriminator)
	return discriminator
}

// IsMature reports whether the lock period has elapsed at unixTime.
func (obj *VaultStateAccount) IsMature(unixTime int64) bool {
	return unixTime >= obj.UnlockAt
}

func (obj *VaultStateAccount) Marshal() []byte {
	data := make([]byte, VaultStateAccountSize)

	var offset int

	binary.PutDiscriminator(data, vaultStateAccountDiscriminator, &offset)
	binary.PutKey32(data[offset:], obj.Owner, &offset)
	binary.PutUint8(data[offset:], obj.StateBump, &offset)
	binary.PutUint8(data[offset:], obj.VaultBump, &offset)
	binary.PutUint64(data[offset:], obj.Balance, &offset)
	binary.PutUint64(data[offset:], obj.Reserve, &offset)
	binary.PutInt64(data[offset:], obj.LockDuration, &offset)
	binary.PutInt64(data[offset:], obj.CreatedAt, &offset)
	binary.PutInt64(data[offset:], obj.DepositedAt, &offset)
	binary.PutInt64(data[offset:], obj.UnlockAt, &offset)
	binary.PutUint8(data[offset:], uint8(obj.Status), &offset)

	return data
}

func (obj *VaultStateAccount) Unmarshal(data []byte) error {
	if len(data) < VaultStateAccountSize {
		return ErrInvalidAccountData
	}

	if !bytes.Equal(data[:8], vaultStateAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	offset := 8

	var status uint8
	binary.GetKey32(data[offset:], &obj.Owner, &offset)
	binary.GetUint8(data[offset:], &obj.StateBump, &offset)
	binary.GetUint8(data[offset:], &obj.VaultBump, &offset)
	binary.GetUint64(data[offset:], &obj.Balance, &offset)
	binary.GetUint64(data[offset:], &obj.Reserve, &offset)
	binary.GetInt64(data[offset:], &obj.LockDuration, &offset)
	binary.GetInt64(data[offset:], &obj.CreatedAt, &offset)
	binary.GetInt64(data[offset:], &obj.DepositedAt, &offset)
	binary.GetInt64(data[offset:], &obj.UnlockAt, &offset)
	binary.GetUint8(data[offset:], &status, &offset)

	obj.Status = VaultStatus(status)
	if obj.Status > VaultStatusClosed {
		return ErrInvalidAccountData
	}

	return nil
}

func (obj *VaultStateAccount) ToString() string {
	var owner string
	if obj.Owner != nil {
		owner = base58.Encode(obj.Owner)
	}

	return "VaultStateAccount{" +
		"owner='" + owner + "'" +
		", state_bump='" + strconv.Itoa(int(obj.StateBump)) + "'" +
		", vault_bump='" + strconv.Itoa(int(obj.VaultBump)) + "'" +
		", balance='" + strconv.FormatUint(obj.Balance, 10) + "'" +
		", reserve='" + strconv.FormatUint(obj.Reserve, 10) + "'" +
		", lock_duration='" + strconv.FormatInt(obj.LockDuration, 10) + "'" +
		", created_at='" + time.Unix(obj.CreatedAt, 0).UTC().String() + "'" +
		", deposited_at='" + time.Unix(obj.DepositedAt, 0).UTC().String() + "'" +
		", unlock_at='" + time.Unix(obj.UnlockAt, 0).UTC().String() + "'" +
		", status='" + obj.Status.String() + "'" +
		"}"
}

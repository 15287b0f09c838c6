package bankrewards

import (
	"bytes"
	"crypto/ed25519"
	"strconv"

	"github.com/mr-tron/base58/base58"

	"github.com/code-payments/sol-trust/pkg/solana/binary"
)

const TreasuryAccountSize = (8 + // discriminator
	32 + // admin
	32 + // authorized_program
	1 + // state_bump
	1 + // vault_bump
	8 + // total_funded
	8) // total_paid

var treasuryAccountDiscriminator = []byte{238, 239, 123, 238, 89, 1, 168, 253}

// TreasuryAccount records who may fund a treasury and which program may draw
// rewards from it.
type TreasuryAccount struct {
	Admin             ed25519.PublicKey
	AuthorizedProgram ed25519.PublicKey
	StateBump         uint8
	VaultBump         uint8
	TotalFunded       uint64
	TotalPaid         uint64
}

func (obj *TreasuryAccount) Clone() *TreasuryAccount {
	cloned := *obj
	cloned.Admin = append(ed25519.PublicKey{}, obj.Admin...)
	cloned.AuthorizedProgram = append(ed25519.PublicKey{}, obj.AuthorizedProgram...)
	return &cloned
}

func (obj *TreasuryAccount) Marshal() []byte {
	data := make([]byte, TreasuryAccountSize)

	var offset int

	binary.PutDiscriminator(data, treasuryAccountDiscriminator, &offset)
	binary.PutKey32(data[offset:], obj.Admin, &offset)
	binary.PutKey32(data[offset:], obj.AuthorizedProgram, &offset)
	binary.PutUint8(data[offset:], obj.StateBump, &offset)
	binary.PutUint8(data[offset:], obj.VaultBump, &offset)
	binary.PutUint64(data[offset:], obj.TotalFunded, &offset)
	binary.PutUint64(data[offset:], obj.TotalPaid, &offset)

	return data
}

func (obj *TreasuryAccount) Unmarshal(data []byte) error {
	if len(data) < TreasuryAccountSize {
		return ErrInvalidAccountData
	}

	if !bytes.Equal(data[:8], treasuryAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	offset := 8

	binary.GetKey32(data[offset:], &obj.Admin, &offset)
	binary.GetKey32(data[offset:], &obj.AuthorizedProgram, &offset)
	binary.GetUint8(data[offset:], &obj.StateBump, &offset)
	binary.GetUint8(data[offset:], &obj.VaultBump, &offset)
	binary.GetUint64(data[offset:], &obj.TotalFunded, &offset)
	binary.GetUint64(data[offset:], &obj.TotalPaid, &offset)

	return nil
}

func (obj *TreasuryAccount) ToString() string {
	var admin, authorizedProgram string
	if obj.Admin != nil {
		admin = base58.Encode(obj.Admin)
	}
	if obj.AuthorizedProgram != nil {
		authorizedProgram = base58.Encode(obj.AuthorizedProgram)
	}

	return "TreasuryAccount{" +
		"admin='" + admin + "'" +
		", authorized_program='" + authorizedProgram + "'" +
		", state_bump='" + strconv.Itoa(int(obj.StateBump)) + "'" +
		", vault_bump='" + strconv.Itoa(int(obj.VaultBump)) + "'" +
		", total_funded='" + strconv.FormatUint(obj.TotalFunded, 10) + "'" +
		", total_paid='" + strconv.FormatUint(obj.TotalPaid, 10) + "'" +
		"}"
}

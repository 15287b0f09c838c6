package soltrust

import (
	"crypto/ed25519"
	"errors"

	"github.com/mr-tron/base58/base58"
)

var (
	ErrInvalidProgram         = errors.New("invalid program id")
	ErrInvalidAccountData     = errors.New("unexpected account data")
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
)

var (
	// DefaultProgramId is the address the vault program is deployed to when
	// no other address is configured.
	DefaultProgramId = ed25519.PublicKey(mustBase58Decode("83gfGgpXACJTQWYJrxToJt2uVcBCSJU6RZtBFp4kbAYo"))

	SYSTEM_PROGRAM_ID = ed25519.PublicKey(mustBase58Decode("11111111111111111111111111111111"))
)

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}

package bankrewards

import (
	"crypto/ed25519"
	"errors"

	"github.com/mr-tron/base58/base58"
)

var (
	ErrInvalidAccountData     = errors.New("unexpected account data")
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
)

var (
	// DefaultProgramId is the address the rewards program is deployed to when
	// no other address is configured.
	DefaultProgramId = ed25519.PublicKey(mustBase58Decode("BBoAqxz7AfBvtkDgj2XtjG9kMmUEciSg6xmyLCJmzNGY"))

	SYSTEM_PROGRAM_ID = ed25519.PublicKey(mustBase58Decode("11111111111111111111111111111111"))
)

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}

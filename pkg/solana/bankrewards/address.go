package bankrewards

import (
	"crypto/ed25519"

	"github.com/code-payments/sol-trust/pkg/solana"
)

var (
	StatePrefix = []byte("state")
	VaultPrefix = []byte("vault")
)

// GetTreasuryStateAddress derives the treasury record address for an admin.
func GetTreasuryStateAddress(programId, admin ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(programId, StatePrefix, admin)
}

// GetTreasuryVaultAddress derives the account holding a treasury's funds.
func GetTreasuryVaultAddress(programId, state ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(programId, VaultPrefix, state)
}

func TreasuryStateSeeds(admin ed25519.PublicKey, bump uint8) [][]byte {
	return [][]byte{StatePrefix, admin, {bump}}
}

func TreasuryVaultSeeds(state ed25519.PublicKey, bump uint8) [][]byte {
	return [][]byte{VaultPrefix, state, {bump}}
}

package soltrust

import (
	"crypto/ed25519"

	"github.com/code-payments/sol-trust/pkg/solana"
)

var (
	StatePrefix = []byte("state")
	VaultPrefix = []byte("vault")
)

type GetStateAddressArgs struct {
	Owner ed25519.PublicKey
}

type GetVaultAddressArgs struct {
	State ed25519.PublicKey
}

// GetStateAddress derives the vault state record address for an owner.
func GetStateAddress(programId ed25519.PublicKey, args *GetStateAddressArgs) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		programId,
		StatePrefix,
		args.Owner,
	)
}

// GetVaultAddress derives the custody account address for a state record.
func GetVaultAddress(programId ed25519.PublicKey, args *GetVaultAddressArgs) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		programId,
		VaultPrefix,
		args.State,
	)
}

// StateSeeds returns the signer seeds for the state record, including the bump.
func StateSeeds(owner ed25519.PublicKey, bump uint8) [][]byte {
	return [][]byte{StatePrefix, owner, {bump}}
}

// VaultSeeds returns the signer seeds for the custody account, including the bump.
func VaultSeeds(state ed25519.PublicKey, bump uint8) [][]byte {
	return [][]byte{VaultPrefix, state, {bump}}
}

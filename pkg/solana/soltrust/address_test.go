package soltrust

import (
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/sol-trust/pkg/solana"
)

func TestGetStateAddress(t *testing.T) {
	address, bump, err := GetStateAddress(DefaultProgramId, &GetStateAddressArgs{
		Owner: mustBase58Decode("BuAprBZugjXG6QRbRQN8QKF8EzbW5SigkDuyR9KtqN5z"),
	})
	require.NoError(t, err)
	assert.Equal(t, "8R55BG2nYdvEK36wJiP56iPZrPb6WW49qeMNxipivkt8", base58.Encode(address))
	assert.EqualValues(t, 255, bump)
}

func TestGetVaultAddress(t *testing.T) {
	address, bump, err := GetVaultAddress(DefaultProgramId, &GetVaultAddressArgs{
		State: mustBase58Decode("8R55BG2nYdvEK36wJiP56iPZrPb6WW49qeMNxipivkt8"),
	})
	require.NoError(t, err)
	assert.Equal(t, "3tonbuLSwk3nXrw3T7y4maAKYjTjeGY78ATzkmZzbipF", base58.Encode(address))
	assert.EqualValues(t, 254, bump)
}

func TestSignerSeeds(t *testing.T) {
	owner := mustBase58Decode("BuAprBZugjXG6QRbRQN8QKF8EzbW5SigkDuyR9KtqN5z")

	state, stateBump, err := GetStateAddress(DefaultProgramId, &GetStateAddressArgs{Owner: owner})
	require.NoError(t, err)
	actual, err := solana.CreateProgramAddress(DefaultProgramId, StateSeeds(owner, stateBump)...)
	require.NoError(t, err)
	assert.EqualValues(t, state, actual)

	vault, vaultBump, err := GetVaultAddress(DefaultProgramId, &GetVaultAddressArgs{State: state})
	require.NoError(t, err)
	actual, err = solana.CreateProgramAddress(DefaultProgramId, VaultSeeds(state, vaultBump)...)
	require.NoError(t, err)
	assert.EqualValues(t, vault, actual)
}

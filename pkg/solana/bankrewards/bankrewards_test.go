package bankrewards

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/sol-trust/pkg/solana"
)

func TestTreasuryAddresses(t *testing.T) {
	admin := mustBase58Decode("codeHy87wGD5oMRLG75qKqsSi1vWE3oxNyYmXo5F9YR")

	state, stateBump, err := GetTreasuryStateAddress(DefaultProgramId, admin)
	require.NoError(t, err)
	assert.Equal(t, "F7nUpvn6ug8LiS95Ag7iAT2bZC5e2nYezTpj6djpDcEv", base58.Encode(state))
	assert.EqualValues(t, 251, stateBump)

	vault, vaultBump, err := GetTreasuryVaultAddress(DefaultProgramId, state)
	require.NoError(t, err)
	assert.Equal(t, "AuW1H3zZ7mFWAFS1C1KM9Jnqt33dr8QhGCPY3RXrD8WN", base58.Encode(vault))
	assert.EqualValues(t, 254, vaultBump)

	actual, err := solana.CreateProgramAddress(DefaultProgramId, TreasuryVaultSeeds(state, vaultBump)...)
	require.NoError(t, err)
	assert.EqualValues(t, vault, actual)
}

func TestTreasuryAccount_Marshal(t *testing.T) {
	keys := generateKeys(t, 2)

	expected := &TreasuryAccount{
		Admin:             keys[0],
		AuthorizedProgram: keys[1],
		StateBump:         251,
		VaultBump:         254,
		TotalFunded:       10_000_000_000,
		TotalPaid:         12345,
	}

	data := expected.Marshal()
	require.Len(t, data, TreasuryAccountSize)

	var actual TreasuryAccount
	require.NoError(t, actual.Unmarshal(data))
	assert.Equal(t, expected, &actual)
	assert.Equal(t, expected, expected.Clone())

	assert.Equal(t, ErrInvalidAccountData, actual.Unmarshal(data[:TreasuryAccountSize-1]))
	assert.Equal(t, ErrInvalidAccountData, actual.Unmarshal(make([]byte, TreasuryAccountSize)))
}

func TestInstructions(t *testing.T) {
	keys := generateKeys(t, 5)

	ix := NewInitializeInstruction(
		DefaultProgramId,
		&InitializeInstructionAccounts{Admin: keys[0], State: keys[1], Vault: keys[2]},
		&InitializeInstructionArgs{AuthorizedProgram: keys[3]},
	)
	decoded, err := UnmarshalInstructionData(ix.Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypeInitialize, decoded.Type)
	assert.Equal(t, keys[3], decoded.AuthorizedProgram)

	ix = NewFundInstruction(
		DefaultProgramId,
		&FundInstructionAccounts{Admin: keys[0], State: keys[1], Vault: keys[2]},
		&FundInstructionArgs{Amount: 42},
	)
	decoded, err = UnmarshalInstructionData(ix.Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypeFund, decoded.Type)
	assert.EqualValues(t, 42, decoded.Amount)

	ix = NewWithdrawInstruction(
		DefaultProgramId,
		&WithdrawInstructionAccounts{
			Recipient:     keys[0],
			CustodyVault:  keys[0],
			CustodyState:  keys[1],
			TreasuryVault: keys[2],
			TreasuryState: keys[3],
		},
		&WithdrawInstructionArgs{Amount: 7},
	)
	require.Len(t, ix.Accounts, 6)
	assert.True(t, ix.Accounts[1].IsSigner)
	assert.False(t, ix.Accounts[1].IsWritable)
	decoded, err = UnmarshalInstructionData(ix.Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypeWithdraw, decoded.Type)
	assert.EqualValues(t, 7, decoded.Amount)

	_, err = UnmarshalInstructionData(ix.Data[:10])
	assert.Equal(t, ErrInvalidInstructionData, err)
}

func TestRewardsError(t *testing.T) {
	assert.EqualValues(t, 7000, ErrInsufficientRewardFunds)
	assert.EqualValues(t, 7001, ErrUnauthorizedCaller)

	v, ok := ErrorFromTransactionError(solana.NewInstructionError(0, ErrUnauthorizedCaller.Custom()))
	require.True(t, ok)
	assert.Equal(t, ErrUnauthorizedCaller, v)

	_, ok = ErrorFromTransactionError(solana.CustomError(6003))
	assert.False(t, ok)
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)
	for i := range keys {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}
	return keys
}

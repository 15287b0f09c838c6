package soltrust

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/sol-trust/pkg/solana"
)

func TestInstructions_RoundTrip(t *testing.T) {
	keys := generateKeys(t, 5)

	initialize := NewInitializeInstruction(
		DefaultProgramId,
		&InitializeInstructionAccounts{Owner: keys[0], State: keys[1], Vault: keys[2]},
		&InitializeInstructionArgs{LockDuration: 86400},
	)
	assert.EqualValues(t, DefaultProgramId, initialize.Program)
	require.Len(t, initialize.Accounts, 4)
	assert.True(t, initialize.Accounts[0].IsSigner)
	assert.False(t, initialize.Accounts[1].IsSigner)
	assert.True(t, initialize.Accounts[2].IsWritable)
	assert.False(t, initialize.Accounts[3].IsWritable)

	decoded, err := UnmarshalInstructionData(initialize.Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypeInitialize, decoded.Type)
	assert.EqualValues(t, 86400, decoded.LockDuration)

	deposit := NewDepositInstruction(
		DefaultProgramId,
		&DepositInstructionAccounts{Owner: keys[0], State: keys[1], Vault: keys[2]},
		&DepositInstructionArgs{Amount: 1_000_000_000},
	)
	decoded, err = UnmarshalInstructionData(deposit.Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypeDeposit, decoded.Type)
	assert.EqualValues(t, 1_000_000_000, decoded.Amount)

	matureClose := NewMatureCloseInstruction(DefaultProgramId, &MatureCloseInstructionAccounts{
		Owner:              keys[0],
		Vault:              keys[2],
		State:              keys[1],
		BankVault:          keys[3],
		BankVaultState:     keys[4],
		BankRewardsProgram: keys[4],
	})
	require.Len(t, matureClose.Accounts, 7)
	assert.EqualValues(t, keys[2], matureClose.Accounts[1].PublicKey)
	assert.EqualValues(t, keys[1], matureClose.Accounts[2].PublicKey)
	assert.False(t, matureClose.Accounts[5].IsWritable)
	decoded, err = UnmarshalInstructionData(matureClose.Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypeMatureClose, decoded.Type)

	prematureClose := NewPrematureCloseInstruction(DefaultProgramId, &PrematureCloseInstructionAccounts{
		Owner:       keys[0],
		Vault:       keys[2],
		State:       keys[1],
		AdminWallet: keys[3],
	})
	require.Len(t, prematureClose.Accounts, 5)
	decoded, err = UnmarshalInstructionData(prematureClose.Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTypePrematureClose, decoded.Type)

	// Each instruction must compile into a valid transaction.
	for _, ix := range []solana.Instruction{initialize, deposit, matureClose, prematureClose} {
		tx := solana.NewTransaction(keys[0], ix)
		var actual solana.Transaction
		require.NoError(t, actual.Unmarshal(tx.Marshal()))
	}
}

func TestUnmarshalInstructionData_Invalid(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		{1, 2, 3},
		make([]byte, 8),
		initializeInstructionDiscriminator,
		append(append([]byte{}, depositInstructionDiscriminator...), 1, 2, 3),
		append(append([]byte{}, matureCloseInstructionDiscriminator...), 0),
	} {
		_, err := UnmarshalInstructionData(data)
		assert.Equal(t, ErrInvalidInstructionData, err)
	}
}

func TestVaultError(t *testing.T) {
	assert.EqualValues(t, 6000, ErrAlreadyInitialized)
	assert.EqualValues(t, 6003, ErrVaultNotMature)
	assert.EqualValues(t, 6011, ErrPrematureCloseDisabled)
	assert.Equal(t, "VaultNotMature", ErrVaultNotMature.String())

	txErr, err := solana.TransactionErrorFromInstructionError(solana.NewInstructionError(0, ErrVaultNotMature.Custom()))
	require.NoError(t, err)

	actual, ok := ErrorFromTransactionError(txErr)
	require.True(t, ok)
	assert.Equal(t, ErrVaultNotMature, actual)

	_, ok = ErrorFromTransactionError(solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound))
	assert.False(t, ok)

	_, ok = ErrorFromTransactionError(solana.CustomError(1))
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

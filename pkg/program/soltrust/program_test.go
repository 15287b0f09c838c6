package soltrust_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/sol-trust/pkg/ledger"
	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
	"github.com/code-payments/sol-trust/pkg/ledger/ledgertest"
	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/bankrewards"
	"github.com/code-payments/sol-trust/pkg/solana/soltrust"
	"github.com/code-payments/sol-trust/pkg/solana/system"
)

const (
	fee = 5000

	stateRent   = 1_524_240
	custodyRent = 890_880

	startingBalance = 100 * 1_000_000_000
)

type testEnv struct {
	*ledgertest.Environment

	owner        ed25519.PrivateKey
	ownerAddress ed25519.PublicKey
	state        ed25519.PublicKey
	vault        ed25519.PublicKey
}

func setup(t *testing.T, opts *ledgertest.Options) *testEnv {
	env := ledgertest.NewEnvironment(t, opts)

	owner := env.NewFundedKey(t, startingBalance)
	ownerAddress := owner.Public().(ed25519.PublicKey)
	state, vault := env.VaultAddresses(t, ownerAddress)

	return &testEnv{
		Environment:  env,
		owner:        owner,
		ownerAddress: ownerAddress,
		state:        state,
		vault:        vault,
	}
}

func (e *testEnv) initialize(lockDuration int64) (solana.Signature, error) {
	return e.Submit(
		[]ed25519.PrivateKey{e.owner},
		soltrust.NewInitializeInstruction(
			e.VaultProgram.Id(),
			&soltrust.InitializeInstructionAccounts{
				Owner: e.ownerAddress,
				State: e.state,
				Vault: e.vault,
			},
			&soltrust.InitializeInstructionArgs{
				LockDuration: lockDuration,
			},
		),
	)
}

func (e *testEnv) deposit(amount uint64) (solana.Signature, error) {
	return e.Submit(
		[]ed25519.PrivateKey{e.owner},
		soltrust.NewDepositInstruction(
			e.VaultProgram.Id(),
			&soltrust.DepositInstructionAccounts{
				Owner: e.ownerAddress,
				State: e.state,
				Vault: e.vault,
			},
			&soltrust.DepositInstructionArgs{
				Amount: amount,
			},
		),
	)
}

func (e *testEnv) matureCloseInstruction() solana.Instruction {
	return soltrust.NewMatureCloseInstruction(
		e.VaultProgram.Id(),
		&soltrust.MatureCloseInstructionAccounts{
			Owner:              e.ownerAddress,
			Vault:              e.vault,
			State:              e.state,
			BankVault:          e.TreasuryVault,
			BankVaultState:     e.TreasuryState,
			BankRewardsProgram: e.RewardsProgram.Id(),
		},
	)
}

func (e *testEnv) matureClose() (solana.Signature, error) {
	return e.Submit([]ed25519.PrivateKey{e.owner}, e.matureCloseInstruction())
}

func requireVaultError(t *testing.T, expected soltrust.VaultError, err error) {
	require.Error(t, err)

	actual, ok := soltrust.ErrorFromTransactionError(err)
	require.True(t, ok, "unexpected error: %v", err)
	assert.Equal(t, expected, actual)
}

func requireCustomError(t *testing.T, expected solana.CustomError, err error) {
	require.Error(t, err)

	var custom solana.CustomError
	require.True(t, errors.As(err, &custom), "unexpected error: %v", err)
	assert.Equal(t, expected, custom)
}

func requireAccountNotFound(t *testing.T, env *testEnv, address ed25519.PublicKey) {
	_, err := env.Ledger.GetAccount(context.Background(), address)
	assert.Equal(t, accounts.ErrAccountNotFound, err)
}

func TestLifecycle_ImmediateMaturity(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(0)
	require.NoError(t, err)
	assert.EqualValues(t, startingBalance-fee-stateRent-custodyRent, env.Balance(t, env.ownerAddress))
	assert.EqualValues(t, stateRent, env.Balance(t, env.state))
	assert.EqualValues(t, custodyRent, env.Balance(t, env.vault))

	record, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.EqualValues(t, env.ownerAddress, record.Owner)
	assert.Equal(t, soltrust.VaultStatusActive, record.Status)
	assert.EqualValues(t, 0, record.Balance)
	assert.EqualValues(t, custodyRent, record.Reserve)
	assert.EqualValues(t, 0, record.LockDuration)
	assert.Equal(t, env.Clock.Now().Unix(), record.CreatedAt)
	assert.Equal(t, record.CreatedAt, record.UnlockAt)

	_, err = env.deposit(5_000_000_000)
	require.NoError(t, err)
	assert.EqualValues(t, custodyRent+5_000_000_000, env.Balance(t, env.vault))

	record, err = env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.EqualValues(t, 5_000_000_000, record.Balance)
	assert.Equal(t, env.Clock.Now().Unix(), record.DepositedAt)

	treasuryBefore := env.Balance(t, env.TreasuryVault)

	_, err = env.matureClose()
	require.NoError(t, err)

	assert.EqualValues(t, startingBalance-3*fee, env.Balance(t, env.ownerAddress))
	assert.Equal(t, treasuryBefore, env.Balance(t, env.TreasuryVault))
	requireAccountNotFound(t, env, env.state)
	requireAccountNotFound(t, env, env.vault)

	_, err = env.GetVaultState(t, env.ownerAddress)
	assert.Equal(t, accounts.ErrAccountNotFound, err)
}

func TestLifecycle_AliasedRewardsAccounts(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(0)
	require.NoError(t, err)
	_, err = env.deposit(5_000_000_000)
	require.NoError(t, err)

	// Without a reward owed the bank accounts are never read, so the custody
	// accounts can stand in for them.
	_, err = env.Submit(
		[]ed25519.PrivateKey{env.owner},
		soltrust.NewMatureCloseInstruction(
			env.VaultProgram.Id(),
			&soltrust.MatureCloseInstructionAccounts{
				Owner:              env.ownerAddress,
				Vault:              env.vault,
				State:              env.state,
				BankVault:          env.vault,
				BankVaultState:     env.state,
				BankRewardsProgram: env.RewardsProgram.Id(),
			},
		),
	)
	require.NoError(t, err)

	assert.EqualValues(t, startingBalance-3*fee, env.Balance(t, env.ownerAddress))
	requireAccountNotFound(t, env, env.state)
	requireAccountNotFound(t, env, env.vault)
}

func TestLifecycle_NotMature(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(86400)
	require.NoError(t, err)
	_, err = env.deposit(1_000_000_000)
	require.NoError(t, err)

	before, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	ownerBefore := env.Balance(t, env.ownerAddress)
	vaultBefore := env.Balance(t, env.vault)

	env.Clock.Advance(time.Second)

	_, err = env.matureClose()
	requireVaultError(t, soltrust.ErrVaultNotMature, err)

	var failed *ledger.TransactionFailedError
	require.True(t, errors.As(err, &failed))
	assert.NotNil(t, failed.Status.Err)
	assert.NotEmpty(t, failed.Status.Logs)

	after, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, ownerBefore-fee, env.Balance(t, env.ownerAddress))
	assert.Equal(t, vaultBefore, env.Balance(t, env.vault))
}

func TestLifecycle_MatureWithReward(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(86400)
	require.NoError(t, err)
	_, err = env.deposit(1_000_000_000)
	require.NoError(t, err)

	env.Clock.Advance(86400 * time.Second)

	treasuryBefore := env.GetTreasury(t)
	treasuryVaultBefore := env.Balance(t, env.TreasuryVault)

	_, err = env.matureClose()
	require.NoError(t, err)

	const reward = 136_986
	assert.EqualValues(t, startingBalance-3*fee+reward, env.Balance(t, env.ownerAddress))
	assert.Equal(t, treasuryVaultBefore-reward, env.Balance(t, env.TreasuryVault))

	treasuryAfter := env.GetTreasury(t)
	assert.Equal(t, treasuryBefore.TotalPaid+reward, treasuryAfter.TotalPaid)
	assert.Equal(t, treasuryBefore.TotalFunded, treasuryAfter.TotalFunded)

	requireAccountNotFound(t, env, env.state)
	requireAccountNotFound(t, env, env.vault)
}

func TestLifecycle_CustomRewardRate(t *testing.T) {
	env := setup(t, &ledgertest.Options{RewardRateBps: 10_000})

	_, err := env.initialize(31_536_000)
	require.NoError(t, err)
	_, err = env.deposit(2_000_000_000)
	require.NoError(t, err)

	env.Clock.Advance(31_536_000 * time.Second)

	_, err = env.matureClose()
	require.NoError(t, err)
	assert.EqualValues(t, startingBalance-3*fee+2_000_000_000, env.Balance(t, env.ownerAddress))
}

func TestLifecycle_ReinitializeAfterClose(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(0)
	require.NoError(t, err)
	_, err = env.deposit(1_000_000_000)
	require.NoError(t, err)
	_, err = env.matureClose()
	require.NoError(t, err)

	_, err = env.initialize(3600)
	require.NoError(t, err)

	record, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.Equal(t, soltrust.VaultStatusActive, record.Status)
	assert.EqualValues(t, 0, record.Balance)
	assert.EqualValues(t, 3600, record.LockDuration)
}

func TestDeposit_Accumulates(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(60)
	require.NoError(t, err)

	var total uint64
	for _, amount := range []uint64{1, 250_000, 3_000_000_000} {
		_, err = env.deposit(amount)
		require.NoError(t, err)
		total += amount

		record, err := env.GetVaultState(t, env.ownerAddress)
		require.NoError(t, err)
		assert.Equal(t, total, record.Balance)
		assert.Equal(t, record.Balance+record.Reserve, env.Balance(t, env.vault))
	}
}

func TestDeposit_DoesNotExtendLock(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(60)
	require.NoError(t, err)

	record, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	unlockAt := record.UnlockAt

	env.Clock.Advance(30 * time.Second)
	_, err = env.deposit(1_000)
	require.NoError(t, err)

	record, err = env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.Equal(t, unlockAt, record.UnlockAt)
	assert.Equal(t, env.Clock.Now().Unix(), record.DepositedAt)

	env.Clock.Advance(30 * time.Second)
	_, err = env.matureClose()
	require.NoError(t, err)
}

func TestDeposit_AfterUnlock(t *testing.T) {
	env := setup(t, &ledgertest.Options{RewardRateBps: 10_000})

	_, err := env.initialize(31_536_000)
	require.NoError(t, err)
	_, err = env.deposit(1_000_000_000)
	require.NoError(t, err)

	env.Clock.Advance(31_536_000 * time.Second)

	before, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	vaultBefore := env.Balance(t, env.vault)

	_, err = env.deposit(50_000_000_000)
	requireVaultError(t, soltrust.ErrDepositAfterUnlock, err)

	after, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, vaultBefore, env.Balance(t, env.vault))

	// Only the lamports that served the full lock are rewarded.
	treasuryBefore := env.GetTreasury(t)
	_, err = env.matureClose()
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000_000, env.GetTreasury(t).TotalPaid-treasuryBefore.TotalPaid)
	assert.EqualValues(t, startingBalance-4*fee+1_000_000_000, env.Balance(t, env.ownerAddress))
}

func TestDeposit_ZeroLockStaysOpen(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(0)
	require.NoError(t, err)

	env.Clock.Advance(time.Hour)
	_, err = env.deposit(1_000)
	require.NoError(t, err)

	record, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000, record.Balance)
}

func TestInitialize_AlreadyInitialized(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(0)
	require.NoError(t, err)
	_, err = env.deposit(1_000_000)
	require.NoError(t, err)

	before, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	stateBefore := env.Balance(t, env.state)
	vaultBefore := env.Balance(t, env.vault)

	env.Clock.Advance(time.Minute)
	_, err = env.initialize(3600)
	requireVaultError(t, soltrust.ErrAlreadyInitialized, err)

	after, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, stateBefore, env.Balance(t, env.state))
	assert.Equal(t, vaultBefore, env.Balance(t, env.vault))
}

func TestInitialize_InvalidLockDuration(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(-1)
	requireVaultError(t, soltrust.ErrInvalidLockDuration, err)

	requireAccountNotFound(t, env, env.state)
	assert.EqualValues(t, startingBalance-fee, env.Balance(t, env.ownerAddress))
}

func TestInitialize_WrongAddresses(t *testing.T) {
	env := setup(t, nil)

	other := ledgertest.NewKey(t).Public().(ed25519.PublicKey)
	otherState, otherVault := env.VaultAddresses(t, other)

	_, err := env.Submit(
		[]ed25519.PrivateKey{env.owner},
		soltrust.NewInitializeInstruction(
			env.VaultProgram.Id(),
			&soltrust.InitializeInstructionAccounts{
				Owner: env.ownerAddress,
				State: otherState,
				Vault: env.vault,
			},
			&soltrust.InitializeInstructionArgs{},
		),
	)
	requireVaultError(t, soltrust.ErrInvalidStateAccount, err)

	_, err = env.Submit(
		[]ed25519.PrivateKey{env.owner},
		soltrust.NewInitializeInstruction(
			env.VaultProgram.Id(),
			&soltrust.InitializeInstructionAccounts{
				Owner: env.ownerAddress,
				State: env.state,
				Vault: otherVault,
			},
			&soltrust.InitializeInstructionArgs{},
		),
	)
	requireVaultError(t, soltrust.ErrInvalidVaultAccount, err)
}

func TestInitialize_PrefundedAddresses(t *testing.T) {
	env := setup(t, nil)

	_, err := env.Submit(
		[]ed25519.PrivateKey{env.owner},
		system.Transfer(env.ownerAddress, env.state, 900_000),
		system.Transfer(env.ownerAddress, env.vault, 2_000_000),
	)
	require.NoError(t, err)

	_, err = env.initialize(0)
	require.NoError(t, err)

	assert.EqualValues(t, stateRent, env.Balance(t, env.state))
	assert.EqualValues(t, 2_000_000, env.Balance(t, env.vault))

	record, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.EqualValues(t, 2_000_000, record.Reserve)

	_, err = env.matureClose()
	require.NoError(t, err)
	assert.EqualValues(t, startingBalance-3*fee, env.Balance(t, env.ownerAddress))
}

func TestDeposit_InvalidAmount(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(0)
	require.NoError(t, err)

	_, err = env.deposit(0)
	requireVaultError(t, soltrust.ErrInvalidAmount, err)
}

func TestDeposit_NotInitialized(t *testing.T) {
	env := setup(t, nil)

	_, err := env.deposit(1_000)
	requireVaultError(t, soltrust.ErrVaultNotActive, err)

	_, err = env.matureClose()
	requireVaultError(t, soltrust.ErrVaultNotActive, err)
}

func TestDeposit_Unauthorized(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(0)
	require.NoError(t, err)
	_, err = env.deposit(1_000_000)
	require.NoError(t, err)

	before, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	vaultBefore := env.Balance(t, env.vault)

	intruder := env.NewFundedKey(t, startingBalance)
	_, err = env.Submit(
		[]ed25519.PrivateKey{intruder},
		soltrust.NewDepositInstruction(
			env.VaultProgram.Id(),
			&soltrust.DepositInstructionAccounts{
				Owner: intruder.Public().(ed25519.PublicKey),
				State: env.state,
				Vault: env.vault,
			},
			&soltrust.DepositInstructionArgs{
				Amount: 1_000,
			},
		),
	)
	requireVaultError(t, soltrust.ErrUnauthorized, err)

	_, err = env.Submit(
		[]ed25519.PrivateKey{intruder},
		soltrust.NewMatureCloseInstruction(
			env.VaultProgram.Id(),
			&soltrust.MatureCloseInstructionAccounts{
				Owner:              intruder.Public().(ed25519.PublicKey),
				Vault:              env.vault,
				State:              env.state,
				BankVault:          env.TreasuryVault,
				BankVaultState:     env.TreasuryState,
				BankRewardsProgram: env.RewardsProgram.Id(),
			},
		),
	)
	requireVaultError(t, soltrust.ErrUnauthorized, err)

	after, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, vaultBefore, env.Balance(t, env.vault))
	assert.EqualValues(t, startingBalance-2*fee, env.Balance(t, intruder.Public().(ed25519.PublicKey)))
}

func TestDeposit_InsufficientFunds(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(0)
	require.NoError(t, err)

	_, err = env.deposit(startingBalance)
	requireCustomError(t, ledger.SystemErrorResultWithNegativeLamports.Custom(), err)

	record, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.EqualValues(t, 0, record.Balance)
}

func TestMatureClose_InvalidRewardsProgram(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(0)
	require.NoError(t, err)

	_, err = env.Submit(
		[]ed25519.PrivateKey{env.owner},
		soltrust.NewMatureCloseInstruction(
			env.VaultProgram.Id(),
			&soltrust.MatureCloseInstructionAccounts{
				Owner:              env.ownerAddress,
				Vault:              env.vault,
				State:              env.state,
				BankVault:          env.TreasuryVault,
				BankVaultState:     env.TreasuryState,
				BankRewardsProgram: system.ProgramKey[:],
			},
		),
	)
	requireVaultError(t, soltrust.ErrInvalidRewardsProgram, err)
}

func TestMatureClose_WrongVault(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(0)
	require.NoError(t, err)

	_, err = env.Submit(
		[]ed25519.PrivateKey{env.owner},
		soltrust.NewMatureCloseInstruction(
			env.VaultProgram.Id(),
			&soltrust.MatureCloseInstructionAccounts{
				Owner:              env.ownerAddress,
				Vault:              env.TreasuryVault,
				State:              env.state,
				BankVault:          env.TreasuryVault,
				BankVaultState:     env.TreasuryState,
				BankRewardsProgram: env.RewardsProgram.Id(),
			},
		),
	)
	requireVaultError(t, soltrust.ErrInvalidVaultAccount, err)
}

func TestMatureClose_InsufficientRewardFunds(t *testing.T) {
	env := setup(t, &ledgertest.Options{TreasuryFunding: 1_000})

	_, err := env.initialize(86400)
	require.NoError(t, err)
	_, err = env.deposit(1_000_000_000)
	require.NoError(t, err)

	env.Clock.Advance(86400 * time.Second)

	before, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	vaultBefore := env.Balance(t, env.vault)

	_, err = env.matureClose()
	require.Error(t, err)

	rewardsErr, ok := bankrewards.ErrorFromTransactionError(err)
	require.True(t, ok)
	assert.Equal(t, bankrewards.ErrInsufficientRewardFunds, rewardsErr)

	after, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, vaultBefore, env.Balance(t, env.vault))
}

func TestPrematureClose_Disabled(t *testing.T) {
	env := setup(t, nil)

	_, err := env.initialize(86400)
	require.NoError(t, err)
	_, err = env.deposit(1_000_000_000)
	require.NoError(t, err)

	_, err = env.Submit(
		[]ed25519.PrivateKey{env.owner},
		soltrust.NewPrematureCloseInstruction(
			env.VaultProgram.Id(),
			&soltrust.PrematureCloseInstructionAccounts{
				Owner:       env.ownerAddress,
				Vault:       env.vault,
				State:       env.state,
				AdminWallet: env.Admin.Public().(ed25519.PublicKey),
			},
		),
	)
	requireVaultError(t, soltrust.ErrPrematureCloseDisabled, err)

	record, err := env.GetVaultState(t, env.ownerAddress)
	require.NoError(t, err)
	assert.Equal(t, soltrust.VaultStatusActive, record.Status)
	assert.EqualValues(t, 1_000_000_000, record.Balance)
}

func TestProcess_InvalidInstruction(t *testing.T) {
	env := setup(t, nil)

	_, err := env.Submit(
		[]ed25519.PrivateKey{env.owner},
		solana.NewInstruction(
			env.VaultProgram.Id(),
			[]byte{1, 2, 3},
			solana.NewAccountMeta(env.ownerAddress, true),
		),
	)
	requireVaultError(t, soltrust.ErrInvalidInstruction, err)
}

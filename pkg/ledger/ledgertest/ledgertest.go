// Package ledgertest provides an in-memory ledger running the vault and
// rewards programs, for use in tests.
package ledgertest

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/sol-trust/pkg/ledger"
	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
	"github.com/code-payments/sol-trust/pkg/ledger/accounts/memory"
	bankrewards_program "github.com/code-payments/sol-trust/pkg/program/bankrewards"
	soltrust_program "github.com/code-payments/sol-trust/pkg/program/soltrust"
	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/bankrewards"
	"github.com/code-payments/sol-trust/pkg/solana/soltrust"
)

const (
	// DefaultTreasuryFunding is what NewEnvironment funds the treasury with.
	DefaultTreasuryFunding = 1_000 * 1_000_000_000
)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type Options struct {
	Store           accounts.Store
	RewardRateBps   uint64
	TreasuryFunding uint64
	SkipTreasury    bool
}

// Environment is a ledger with the vault and rewards programs deployed at
// their default addresses, and a funded treasury authorizing the vault
// program.
type Environment struct {
	Ledger *ledger.Ledger
	Clock  *Clock
	Store  accounts.Store

	VaultProgram   *soltrust_program.Program
	RewardsProgram *bankrewards_program.Program

	Admin         ed25519.PrivateKey
	TreasuryState ed25519.PublicKey
	TreasuryVault ed25519.PublicKey
}

func NewEnvironment(t *testing.T, opts *Options) *Environment {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Store == nil {
		opts.Store = memory.New()
	}
	if opts.TreasuryFunding == 0 {
		opts.TreasuryFunding = DefaultTreasuryFunding
	}

	ctx := context.Background()

	vaultProgram, err := soltrust_program.New(ctx, soltrust_program.WithTestOverrides(&soltrust_program.TestOverrides{
		RewardRateBps: opts.RewardRateBps,
	}))
	require.NoError(t, err)

	rewardsProgram, err := bankrewards_program.New(ctx, bankrewards_program.WithTestOverrides(&bankrewards_program.TestOverrides{}))
	require.NoError(t, err)

	clock := NewClock(time.Unix(1_700_000_000, 0))

	l, err := ledger.New(
		ctx,
		opts.Store,
		ledger.WithTestOverrides(&ledger.TestOverrides{}),
		ledger.WithPrograms(vaultProgram, rewardsProgram),
		ledger.WithClock(clock),
	)
	require.NoError(t, err)

	env := &Environment{
		Ledger:         l,
		Clock:          clock,
		Store:          opts.Store,
		VaultProgram:   vaultProgram,
		RewardsProgram: rewardsProgram,
	}

	if !opts.SkipTreasury {
		env.setupTreasury(t, opts.TreasuryFunding)
	}

	return env
}

// NewFundedKey returns a new keypair holding lamports.
func (e *Environment) NewFundedKey(t *testing.T, lamports uint64) ed25519.PrivateKey {
	key := NewKey(t)

	_, err := e.Ledger.RequestAirdrop(context.Background(), key.Public().(ed25519.PublicKey), lamports)
	require.NoError(t, err)

	return key
}

// Submit signs and submits the instructions, paid for by the first signer.
// The ledger advances a slot afterwards, so resubmitting identical
// instructions produces a new transaction.
func (e *Environment) Submit(signers []ed25519.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	tx := solana.NewTransaction(signers[0].Public().(ed25519.PublicKey), instructions...)

	bh, _ := e.Ledger.GetLatestBlockhash()
	tx.SetBlockhash(bh)
	if err := tx.Sign(signers...); err != nil {
		return solana.Signature{}, err
	}

	sig, err := e.Ledger.SubmitTransaction(context.Background(), tx)
	e.Ledger.AdvanceSlot()
	return sig, err
}

// Balance returns the lamports held by address.
func (e *Environment) Balance(t *testing.T, address ed25519.PublicKey) uint64 {
	balance, err := e.Ledger.GetBalance(context.Background(), address)
	require.NoError(t, err)
	return balance
}

// VaultAddresses returns the state and custody addresses for owner.
func (e *Environment) VaultAddresses(t *testing.T, owner ed25519.PublicKey) (state, vault ed25519.PublicKey) {
	state, _, err := soltrust.GetStateAddress(e.VaultProgram.Id(), &soltrust.GetStateAddressArgs{Owner: owner})
	require.NoError(t, err)

	vault, _, err = soltrust.GetVaultAddress(e.VaultProgram.Id(), &soltrust.GetVaultAddressArgs{State: state})
	require.NoError(t, err)

	return state, vault
}

// GetVaultState returns the decoded state record for owner.
func (e *Environment) GetVaultState(t *testing.T, owner ed25519.PublicKey) (*soltrust.VaultStateAccount, error) {
	state, _ := e.VaultAddresses(t, owner)

	record, err := e.Ledger.GetAccount(context.Background(), state)
	if err != nil {
		return nil, err
	}

	var account soltrust.VaultStateAccount
	if err := account.Unmarshal(record.Data); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetTreasury returns the decoded treasury record.
func (e *Environment) GetTreasury(t *testing.T) *bankrewards.TreasuryAccount {
	record, err := e.Ledger.GetAccount(context.Background(), e.TreasuryState)
	require.NoError(t, err)

	var account bankrewards.TreasuryAccount
	require.NoError(t, account.Unmarshal(record.Data))
	return &account
}

func (e *Environment) setupTreasury(t *testing.T, funding uint64) {
	e.Admin = e.NewFundedKey(t, funding+1_000_000_000)
	admin := e.Admin.Public().(ed25519.PublicKey)

	var err error
	e.TreasuryState, _, err = bankrewards.GetTreasuryStateAddress(e.RewardsProgram.Id(), admin)
	require.NoError(t, err)
	e.TreasuryVault, _, err = bankrewards.GetTreasuryVaultAddress(e.RewardsProgram.Id(), e.TreasuryState)
	require.NoError(t, err)

	_, err = e.Submit(
		[]ed25519.PrivateKey{e.Admin},
		bankrewards.NewInitializeInstruction(
			e.RewardsProgram.Id(),
			&bankrewards.InitializeInstructionAccounts{
				Admin: admin,
				State: e.TreasuryState,
				Vault: e.TreasuryVault,
			},
			&bankrewards.InitializeInstructionArgs{
				AuthorizedProgram: e.VaultProgram.Id(),
			},
		),
		bankrewards.NewFundInstruction(
			e.RewardsProgram.Id(),
			&bankrewards.FundInstructionAccounts{
				Admin: admin,
				State: e.TreasuryState,
				Vault: e.TreasuryVault,
			},
			&bankrewards.FundInstructionArgs{
				Amount: funding,
			},
		),
	)
	require.NoError(t, err)
}

func NewKey(t *testing.T) ed25519.PrivateKey {
	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return key
}

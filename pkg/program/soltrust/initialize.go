package soltrust

import (
	"bytes"
	"crypto/ed25519"
	"math"

	"github.com/code-payments/sol-trust/pkg/ledger"
	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/soltrust"
	"github.com/code-payments/sol-trust/pkg/solana/system"
)

const (
	initializeOwnerIndex = iota
	initializeStateIndex
	initializeVaultIndex
)

func (p *Program) initialize(ic *ledger.InvokeContext, lockDuration int64) error {
	if lockDuration < 0 {
		return soltrust.ErrInvalidLockDuration
	}

	owner, err := ic.Account(initializeOwnerIndex)
	if err != nil {
		return err
	}
	state, err := ic.Account(initializeStateIndex)
	if err != nil {
		return err
	}
	custody, err := ic.Account(initializeVaultIndex)
	if err != nil {
		return err
	}

	if !owner.IsSigner || !owner.IsWritable {
		return soltrust.ErrUnauthorized
	}

	stateAddress, stateBump, err := soltrust.GetStateAddress(p.programId, &soltrust.GetStateAddressArgs{
		Owner: owner.Address,
	})
	if err != nil {
		return soltrust.ErrAddressDerivationFailure
	}
	if !bytes.Equal(stateAddress, state.Address) || !state.IsWritable {
		return soltrust.ErrInvalidStateAccount
	}

	vaultAddress, vaultBump, err := soltrust.GetVaultAddress(p.programId, &soltrust.GetVaultAddressArgs{
		State: stateAddress,
	})
	if err != nil {
		return soltrust.ErrAddressDerivationFailure
	}
	if !bytes.Equal(vaultAddress, custody.Address) || !custody.IsWritable {
		return soltrust.ErrInvalidVaultAccount
	}

	if state.IsOwnedBy(p.programId) {
		return soltrust.ErrAlreadyInitialized
	}
	if !state.IsOwnedBy(system.ProgramKey[:]) || len(state.Data) > 0 {
		return soltrust.ErrInvalidStateAccount
	}
	if !custody.IsOwnedBy(system.ProgramKey[:]) || len(custody.Data) > 0 {
		return soltrust.ErrInvalidVaultAccount
	}

	now := ic.Clock().UnixTimestamp
	if now > math.MaxInt64-lockDuration {
		return soltrust.ErrArithmeticOverflow
	}

	stateSeeds := soltrust.StateSeeds(owner.Address, stateBump)
	if err := p.allocateState(ic, owner.Address, state, stateSeeds); err != nil {
		return err
	}

	// The custody account is kept rent exempt for the lifetime of the vault.
	// Anything it already holds becomes part of the reserve.
	custodyRent := ic.MinimumBalanceForRentExemption(0)
	if custody.Lamports < custodyRent {
		if err := ic.Invoke(system.Transfer(owner.Address, custody.Address, custodyRent-custody.Lamports)); err != nil {
			return err
		}
	}

	record := &soltrust.VaultStateAccount{
		Owner:        owner.Address,
		StateBump:    stateBump,
		VaultBump:    vaultBump,
		Reserve:      custody.Lamports,
		LockDuration: lockDuration,
		CreatedAt:    now,
		UnlockAt:     now + lockDuration,
		Status:       soltrust.VaultStatusActive,
	}
	copy(state.Data, record.Marshal())

	ic.Log("vault %s initialized, unlocks at %d", state, record.UnlockAt)
	return nil
}

// allocateState creates the state record account, funded by the owner.
//
// An account can't be created at an address that already holds lamports, so
// a pre-funded address is topped up, allocated and assigned instead.
func (p *Program) allocateState(ic *ledger.InvokeContext, owner ed25519.PublicKey, state *ledger.AccountInfo, seeds [][]byte) error {
	rent := ic.MinimumBalanceForRentExemption(soltrust.VaultStateAccountSize)

	if state.Lamports == 0 {
		return ic.InvokeSigned(
			system.CreateAccount(owner, state.Address, p.programId, rent, soltrust.VaultStateAccountSize),
			seeds,
		)
	}

	if state.Lamports < rent {
		if err := ic.Invoke(system.Transfer(owner, state.Address, rent-state.Lamports)); err != nil {
			return err
		}
	}

	if err := ic.InvokeSigned(system.Allocate(state.Address, soltrust.VaultStateAccountSize), seeds); err != nil {
		return err
	}
	return ic.InvokeSigned(system.Assign(state.Address, p.programId), seeds)
}

func (p *Program) createAddress(seeds [][]byte) (ed25519.PublicKey, error) {
	return solana.CreateProgramAddress(p.programId, seeds...)
}

package soltrust

import (
	"bytes"

	"github.com/code-payments/sol-trust/pkg/ledger"
	"github.com/code-payments/sol-trust/pkg/solana/bankrewards"
	"github.com/code-payments/sol-trust/pkg/solana/soltrust"
	"github.com/code-payments/sol-trust/pkg/solana/system"
)

const (
	matureCloseOwnerIndex = iota
	matureCloseVaultIndex
	matureCloseStateIndex
	matureCloseBankVaultIndex
	matureCloseBankVaultStateIndex
	matureCloseRewardsProgramIndex
)

const (
	prematureCloseOwnerIndex = iota
	prematureCloseVaultIndex
	prematureCloseStateIndex
	prematureCloseAdminIndex
)

func (p *Program) matureClose(ic *ledger.InvokeContext) error {
	rewardsProgram, err := ic.Account(matureCloseRewardsProgramIndex)
	if err != nil {
		return err
	}
	if !bytes.Equal(rewardsProgram.Address, p.rewardsProgramId) {
		return soltrust.ErrInvalidRewardsProgram
	}

	bankVault, err := ic.Account(matureCloseBankVaultIndex)
	if err != nil {
		return err
	}
	bankVaultState, err := ic.Account(matureCloseBankVaultStateIndex)
	if err != nil {
		return err
	}

	v, err := p.loadVault(ic, matureCloseOwnerIndex, matureCloseStateIndex, matureCloseVaultIndex)
	if err != nil {
		return err
	}

	now := ic.Clock().UnixTimestamp
	if !v.record.IsMature(now) {
		ic.Log("vault %s unlocks at %d, now %d", v.state, v.record.UnlockAt, now)
		return soltrust.ErrVaultNotMature
	}

	reward, err := CalculateReward(v.record.Balance, p.rewardRateBps, v.record.LockDuration)
	if err != nil {
		return err
	}

	// The custody account signs for this invocation only, and receives the
	// reward so the payout below covers both.
	withdraw := bankrewards.NewWithdrawInstruction(
		p.rewardsProgramId,
		&bankrewards.WithdrawInstructionAccounts{
			Recipient:     v.custody.Address,
			CustodyVault:  v.custody.Address,
			CustodyState:  v.state.Address,
			TreasuryVault: bankVault.Address,
			TreasuryState: bankVaultState.Address,
		},
		&bankrewards.WithdrawInstructionArgs{
			Amount: reward,
		},
	)
	if err := ic.InvokeSigned(withdraw, v.custodySeeds()); err != nil {
		return err
	}

	payout := v.custody.Lamports
	if err := ic.InvokeSigned(system.Transfer(v.custody.Address, v.owner.Address, payout), v.custodySeeds()); err != nil {
		return err
	}

	// Deallocating the record is the Closed state: the account returns to
	// the system program and a later initialize starts a new vault.
	closeState(v.state, v.owner)

	ic.Log("vault %s closed, paid %d including reward %d", v.state, payout, reward)
	return nil
}

func (p *Program) prematureClose(ic *ledger.InvokeContext) error {
	if _, err := ic.Account(prematureCloseAdminIndex); err != nil {
		return err
	}

	v, err := p.loadVault(ic, prematureCloseOwnerIndex, prematureCloseStateIndex, prematureCloseVaultIndex)
	if err != nil {
		return err
	}

	ic.Log("vault %s unlocks at %d, premature close is disabled", v.state, v.record.UnlockAt)
	return soltrust.ErrPrematureCloseDisabled
}

// closeState returns the state account's lamports to the owner and hands the
// zeroed account back to the system program.
func closeState(state, owner *ledger.AccountInfo) {
	owner.Lamports += state.Lamports
	state.Lamports = 0
	state.Data = make([]byte, 0)
	state.Owner = system.ProgramKey[:]
}

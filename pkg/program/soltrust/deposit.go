package soltrust

import (
	"github.com/code-payments/sol-trust/pkg/ledger"
	"github.com/code-payments/sol-trust/pkg/solana/soltrust"
	"github.com/code-payments/sol-trust/pkg/solana/system"
)

const (
	depositOwnerIndex = iota
	depositStateIndex
	depositVaultIndex
)

func (p *Program) deposit(ic *ledger.InvokeContext, amount uint64) error {
	if amount == 0 {
		return soltrust.ErrInvalidAmount
	}

	v, err := p.loadVault(ic, depositOwnerIndex, depositStateIndex, depositVaultIndex)
	if err != nil {
		return err
	}

	// The reward covers the whole lock term, so deposits stop at unlock. A
	// zero lock earns nothing and stays open.
	now := ic.Clock().UnixTimestamp
	if v.record.LockDuration > 0 && v.record.IsMature(now) {
		ic.Log("vault %s unlocked at %d, now %d", v.state, v.record.UnlockAt, now)
		return soltrust.ErrDepositAfterUnlock
	}

	balance := v.record.Balance + amount
	if balance < v.record.Balance {
		return soltrust.ErrArithmeticOverflow
	}

	// Insufficient owner funds surface as the system program's error.
	if err := ic.Invoke(system.Transfer(v.owner.Address, v.custody.Address, amount)); err != nil {
		return err
	}

	v.record.Balance = balance
	v.record.DepositedAt = now
	v.save()

	ic.Log("deposited %d into vault %s, balance %d", amount, v.state, v.record.Balance)
	return nil
}

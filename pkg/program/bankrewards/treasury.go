package bankrewards

import (
	"bytes"

	"github.com/code-payments/sol-trust/pkg/ledger"
	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/bankrewards"
	"github.com/code-payments/sol-trust/pkg/solana/soltrust"
	"github.com/code-payments/sol-trust/pkg/solana/system"
)

const (
	fundAdminIndex = iota
	fundStateIndex
	fundVaultIndex
)

type treasury struct {
	state  *ledger.AccountInfo
	vault  *ledger.AccountInfo
	record *bankrewards.TreasuryAccount
}

// loadTreasury validates a treasury's state and vault accounts.
func (p *Program) loadTreasury(state, vault *ledger.AccountInfo) (*treasury, error) {
	if !state.IsOwnedBy(p.programId) || !state.IsWritable {
		return nil, bankrewards.ErrInvalidTreasury
	}

	var record bankrewards.TreasuryAccount
	if err := record.Unmarshal(state.Data); err != nil {
		return nil, bankrewards.ErrInvalidTreasury
	}

	expectedState, err := solana.CreateProgramAddress(p.programId, bankrewards.TreasuryStateSeeds(record.Admin, record.StateBump)...)
	if err != nil || !bytes.Equal(expectedState, state.Address) {
		return nil, bankrewards.ErrInvalidTreasury
	}

	expectedVault, err := solana.CreateProgramAddress(p.programId, bankrewards.TreasuryVaultSeeds(state.Address, record.VaultBump)...)
	if err != nil || !bytes.Equal(expectedVault, vault.Address) || !vault.IsWritable {
		return nil, bankrewards.ErrInvalidTreasury
	}

	return &treasury{
		state:  state,
		vault:  vault,
		record: &record,
	}, nil
}

func (t *treasury) save() {
	copy(t.state.Data, t.record.Marshal())
}

func (p *Program) fund(ic *ledger.InvokeContext, amount uint64) error {
	if amount == 0 {
		return bankrewards.ErrInvalidAmount
	}

	admin, err := ic.Account(fundAdminIndex)
	if err != nil {
		return err
	}
	state, err := ic.Account(fundStateIndex)
	if err != nil {
		return err
	}
	vault, err := ic.Account(fundVaultIndex)
	if err != nil {
		return err
	}

	if !admin.IsSigner || !admin.IsWritable {
		return bankrewards.ErrUnauthorized
	}

	t, err := p.loadTreasury(state, vault)
	if err != nil {
		return err
	}
	if !bytes.Equal(t.record.Admin, admin.Address) {
		return bankrewards.ErrUnauthorized
	}

	totalFunded := t.record.TotalFunded + amount
	if totalFunded < t.record.TotalFunded {
		return bankrewards.ErrArithmeticOverflow
	}

	if err := ic.Invoke(system.Transfer(admin.Address, vault.Address, amount)); err != nil {
		return err
	}

	t.record.TotalFunded = totalFunded
	t.save()

	ic.Log("treasury %s funded with %d", state, amount)
	return nil
}

func (p *Program) withdraw(ic *ledger.InvokeContext, amount uint64) error {
	recipient, err := ic.Account(withdrawRecipientIndex)
	if err != nil {
		return err
	}
	custodyVault, err := ic.Account(withdrawCustodyVaultIndex)
	if err != nil {
		return err
	}
	custodyState, err := ic.Account(withdrawCustodyStateIndex)
	if err != nil {
		return err
	}

	if err := p.verifyCaller(custodyVault, custodyState); err != nil {
		return err
	}

	if amount == 0 {
		ic.Log("no reward owed")
		return nil
	}

	treasuryVault, err := ic.Account(withdrawTreasuryVaultIndex)
	if err != nil {
		return err
	}
	treasuryState, err := ic.Account(withdrawTreasuryStateIndex)
	if err != nil {
		return err
	}

	t, err := p.loadTreasury(treasuryState, treasuryVault)
	if err != nil {
		return err
	}
	if !bytes.Equal(t.record.AuthorizedProgram, p.authorizedProgramId) {
		return bankrewards.ErrUnauthorizedCaller
	}

	// The treasury vault stays rent exempt, so only the excess is available.
	reserve := ic.MinimumBalanceForRentExemption(0)
	if treasuryVault.Lamports < reserve || treasuryVault.Lamports-reserve < amount {
		ic.Log("treasury %s holds %d, requested %d", treasuryState, treasuryVault.Lamports, amount)
		return bankrewards.ErrInsufficientRewardFunds
	}

	totalPaid := t.record.TotalPaid + amount
	if totalPaid < t.record.TotalPaid {
		return bankrewards.ErrArithmeticOverflow
	}

	err = ic.InvokeSigned(
		system.Transfer(treasuryVault.Address, recipient.Address, amount),
		bankrewards.TreasuryVaultSeeds(treasuryState.Address, t.record.VaultBump),
	)
	if err != nil {
		return err
	}

	t.record.TotalPaid = totalPaid
	t.save()

	ic.Log("paid reward of %d to %s", amount, recipient)
	return nil
}

// verifyCaller checks the withdrawal is signed by a custody vault of the
// authorized program. Only the authorized program can produce that signature.
func (p *Program) verifyCaller(custodyVault, custodyState *ledger.AccountInfo) error {
	if !custodyVault.IsSigner {
		return bankrewards.ErrUnauthorizedCaller
	}

	if !custodyState.IsOwnedBy(p.authorizedProgramId) {
		return bankrewards.ErrUnauthorizedCaller
	}

	expected, _, err := soltrust.GetVaultAddress(p.authorizedProgramId, &soltrust.GetVaultAddressArgs{
		State: custodyState.Address,
	})
	if err != nil || !bytes.Equal(expected, custodyVault.Address) {
		return bankrewards.ErrUnauthorizedCaller
	}

	return nil
}

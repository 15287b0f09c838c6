package bankrewards

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/sol-trust/pkg/ledger"
	"github.com/code-payments/sol-trust/pkg/solana/bankrewards"
	"github.com/code-payments/sol-trust/pkg/solana/system"
)

const (
	initializeAdminIndex = iota
	initializeStateIndex
	initializeVaultIndex
)

const (
	withdrawRecipientIndex = iota
	withdrawCustodyVaultIndex
	withdrawCustodyStateIndex
	withdrawTreasuryVaultIndex
	withdrawTreasuryStateIndex
)

// Program pays rewards out of admin funded treasuries. Withdrawals are only
// accepted from the authorized program, which proves itself by signing for
// the custody vault derived from a state account it owns.
type Program struct {
	log *logrus.Entry

	programId           ed25519.PublicKey
	authorizedProgramId ed25519.PublicKey
}

func New(ctx context.Context, configProvider ConfigProvider) (*Program, error) {
	conf := configProvider()

	programId, err := loadKey(ctx, conf.programId)
	if err != nil {
		return nil, errors.Wrap(err, "invalid program id")
	}

	authorizedProgramId, err := loadKey(ctx, conf.authorizedProgramId)
	if err != nil {
		return nil, errors.Wrap(err, "invalid authorized program id")
	}

	return &Program{
		log:                 logrus.StandardLogger().WithField("type", "program/bankrewards"),
		programId:           programId,
		authorizedProgramId: authorizedProgramId,
	}, nil
}

func (p *Program) Id() ed25519.PublicKey {
	return p.programId
}

func (p *Program) Process(ic *ledger.InvokeContext, data []byte) error {
	args, err := bankrewards.UnmarshalInstructionData(data)
	if err != nil {
		return bankrewards.ErrInvalidInstruction
	}

	ic.Log("Instruction: %s", args.Type)

	switch args.Type {
	case bankrewards.InstructionTypeInitialize:
		return p.initialize(ic, args.AuthorizedProgram)
	case bankrewards.InstructionTypeFund:
		return p.fund(ic, args.Amount)
	case bankrewards.InstructionTypeWithdraw:
		return p.withdraw(ic, args.Amount)
	}
	return bankrewards.ErrInvalidInstruction
}

func (p *Program) initialize(ic *ledger.InvokeContext, authorizedProgram ed25519.PublicKey) error {
	admin, err := ic.Account(initializeAdminIndex)
	if err != nil {
		return err
	}
	state, err := ic.Account(initializeStateIndex)
	if err != nil {
		return err
	}
	vault, err := ic.Account(initializeVaultIndex)
	if err != nil {
		return err
	}

	if !admin.IsSigner || !admin.IsWritable {
		return bankrewards.ErrUnauthorized
	}

	stateAddress, stateBump, err := bankrewards.GetTreasuryStateAddress(p.programId, admin.Address)
	if err != nil || !bytes.Equal(stateAddress, state.Address) {
		return bankrewards.ErrInvalidTreasury
	}
	vaultAddress, vaultBump, err := bankrewards.GetTreasuryVaultAddress(p.programId, stateAddress)
	if err != nil || !bytes.Equal(vaultAddress, vault.Address) {
		return bankrewards.ErrInvalidTreasury
	}

	if state.IsOwnedBy(p.programId) {
		return bankrewards.ErrAlreadyInitialized
	}

	rent := ic.MinimumBalanceForRentExemption(bankrewards.TreasuryAccountSize)
	err = ic.InvokeSigned(
		system.CreateAccount(admin.Address, state.Address, p.programId, rent, bankrewards.TreasuryAccountSize),
		bankrewards.TreasuryStateSeeds(admin.Address, stateBump),
	)
	if err != nil {
		return err
	}

	vaultRent := ic.MinimumBalanceForRentExemption(0)
	if vault.Lamports < vaultRent {
		if err := ic.Invoke(system.Transfer(admin.Address, vault.Address, vaultRent-vault.Lamports)); err != nil {
			return err
		}
	}

	record := &bankrewards.TreasuryAccount{
		Admin:             admin.Address,
		AuthorizedProgram: authorizedProgram,
		StateBump:         stateBump,
		VaultBump:         vaultBump,
	}
	copy(state.Data, record.Marshal())

	ic.Log("treasury %s initialized, authorized program %s", state, base58.Encode(authorizedProgram))
	return nil
}

package soltrust

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/sol-trust/pkg/ledger"
	"github.com/code-payments/sol-trust/pkg/solana/soltrust"
)

// Program is the time-locked vault program.
//
// Each owner has a single vault, made up of a state record and a system owned
// custody account, both derived from the owner's key. Deposits are held in
// the custody account until the lock expires, at which point a mature close
// pays out the deposits along with a reward drawn from the rewards program.
type Program struct {
	log *logrus.Entry

	programId        ed25519.PublicKey
	rewardsProgramId ed25519.PublicKey
	rewardRateBps    uint64
}

// New returns the vault program deployed at the configured address.
func New(ctx context.Context, configProvider ConfigProvider) (*Program, error) {
	conf := configProvider()

	programId, err := loadKey(ctx, conf.programId)
	if err != nil {
		return nil, errors.Wrap(err, "invalid program id")
	}

	rewardsProgramId, err := loadKey(ctx, conf.rewardsProgramId)
	if err != nil {
		return nil, errors.Wrap(err, "invalid rewards program id")
	}

	return &Program{
		log:              logrus.StandardLogger().WithField("type", "program/soltrust"),
		programId:        programId,
		rewardsProgramId: rewardsProgramId,
		rewardRateBps:    conf.rewardRateBps.Get(ctx),
	}, nil
}

func (p *Program) Id() ed25519.PublicKey {
	return p.programId
}

// RewardsProgramId returns the only rewards program mature closes will invoke.
func (p *Program) RewardsProgramId() ed25519.PublicKey {
	return p.rewardsProgramId
}

func (p *Program) Process(ic *ledger.InvokeContext, data []byte) error {
	args, err := soltrust.UnmarshalInstructionData(data)
	if err != nil {
		return soltrust.ErrInvalidInstruction
	}

	ic.Log("Instruction: %s", args.Type)

	switch args.Type {
	case soltrust.InstructionTypeInitialize:
		return p.initialize(ic, args.LockDuration)
	case soltrust.InstructionTypeDeposit:
		return p.deposit(ic, args.Amount)
	case soltrust.InstructionTypeMatureClose:
		return p.matureClose(ic)
	case soltrust.InstructionTypePrematureClose:
		return p.prematureClose(ic)
	}
	return soltrust.ErrInvalidInstruction
}

// vault is a loaded, active vault belonging to the signing owner.
type vault struct {
	owner   *ledger.AccountInfo
	state   *ledger.AccountInfo
	custody *ledger.AccountInfo
	record  *soltrust.VaultStateAccount
}

// loadVault validates the owner, state and custody accounts of an existing
// vault.
func (p *Program) loadVault(ic *ledger.InvokeContext, ownerIndex, stateIndex, custodyIndex int) (*vault, error) {
	owner, err := ic.Account(ownerIndex)
	if err != nil {
		return nil, err
	}
	state, err := ic.Account(stateIndex)
	if err != nil {
		return nil, err
	}
	custody, err := ic.Account(custodyIndex)
	if err != nil {
		return nil, err
	}

	if !owner.IsSigner || !owner.IsWritable {
		return nil, soltrust.ErrUnauthorized
	}

	if !state.IsWritable {
		return nil, soltrust.ErrInvalidStateAccount
	}
	if !state.IsOwnedBy(p.programId) || len(state.Data) == 0 {
		return nil, soltrust.ErrVaultNotActive
	}

	var record soltrust.VaultStateAccount
	if err := record.Unmarshal(state.Data); err != nil {
		return nil, soltrust.ErrInvalidStateAccount
	}

	if !bytes.Equal(record.Owner, owner.Address) {
		return nil, soltrust.ErrUnauthorized
	}

	expectedState, err := p.createAddress(soltrust.StateSeeds(record.Owner, record.StateBump))
	if err != nil || !bytes.Equal(expectedState, state.Address) {
		return nil, soltrust.ErrInvalidStateAccount
	}

	if record.Status != soltrust.VaultStatusActive {
		return nil, soltrust.ErrVaultNotActive
	}

	expectedCustody, err := p.createAddress(soltrust.VaultSeeds(state.Address, record.VaultBump))
	if err != nil || !bytes.Equal(expectedCustody, custody.Address) {
		return nil, soltrust.ErrInvalidVaultAccount
	}
	if !custody.IsWritable {
		return nil, soltrust.ErrInvalidVaultAccount
	}

	return &vault{
		owner:   owner,
		state:   state,
		custody: custody,
		record:  &record,
	}, nil
}

// save writes the record back into the state account.
func (v *vault) save() {
	copy(v.state.Data, v.record.Marshal())
}

func (v *vault) custodySeeds() [][]byte {
	return soltrust.VaultSeeds(v.state.Address, v.record.VaultBump)
}

// Package vault provides a client for time-locked vaults, talking to a node
// over JSON-RPC.
package vault

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/sol-trust/pkg/cache"
	"github.com/code-payments/sol-trust/pkg/metrics"
	"github.com/code-payments/sol-trust/pkg/retry"
	"github.com/code-payments/sol-trust/pkg/retry/backoff"
	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/bankrewards"
	"github.com/code-payments/sol-trust/pkg/solana/soltrust"
)

const (
	metricsStructName = "vault.client"

	// Each cached derivation weighs 1.
	addressCacheBudget = 4096
)

var (
	ErrVaultNotFound    = errors.New("vault not found")
	ErrTreasuryNotFound = errors.New("treasury not found")

	errBlockhashExpired = errors.New("blockhash expired")
)

// Vault is a vault state record along with the lamports held in custody.
type Vault struct {
	State   ed25519.PublicKey
	Custody ed25519.PublicKey

	Record          *soltrust.VaultStateAccount
	CustodyLamports uint64
}

// Treasury is a rewards treasury along with its available funds.
type Treasury struct {
	State ed25519.PublicKey
	Vault ed25519.PublicKey

	Record        *bankrewards.TreasuryAccount
	VaultLamports uint64
}

type Client struct {
	log  *logrus.Entry
	conf *conf
	sc   solana.Client

	programId        ed25519.PublicKey
	rewardsProgramId ed25519.PublicKey

	// Program addresses take a hash search to derive, and are requested on
	// every operation.
	addresses cache.Cache[[2]ed25519.PublicKey]
}

func NewClient(ctx context.Context, sc solana.Client, configProvider ConfigProvider) (*Client, error) {
	conf := configProvider()

	programId, err := decodeKey(conf.programId.Get(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "invalid program id")
	}
	rewardsProgramId, err := decodeKey(conf.rewardsProgramId.Get(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "invalid rewards program id")
	}

	return &Client{
		log:              logrus.StandardLogger().WithField("type", "vault/client"),
		conf:             conf,
		sc:               sc,
		programId:        programId,
		rewardsProgramId: rewardsProgramId,
		addresses:        cache.New[[2]ed25519.PublicKey](addressCacheBudget),
	}, nil
}

func (c *Client) ProgramId() ed25519.PublicKey {
	return c.programId
}

func (c *Client) RewardsProgramId() ed25519.PublicKey {
	return c.rewardsProgramId
}

// Addresses returns the state and custody addresses of owner's vault.
func (c *Client) Addresses(owner ed25519.PublicKey) (state, custody ed25519.PublicKey, err error) {
	return c.derive("vault:"+base58.Encode(owner), func() (ed25519.PublicKey, ed25519.PublicKey, error) {
		state, _, err := soltrust.GetStateAddress(c.programId, &soltrust.GetStateAddressArgs{Owner: owner})
		if err != nil {
			return nil, nil, err
		}

		custody, _, err := soltrust.GetVaultAddress(c.programId, &soltrust.GetVaultAddressArgs{State: state})
		if err != nil {
			return nil, nil, err
		}
		return state, custody, nil
	})
}

// TreasuryAddresses returns the state and vault addresses of admin's treasury.
func (c *Client) TreasuryAddresses(admin ed25519.PublicKey) (state, vault ed25519.PublicKey, err error) {
	return c.derive("treasury:"+base58.Encode(admin), func() (ed25519.PublicKey, ed25519.PublicKey, error) {
		state, _, err := bankrewards.GetTreasuryStateAddress(c.rewardsProgramId, admin)
		if err != nil {
			return nil, nil, err
		}

		vault, _, err := bankrewards.GetTreasuryVaultAddress(c.rewardsProgramId, state)
		if err != nil {
			return nil, nil, err
		}
		return state, vault, nil
	})
}

func (c *Client) derive(key string, fn func() (ed25519.PublicKey, ed25519.PublicKey, error)) (ed25519.PublicKey, ed25519.PublicKey, error) {
	if cached, ok := c.addresses.Retrieve(key); ok {
		return cached[0], cached[1], nil
	}

	first, second, err := fn()
	if err != nil {
		return nil, nil, err
	}

	// A concurrent derivation of the same key may have won the insert.
	_ = c.addresses.Insert(key, [2]ed25519.PublicKey{first, second}, 1)
	return first, second, nil
}

// Initialize creates owner's vault, locked for lockDuration from now.
func (c *Client) Initialize(ctx context.Context, owner ed25519.PrivateKey, lockDuration time.Duration) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Initialize")
	defer tracer.End()

	ownerPub := owner.Public().(ed25519.PublicKey)
	state, custody, err := c.Addresses(ownerPub)
	if err != nil {
		tracer.OnError(err)
		return solana.Signature{}, err
	}

	sig, err := c.submit(ctx, []ed25519.PrivateKey{owner}, soltrust.NewInitializeInstruction(
		c.programId,
		&soltrust.InitializeInstructionAccounts{
			Owner: ownerPub,
			State: state,
			Vault: custody,
		},
		&soltrust.InitializeInstructionArgs{
			LockDuration: int64(lockDuration / time.Second),
		},
	))
	tracer.OnError(err)
	return sig, err
}

// Deposit moves amount lamports from owner into their vault.
func (c *Client) Deposit(ctx context.Context, owner ed25519.PrivateKey, amount uint64) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Deposit")
	defer tracer.End()

	ownerPub := owner.Public().(ed25519.PublicKey)
	state, custody, err := c.Addresses(ownerPub)
	if err != nil {
		tracer.OnError(err)
		return solana.Signature{}, err
	}

	sig, err := c.submit(ctx, []ed25519.PrivateKey{owner}, soltrust.NewDepositInstruction(
		c.programId,
		&soltrust.DepositInstructionAccounts{
			Owner: ownerPub,
			State: state,
			Vault: custody,
		},
		&soltrust.DepositInstructionArgs{
			Amount: amount,
		},
	))
	tracer.OnError(err)
	return sig, err
}

// MatureClose closes owner's matured vault, paying the reward out of the
// treasury administered by treasuryAdmin.
func (c *Client) MatureClose(ctx context.Context, owner ed25519.PrivateKey, treasuryAdmin ed25519.PublicKey) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "MatureClose")
	defer tracer.End()

	ownerPub := owner.Public().(ed25519.PublicKey)
	state, custody, err := c.Addresses(ownerPub)
	if err != nil {
		tracer.OnError(err)
		return solana.Signature{}, err
	}
	treasuryState, treasuryVault, err := c.TreasuryAddresses(treasuryAdmin)
	if err != nil {
		tracer.OnError(err)
		return solana.Signature{}, err
	}

	sig, err := c.submit(ctx, []ed25519.PrivateKey{owner}, soltrust.NewMatureCloseInstruction(
		c.programId,
		&soltrust.MatureCloseInstructionAccounts{
			Owner:              ownerPub,
			Vault:              custody,
			State:              state,
			BankVault:          treasuryVault,
			BankVaultState:     treasuryState,
			BankRewardsProgram: c.rewardsProgramId,
		},
	))
	tracer.OnError(err)
	return sig, err
}

// PrematureClose requests an early close of owner's vault. Nodes currently
// reject it with soltrust.ErrPrematureCloseDisabled.
func (c *Client) PrematureClose(ctx context.Context, owner ed25519.PrivateKey, adminWallet ed25519.PublicKey) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "PrematureClose")
	defer tracer.End()

	ownerPub := owner.Public().(ed25519.PublicKey)
	state, custody, err := c.Addresses(ownerPub)
	if err != nil {
		tracer.OnError(err)
		return solana.Signature{}, err
	}

	sig, err := c.submit(ctx, []ed25519.PrivateKey{owner}, soltrust.NewPrematureCloseInstruction(
		c.programId,
		&soltrust.PrematureCloseInstructionAccounts{
			Owner:       ownerPub,
			Vault:       custody,
			State:       state,
			AdminWallet: adminWallet,
		},
	))
	tracer.OnError(err)
	return sig, err
}

// GetVault returns owner's vault, or ErrVaultNotFound if it isn't open.
func (c *Client) GetVault(ctx context.Context, owner ed25519.PublicKey) (*Vault, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetVault")
	defer tracer.End()

	state, custody, err := c.Addresses(owner)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	info, err := c.sc.GetAccountInfo(state, solana.CommitmentFinalized)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrVaultNotFound
	} else if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "failed to get vault state")
	}
	if !info.Owner.Equal(c.programId) {
		return nil, ErrVaultNotFound
	}

	var record soltrust.VaultStateAccount
	if err := record.Unmarshal(info.Data); err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "invalid vault state")
	}

	custodyLamports, err := c.sc.GetBalance(custody)
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "failed to get custody balance")
	}

	return &Vault{
		State:           state,
		Custody:         custody,
		Record:          &record,
		CustodyLamports: custodyLamports,
	}, nil
}

// GetVaults returns every open vault, keyed by state address.
func (c *Client) GetVaults(ctx context.Context) (map[string]*soltrust.VaultStateAccount, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetVaults")
	defer tracer.End()

	accounts, _, err := c.sc.GetFilteredProgramAccounts(c.programId, 0, soltrust.VaultStateAccountDiscriminator())
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "failed to get program accounts")
	}

	vaults := make(map[string]*soltrust.VaultStateAccount, len(accounts))
	for _, account := range accounts {
		var record soltrust.VaultStateAccount
		if err := record.Unmarshal(account.Account.Data); err != nil {
			c.log.WithError(err).WithField("state", base58.Encode(account.PublicKey)).Warn("skipping invalid vault state")
			continue
		}
		vaults[base58.Encode(account.PublicKey)] = &record
	}
	return vaults, nil
}

// InitializeTreasury creates admin's treasury, drawable by authorizedProgram.
func (c *Client) InitializeTreasury(ctx context.Context, admin ed25519.PrivateKey, authorizedProgram ed25519.PublicKey) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "InitializeTreasury")
	defer tracer.End()

	adminPub := admin.Public().(ed25519.PublicKey)
	state, vault, err := c.TreasuryAddresses(adminPub)
	if err != nil {
		tracer.OnError(err)
		return solana.Signature{}, err
	}

	sig, err := c.submit(ctx, []ed25519.PrivateKey{admin}, bankrewards.NewInitializeInstruction(
		c.rewardsProgramId,
		&bankrewards.InitializeInstructionAccounts{
			Admin: adminPub,
			State: state,
			Vault: vault,
		},
		&bankrewards.InitializeInstructionArgs{
			AuthorizedProgram: authorizedProgram,
		},
	))
	tracer.OnError(err)
	return sig, err
}

// FundTreasury moves amount lamports from admin into their treasury.
func (c *Client) FundTreasury(ctx context.Context, admin ed25519.PrivateKey, amount uint64) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "FundTreasury")
	defer tracer.End()

	adminPub := admin.Public().(ed25519.PublicKey)
	state, vault, err := c.TreasuryAddresses(adminPub)
	if err != nil {
		tracer.OnError(err)
		return solana.Signature{}, err
	}

	sig, err := c.submit(ctx, []ed25519.PrivateKey{admin}, bankrewards.NewFundInstruction(
		c.rewardsProgramId,
		&bankrewards.FundInstructionAccounts{
			Admin: adminPub,
			State: state,
			Vault: vault,
		},
		&bankrewards.FundInstructionArgs{
			Amount: amount,
		},
	))
	tracer.OnError(err)
	return sig, err
}

// GetTreasury returns admin's treasury, or ErrTreasuryNotFound.
func (c *Client) GetTreasury(ctx context.Context, admin ed25519.PublicKey) (*Treasury, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetTreasury")
	defer tracer.End()

	state, vault, err := c.TreasuryAddresses(admin)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	info, err := c.sc.GetAccountInfo(state, solana.CommitmentFinalized)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrTreasuryNotFound
	} else if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "failed to get treasury state")
	}
	if !info.Owner.Equal(c.rewardsProgramId) {
		return nil, ErrTreasuryNotFound
	}

	var record bankrewards.TreasuryAccount
	if err := record.Unmarshal(info.Data); err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "invalid treasury state")
	}

	vaultLamports, err := c.sc.GetBalance(vault)
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "failed to get treasury balance")
	}

	return &Treasury{
		State:         state,
		Vault:         vault,
		Record:        &record,
		VaultLamports: vaultLamports,
	}, nil
}

// Airdrop requests lamports from the node's faucet and waits for them to land.
func (c *Client) Airdrop(ctx context.Context, address ed25519.PublicKey, lamports uint64) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Airdrop")
	defer tracer.End()

	sig, err := c.sc.RequestAirdrop(address, lamports, solana.CommitmentFinalized)
	if err != nil {
		tracer.OnError(err)
		return sig, errors.Wrap(err, "failed to request airdrop")
	}

	if err := c.confirm(sig); err != nil {
		tracer.OnError(err)
		return sig, err
	}
	return sig, nil
}

// GetBalance returns the lamports held by address.
func (c *Client) GetBalance(_ context.Context, address ed25519.PublicKey) (uint64, error) {
	return c.sc.GetBalance(address)
}

// submit signs and submits the instructions, paid for by the first signer,
// and waits for the result. Transactions whose blockhash expired before they
// landed are rebuilt with a fresh one. Program failures are returned as the
// program's error type.
func (c *Client) submit(ctx context.Context, signers []ed25519.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	payer := signers[0].Public().(ed25519.PublicKey)

	var sig solana.Signature
	_, err := retry.Retry(
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bh, err := c.sc.GetLatestBlockhash()
			if err != nil {
				return errors.Wrap(err, "failed to get latest blockhash")
			}

			tx := solana.NewTransaction(payer, instructions...)
			tx.SetBlockhash(bh)
			if err := tx.Sign(signers...); err != nil {
				return errors.Wrap(err, "failed to sign transaction")
			}
			copy(sig[:], tx.Signature())

			log := c.log.WithField("signature", sig.String())

			if _, err := c.sc.SubmitTransaction(tx, solana.CommitmentFinalized); err != nil {
				var txErr *solana.TransactionError
				if errors.As(err, &txErr) {
					if txErr.ErrorKey() == solana.TransactionErrorBlockhashNotFound {
						log.Debug("blockhash expired, resubmitting")
						return errBlockhashExpired
					}
					return programError(txErr)
				}
				return errors.Wrap(err, "failed to submit transaction")
			}

			log.Trace("transaction submitted")
			return c.confirm(sig)
		},
		retry.Context(ctx),
		retry.RetriableErrors(errBlockhashExpired),
		retry.Limit(uint(c.conf.submitAttempts.Get(ctx))),
		retry.Backoff(backoff.Constant(solana.PollRate), solana.PollRate),
	)
	return sig, err
}

func (c *Client) confirm(sig solana.Signature) error {
	status, err := c.sc.GetSignatureStatus(sig, solana.CommitmentFinalized)
	if err != nil {
		return errors.Wrap(err, "failed to get signature status")
	}
	if status.ErrorResult != nil {
		return programError(status.ErrorResult)
	}
	return nil
}

// programError returns the vault or rewards program error carried by txErr,
// falling back to txErr itself.
func programError(txErr *solana.TransactionError) error {
	if vaultErr, ok := soltrust.ErrorFromTransactionError(txErr); ok {
		return vaultErr
	}
	if rewardsErr, ok := bankrewards.ErrorFromTransactionError(txErr); ok {
		return rewardsErr
	}
	return txErr
}

func decodeKey(value string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(value)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid key length: %d", len(decoded))
	}
	return decoded, nil
}

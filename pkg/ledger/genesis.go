package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
)

// NativeLoaderAddress owns every program account.
const NativeLoaderAddress = "NativeLoader1111111111111111111111111111111"

const faucetSeedPhrase = "sol-trust faucet"

func defaultFaucet() ed25519.PrivateKey {
	seed := sha256.Sum256([]byte(faucetSeedPhrase))
	return ed25519.NewKeyFromSeed(seed[:])
}

// ensureGenesis creates program accounts and the faucet account if the store
// doesn't already have them. Existing accounts are left untouched.
func (l *Ledger) ensureGenesis(ctx context.Context) error {
	genesis := make(map[string]*accounts.Record)
	for key := range l.programs {
		genesis[key] = &accounts.Record{
			Address:    key,
			Lamports:   1,
			Owner:      NativeLoaderAddress,
			Executable: true,
		}
	}

	faucet := base58.Encode(l.Faucet())
	genesis[faucet] = &accounts.Record{
		Address:  faucet,
		Lamports: l.conf.faucetLamports.Get(ctx),
		Owner:    systemProgramAddress,
	}

	addresses := make([]string, 0, len(genesis))
	for address := range genesis {
		addresses = append(addresses, address)
	}

	existing, err := l.store.GetBatch(ctx, addresses...)
	if err != nil {
		return err
	}

	var missing []*accounts.Record
	for address, record := range genesis {
		if _, ok := existing[address]; ok {
			continue
		}
		missing = append(missing, record)
	}

	if len(missing) == 0 {
		return nil
	}

	err = l.store.Commit(ctx, missing...)
	if err == accounts.ErrStaleAccountState {
		// Another ledger sharing the store created them first.
		return nil
	}
	return errors.Wrap(err, "failed to commit genesis accounts")
}

package accounts

import (
	"context"
)

type Store interface {
	// Get gets an account by its address
	Get(ctx context.Context, address string) (*Record, error)

	// GetBatch is like Get, but for multiple accounts. Accounts that don't
	// exist are omitted from the result.
	GetBatch(ctx context.Context, addresses ...string) (map[string]*Record, error)

	// GetAllByOwner gets all accounts owned by the provided program, ordered
	// by address
	GetAllByOwner(ctx context.Context, owner string) ([]*Record, error)

	// Commit atomically applies a set of account changes. Each record's
	// version must equal the currently stored version (zero for accounts that
	// don't exist), otherwise ErrStaleAccountState is returned and nothing is
	// applied. Empty records are deleted. On success, versions and
	// timestamps are updated in place.
	Commit(ctx context.Context, records ...*Record) error
}

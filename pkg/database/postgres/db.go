package pg

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/sol-trust/pkg/retry"
)

// maxTxAttempts bounds how often ExecuteRetryable reruns a transaction that
// lost a serialization conflict.
const maxTxAttempts = 10

// ExecuteRetryable runs fn, rerunning it while it fails with a serialization
// failure or deadlock. fn must be safe to repeat, which holds for a function
// that runs a whole transaction.
func ExecuteRetryable(fn func() error) error {
	_, err := retry.Retry(
		fn,
		isRetriableStrategy,
		retry.Limit(maxTxAttempts),
	)
	return err
}

func isRetriableStrategy(_ uint, err error) bool {
	return IsSerializationFailure(err)
}

// ExecuteInTx runs fn in a transaction at the given isolation level, which
// defaults to read committed. The transaction commits if fn returns nil and
// rolls back otherwise.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	if err := fn(tx); err != nil {
		// Rollback releases the connection back to the pool.
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrapf(err, "rollback also failed: %v", rollbackErr)
		}
		return err
	}

	return tx.Commit()
}

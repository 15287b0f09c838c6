package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
	pgutil "github.com/code-payments/sol-trust/pkg/database/postgres"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed accounts.Store
func New(db *sql.DB) accounts.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Get implements accounts.Store.Get
func (s *store) Get(ctx context.Context, address string) (*accounts.Record, error) {
	model, err := dbGet(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	return fromModel(model), nil
}

// GetBatch implements accounts.Store.GetBatch
func (s *store) GetBatch(ctx context.Context, addresses ...string) (map[string]*accounts.Record, error) {
	models, err := dbGetBatch(ctx, s.db, addresses...)
	if err != nil {
		return nil, err
	}

	res := make(map[string]*accounts.Record, len(models))
	for _, model := range models {
		res[model.Address] = fromModel(model)
	}
	return res, nil
}

// GetAllByOwner implements accounts.Store.GetAllByOwner
func (s *store) GetAllByOwner(ctx context.Context, owner string) ([]*accounts.Record, error) {
	models, err := dbGetAllByOwner(ctx, s.db, owner)
	if err != nil {
		return nil, err
	}

	res := make([]*accounts.Record, len(models))
	for i, model := range models {
		res[i] = fromModel(model)
	}
	return res, nil
}

// Commit implements accounts.Store.Commit
func (s *store) Commit(ctx context.Context, records ...*accounts.Record) error {
	models := make([]*model, len(records))
	seen := make(map[string]struct{})
	for i, record := range records {
		m, err := toModel(record)
		if err != nil {
			return err
		}
		if _, ok := seen[record.Address]; ok {
			return accounts.ErrInvalidAccount
		}
		seen[record.Address] = struct{}{}
		models[i] = m
	}

	now := time.Now()
	versions := make([]int64, len(models))
	err := pgutil.ExecuteRetryable(func() error {
		return pgutil.ExecuteInTx(ctx, s.db, sql.LevelDefault, func(tx *sqlx.Tx) error {
			for i, m := range models {
				version, err := m.dbCommit(ctx, tx, now)
				if err != nil {
					return err
				}
				versions[i] = version
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	for i := range records {
		records[i].Version = uint64(versions[i])
		records[i].LastUpdatedAt = now
	}
	return nil
}

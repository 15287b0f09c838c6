package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
	pgutil "github.com/code-payments/sol-trust/pkg/database/postgres"
)

const (
	tableName = "soltrust__core_account"

	allColumns = `address, lamports, owner, data, executable, version, slot, last_updated_at`
)

type model struct {
	Address string `db:"address"`

	Lamports   int64  `db:"lamports"`
	Owner      string `db:"owner"`
	Data       []byte `db:"data"`
	Executable bool   `db:"executable"`

	Version int64 `db:"version"`
	Slot    int64 `db:"slot"`

	LastUpdatedAt time.Time `db:"last_updated_at"`
}

func toModel(obj *accounts.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	data := obj.Data
	if data == nil {
		data = []byte{}
	}

	return &model{
		Address: obj.Address,

		Lamports:   int64(obj.Lamports),
		Owner:      obj.Owner,
		Data:       data,
		Executable: obj.Executable,

		Version: int64(obj.Version),
		Slot:    int64(obj.Slot),

		LastUpdatedAt: obj.LastUpdatedAt,
	}, nil
}

func fromModel(obj *model) *accounts.Record {
	return &accounts.Record{
		Address: obj.Address,

		Lamports:   uint64(obj.Lamports),
		Owner:      obj.Owner,
		Data:       obj.Data,
		Executable: obj.Executable,

		Version: uint64(obj.Version),
		Slot:    uint64(obj.Slot),

		LastUpdatedAt: obj.LastUpdatedAt,
	}
}

// dbCommit applies the change within tx and returns the resulting version.
// The stored version must match the version the model was read at.
func (m *model) dbCommit(ctx context.Context, tx *sqlx.Tx, now time.Time) (int64, error) {
	var res sql.Result
	var err error
	var newVersion int64

	switch {
	case m.Lamports == 0 && m.Version == 0:
		var exists bool
		err = tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM `+tableName+` WHERE address = $1)`, m.Address)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, accounts.ErrStaleAccountState
		}
		return 0, nil
	case m.Lamports == 0:
		res, err = tx.ExecContext(
			ctx,
			`DELETE FROM `+tableName+` WHERE address = $1 AND version = $2`,
			m.Address,
			m.Version,
		)
	case m.Version == 0:
		res, err = tx.ExecContext(
			ctx,
			`INSERT INTO `+tableName+` (`+allColumns+`)
			VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
			ON CONFLICT (address) DO NOTHING`,
			m.Address,
			m.Lamports,
			m.Owner,
			m.Data,
			m.Executable,
			m.Slot,
			now.UTC(),
		)
		newVersion = 1
	default:
		res, err = tx.ExecContext(
			ctx,
			`UPDATE `+tableName+`
			SET lamports = $3, owner = $4, data = $5, executable = $6, version = version + 1, slot = $7, last_updated_at = $8
			WHERE address = $1 AND version = $2`,
			m.Address,
			m.Version,
			m.Lamports,
			m.Owner,
			m.Data,
			m.Executable,
			m.Slot,
			now.UTC(),
		)
		newVersion = m.Version + 1
	}
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected != 1 {
		return 0, accounts.ErrStaleAccountState
	}
	return newVersion, nil
}

func dbGet(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	res := &model{}

	query := `SELECT ` + allColumns + `
		FROM ` + tableName + `
		WHERE address = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, accounts.ErrAccountNotFound)
	}
	return res, nil
}

func dbGetBatch(ctx context.Context, db *sqlx.DB, addresses ...string) ([]*model, error) {
	res := []*model{}

	if len(addresses) == 0 {
		return res, nil
	}

	placeholders := make([]string, len(addresses))
	args := make([]interface{}, len(addresses))
	for i, address := range addresses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = address
	}

	query := `SELECT ` + allColumns + `
		FROM ` + tableName + `
		WHERE address IN (` + strings.Join(placeholders, ", ") + `)`

	err := db.SelectContext(ctx, &res, query, args...)
	if err != nil && !pgutil.IsNoRows(err) {
		return nil, err
	}
	return res, nil
}

func dbGetAllByOwner(ctx context.Context, db *sqlx.DB, owner string) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + `
		FROM ` + tableName + `
		WHERE owner = $1
		ORDER BY address ASC`

	err := db.SelectContext(ctx, &res, query, owner)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, accounts.ErrAccountNotFound)
	}
	if len(res) == 0 {
		return nil, accounts.ErrAccountNotFound
	}
	return res, nil
}

package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/casinobot/internal/repos/entries"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ entries.Entries = (*entriesRepo)(nil)

type entriesRepo struct{ db *sql.DB }

func New(db *sql.DB) *entriesRepo {
	return &entriesRepo{db: db}
}

func (r *entriesRepo) Insert(ctx context.Context, tx *sql.Tx, e entries.Entry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (entry_id, account_id, kind, amount)
		VALUES ($1, $2, $3, $4)
	`, e.EntryID, e.AccountID, string(e.Kind), int64(e.AmountMinor))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return entries.ErrDuplicateEntry
			}
		}

		return fmt.Errorf("insert ledger entry: %w", err)
	}

	return nil
}

func (r *entriesRepo) ListByAccount(ctx context.Context, accountID int64) ([]entries.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_id, account_id, kind, amount, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at, entry_id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []entries.Entry

	for rows.Next() {
		var (
			e    entries.Entry
			kind string
		)

		err = rows.Scan(&e.EntryID, &e.AccountID, &kind, &e.AmountMinor, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}

		e.Kind = entries.Kind(kind)
		out = append(out, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}

	return out, nil
}

package accounts

import (
	"context"
	"database/sql"

	"github.com/fastprodman/casinobot/internal/repos/accounts"
)

// LockAndGet reads the account and holds its row lock until tx ends.
func (r *accountsRepo) LockAndGet(ctx context.Context, tx *sql.Tx, accountID int64) (accounts.Account, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, balance, total_bets, total_wins, created_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)

	return scanAccount(row)
}

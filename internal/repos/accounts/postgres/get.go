package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/casinobot/internal/repos/accounts"
)

func (r *accountsRepo) Get(ctx context.Context, accountID int64) (accounts.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, balance, total_bets, total_wins, created_at
		FROM accounts
		WHERE id = $1
	`, accountID)

	return scanAccount(row)
}

func scanAccount(row *sql.Row) (accounts.Account, error) {
	var a accounts.Account

	err := row.Scan(&a.ID, &a.BalanceMinor, &a.TotalBets, &a.TotalWins, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounts.Account{}, accounts.ErrAccountNotFound
		}

		return accounts.Account{}, fmt.Errorf("scan account: %w", err)
	}

	return a, nil
}

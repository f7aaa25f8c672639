package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/repos/accounts"
)

// RecordBet counts one settled bet, and a win when won is set.
func (r *accountsRepo) RecordBet(ctx context.Context, tx *sql.Tx, accountID int64, won bool) (money.Minor, error) {
	var balance money.Minor

	err := tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET total_bets = total_bets + 1,
		    total_wins = total_wins + CASE WHEN $2 THEN 1 ELSE 0 END
		WHERE id = $1
		RETURNING balance
	`, accountID, won).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, accounts.ErrAccountNotFound
		}

		return 0, fmt.Errorf("record bet: %w", err)
	}

	return balance, nil
}

package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/repos/accounts"
)

// DecreaseBalance debits only when the balance covers amount. A missing
// account is reported as insufficient funds.
func (r *accountsRepo) DecreaseBalance(ctx context.Context, tx *sql.Tx, accountID int64, amount money.Minor) (money.Minor, error) {
	var balance money.Minor

	err := tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance - $2
		WHERE id = $1
		  AND balance >= $2
		RETURNING balance
	`, accountID, int64(amount)).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, accounts.ErrInsufficientFunds
		}

		return 0, fmt.Errorf("decrease balance: %w", err)
	}

	return balance, nil
}

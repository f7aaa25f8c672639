package accounts

import (
	"context"
	"database/sql"
	"fmt"
)

// Ensure lazily creates the account with a zero balance.
func (r *accountsRepo) Ensure(ctx context.Context, tx *sql.Tx, accountID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, accountID)
	if err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}

	return nil
}

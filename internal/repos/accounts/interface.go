package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/casinobot/internal/money"
)

var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrAccountNotFound = errors.New("account not found")

type Account struct {
	ID           int64
	BalanceMinor money.Minor
	TotalBets    int64
	TotalWins    int64
	CreatedAt    time.Time
}

type Accounts interface {
	Ensure(ctx context.Context, tx *sql.Tx, accountID int64) error
	Get(ctx context.Context, accountID int64) (Account, error)
	LockAndGet(ctx context.Context, tx *sql.Tx, accountID int64) (Account, error)
	IncreaseBalance(ctx context.Context, tx *sql.Tx, accountID int64, amount money.Minor) (money.Minor, error)
	DecreaseBalance(ctx context.Context, tx *sql.Tx, accountID int64, amount money.Minor) (money.Minor, error)
	RecordBet(ctx context.Context, tx *sql.Tx, accountID int64, won bool) (money.Minor, error)
}

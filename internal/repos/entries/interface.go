package entries

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/casinobot/internal/money"
)

var ErrDuplicateEntry = errors.New("duplicate ledger entry")

type Kind string

const (
	KindStake            Kind = "stake"
	KindStakeRefund      Kind = "stake_refund"
	KindPayout           Kind = "payout"
	KindDeposit          Kind = "deposit"
	KindWithdrawal       Kind = "withdrawal"
	KindWithdrawalRefund Kind = "withdrawal_refund"
	KindExternalPayment  Kind = "external_payment"
)

// Entry is one journaled balance mutation. EntryID is unique across the
// journal and doubles as the idempotency key of the mutation.
type Entry struct {
	EntryID     string
	AccountID   int64
	Kind        Kind
	AmountMinor money.Minor
	CreatedAt   time.Time
}

type Entries interface {
	Insert(ctx context.Context, tx *sql.Tx, e Entry) error
	ListByAccount(ctx context.Context, accountID int64) ([]Entry, error)
}

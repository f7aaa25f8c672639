package invoices

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/casinobot/internal/money"
)

var (
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrDuplicateInvoice = errors.New("duplicate invoice")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

type Invoice struct {
	InvoiceID   string
	AccountID   int64
	AmountMinor money.Minor
	Status      Status
	CreatedAt   time.Time
	PaidAt      *time.Time
}

type Invoices interface {
	Insert(ctx context.Context, tx *sql.Tx, inv Invoice) error
	Get(ctx context.Context, invoiceID string) (Invoice, error)
	LockAndGet(ctx context.Context, tx *sql.Tx, invoiceID string) (Invoice, error)
	ListPending(ctx context.Context) ([]Invoice, error)
	MarkPaid(ctx context.Context, tx *sql.Tx, invoiceID string) (bool, error)
}

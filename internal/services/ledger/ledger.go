// Package ledger is the single source of truth for account balances,
// invoices and the balance journal.
//
// Every balance mutation is journaled under a unique entry id in the same
// transaction that changes the balance, so replaying a mutation with the
// same id fails with ErrDuplicateEntry and leaves the balance untouched.
package ledger

import (
	"context"
	"fmt"

	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/repos/accounts"
	"github.com/fastprodman/casinobot/internal/repos/entries"
	"github.com/fastprodman/casinobot/internal/repos/invoices"
)

type (
	Account       = accounts.Account
	Invoice       = invoices.Invoice
	InvoiceStatus = invoices.Status
	Entry         = entries.Entry
	EntryKind     = entries.Kind
)

const (
	InvoicePending = invoices.StatusPending
	InvoicePaid    = invoices.StatusPaid

	KindStake            = entries.KindStake
	KindStakeRefund      = entries.KindStakeRefund
	KindPayout           = entries.KindPayout
	KindDeposit          = entries.KindDeposit
	KindWithdrawal       = entries.KindWithdrawal
	KindWithdrawalRefund = entries.KindWithdrawalRefund
	KindExternalPayment  = entries.KindExternalPayment
)

var (
	ErrInsufficientFunds = accounts.ErrInsufficientFunds
	ErrAccountNotFound   = accounts.ErrAccountNotFound
	ErrInvoiceNotFound   = invoices.ErrInvoiceNotFound
	ErrDuplicateInvoice  = invoices.ErrDuplicateInvoice
	ErrDuplicateEntry    = entries.ErrDuplicateEntry
	ErrZeroAmount        = fmt.Errorf("%w: zero ledger amount", money.ErrInvalidAmount)
)

// Store is the ledger contract shared by the Postgres service and the
// in-memory implementation.
type Store interface {
	// GetOrCreateAccount returns the account, creating it with a zero
	// balance on first use.
	GetOrCreateAccount(ctx context.Context, accountID int64) (Account, error)

	// AdjustBalance applies e.AmountMinor to the account and journals e.
	// A negative amount is a conditional debit that fails with
	// ErrInsufficientFunds when the balance does not cover it.
	AdjustBalance(ctx context.Context, e Entry) (money.Minor, error)

	RecordBetOutcome(ctx context.Context, accountID int64, won bool) error

	// CompleteBet credits payout (when positive) and records the outcome
	// in one atomic step. It returns the resulting balance.
	CompleteBet(ctx context.Context, payout Entry, won bool) (money.Minor, error)

	SaveInvoice(ctx context.Context, inv Invoice) error
	GetInvoice(ctx context.Context, invoiceID string) (Invoice, error)
	ListPendingInvoices(ctx context.Context) ([]Invoice, error)

	// MarkInvoicePaid is idempotent and reports whether the status changed.
	MarkInvoicePaid(ctx context.Context, invoiceID string) (bool, error)

	// SettleInvoice moves a pending invoice to paid and credits its amount
	// atomically. For an already paid invoice it reports credited=false and
	// changes nothing.
	SettleInvoice(ctx context.Context, invoiceID string) (inv Invoice, credited bool, err error)

	ListEntries(ctx context.Context, accountID int64) ([]Entry, error)
}

// DepositEntryID is the journal key of the credit for a paid invoice.
func DepositEntryID(invoiceID string) string {
	return "deposit:" + invoiceID
}

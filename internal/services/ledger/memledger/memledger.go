// Package memledger is an in-process ledger.Store. It keeps the same
// atomicity and idempotency guarantees as the Postgres service by running
// every operation under one mutex.
package memledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/services/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Op names an operation for failure injection.
type Op string

const (
	OpGetOrCreate Op = "get_or_create"
	OpAdjust      Op = "adjust"
	OpRecordBet   Op = "record_bet"
	OpCompleteBet Op = "complete_bet"
	OpSaveInvoice Op = "save_invoice"
	OpGetInvoice  Op = "get_invoice"
	OpListPending Op = "list_pending"
	OpMarkPaid    Op = "mark_paid"
	OpSettle      Op = "settle_invoice"
	OpListEntries Op = "list_entries"
)

type Store struct {
	mu       sync.Mutex
	accounts map[int64]*ledger.Account
	invoices map[string]*ledger.Invoice
	entries  map[string]ledger.Entry
	journal  []string
	now      func() time.Time

	// FailHook, when set, runs before each operation; a non-nil error
	// aborts the operation without any effect.
	FailHook func(op Op, arg string) error
}

func New() *Store {
	return &Store{
		accounts: make(map[int64]*ledger.Account),
		invoices: make(map[string]*ledger.Invoice),
		entries:  make(map[string]ledger.Entry),
		now:      time.Now,
	}
}

func (s *Store) fail(op Op, arg string) error {
	if s.FailHook == nil {
		return nil
	}

	err := s.FailHook(op, arg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) ensure(id int64) *ledger.Account {
	acc, ok := s.accounts[id]
	if !ok {
		acc = &ledger.Account{ID: id, CreatedAt: s.now()}
		s.accounts[id] = acc
	}

	return acc
}

func (s *Store) GetOrCreateAccount(_ context.Context, accountID int64) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fail(OpGetOrCreate, fmt.Sprint(accountID))
	if err != nil {
		return ledger.Account{}, err
	}

	return *s.ensure(accountID), nil
}

func (s *Store) AdjustBalance(_ context.Context, e ledger.Entry) (money.Minor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fail(OpAdjust, e.EntryID)
	if err != nil {
		return 0, err
	}

	return s.apply(e)
}

func (s *Store) apply(e ledger.Entry) (money.Minor, error) {
	if e.AmountMinor == 0 {
		return 0, ledger.ErrZeroAmount
	}

	if _, dup := s.entries[e.EntryID]; dup {
		return 0, ledger.ErrDuplicateEntry
	}

	acc := s.ensure(e.AccountID)

	if e.AmountMinor < 0 && acc.BalanceMinor < -e.AmountMinor {
		return 0, ledger.ErrInsufficientFunds
	}

	acc.BalanceMinor += e.AmountMinor

	e.CreatedAt = s.now()
	s.entries[e.EntryID] = e
	s.journal = append(s.journal, e.EntryID)

	return acc.BalanceMinor, nil
}

func (s *Store) RecordBetOutcome(_ context.Context, accountID int64, won bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fail(OpRecordBet, fmt.Sprint(accountID))
	if err != nil {
		return err
	}

	s.record(accountID, won)

	return nil
}

func (s *Store) record(accountID int64, won bool) *ledger.Account {
	acc := s.ensure(accountID)
	acc.TotalBets++

	if won {
		acc.TotalWins++
	}

	return acc
}

func (s *Store) CompleteBet(_ context.Context, payout ledger.Entry, won bool) (money.Minor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fail(OpCompleteBet, payout.EntryID)
	if err != nil {
		return 0, err
	}

	if payout.AmountMinor > 0 {
		_, err = s.apply(payout)
		if err != nil {
			return 0, err
		}
	}

	return s.record(payout.AccountID, won).BalanceMinor, nil
}

func (s *Store) SaveInvoice(_ context.Context, inv ledger.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fail(OpSaveInvoice, inv.InvoiceID)
	if err != nil {
		return err
	}

	if _, dup := s.invoices[inv.InvoiceID]; dup {
		return ledger.ErrDuplicateInvoice
	}

	s.ensure(inv.AccountID)

	inv.Status = ledger.InvoicePending
	inv.CreatedAt = s.now()
	inv.PaidAt = nil
	s.invoices[inv.InvoiceID] = &inv

	return nil
}

func (s *Store) GetInvoice(_ context.Context, invoiceID string) (ledger.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fail(OpGetInvoice, invoiceID)
	if err != nil {
		return ledger.Invoice{}, err
	}

	inv, ok := s.invoices[invoiceID]
	if !ok {
		return ledger.Invoice{}, ledger.ErrInvoiceNotFound
	}

	return *inv, nil
}

func (s *Store) ListPendingInvoices(_ context.Context) ([]ledger.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fail(OpListPending, "")
	if err != nil {
		return nil, err
	}

	var out []ledger.Invoice

	for _, inv := range s.invoices {
		if inv.Status == ledger.InvoicePending {
			out = append(out, *inv)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].InvoiceID < out[j].InvoiceID
		}

		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (s *Store) MarkInvoicePaid(_ context.Context, invoiceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fail(OpMarkPaid, invoiceID)
	if err != nil {
		return false, err
	}

	inv, ok := s.invoices[invoiceID]
	if !ok {
		return false, ledger.ErrInvoiceNotFound
	}

	return s.markPaid(inv), nil
}

func (s *Store) markPaid(inv *ledger.Invoice) bool {
	if inv.Status == ledger.InvoicePaid {
		return false
	}

	now := s.now()
	inv.Status = ledger.InvoicePaid
	inv.PaidAt = &now

	return true
}

func (s *Store) SettleInvoice(_ context.Context, invoiceID string) (ledger.Invoice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fail(OpSettle, invoiceID)
	if err != nil {
		return ledger.Invoice{}, false, err
	}

	inv, ok := s.invoices[invoiceID]
	if !ok {
		return ledger.Invoice{}, false, ledger.ErrInvoiceNotFound
	}

	if inv.Status == ledger.InvoicePaid {
		return *inv, false, nil
	}

	_, err = s.apply(ledger.Entry{
		EntryID:     ledger.DepositEntryID(invoiceID),
		AccountID:   inv.AccountID,
		Kind:        ledger.KindDeposit,
		AmountMinor: inv.AmountMinor,
	})
	if err != nil {
		return ledger.Invoice{}, false, err
	}

	s.markPaid(inv)

	return *inv, true, nil
}

func (s *Store) ListEntries(_ context.Context, accountID int64) ([]ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fail(OpListEntries, fmt.Sprint(accountID))
	if err != nil {
		return nil, err
	}

	var out []ledger.Entry

	for _, id := range s.journal {
		e := s.entries[id]
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}

	return out, nil
}

// Balance is a test convenience returning the balance without creating
// the account.
func (s *Store) Balance(accountID int64) money.Minor {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return 0
	}

	return acc.BalanceMinor
}

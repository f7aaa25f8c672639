package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/casinobot/internal/infra/pgutils"
	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/repos/accounts"
	pgaccounts "github.com/fastprodman/casinobot/internal/repos/accounts/postgres"
	"github.com/fastprodman/casinobot/internal/repos/entries"
	pgentries "github.com/fastprodman/casinobot/internal/repos/entries/postgres"
	"github.com/fastprodman/casinobot/internal/repos/invoices"
	pginvoices "github.com/fastprodman/casinobot/internal/repos/invoices/postgres"
)

var _ Store = (*Service)(nil)

// Service is the Postgres-backed Store.
type Service struct {
	db       *sql.DB
	accounts accounts.Accounts
	invoices invoices.Invoices
	entries  entries.Entries
}

func New(dbx *sql.DB) *Service {
	return &Service{
		db:       dbx,
		accounts: pgaccounts.New(dbx),
		invoices: pginvoices.New(dbx),
		entries:  pgentries.New(dbx),
	}
}

func (s *Service) GetOrCreateAccount(ctx context.Context, accountID int64) (Account, error) {
	var acc Account

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := s.accounts.Ensure(ctx, tx, accountID)
		if err != nil {
			return err
		}

		acc, err = s.accounts.LockAndGet(ctx, tx, accountID)

		return err
	})
	if err != nil {
		return Account{}, fmt.Errorf("get or create account: %w", err)
	}

	return acc, nil
}

// AdjustBalance runs in a single DB transaction:
//
// 1) Ensure the account exists.
// 2) Journal the entry (unique violation -> ErrDuplicateEntry).
// 3) Apply the delta; debits are conditional on balance >= amount.
func (s *Service) AdjustBalance(ctx context.Context, e Entry) (money.Minor, error) {
	if e.AmountMinor == 0 {
		return 0, ErrZeroAmount
	}

	var balance money.Minor

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error

		balance, err = s.apply(ctx, tx, e)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}

	return balance, nil
}

func (s *Service) apply(ctx context.Context, tx *sql.Tx, e Entry) (money.Minor, error) {
	err := s.accounts.Ensure(ctx, tx, e.AccountID)
	if err != nil {
		return 0, err
	}

	err = s.entries.Insert(ctx, tx, e)
	if err != nil {
		return 0, err
	}

	if e.AmountMinor > 0 {
		return s.accounts.IncreaseBalance(ctx, tx, e.AccountID, e.AmountMinor)
	}

	return s.accounts.DecreaseBalance(ctx, tx, e.AccountID, -e.AmountMinor)
}

func (s *Service) RecordBetOutcome(ctx context.Context, accountID int64, won bool) error {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := s.accounts.Ensure(ctx, tx, accountID)
		if err != nil {
			return err
		}

		_, err = s.accounts.RecordBet(ctx, tx, accountID, won)

		return err
	})
	if err != nil {
		return fmt.Errorf("record bet outcome: %w", err)
	}

	return nil
}

func (s *Service) CompleteBet(ctx context.Context, payout Entry, won bool) (money.Minor, error) {
	var balance money.Minor

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := s.accounts.Ensure(ctx, tx, payout.AccountID)
		if err != nil {
			return err
		}

		if payout.AmountMinor > 0 {
			err = s.entries.Insert(ctx, tx, payout)
			if err != nil {
				return err
			}

			_, err = s.accounts.IncreaseBalance(ctx, tx, payout.AccountID, payout.AmountMinor)
			if err != nil {
				return err
			}
		}

		balance, err = s.accounts.RecordBet(ctx, tx, payout.AccountID, won)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("complete bet: %w", err)
	}

	return balance, nil
}

func (s *Service) SaveInvoice(ctx context.Context, inv Invoice) error {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := s.accounts.Ensure(ctx, tx, inv.AccountID)
		if err != nil {
			return err
		}

		return s.invoices.Insert(ctx, tx, inv)
	})
	if err != nil {
		return fmt.Errorf("save invoice: %w", err)
	}

	return nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID string) (Invoice, error) {
	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return Invoice{}, fmt.Errorf("get invoice: %w", err)
	}

	return inv, nil
}

func (s *Service) ListPendingInvoices(ctx context.Context) ([]Invoice, error) {
	list, err := s.invoices.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending invoices: %w", err)
	}

	return list, nil
}

func (s *Service) MarkInvoicePaid(ctx context.Context, invoiceID string) (bool, error) {
	var changed bool

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := s.invoices.LockAndGet(ctx, tx, invoiceID)
		if err != nil {
			return err
		}

		changed, err = s.invoices.MarkPaid(ctx, tx, invoiceID)

		return err
	})
	if err != nil {
		return false, fmt.Errorf("mark invoice paid: %w", err)
	}

	return changed, nil
}

// SettleInvoice locks the invoice row, so concurrent callers serialize on
// it and only the first one sees it pending.
func (s *Service) SettleInvoice(ctx context.Context, invoiceID string) (Invoice, bool, error) {
	var (
		inv      Invoice
		credited bool
	)

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error

		inv, err = s.invoices.LockAndGet(ctx, tx, invoiceID)
		if err != nil {
			return err
		}

		if inv.Status == InvoicePaid {
			return nil
		}

		changed, err := s.invoices.MarkPaid(ctx, tx, invoiceID)
		if err != nil {
			return err
		}

		if !changed {
			return nil
		}

		_, err = s.apply(ctx, tx, Entry{
			EntryID:     DepositEntryID(invoiceID),
			AccountID:   inv.AccountID,
			Kind:        KindDeposit,
			AmountMinor: inv.AmountMinor,
		})
		if err != nil {
			return err
		}

		inv.Status = InvoicePaid
		credited = true

		return nil
	})
	if err != nil {
		return Invoice{}, false, fmt.Errorf("settle invoice: %w", err)
	}

	return inv, credited, nil
}

func (s *Service) ListEntries(ctx context.Context, accountID int64) ([]Entry, error) {
	list, err := s.entries.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	return list, nil
}

// Ping checks database reachability.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

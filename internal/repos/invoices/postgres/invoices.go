package invoices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/casinobot/internal/repos/invoices"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ invoices.Invoices = (*invoicesRepo)(nil)

type invoicesRepo struct{ db *sql.DB }

func New(db *sql.DB) *invoicesRepo {
	return &invoicesRepo{db: db}
}

const invoiceColumns = `invoice_id, account_id, amount, status, created_at, paid_at`

// Insert stores inv as pending regardless of inv.Status.
func (r *invoicesRepo) Insert(ctx context.Context, tx *sql.Tx, inv invoices.Invoice) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO invoices (invoice_id, account_id, amount, status)
		VALUES ($1, $2, $3, 'pending')
	`, inv.InvoiceID, inv.AccountID, int64(inv.AmountMinor))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return invoices.ErrDuplicateInvoice
			}
		}

		return fmt.Errorf("insert invoice: %w", err)
	}

	return nil
}

func (r *invoicesRepo) Get(ctx context.Context, invoiceID string) (invoices.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE invoice_id = $1
	`, invoiceID)

	return scanInvoice(row)
}

func (r *invoicesRepo) LockAndGet(ctx context.Context, tx *sql.Tx, invoiceID string) (invoices.Invoice, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE invoice_id = $1
		FOR UPDATE
	`, invoiceID)

	return scanInvoice(row)
}

func (r *invoicesRepo) ListPending(ctx context.Context) ([]invoices.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE status = 'pending'
		ORDER BY created_at, invoice_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending invoices: %w", err)
	}
	defer rows.Close()

	var out []invoices.Invoice

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, inv)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate pending invoices: %w", err)
	}

	return out, nil
}

// MarkPaid flips a pending invoice to paid. It reports false when the
// invoice was already paid or does not exist.
func (r *invoicesRepo) MarkPaid(ctx context.Context, tx *sql.Tx, invoiceID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE invoices
		SET status = 'paid', paid_at = now()
		WHERE invoice_id = $1
		  AND status = 'pending'
	`, invoiceID)
	if err != nil {
		return false, fmt.Errorf("mark invoice paid: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(s scanner) (invoices.Invoice, error) {
	var (
		inv    invoices.Invoice
		status string
		paidAt sql.NullTime
	)

	err := s.Scan(&inv.InvoiceID, &inv.AccountID, &inv.AmountMinor, &status, &inv.CreatedAt, &paidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invoices.Invoice{}, invoices.ErrInvoiceNotFound
		}

		return invoices.Invoice{}, fmt.Errorf("scan invoice: %w", err)
	}

	inv.Status = invoices.Status(status)

	if paidAt.Valid {
		t := paidAt.Time
		inv.PaidAt = &t
	}

	return inv, nil
}

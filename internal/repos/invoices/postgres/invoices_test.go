package invoices

import (
	"errors"
	"testing"

	"github.com/fastprodman/casinobot/internal/infra/pgtestutil"
	"github.com/fastprodman/casinobot/internal/repos/invoices"
)

func TestInvoices_Lifecycle(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)

	_, err := db.Exec(`INSERT INTO accounts (id) VALUES (5)`)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}

	repo := New(db)
	ctx := t.Context()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	inv := invoices.Invoice{InvoiceID: "100", AccountID: 5, AmountMinor: 1000, Status: invoices.StatusPaid}

	err = repo.Insert(ctx, tx, inv)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = repo.Insert(ctx, tx, inv)
	if !errors.Is(err, invoices.ErrDuplicateInvoice) {
		t.Fatalf("want ErrDuplicateInvoice, got %v", err)
	}
}

func TestInvoices_MarkPaid(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)

	_, err := db.Exec(`INSERT INTO accounts (id) VALUES (5)`)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}

	_, err = db.Exec(`INSERT INTO invoices (invoice_id, account_id, amount) VALUES ('a', 5, 100), ('b', 5, 200)`)
	if err != nil {
		t.Fatalf("seed invoices: %v", err)
	}

	repo := New(db)
	ctx := t.Context()

	pending, err := repo.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}

	if len(pending) != 2 {
		t.Fatalf("want 2 pending, got %d", len(pending))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}

	changed, err := repo.MarkPaid(ctx, tx, "a")
	if err != nil || !changed {
		t.Fatalf("mark paid: changed=%v err=%v", changed, err)
	}

	changed, err = repo.MarkPaid(ctx, tx, "a")
	if err != nil || changed {
		t.Fatalf("mark paid twice: changed=%v err=%v", changed, err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := repo.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.Status != invoices.StatusPaid || got.PaidAt == nil {
		t.Fatalf("invoice not paid: %+v", got)
	}

	pending, _ = repo.ListPending(ctx)
	if len(pending) != 1 || pending[0].InvoiceID != "b" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	_, err = repo.Get(ctx, "zzz")
	if !errors.Is(err, invoices.ErrInvoiceNotFound) {
		t.Fatalf("want ErrInvoiceNotFound, got %v", err)
	}
}

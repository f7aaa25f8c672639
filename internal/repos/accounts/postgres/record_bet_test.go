package accounts

import (
	"errors"
	"testing"

	"github.com/fastprodman/casinobot/internal/infra/pgtestutil"
	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/repos/accounts"
)

func TestAccounts_EnsureAndRecordBet(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)

	repo := New(db)
	ctx := t.Context()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	for range 2 {
		err = repo.Ensure(ctx, tx, 42)
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
	}

	_, err = repo.RecordBet(ctx, tx, 42, true)
	if err != nil {
		t.Fatalf("record win: %v", err)
	}

	balance, err := repo.RecordBet(ctx, tx, 42, false)
	if err != nil {
		t.Fatalf("record loss: %v", err)
	}

	if balance != 0 {
		t.Fatalf("record bet returned balance %d, want 0", balance)
	}

	acc, err := repo.LockAndGet(ctx, tx, 42)
	if err != nil {
		t.Fatalf("lock and get: %v", err)
	}

	if acc.BalanceMinor != 0 || acc.TotalBets != 2 || acc.TotalWins != 1 {
		t.Fatalf("unexpected account: %+v", acc)
	}
}

func TestAccounts_RecordBet_MissingAccount(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)

	repo := New(db)
	ctx := t.Context()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = repo.RecordBet(ctx, tx, 4242, true)
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestAccounts_Ensure_KeepsExistingBalance(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	pgtestutil.SeedAccount(t, db, 7, 1_250)

	repo := New(db)
	ctx := t.Context()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = repo.Ensure(ctx, tx, 7)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	acc, err := repo.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if acc.BalanceMinor != money.Minor(1_250) {
		t.Fatalf("ensure reset balance: %d", acc.BalanceMinor)
	}
}

package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fastprodman/casinobot/internal/infra/pgtestutil"
	"github.com/fastprodman/casinobot/internal/repos/accounts"
)

func TestAccounts_LockAndGet_Table(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	pgtestutil.SeedAccount(t, db, 1, 0)
	pgtestutil.SeedAccount(t, db, 2, 12_345)

	repo := New(db)

	tests := []struct {
		name      string
		accountID int64
		wantErr   error
	}{
		{name: "zero_balance", accountID: 1},
		{name: "positive_balance", accountID: 2},
		{name: "not_found", accountID: 999, wantErr: accounts.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}
			defer func() { _ = tx.Rollback() }()

			got, err := repo.LockAndGet(ctx, tx, tt.accountID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}

			if tt.wantErr != nil {
				return
			}

			want, err := repo.Get(ctx, tt.accountID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}

			if got.ID != want.ID || got.BalanceMinor != want.BalanceMinor || got.TotalBets != want.TotalBets ||
				got.TotalWins != want.TotalWins || !got.CreatedAt.Equal(want.CreatedAt) {
				t.Fatalf("locked read %+v differs from plain read %+v", got, want)
			}
		})
	}
}

func TestAccounts_LockAndGet_BlocksSecondLocker(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	pgtestutil.SeedAccount(t, db, 5, 500)

	repo := New(db)
	ctx := t.Context()

	holder, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin holder tx: %v", err)
	}
	defer func() { _ = holder.Rollback() }()

	_, err = repo.LockAndGet(ctx, holder, 5)
	if err != nil {
		t.Fatalf("holder lock: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	waiter, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin waiter tx: %v", err)
	}
	defer func() { _ = waiter.Rollback() }()

	_, err = repo.LockAndGet(waitCtx, waiter, 5)
	if err == nil {
		t.Fatalf("second locker acquired a held row lock")
	}

	err = holder.Commit()
	if err != nil {
		t.Fatalf("commit holder: %v", err)
	}

	after, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = after.Rollback() }()

	acc, err := repo.LockAndGet(ctx, after, 5)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}

	if acc.BalanceMinor != 500 {
		t.Fatalf("balance = %d, want 500", acc.BalanceMinor)
	}
}

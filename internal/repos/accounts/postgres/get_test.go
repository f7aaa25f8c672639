package accounts

import (
	"errors"
	"testing"

	"github.com/fastprodman/casinobot/internal/infra/pgtestutil"
	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/repos/accounts"
)

func TestAccounts_Get(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	pgtestutil.SeedAccount(t, db, 1, 0)
	pgtestutil.SeedAccount(t, db, 2, 12_345)

	repo := New(db)

	tests := []struct {
		name        string
		accountID   int64
		wantBalance money.Minor
		wantErr     error
	}{
		{name: "zero_balance", accountID: 1, wantBalance: 0},
		{name: "positive_balance", accountID: 2, wantBalance: 12_345},
		{name: "not_found", accountID: 999, wantErr: accounts.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := repo.Get(t.Context(), tt.accountID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("get: %v", err)
			}

			if acc.ID != tt.accountID || acc.BalanceMinor != tt.wantBalance || acc.TotalBets != 0 {
				t.Fatalf("unexpected account: %+v", acc)
			}

			if acc.CreatedAt.IsZero() {
				t.Fatalf("created_at not scanned")
			}
		})
	}
}

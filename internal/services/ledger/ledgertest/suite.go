// Package ledgertest runs the ledger.Store contract against any
// implementation.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/services/ledger"
)

// NewStore builds an empty store for one subtest.
type NewStore func(t *testing.T) ledger.Store

// Run executes every contract check as a parallel subtest.
func Run(t *testing.T, newStore NewStore) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s ledger.Store)
	}{
		{"lazy_account", testLazyAccount},
		{"credit_and_debit", testCreditAndDebit},
		{"insufficient_funds_no_effect", testInsufficientFunds},
		{"duplicate_entry_no_effect", testDuplicateEntry},
		{"zero_amount_rejected", testZeroAmount},
		{"complete_bet", testCompleteBet},
		{"invoice_lifecycle", testInvoiceLifecycle},
		{"settle_invoice_once", testSettleInvoiceOnce},
		{"settle_invoice_concurrent", testSettleInvoiceConcurrent},
		{"concurrent_debits_never_negative", testConcurrentDebits},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.fn(t, newStore(t))
		})
	}
}

func entry(id string, account int64, kind ledger.EntryKind, amount money.Minor) ledger.Entry {
	return ledger.Entry{EntryID: id, AccountID: account, Kind: kind, AmountMinor: amount}
}

func balanceOf(t *testing.T, s ledger.Store, id int64) money.Minor {
	t.Helper()

	acc, err := s.GetOrCreateAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %d: %v", id, err)
	}

	return acc.BalanceMinor
}

func testLazyAccount(t *testing.T, s ledger.Store) {
	acc, err := s.GetOrCreateAccount(context.Background(), 7)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}

	if acc.ID != 7 || acc.BalanceMinor != 0 || acc.TotalBets != 0 || acc.TotalWins != 0 {
		t.Fatalf("unexpected fresh account: %+v", acc)
	}

	again, err := s.GetOrCreateAccount(context.Background(), 7)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}

	if again.ID != acc.ID || again.BalanceMinor != 0 {
		t.Fatalf("second get differs: %+v", again)
	}
}

func testCreditAndDebit(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	bal, err := s.AdjustBalance(ctx, entry("c1", 1, ledger.KindDeposit, 1000))
	if err != nil || bal != 1000 {
		t.Fatalf("credit: bal=%d err=%v", bal, err)
	}

	bal, err = s.AdjustBalance(ctx, entry("d1", 1, ledger.KindStake, -1000))
	if err != nil || bal != 0 {
		t.Fatalf("debit to zero: bal=%d err=%v", bal, err)
	}

	list, err := s.ListEntries(ctx, 1)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}

	if len(list) != 2 {
		t.Fatalf("want 2 entries, got %d", len(list))
	}
}

func testInsufficientFunds(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	_, err := s.AdjustBalance(ctx, entry("c1", 2, ledger.KindDeposit, 200))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = s.AdjustBalance(ctx, entry("d1", 2, ledger.KindStake, -300))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	if got := balanceOf(t, s, 2); got != 200 {
		t.Fatalf("balance changed on failed debit: %d", got)
	}

	// the failed entry id stays free
	_, err = s.AdjustBalance(ctx, entry("d1", 2, ledger.KindStake, -100))
	if err != nil {
		t.Fatalf("reuse of rejected entry id: %v", err)
	}
}

func testDuplicateEntry(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	_, err := s.AdjustBalance(ctx, entry("dup", 3, ledger.KindExternalPayment, 500))
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	_, err = s.AdjustBalance(ctx, entry("dup", 3, ledger.KindExternalPayment, 500))
	if !errors.Is(err, ledger.ErrDuplicateEntry) {
		t.Fatalf("want ErrDuplicateEntry, got %v", err)
	}

	if got := balanceOf(t, s, 3); got != 500 {
		t.Fatalf("duplicate applied: balance %d", got)
	}
}

func testZeroAmount(t *testing.T, s ledger.Store) {
	_, err := s.AdjustBalance(context.Background(), entry("z", 4, ledger.KindDeposit, 0))
	if !errors.Is(err, money.ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
}

func testCompleteBet(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	bal, err := s.CompleteBet(ctx, entry("p1", 5, ledger.KindPayout, 850), true)
	if err != nil || bal != 850 {
		t.Fatalf("winning bet: bal=%d err=%v", bal, err)
	}

	bal, err = s.CompleteBet(ctx, entry("p2", 5, ledger.KindPayout, 0), false)
	if err != nil || bal != 850 {
		t.Fatalf("losing bet: bal=%d err=%v", bal, err)
	}

	err = s.RecordBetOutcome(ctx, 5, false)
	if err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	acc, err := s.GetOrCreateAccount(ctx, 5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if acc.TotalBets != 3 || acc.TotalWins != 1 {
		t.Fatalf("counters: bets=%d wins=%d", acc.TotalBets, acc.TotalWins)
	}

	_, err = s.CompleteBet(ctx, entry("p1", 5, ledger.KindPayout, 850), true)
	if !errors.Is(err, ledger.ErrDuplicateEntry) {
		t.Fatalf("replayed payout: want ErrDuplicateEntry, got %v", err)
	}

	acc, _ = s.GetOrCreateAccount(ctx, 5)
	if acc.TotalBets != 3 || acc.BalanceMinor != 850 {
		t.Fatalf("replayed payout had effect: %+v", acc)
	}
}

func testInvoiceLifecycle(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	err := s.SaveInvoice(ctx, ledger.Invoice{InvoiceID: "inv-1", AccountID: 6, AmountMinor: 1000})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	err = s.SaveInvoice(ctx, ledger.Invoice{InvoiceID: "inv-1", AccountID: 6, AmountMinor: 1000})
	if !errors.Is(err, ledger.ErrDuplicateInvoice) {
		t.Fatalf("want ErrDuplicateInvoice, got %v", err)
	}

	inv, err := s.GetInvoice(ctx, "inv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if inv.Status != ledger.InvoicePending || inv.AmountMinor != 1000 || inv.AccountID != 6 {
		t.Fatalf("unexpected invoice: %+v", inv)
	}

	pending, err := s.ListPendingInvoices(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending: %v %v", pending, err)
	}

	changed, err := s.MarkInvoicePaid(ctx, "inv-1")
	if err != nil || !changed {
		t.Fatalf("mark paid: changed=%v err=%v", changed, err)
	}

	changed, err = s.MarkInvoicePaid(ctx, "inv-1")
	if err != nil || changed {
		t.Fatalf("mark paid twice: changed=%v err=%v", changed, err)
	}

	pending, _ = s.ListPendingInvoices(ctx)
	if len(pending) != 0 {
		t.Fatalf("paid invoice still pending")
	}

	_, err = s.GetInvoice(ctx, "missing")
	if !errors.Is(err, ledger.ErrInvoiceNotFound) {
		t.Fatalf("want ErrInvoiceNotFound, got %v", err)
	}

	_, err = s.MarkInvoicePaid(ctx, "missing")
	if !errors.Is(err, ledger.ErrInvoiceNotFound) {
		t.Fatalf("mark missing: want ErrInvoiceNotFound, got %v", err)
	}
}

func testSettleInvoiceOnce(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	err := s.SaveInvoice(ctx, ledger.Invoice{InvoiceID: "inv-s", AccountID: 8, AmountMinor: 1000})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	inv, credited, err := s.SettleInvoice(ctx, "inv-s")
	if err != nil || !credited || inv.Status != ledger.InvoicePaid {
		t.Fatalf("settle: inv=%+v credited=%v err=%v", inv, credited, err)
	}

	for range 3 {
		_, credited, err = s.SettleInvoice(ctx, "inv-s")
		if err != nil || credited {
			t.Fatalf("re-settle: credited=%v err=%v", credited, err)
		}
	}

	if got := balanceOf(t, s, 8); got != 1000 {
		t.Fatalf("balance after settle: %d", got)
	}

	_, _, err = s.SettleInvoice(ctx, "missing")
	if !errors.Is(err, ledger.ErrInvoiceNotFound) {
		t.Fatalf("want ErrInvoiceNotFound, got %v", err)
	}
}

func testSettleInvoiceConcurrent(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	err := s.SaveInvoice(ctx, ledger.Invoice{InvoiceID: "inv-c", AccountID: 9, AmountMinor: 500})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	var (
		wg       sync.WaitGroup
		credited atomic.Int32
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, ok, err := s.SettleInvoice(ctx, "inv-c")
			if err != nil {
				t.Errorf("settle: %v", err)
				return
			}

			if ok {
				credited.Add(1)
			}
		}()
	}

	wg.Wait()

	if credited.Load() != 1 {
		t.Fatalf("want exactly 1 credit, got %d", credited.Load())
	}

	if got := balanceOf(t, s, 9); got != 500 {
		t.Fatalf("balance: %d", got)
	}
}

func testConcurrentDebits(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	const (
		account = 10
		workers = 8
		ops     = 25
	)

	_, err := s.AdjustBalance(ctx, entry("seed", account, ledger.KindDeposit, 1000))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var (
		wg  sync.WaitGroup
		net atomic.Int64
	)

	net.Store(1000)

	for w := range workers {
		wg.Add(1)

		go func(w int) {
			defer wg.Done()

			rnd := rand.New(rand.NewSource(int64(w) + 1))

			for i := range ops {
				amount := money.Minor(rnd.Intn(300) + 1)
				if rnd.Intn(3) > 0 {
					amount = -amount
				}

				_, err := s.AdjustBalance(ctx, entry(fmt.Sprintf("w%d-%d", w, i), account, ledger.KindStake, amount))
				switch {
				case err == nil:
					net.Add(int64(amount))
				case errors.Is(err, ledger.ErrInsufficientFunds):
				default:
					t.Errorf("adjust: %v", err)
				}
			}
		}(w)
	}

	wg.Wait()

	got := balanceOf(t, s, account)
	if got < 0 {
		t.Fatalf("balance went negative: %d", got)
	}

	if int64(got) != net.Load() {
		t.Fatalf("balance %d does not match applied entries %d", got, net.Load())
	}
}

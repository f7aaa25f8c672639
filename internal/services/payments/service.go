// Package payments moves money between the ledger and the payment
// gateway: deposit invoices, withdrawal checks, external payment credits
// and the background reconciliation of pending invoices.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fastprodman/casinobot/internal/broadcast"
	"github.com/fastprodman/casinobot/internal/gateway"
	"github.com/fastprodman/casinobot/internal/infra/metrics"
	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/services/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEmptyPaymentID = fmt.Errorf("%w: empty payment id", money.ErrInvalidAmount)

type CheckResult string

const (
	CheckPending     CheckResult = "pending"
	CheckCredited    CheckResult = "credited"
	CheckAlreadyPaid CheckResult = "already_paid"
)

type Limits struct {
	Deposit    money.Bounds
	Withdrawal money.Bounds
}

type Deposit struct {
	Invoice ledger.Invoice
	PayURL  string
}

type Withdrawal struct {
	CheckID  string
	CheckURL string
	Amount   money.Minor
	Balance  money.Minor
}

type Service struct {
	store    ledger.Store
	gw       gateway.Gateway
	notifier broadcast.Notifier
	asset    string
	limits   Limits
	log      *zap.Logger
	newID    func() string
}

func NewService(store ledger.Store, gw gateway.Gateway, notifier broadcast.Notifier, asset string, limits Limits, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		gw:       gw,
		notifier: notifier,
		asset:    asset,
		limits:   limits,
		log:      log.Named("payments"),
		newID:    uuid.NewString,
	}
}

func (s *Service) Limits() Limits {
	return s.limits
}

// Profile returns the account, creating it on first use.
func (s *Service) Profile(ctx context.Context, accountID int64) (ledger.Account, error) {
	acc, err := s.store.GetOrCreateAccount(ctx, accountID)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("get account %d: %w", accountID, err)
	}

	return acc, nil
}

// CreateDeposit issues a gateway invoice and records it as pending.
func (s *Service) CreateDeposit(ctx context.Context, accountID int64, amount money.Minor) (Deposit, error) {
	err := s.limits.Deposit.Check(amount)
	if err != nil {
		return Deposit{}, fmt.Errorf("deposit: %w", err)
	}

	created, err := s.gw.CreateInvoice(ctx, gateway.InvoiceRequest{
		Amount:      amount,
		Asset:       s.asset,
		Description: fmt.Sprintf("Balance top-up %s %s", amount, s.asset),
		Payload:     strconv.FormatInt(accountID, 10),
	})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("create_invoice").Inc()
		return Deposit{}, fmt.Errorf("create invoice: %w", err)
	}

	inv := ledger.Invoice{
		InvoiceID:   created.ID,
		AccountID:   accountID,
		AmountMinor: amount,
		Status:      ledger.InvoicePending,
	}

	err = s.store.SaveInvoice(ctx, inv)
	if err != nil {
		return Deposit{}, fmt.Errorf("save invoice %s: %w", created.ID, err)
	}

	s.log.Info("deposit invoice created",
		zap.Int64("account_id", accountID),
		zap.String("invoice_id", created.ID),
		zap.Stringer("amount", amount),
	)

	return Deposit{Invoice: inv, PayURL: created.PayURL}, nil
}

// CheckInvoice queries the gateway once for an invoice owned by accountID
// and credits it when paid.
func (s *Service) CheckInvoice(ctx context.Context, accountID int64, invoiceID string) (CheckResult, error) {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return "", fmt.Errorf("get invoice %s: %w", invoiceID, err)
	}

	if inv.AccountID != accountID {
		return "", fmt.Errorf("invoice %s: %w", invoiceID, ledger.ErrInvoiceNotFound)
	}

	if inv.Status == ledger.InvoicePaid {
		return CheckAlreadyPaid, nil
	}

	credited, err := s.check(ctx, inv, "manual")
	if err != nil {
		return "", err
	}

	if credited {
		return CheckCredited, nil
	}

	// the reconciler may have settled it in the meantime
	return s.statusAfterCheck(ctx, invoiceID)
}

func (s *Service) statusAfterCheck(ctx context.Context, invoiceID string) (CheckResult, error) {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return "", fmt.Errorf("get invoice %s: %w", invoiceID, err)
	}

	if inv.Status == ledger.InvoicePaid {
		return CheckAlreadyPaid, nil
	}

	return CheckPending, nil
}

// check asks the gateway about inv and settles it when paid. It reports
// whether this call credited the balance.
func (s *Service) check(ctx context.Context, inv ledger.Invoice, source string) (bool, error) {
	state, err := s.gw.GetInvoiceStatus(ctx, inv.InvoiceID)
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("get_invoice").Inc()
		return false, fmt.Errorf("invoice %s status: %w", inv.InvoiceID, err)
	}

	if state.Status != gateway.InvoicePaid {
		return false, nil
	}

	if state.PaidAmount != 0 && state.PaidAmount != inv.AmountMinor {
		s.log.Warn("paid amount differs from invoice, crediting invoice amount",
			zap.String("invoice_id", inv.InvoiceID),
			zap.Stringer("invoice_amount", inv.AmountMinor),
			zap.Stringer("paid_amount", state.PaidAmount),
		)
	}

	return s.settleInvoice(ctx, inv.InvoiceID, source)
}

// settleInvoice is the single paid transition shared by the reconciler and
// manual checks. The ledger guarantees at most one credit per invoice.
func (s *Service) settleInvoice(ctx context.Context, invoiceID, source string) (bool, error) {
	inv, credited, err := s.store.SettleInvoice(ctx, invoiceID)
	if err != nil {
		return false, fmt.Errorf("settle invoice %s: %w", invoiceID, err)
	}

	if !credited {
		return false, nil
	}

	metrics.InvoiceCredits.WithLabelValues(source).Inc()
	s.log.Info("invoice credited",
		zap.String("invoice_id", invoiceID),
		zap.Int64("account_id", inv.AccountID),
		zap.Stringer("amount", inv.AmountMinor),
		zap.String("source", source),
	)

	s.notify(ctx, inv.AccountID, fmt.Sprintf("Deposit of %s %s credited", inv.AmountMinor, s.asset))

	return true, nil
}

// Withdraw debits amount and issues a gateway check for it. When the check
// cannot be issued the debit is reversed.
func (s *Service) Withdraw(ctx context.Context, accountID int64, amount money.Minor) (Withdrawal, error) {
	err := s.limits.Withdrawal.Check(amount)
	if err != nil {
		return Withdrawal{}, fmt.Errorf("withdrawal: %w", err)
	}

	id := s.newID()
	log := s.log.With(zap.String("withdrawal_id", id), zap.Int64("account_id", accountID))

	balance, err := s.store.AdjustBalance(ctx, ledger.Entry{
		EntryID:     "withdrawal:" + id,
		AccountID:   accountID,
		Kind:        ledger.KindWithdrawal,
		AmountMinor: -amount,
	})
	if err != nil {
		metrics.Withdrawals.WithLabelValues("rejected").Inc()
		return Withdrawal{}, fmt.Errorf("debit withdrawal: %w", err)
	}

	check, err := s.gw.CreateWithdrawalCheck(ctx, gateway.CheckRequest{
		Asset:           s.asset,
		Amount:          amount,
		PinnedAccountID: accountID,
	})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("create_check").Inc()
		return Withdrawal{}, s.refundWithdrawal(ctx, log, id, accountID, amount, err)
	}

	metrics.Withdrawals.WithLabelValues("ok").Inc()
	log.Info("withdrawal check issued", zap.String("check_id", check.ID), zap.Stringer("amount", amount))

	return Withdrawal{CheckID: check.ID, CheckURL: check.URL, Amount: amount, Balance: balance}, nil
}

func (s *Service) refundWithdrawal(ctx context.Context, log *zap.Logger, id string, accountID int64, amount money.Minor, cause error) error {
	refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	_, err := s.store.AdjustBalance(refundCtx, ledger.Entry{
		EntryID:     "withdrawal_refund:" + id,
		AccountID:   accountID,
		Kind:        ledger.KindWithdrawalRefund,
		AmountMinor: amount,
	})
	if err != nil {
		metrics.Withdrawals.WithLabelValues("refund_failed").Inc()
		log.Error("withdrawal refund failed after gateway failure",
			zap.Stringer("amount", amount),
			zap.NamedError("gateway_error", cause),
			zap.Error(err),
		)

		return errors.Join(
			fmt.Errorf("create check: %w", cause),
			fmt.Errorf("refund withdrawal: %w", err),
		)
	}

	metrics.Withdrawals.WithLabelValues("refunded").Inc()
	log.Warn("check not issued, withdrawal refunded", zap.Error(cause))

	return fmt.Errorf("create check: %w", cause)
}

// CreditExternalPayment credits a payment confirmed by the transport. A
// repeated delivery of the same paymentID reports credited=false.
func (s *Service) CreditExternalPayment(ctx context.Context, accountID int64, paymentID string, amount money.Minor) (balance money.Minor, credited bool, err error) {
	if paymentID == "" {
		return 0, false, ErrEmptyPaymentID
	}

	if amount <= 0 {
		return 0, false, fmt.Errorf("%w: external payment %s", money.ErrInvalidAmount, amount)
	}

	balance, err = s.store.AdjustBalance(ctx, ledger.Entry{
		EntryID:     "external:" + paymentID,
		AccountID:   accountID,
		Kind:        ledger.KindExternalPayment,
		AmountMinor: amount,
	})
	if errors.Is(err, ledger.ErrDuplicateEntry) {
		s.log.Info("external payment already credited", zap.String("payment_id", paymentID))

		acc, err := s.store.GetOrCreateAccount(ctx, accountID)
		if err != nil {
			return 0, false, fmt.Errorf("get account %d: %w", accountID, err)
		}

		return acc.BalanceMinor, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("credit external payment %s: %w", paymentID, err)
	}

	metrics.InvoiceCredits.WithLabelValues("external").Inc()
	s.log.Info("external payment credited",
		zap.Int64("account_id", accountID),
		zap.String("payment_id", paymentID),
		zap.Stringer("amount", amount),
	)

	s.notify(ctx, accountID, fmt.Sprintf("Payment of %s credited", amount))

	return balance, true, nil
}

func (s *Service) notify(ctx context.Context, accountID int64, text string) {
	err := s.notifier.Notify(ctx, accountID, text)
	if err != nil {
		metrics.BroadcastFailures.WithLabelValues("notification").Inc()
		s.log.Warn("notification failed", zap.Int64("account_id", accountID), zap.Error(err))
	}
}

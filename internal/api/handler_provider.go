package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fastprodman/casinobot/internal/gateway"
	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/services/ledger"
	"github.com/fastprodman/casinobot/internal/services/outcome"
	"github.com/fastprodman/casinobot/internal/services/payments"
	"github.com/fastprodman/casinobot/internal/services/session"
	"github.com/fastprodman/casinobot/internal/services/settlement"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Sessions interface {
	Handle(ctx context.Context, accountID int64, a session.Action) (session.Reply, error)
	Snapshot(accountID int64) session.Session
}

type Payments interface {
	Profile(ctx context.Context, accountID int64) (ledger.Account, error)
	CreateDeposit(ctx context.Context, accountID int64, amount money.Minor) (payments.Deposit, error)
	CheckInvoice(ctx context.Context, accountID int64, invoiceID string) (payments.CheckResult, error)
	Withdraw(ctx context.Context, accountID int64, amount money.Minor) (payments.Withdrawal, error)
	CreditExternalPayment(ctx context.Context, accountID int64, paymentID string, amount money.Minor) (money.Minor, bool, error)
}

// HandlerProvider exposes the session and payment services over HTTP.
type HandlerProvider struct {
	sessions Sessions
	payments Payments
	log      *zap.Logger
}

func NewHandler(sessions Sessions, pay Payments, log *zap.Logger) *HandlerProvider {
	return &HandlerProvider{sessions: sessions, payments: pay, log: log}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		zap.L().Error("failed to encode JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps a service error to an HTTP status and a client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, outcome.ErrInvalidGame),
		errors.Is(err, session.ErrInvalidSelection),
		errors.Is(err, session.ErrUnexpectedAction):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusConflict, "insufficient funds"
	case errors.Is(err, ledger.ErrInvoiceNotFound):
		return http.StatusNotFound, "invoice not found"
	case errors.Is(err, settlement.ErrDrawUnavailable):
		return http.StatusServiceUnavailable, "draw unavailable, stake refunded, try again"
	case errors.Is(err, gateway.ErrGateway):
		return http.StatusBadGateway, "payment provider unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *HandlerProvider) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	writeError(w, status, msg)
}

// decode reads a JSON body of at most 1MB, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}

		return errors.New("invalid JSON")
	}

	return nil
}

func account(r *http.Request) int64 {
	p, _ := principalFrom(r.Context())
	return p.AccountID
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type profileResponse struct {
	AccountID int64       `json:"accountId"`
	Balance   money.Minor `json:"balance"`
	TotalBets int64       `json:"totalBets"`
	TotalWins int64       `json:"totalWins"`
}

type depositResponse struct {
	InvoiceID string      `json:"invoiceId"`
	Amount    money.Minor `json:"amount"`
	PayURL    string      `json:"payUrl"`
}

type checkResponse struct {
	InvoiceID string               `json:"invoiceId"`
	Result    payments.CheckResult `json:"result"`
	Balance   money.Minor          `json:"balance"`
}

type withdrawalResponse struct {
	CheckID  string      `json:"checkId"`
	CheckURL string      `json:"checkUrl"`
	Amount   money.Minor `json:"amount"`
	Balance  money.Minor `json:"balance"`
}

type externalPaymentRequest struct {
	AccountID int64  `json:"accountId"`
	PaymentID string `json:"paymentId"`
	Amount    string `json:"amount"`
}

type externalPaymentResponse struct {
	Credited bool        `json:"credited"`
	Balance  money.Minor `json:"balance"`
}

// --- Handlers ---

// GetProfileHandler handles GET /me
func (h *HandlerProvider) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	acc, err := h.payments.Profile(r.Context(), account(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		AccountID: acc.ID,
		Balance:   acc.BalanceMinor,
		TotalBets: acc.TotalBets,
		TotalWins: acc.TotalWins,
	})
}

// GetSessionHandler handles GET /me/session
func (h *HandlerProvider) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Snapshot(account(r)))
}

// ActionHandler handles POST /me/actions. The reply is returned on errors
// too, so the client can render the state it was left in.
func (h *HandlerProvider) ActionHandler(w http.ResponseWriter, r *http.Request) {
	var a session.Action

	err := decode(w, r, &a)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch a.Kind {
	case session.ActionCommand, session.ActionSelect, session.ActionText:
	default:
		writeError(w, http.StatusBadRequest, "invalid action kind")
		return
	}

	reply, err := h.sessions.Handle(r.Context(), account(r), a)
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
			h.log.Error("action failed", zap.Int64("account_id", account(r)), zap.Error(err))
		}

		writeJSON(w, status, map[string]any{"error": msg, "reply": reply})

		return
	}

	writeJSON(w, http.StatusOK, reply)
}

// CreateDepositHandler handles POST /me/deposits
func (h *HandlerProvider) CreateDepositHandler(w http.ResponseWriter, r *http.Request) {
	var req amountRequest

	err := decode(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dep, err := h.payments.CreateDeposit(r.Context(), account(r), amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, depositResponse{
		InvoiceID: dep.Invoice.InvoiceID,
		Amount:    dep.Invoice.AmountMinor,
		PayURL:    dep.PayURL,
	})
}

// CheckInvoiceHandler handles POST /me/invoices/{invoiceId}/check
func (h *HandlerProvider) CheckInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	invoiceID := strings.TrimSpace(chi.URLParam(r, "invoiceId"))
	if invoiceID == "" {
		writeError(w, http.StatusBadRequest, "missing invoiceId")
		return
	}

	res, err := h.payments.CheckInvoice(r.Context(), account(r), invoiceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	acc, err := h.payments.Profile(r.Context(), account(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{InvoiceID: invoiceID, Result: res, Balance: acc.BalanceMinor})
}

// WithdrawHandler handles POST /me/withdrawals
func (h *HandlerProvider) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	var req amountRequest

	err := decode(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	wd, err := h.payments.Withdraw(r.Context(), account(r), amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, withdrawalResponse{
		CheckID:  wd.CheckID,
		CheckURL: wd.CheckURL,
		Amount:   wd.Amount,
		Balance:  wd.Balance,
	})
}

// ExternalPaymentHandler handles POST /payments/external
func (h *HandlerProvider) ExternalPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req externalPaymentRequest

	err := decode(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.AccountID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid accountId")
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	balance, credited, err := h.payments.CreditExternalPayment(r.Context(), req.AccountID, req.PaymentID, amount)
	if err != nil {
		h.fail(w, r, fmt.Errorf("external payment: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, externalPaymentResponse{Credited: credited, Balance: balance})
}

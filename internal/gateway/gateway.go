// Package gateway is the contract for the external payment provider that
// issues deposit invoices and withdrawal checks.
package gateway

import (
	"context"
	"errors"

	"github.com/fastprodman/casinobot/internal/money"
)

// ErrGateway wraps every failure reported by a Gateway. Callers decide
// whether to retry; adapters never do.
var ErrGateway = errors.New("payment gateway error")

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
)

type InvoiceRequest struct {
	Amount      money.Minor
	Asset       string
	Description string
	Payload     string
}

type CreatedInvoice struct {
	ID     string
	PayURL string
}

type InvoiceState struct {
	Status     InvoiceStatus
	PaidAmount money.Minor
}

type CheckRequest struct {
	Asset           string
	Amount          money.Minor
	PinnedAccountID int64
}

type Check struct {
	ID  string
	URL string
}

type Gateway interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (CreatedInvoice, error)
	GetInvoiceStatus(ctx context.Context, invoiceID string) (InvoiceState, error)
	CreateWithdrawalCheck(ctx context.Context, req CheckRequest) (Check, error)
}

// Package fakegateway is an in-process Gateway whose invoices are paid
// by calling Pay. It serves local runs and tests.
package fakegateway

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/fastprodman/casinobot/internal/gateway"
	"github.com/fastprodman/casinobot/internal/money"
)

var _ gateway.Gateway = (*Gateway)(nil)

type invoice struct {
	req  gateway.InvoiceRequest
	paid bool
}

type Gateway struct {
	mu       sync.Mutex
	seq      int64
	invoices map[string]*invoice
	checks   []gateway.CheckRequest

	// Per-operation failures; a non-nil error is returned wrapped in
	// gateway.ErrGateway.
	FailCreateInvoice error
	FailCreateCheck   error
	FailStatus        map[string]error
}

func New() *Gateway {
	return &Gateway{
		invoices:   make(map[string]*invoice),
		FailStatus: make(map[string]error),
	}
}

func (g *Gateway) CreateInvoice(_ context.Context, req gateway.InvoiceRequest) (gateway.CreatedInvoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailCreateInvoice != nil {
		return gateway.CreatedInvoice{}, fmt.Errorf("%w: createInvoice: %w", gateway.ErrGateway, g.FailCreateInvoice)
	}

	g.seq++
	id := strconv.FormatInt(g.seq, 10)
	g.invoices[id] = &invoice{req: req}

	return gateway.CreatedInvoice{ID: id, PayURL: "https://fakegateway.local/invoice/" + id}, nil
}

func (g *Gateway) GetInvoiceStatus(_ context.Context, invoiceID string) (gateway.InvoiceState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.FailStatus[invoiceID]; err != nil {
		return gateway.InvoiceState{}, fmt.Errorf("%w: getInvoices: %w", gateway.ErrGateway, err)
	}

	inv, ok := g.invoices[invoiceID]
	if !ok {
		return gateway.InvoiceState{}, fmt.Errorf("%w: getInvoices: invoice %s not returned", gateway.ErrGateway, invoiceID)
	}

	if !inv.paid {
		return gateway.InvoiceState{Status: gateway.InvoicePending}, nil
	}

	return gateway.InvoiceState{Status: gateway.InvoicePaid, PaidAmount: inv.req.Amount}, nil
}

func (g *Gateway) CreateWithdrawalCheck(_ context.Context, req gateway.CheckRequest) (gateway.Check, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailCreateCheck != nil {
		return gateway.Check{}, fmt.Errorf("%w: createCheck: %w", gateway.ErrGateway, g.FailCreateCheck)
	}

	g.checks = append(g.checks, req)
	id := strconv.Itoa(len(g.checks))

	return gateway.Check{ID: id, URL: "https://fakegateway.local/check/" + id}, nil
}

// Pay marks an invoice paid on the provider side.
func (g *Gateway) Pay(invoiceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	inv, ok := g.invoices[invoiceID]
	if !ok {
		return fmt.Errorf("unknown invoice %s", invoiceID)
	}

	inv.paid = true

	return nil
}

// Checks returns the withdrawal checks issued so far.
func (g *Gateway) Checks() []gateway.CheckRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]gateway.CheckRequest(nil), g.checks...)
}

// Invoice returns the request an invoice was created with.
func (g *Gateway) Invoice(invoiceID string) (gateway.InvoiceRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	inv, ok := g.invoices[invoiceID]
	if !ok {
		return gateway.InvoiceRequest{}, false
	}

	return inv.req, true
}

// Total is the sum of all issued checks.
func (g *Gateway) Total() money.Minor {
	g.mu.Lock()
	defer g.mu.Unlock()

	var sum money.Minor
	for _, c := range g.checks {
		sum += c.Amount
	}

	return sum
}

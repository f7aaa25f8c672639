// Package cryptopay is a Gateway backed by the Crypto Pay HTTP API.
package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fastprodman/casinobot/internal/gateway"
	"github.com/fastprodman/casinobot/internal/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const tokenHeader = "Crypto-Pay-API-Token"

var _ gateway.Gateway = (*Client)(nil)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for the API at baseURL. Each call is bounded by timeout.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *apiError       `json:"error"`
}

type apiError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

type invoiceDTO struct {
	InvoiceID         int64  `json:"invoice_id"`
	Status            string `json:"status"`
	Amount            string `json:"amount"`
	PaidAmount        string `json:"paid_amount"`
	BotInvoiceURL     string `json:"bot_invoice_url"`
	MiniAppInvoiceURL string `json:"mini_app_invoice_url"`
	WebAppInvoiceURL  string `json:"web_app_invoice_url"`
	PayURL            string `json:"pay_url"`
}

type checkDTO struct {
	CheckID         int64  `json:"check_id"`
	BotCheckURL     string `json:"bot_check_url"`
	MiniAppCheckURL string `json:"mini_app_check_url"`
	WebAppCheckURL  string `json:"web_app_check_url"`
}

func (c *Client) CreateInvoice(ctx context.Context, req gateway.InvoiceRequest) (gateway.CreatedInvoice, error) {
	var inv invoiceDTO

	err := c.call(ctx, "createInvoice", map[string]string{
		"currency_type": "crypto",
		"asset":         req.Asset,
		"amount":        req.Amount.String(),
		"description":   req.Description,
		"payload":       req.Payload,
	}, &inv)
	if err != nil {
		return gateway.CreatedInvoice{}, err
	}

	url := firstNonEmpty(inv.BotInvoiceURL, inv.WebAppInvoiceURL, inv.MiniAppInvoiceURL, inv.PayURL)
	if url == "" {
		return gateway.CreatedInvoice{}, fmt.Errorf("%w: createInvoice: no payment url in response", gateway.ErrGateway)
	}

	return gateway.CreatedInvoice{ID: strconv.FormatInt(inv.InvoiceID, 10), PayURL: url}, nil
}

func (c *Client) GetInvoiceStatus(ctx context.Context, invoiceID string) (gateway.InvoiceState, error) {
	var page struct {
		Items []invoiceDTO `json:"items"`
	}

	err := c.call(ctx, "getInvoices", map[string]string{"invoice_ids": invoiceID}, &page)
	if err != nil {
		return gateway.InvoiceState{}, err
	}

	if len(page.Items) == 0 {
		return gateway.InvoiceState{}, fmt.Errorf("%w: getInvoices: invoice %s not returned", gateway.ErrGateway, invoiceID)
	}

	inv := page.Items[0]

	if inv.Status != "paid" {
		return gateway.InvoiceState{Status: gateway.InvoicePending}, nil
	}

	paid := inv.PaidAmount
	if paid == "" {
		paid = inv.Amount
	}

	amount, err := decimal.NewFromString(paid)
	if err != nil {
		return gateway.InvoiceState{}, fmt.Errorf("%w: getInvoices: bad amount %q", gateway.ErrGateway, paid)
	}

	return gateway.InvoiceState{Status: gateway.InvoicePaid, PaidAmount: money.FromDecimal(amount)}, nil
}

func (c *Client) CreateWithdrawalCheck(ctx context.Context, req gateway.CheckRequest) (gateway.Check, error) {
	var chk checkDTO

	err := c.call(ctx, "createCheck", map[string]string{
		"asset":          req.Asset,
		"amount":         req.Amount.String(),
		"pin_to_user_id": strconv.FormatInt(req.PinnedAccountID, 10),
		"spend_id":       uuid.NewString(),
	}, &chk)
	if err != nil {
		return gateway.Check{}, err
	}

	url := firstNonEmpty(chk.BotCheckURL, chk.WebAppCheckURL, chk.MiniAppCheckURL)
	if url == "" {
		return gateway.Check{}, fmt.Errorf("%w: createCheck: no check url in response", gateway.ErrGateway)
	}

	return gateway.Check{ID: strconv.FormatInt(chk.CheckID, 10), URL: url}, nil
}

func (c *Client) call(ctx context.Context, method string, params map[string]string, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: %s: encode: %w", gateway.ErrGateway, method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", gateway.ErrGateway, method, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", gateway.ErrGateway, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %w", gateway.ErrGateway, method, err)
	}

	var env envelope

	err = json.Unmarshal(raw, &env)
	if err != nil {
		return fmt.Errorf("%w: %s: status %d: decode: %w", gateway.ErrGateway, method, resp.StatusCode, err)
	}

	if !env.OK {
		name := "unknown"
		if env.Error != nil {
			name = env.Error.Name
		}

		return fmt.Errorf("%w: %s: status %d: %s", gateway.ErrGateway, method, resp.StatusCode, name)
	}

	err = json.Unmarshal(env.Result, out)
	if err != nil {
		return fmt.Errorf("%w: %s: decode result: %w", gateway.ErrGateway, method, err)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

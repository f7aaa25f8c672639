package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fastprodman/casinobot/internal/broadcast"
	"github.com/fastprodman/casinobot/internal/gateway/fakegateway"
	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/services/ledger"
	"github.com/fastprodman/casinobot/internal/services/ledger/memledger"
	"github.com/fastprodman/casinobot/internal/services/outcome"
	"github.com/fastprodman/casinobot/internal/services/payments"
	"github.com/fastprodman/casinobot/internal/services/session"
	"github.com/fastprodman/casinobot/internal/services/settlement"
	"go.uber.org/zap"
)

type testServer struct {
	srv    *httptest.Server
	auth   *Authenticator
	store  *memledger.Store
	gw     *fakegateway.Gateway
	roller *outcome.FixedRoller
}

func newTestServer(t *testing.T, el Eligibility) *testServer {
	t.Helper()

	ts := &testServer{
		auth:   NewAuthenticator("test-secret", "casinobot"),
		store:  memledger.New(),
		gw:     fakegateway.New(),
		roller: outcome.NewFixedRoller(),
	}

	log := zap.NewNop()
	topics := broadcast.Topics{Wagers: "w", Results: "r", Notifications: "n"}
	channel := broadcast.NewChannel(broadcast.NewMemPublisher(), ts.roller, topics)

	engine := settlement.New(ts.store, channel, outcome.DefaultPayouts(),
		money.Bounds{Min: money.MustParse("0.10"), Max: money.MustParse("100")}, log)
	pay := payments.NewService(ts.store, ts.gw, channel, "USDT", payments.Limits{
		Deposit:    money.Bounds{Min: money.MustParse("1"), Max: money.MustParse("1000")},
		Withdrawal: money.Bounds{Min: money.MustParse("1"), Max: money.MustParse("1000")},
	}, log)

	if el == nil {
		el = AllowAll{}
	}

	ts.srv = httptest.NewServer(NewRouter(Deps{
		Sessions:    session.NewManager(engine, ts.store, time.Hour, log),
		Payments:    pay,
		Auth:        ts.auth,
		Eligibility: el,
		Log:         log,
	}))
	t.Cleanup(ts.srv.Close)

	return ts
}

func (ts *testServer) token(t *testing.T, accountID int64, role string) string {
	t.Helper()

	tok, err := ts.auth.Sign(accountID, role)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var rd *bytes.Reader

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, ts.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)

	return resp.StatusCode, out
}

func TestAuth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	other := NewAuthenticator("other-secret", "casinobot")

	forged, err := other.Sign(1, "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	badSubject, err := ts.auth.Sign(0, "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "missing", token: "", want: http.StatusUnauthorized},
		{name: "garbage", token: "not.a.jwt", want: http.StatusUnauthorized},
		{name: "wrong_secret", token: forged, want: http.StatusUnauthorized},
		{name: "non_positive_subject", token: badSubject, want: http.StatusUnauthorized},
		{name: "ok", token: ts.token(t, 1, ""), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, _ := ts.do(t, http.MethodGet, "/me", tt.token, nil)
			if code != tt.want {
				t.Fatalf("status = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	code, body := ts.do(t, http.MethodGet, "/healthz", "", nil)
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", code, body)
	}
}

func TestEligibilityGuard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		el   Eligibility
		want int
	}{
		{name: "allowed", el: AllowAll{}, want: http.StatusOK},
		{name: "denied", el: EligibilityFunc(func(context.Context, int64) (bool, error) { return false, nil }), want: http.StatusForbidden},
		{name: "check_fails", el: EligibilityFunc(func(context.Context, int64) (bool, error) { return false, errors.New("redis down") }), want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t, tt.el)

			code, _ := ts.do(t, http.MethodGet, "/me/session", ts.token(t, 5, ""), nil)
			if code != tt.want {
				t.Fatalf("status = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestWagerOverHTTP(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	ts.roller.Push(6)
	tok := ts.token(t, 9, "")

	_, err := ts.store.AdjustBalance(context.Background(), ledger.Entry{
		EntryID: "seed", AccountID: 9, Kind: ledger.KindDeposit, AmountMinor: money.MustParse("10"),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	for _, a := range []session.Action{
		{Kind: session.ActionCommand, Name: session.SelPlay},
		{Kind: session.ActionSelect, Name: session.SelDice},
		{Kind: session.ActionSelect, Name: string(outcome.DiceOver)},
	} {
		code, body := ts.do(t, http.MethodPost, "/me/actions", tok, a)
		if code != http.StatusOK {
			t.Fatalf("action %+v: %d %v", a, code, body)
		}
	}

	code, body := ts.do(t, http.MethodPost, "/me/actions", tok, session.Action{Kind: session.ActionText, Text: "abc"})
	if code != http.StatusBadRequest {
		t.Fatalf("bad stake: %d %v", code, body)
	}

	code, body = ts.do(t, http.MethodPost, "/me/actions", tok, session.Action{Kind: session.ActionText, Text: "5"})
	if code != http.StatusOK {
		t.Fatalf("stake: %d %v", code, body)
	}

	if body["balance"] != "13.50" {
		t.Fatalf("reply balance = %v, want 13.50", body["balance"])
	}

	code, body = ts.do(t, http.MethodGet, "/me", tok, nil)
	if code != http.StatusOK || body["balance"] != "13.50" || body["totalBets"] != float64(1) {
		t.Fatalf("profile = %d %v", code, body)
	}
}

func TestDepositAndCheck(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	tok := ts.token(t, 3, "")

	code, body := ts.do(t, http.MethodPost, "/me/deposits", tok, map[string]string{"amount": "0.5"})
	if code != http.StatusBadRequest {
		t.Fatalf("small deposit: %d %v", code, body)
	}

	code, body = ts.do(t, http.MethodPost, "/me/deposits", tok, map[string]string{"amount": "10"})
	if code != http.StatusCreated || body["payUrl"] == "" {
		t.Fatalf("deposit: %d %v", code, body)
	}

	id, _ := body["invoiceId"].(string)

	code, body = ts.do(t, http.MethodPost, "/me/invoices/"+id+"/check", tok, nil)
	if code != http.StatusOK || body["result"] != string(payments.CheckPending) {
		t.Fatalf("pending check: %d %v", code, body)
	}

	code, _ = ts.do(t, http.MethodPost, "/me/invoices/"+id+"/check", ts.token(t, 4, ""), nil)
	if code != http.StatusNotFound {
		t.Fatalf("foreign check: %d", code)
	}

	_ = ts.gw.Pay(id)

	code, body = ts.do(t, http.MethodPost, "/me/invoices/"+id+"/check", tok, nil)
	if code != http.StatusOK || body["result"] != string(payments.CheckCredited) || body["balance"] != "10.00" {
		t.Fatalf("paid check: %d %v", code, body)
	}
}

func TestWithdrawErrors(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	tok := ts.token(t, 2, "")

	code, _ := ts.do(t, http.MethodPost, "/me/withdrawals", tok, map[string]string{"amount": "5"})
	if code != http.StatusConflict {
		t.Fatalf("unfunded withdrawal: %d", code)
	}

	_, err := ts.store.AdjustBalance(context.Background(), ledger.Entry{
		EntryID: "seed", AccountID: 2, Kind: ledger.KindDeposit, AmountMinor: money.MustParse("20"),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	ts.gw.FailCreateCheck = errors.New("503")

	code, _ = ts.do(t, http.MethodPost, "/me/withdrawals", tok, map[string]string{"amount": "5"})
	if code != http.StatusBadGateway {
		t.Fatalf("gateway failure: %d", code)
	}

	if got := ts.store.Balance(2); got != money.MustParse("20") {
		t.Fatalf("balance = %s, want 20.00", got)
	}
}

func TestExternalPayment(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	body := map[string]any{"accountId": 11, "paymentId": "tg-1", "amount": "4.20"}

	code, _ := ts.do(t, http.MethodPost, "/payments/external", ts.token(t, 11, ""), body)
	if code != http.StatusForbidden {
		t.Fatalf("user token: %d", code)
	}

	transport := ts.token(t, 1, RoleTransport)

	code, resp := ts.do(t, http.MethodPost, "/payments/external", transport, body)
	if code != http.StatusOK || resp["credited"] != true || resp["balance"] != "4.20" {
		t.Fatalf("first: %d %v", code, resp)
	}

	code, resp = ts.do(t, http.MethodPost, "/payments/external", transport, body)
	if code != http.StatusOK || resp["credited"] != false || resp["balance"] != "4.20" {
		t.Fatalf("replay: %d %v", code, resp)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{err: money.ErrOutOfBounds, want: http.StatusBadRequest},
		{err: session.ErrInvalidSelection, want: http.StatusBadRequest},
		{err: ledger.ErrInsufficientFunds, want: http.StatusConflict},
		{err: ledger.ErrInvoiceNotFound, want: http.StatusNotFound},
		{err: settlement.ErrDrawUnavailable, want: http.StatusServiceUnavailable},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			t.Parallel()

			if got, _ := statusFor(tt.err); got != tt.want {
				t.Fatalf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/ipn"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/reconciler"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/repo"
	"github.com/radieske/royalbet-wager-core/internal/shared/idempotency"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/ledger"
)

const (
	secret  = "s"
	owner   = "0x1111111111111111111111111111111111111111"
	depAddr = "0xdddddddddddddddddddddddddddddddddddddddd"
)

func setup(t *testing.T) (http.Handler, *ledger.Memory) {
	t.Helper()
	ctx := context.Background()
	l := ledger.NewMemory()
	_, _ = l.GetOrCreate(ctx, owner)
	txs := repo.NewMemory()
	_ = txs.Create(ctx, repo.Transaction{
		ID: "tx-1", Kind: repo.KindDeposit, Asset: "ETH", Address: depAddr, Owner: owner, QuotedPrice: decimal.NewFromInt(100),
	})
	rec := reconciler.New(zap.NewNop(), reconciler.Config{Secret: secret, MerchantID: "m"}, reconciler.Deps{
		Transactions: txs,
		Ledger:       l,
		Guard:        idempotency.NewMemoryGuard(),
	}, reconciler.Hooks{})
	return NewServer(zap.NewNop(), rec).Router(), l
}

func send(h http.Handler, body []byte, sig string) (*httptest.ResponseRecorder, response) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/ipn", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(ipn.HeaderHMAC, sig)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var resp response
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	return rr, resp
}

func TestIPNAcceptedAndReplayed(t *testing.T) {
	h, l := setup(t)
	amount := decimal.RequireFromString("0.5")
	body := ipn.Encode(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 100, Merchant: "m", Amount: &amount})
	sig := ipn.Sign(body, secret)

	rr, resp := send(h, body, sig)
	if rr.Code != http.StatusOK || !resp.Status || resp.Duplicate {
		t.Fatalf("first = %d %+v", rr.Code, resp)
	}
	rr, resp = send(h, body, sig)
	if rr.Code != http.StatusOK || !resp.Duplicate {
		t.Fatalf("replay = %d %+v", rr.Code, resp)
	}

	bal, _ := l.Balance(context.Background(), owner)
	if !bal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance = %s", bal)
	}
}

func TestIPNBadSignature(t *testing.T) {
	h, _ := setup(t)
	body := ipn.Encode(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 100, Merchant: "m"})

	rr, resp := send(h, body, "nope")
	if rr.Code != http.StatusInternalServerError || resp.Status || resp.Reason != "unauthorized" {
		t.Fatalf("got %d %+v", rr.Code, resp)
	}
}

func TestIPNUnknownAddress(t *testing.T) {
	h, _ := setup(t)
	body := ipn.Encode(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: "0xabc", Status: 100, Merchant: "m"})

	rr, resp := send(h, body, ipn.Sign(body, secret))
	if rr.Code != http.StatusInternalServerError || resp.Reason != "unknown transaction" {
		t.Fatalf("got %d %+v", rr.Code, resp)
	}
}

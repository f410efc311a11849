package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/quote"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/repo"
	"github.com/radieske/royalbet-wager-core/internal/shared/auth"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/address"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/dto"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/ledger"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/payments"
)

const player = "0xAbCdEf0000000000000000000000000000000001"

type stubProcessor struct{}

func (stubProcessor) DepositAddress(context.Context, string, string) (string, error) {
	return "0x9999999999999999999999999999999999999999", nil
}

func (stubProcessor) Withdraw(context.Context, string, string, string, decimal.Decimal) (string, error) {
	return "wd", nil
}

func setup(t *testing.T) (http.Handler, *ledger.Memory) {
	t.Helper()
	l := ledger.NewMemory()
	p := payments.NewInitiator(zap.NewNop(), l, repo.NewMemory(), quote.Static{"ETH": decimal.NewFromInt(2000)}, stubProcessor{}, address.EVM{})
	srv := NewServer(zap.NewNop(), l, p, auth.NewIssuer("test", time.Hour), address.EVM{})
	return srv.Router(), l
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func signIn(t *testing.T, h http.Handler, name string) dto.SignInResponse {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/auth/signin", "", dto.SignInRequest{Address: player, DisplayName: name})
	if rr.Code != http.StatusOK {
		t.Fatalf("sign in = %d %s", rr.Code, rr.Body.String())
	}
	var resp dto.SignInResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	return resp
}

func TestSignInCreatesAccount(t *testing.T) {
	h, _ := setup(t)
	resp := signIn(t, h, "lucky")
	if resp.Token == "" || resp.Account.Address != ledger.NormalizeAddress(player) || resp.Account.Balance != "0.00" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Account.DisplayName == nil || *resp.Account.DisplayName != "lucky" {
		t.Fatalf("display name = %v", resp.Account.DisplayName)
	}

	rr := do(t, h, http.MethodGet, "/account", resp.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("account = %d", rr.Code)
	}
}

func TestSignInRejectsInvalidAddress(t *testing.T) {
	h, _ := setup(t)
	rr := do(t, h, http.MethodPost, "/auth/signin", "", dto.SignInRequest{Address: "0x123"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rr.Code)
	}
}

func TestAccountRequiresToken(t *testing.T) {
	h, _ := setup(t)
	if rr := do(t, h, http.MethodGet, "/account", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", rr.Code)
	}
}

func TestDepositAndWithdrawal(t *testing.T) {
	h, l := setup(t)
	tok := signIn(t, h, "").Token

	rr := do(t, h, http.MethodPost, "/deposits", tok, dto.DepositRequest{Asset: "eth"})
	var dep dto.DepositResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &dep)
	if rr.Code != http.StatusOK || dep.Price != "2000" || dep.Address == "" {
		t.Fatalf("deposit = %d %+v", rr.Code, dep)
	}

	rr = do(t, h, http.MethodPost, "/withdrawals", tok, dto.WithdrawalRequest{Asset: "ETH", Address: "0x2222222222222222222222222222222222222222", Amount: "10"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("withdraw without balance = %d", rr.Code)
	}

	_, _ = l.Credit(context.Background(), player, decimal.NewFromInt(40), "seed", "seed")
	rr = do(t, h, http.MethodPost, "/withdrawals", tok, dto.WithdrawalRequest{Asset: "ETH", Address: "0x2222222222222222222222222222222222222222", Amount: "10"})
	var wd dto.WithdrawalResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &wd)
	if rr.Code != http.StatusOK || wd.Units != "0.005" || !wd.Pending {
		t.Fatalf("withdraw = %d %+v", rr.Code, wd)
	}

	// o valor do saque fica reservado até a conciliação
	if bal, _ := l.Balance(context.Background(), player); !bal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("balance = %s", bal)
	}

	rr = do(t, h, http.MethodGet, "/transactions", tok, nil)
	var txs []repo.Transaction
	_ = json.Unmarshal(rr.Body.Bytes(), &txs)
	if len(txs) != 2 {
		t.Fatalf("transactions = %d", len(txs))
	}
}

func TestDisplayNameConflict(t *testing.T) {
	h, l := setup(t)
	ctx := context.Background()
	_, _ = l.GetOrCreate(ctx, "0x3333333333333333333333333333333333333333")
	_, _ = l.SetDisplayName(ctx, "0x3333333333333333333333333333333333333333", "taken")

	tok := signIn(t, h, "").Token
	rr := do(t, h, http.MethodPut, "/account/display-name", tok, dto.DisplayNameRequest{DisplayName: "taken"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("code = %d", rr.Code)
	}
}

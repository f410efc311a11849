package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/quote"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/repo"
	"github.com/radieske/royalbet-wager-core/internal/shared/auth"
	"github.com/radieske/royalbet-wager-core/internal/shared/httpx"
	"github.com/radieske/royalbet-wager-core/internal/shared/money"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/address"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/dto"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/ledger"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/payments"
)

// Payments abre depósitos e saques pendentes
type Payments interface {
	Deposit(ctx context.Context, owner, asset string) (repo.Transaction, error)
	Withdraw(ctx context.Context, owner, asset, dest string, amount decimal.Decimal) (repo.Transaction, error)
	History(ctx context.Context, owner string, limit int) ([]repo.Transaction, error)
}

// Server expõe login por endereço, conta e abertura de depósitos e saques
type Server struct {
	log       *zap.Logger
	ledger    ledger.Ledger
	payments  Payments
	auth      *auth.Issuer
	addresses address.Validator
}

func NewServer(log *zap.Logger, l ledger.Ledger, p Payments, a *auth.Issuer, v address.Validator) *Server {
	return &Server{log: log, ledger: l, payments: p, auth: a, addresses: v}
}

func (s *Server) Router() http.Handler {
	r := httpx.NewRouter()
	r.Post("/auth/signin", s.signIn)
	r.Group(func(rr chi.Router) {
		rr.Use(s.auth.Middleware)
		rr.Get("/account", s.account)
		rr.Put("/account/display-name", s.setDisplayName)
		rr.Post("/deposits", s.deposit)
		rr.Post("/withdrawals", s.withdraw)
		rr.Get("/transactions", s.transactions)
	})
	return r
}

func accountResponse(a ledger.Account) dto.AccountResponse {
	return dto.AccountResponse{
		Address:     a.Address,
		DisplayName: a.DisplayName,
		Balance:     money.String(a.Balance),
		CreatedAt:   a.CreatedAt,
	}
}

func fail(w http.ResponseWriter, status int, reason, msg string) {
	httpx.WriteJSON(w, status, dto.ErrorResponse{Reason: reason, Message: msg})
}

// writeError mapeia erros do ledger e do initiator para status HTTP
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		fail(w, http.StatusNotFound, "account_not_found", "")
	case errors.Is(err, ledger.ErrDisplayNameTaken):
		fail(w, http.StatusConflict, "display_name_taken", "")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		fail(w, http.StatusBadRequest, "insufficient_balance", "")
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, money.ErrInvalidAmount):
		fail(w, http.StatusBadRequest, "invalid_amount", "")
	case errors.Is(err, payments.ErrInvalidAddress):
		fail(w, http.StatusBadRequest, "invalid_address", "")
	case errors.Is(err, quote.ErrUnsupportedAsset):
		fail(w, http.StatusBadRequest, "unsupported_asset", "")
	case errors.Is(err, payments.ErrProcessor):
		s.log.Warn(op, zap.Error(err))
		fail(w, http.StatusBadGateway, "processor_unavailable", "")
	default:
		s.log.Error(op, zap.Error(err))
		fail(w, http.StatusInternalServerError, "internal_error", "")
	}
}

// signIn cria a conta no primeiro acesso e devolve o token da sessão
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req dto.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "bad_request", "bad json")
		return
	}
	if !s.addresses.Valid(req.Address) {
		fail(w, http.StatusBadRequest, "invalid_address", "")
		return
	}

	acc, err := s.ledger.GetOrCreate(r.Context(), req.Address)
	if err != nil {
		s.writeError(w, "sign in", err)
		return
	}
	if name := strings.TrimSpace(req.DisplayName); name != "" && acc.DisplayName == nil {
		if acc, err = s.ledger.SetDisplayName(r.Context(), acc.Address, name); err != nil {
			s.writeError(w, "sign in", err)
			return
		}
	}

	token, err := s.auth.Issue(acc.Address)
	if err != nil {
		s.writeError(w, "issue token", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.SignInResponse{Status: true, Token: token, Account: accountResponse(acc)})
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) {
	addr, _ := auth.Address(r.Context())
	acc, err := s.ledger.Account(r.Context(), addr)
	if err != nil {
		s.writeError(w, "get account", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accountResponse(acc))
}

func (s *Server) setDisplayName(w http.ResponseWriter, r *http.Request) {
	addr, _ := auth.Address(r.Context())
	var req dto.DisplayNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "bad_request", "bad json")
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" || len(name) > 32 {
		fail(w, http.StatusBadRequest, "invalid_display_name", "1 to 32 characters")
		return
	}
	acc, err := s.ledger.SetDisplayName(r.Context(), addr, name)
	if err != nil {
		s.writeError(w, "set display name", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accountResponse(acc))
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	addr, _ := auth.Address(r.Context())
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Asset == "" {
		fail(w, http.StatusBadRequest, "bad_request", "asset required")
		return
	}
	tx, err := s.payments.Deposit(r.Context(), addr, req.Asset)
	if err != nil {
		s.writeError(w, "open deposit", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.DepositResponse{
		Status:  true,
		TxID:    tx.ID,
		Asset:   tx.Asset,
		Address: tx.Address,
		Price:   tx.QuotedPrice.String(),
	})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	addr, _ := auth.Address(r.Context())
	var req dto.WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "bad_request", "bad json")
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		s.writeError(w, "withdraw", err)
		return
	}
	tx, err := s.payments.Withdraw(r.Context(), addr, req.Asset, req.Address, amount)
	if err != nil {
		s.writeError(w, "withdraw", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.WithdrawalResponse{
		Status:  true,
		TxID:    tx.ID,
		Asset:   tx.Asset,
		Units:   tx.Amount.String(),
		Price:   tx.QuotedPrice.String(),
		Pending: true,
	})
}

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	addr, _ := auth.Address(r.Context())
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	txs, err := s.payments.History(r.Context(), addr, limit)
	if err != nil {
		s.writeError(w, "list transactions", err)
		return
	}
	if txs == nil {
		txs = []repo.Transaction{}
	}
	httpx.WriteJSON(w, http.StatusOK, txs)
}

package sim

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	mrand "math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/ipn"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/processor"
	"github.com/radieske/royalbet-wager-core/internal/processor-simulator/dto"
	"github.com/radieske/royalbet-wager-core/internal/shared/httpx"
)

// StatusComplete é o status final de sucesso enviado nas IPNs simuladas
const StatusComplete = 100

// IPNSender entrega IPNs assinadas ao webhook, reenviando até receber 200
type IPNSender struct {
	URL         string
	Secret      string
	MaxAttempts int
	Delay       time.Duration
	HTTP        *http.Client
}

func NewIPNSender(url, secret string) *IPNSender {
	return &IPNSender{URL: url, Secret: secret, MaxAttempts: 5, Delay: time.Second, HTTP: &http.Client{Timeout: 3 * time.Second}}
}

func (s *IPNSender) Send(ctx context.Context, n ipn.Notification) error {
	body := ipn.Encode(n)
	sig := ipn.Sign(body, s.Secret)

	var lastErr error
	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set(ipn.HeaderHMAC, sig)

		res, err := s.HTTP.Do(req)
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				return nil
			}
			err = fmt.Errorf("webhook http %d", res.StatusCode)
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.Delay * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("ipn %s not accepted: %w", n.ID, lastErr)
}

type deposit struct {
	asset     string
	reference string
}

// Server simula o processador: transferências de comissão, endereços de depósito,
// saques e as IPNs de confirmação
type Server struct {
	log         *zap.Logger
	ipn         *IPNSender
	merchant    string
	successRate int // percentual de payouts aceitos

	mu       sync.Mutex
	deposits map[string]deposit
	payouts  map[string]dto.PayoutResp

	OnPayout func(status string)
	OnIPN    func(kind string, ok bool)
}

func NewServer(log *zap.Logger, sender *IPNSender, merchant string, successRate int) *Server {
	return &Server{
		log:         log,
		ipn:         sender,
		merchant:    merchant,
		successRate: successRate,
		deposits:    make(map[string]deposit),
		payouts:     make(map[string]dto.PayoutResp),
	}
}

func (s *Server) Router() http.Handler {
	r := httpx.NewRouter()
	r.Post("/payouts", s.payout)
	r.Post("/deposit-addresses", s.depositAddress)
	r.Post("/withdrawals", s.withdrawal)
	r.Post("/simulate/deposit", s.simulateDeposit)
	return r
}

// payout aceita successRate% das transferências; a resposta é fixa por payoutId
func (s *Server) payout(w http.ResponseWriter, r *http.Request) {
	var req dto.PayoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PayoutID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	resp, seen := s.payouts[req.PayoutID]
	if !seen || resp.Status == dto.StatusRejected {
		resp = dto.PayoutResp{Status: dto.StatusSent, TxHash: randomHex(32)}
		if mrand.Intn(100) >= s.successRate {
			resp = dto.PayoutResp{Status: dto.StatusRejected, Reason: "processor_reject_mock"}
		}
		s.payouts[req.PayoutID] = resp
	}
	s.mu.Unlock()

	if s.OnPayout != nil {
		s.OnPayout(resp.Status)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) depositAddress(w http.ResponseWriter, r *http.Request) {
	var req processor.DepositAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Asset == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	addr := "0x" + randomHex(20)

	s.mu.Lock()
	s.deposits[addr] = deposit{asset: req.Asset, reference: req.Reference}
	s.mu.Unlock()

	s.log.Info("deposit address issued", zap.String("address", addr), zap.String("reference", req.Reference))
	httpx.WriteJSON(w, http.StatusOK, processor.DepositAddressResponse{Address: addr, Asset: req.Asset})
}

// withdrawal confirma o saque de forma assíncrona com uma IPN completa
func (s *Server) withdrawal(w http.ResponseWriter, r *http.Request) {
	var req processor.WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "bad amount", http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	n := ipn.Notification{
		ID:       id,
		Type:     ipn.TypeWithdrawal,
		Address:  strings.ToLower(req.Address),
		Status:   StatusComplete,
		Currency: req.Asset,
		Merchant: s.merchant,
		Amount:   &amount,
	}
	go s.deliver(n)

	httpx.WriteJSON(w, http.StatusOK, processor.WithdrawalResponse{ID: id, Status: "queued"})
}

// simulateDeposit representa o usuário enviando o ativo para o endereço de depósito
func (s *Server) simulateDeposit(w http.ResponseWriter, r *http.Request) {
	var req dto.SimulateDepositReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	addr := strings.ToLower(req.Address)

	s.mu.Lock()
	dep, ok := s.deposits[addr]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown deposit address", http.StatusNotFound)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		http.Error(w, "bad amount", http.StatusBadRequest)
		return
	}
	status := StatusComplete
	if req.Status != nil {
		status = *req.Status
	}

	n := ipn.Notification{
		ID:       uuid.NewString(),
		Type:     ipn.TypeDeposit,
		Address:  addr,
		Status:   status,
		Currency: dep.asset,
		Merchant: s.merchant,
		Amount:   &amount,
	}
	if err := s.send(r.Context(), n); err != nil {
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{"ipnId": n.ID, "error": err.Error()})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"ipnId": n.ID})
}

func (s *Server) deliver(n ipn.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.send(ctx, n); err != nil {
		s.log.Warn("ipn delivery failed", zap.String("ipn_id", n.ID), zap.Error(err))
	}
}

func (s *Server) send(ctx context.Context, n ipn.Notification) error {
	err := s.ipn.Send(ctx, n)
	if s.OnIPN != nil {
		s.OnIPN(n.Type, err == nil)
	}
	return err
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/shared/auth"
	"github.com/radieske/royalbet-wager-core/internal/shared/httpx"
	"github.com/radieske/royalbet-wager-core/internal/shared/money"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/dto"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/engine"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/repo"
)

// BetPlacer é o engine de apostas visto pelo handler
type BetPlacer interface {
	PlaceBet(ctx context.Context, req engine.Request) (engine.Outcome, error)
}

type BetReader interface {
	Get(ctx context.Context, id string) (repo.Bet, error)
	ListByAddress(ctx context.Context, address string, limit int) ([]repo.Bet, error)
}

type Server struct {
	log    *zap.Logger
	engine BetPlacer
	bets   BetReader
	auth   *auth.Issuer
	feed   RouteRegistrar // rotas do feed de jogadas recentes
}

// RouteRegistrar registra rotas adicionais no router do serviço
type RouteRegistrar interface {
	Register(r chi.Router)
}

func NewServer(log *zap.Logger, e BetPlacer, bets BetReader, a *auth.Issuer, feed RouteRegistrar) *Server {
	return &Server{log: log, engine: e, bets: bets, auth: a, feed: feed}
}

func (s *Server) Router() http.Handler {
	r := httpx.NewRouter()
	r.Group(func(rr chi.Router) {
		rr.Use(s.auth.Middleware)
		rr.Post("/bets", s.placeBet)
		rr.Get("/bets", s.listBets)
		rr.Get("/bets/{id}", s.getBet)
	})
	if s.feed != nil {
		s.feed.Register(r)
	}
	return r
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	addr, _ := auth.Address(r.Context())

	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, dto.ErrorResponse{Reason: "bad_request", Message: "bad json"})
		return
	}
	stake := req.BetAmount
	if err := money.Check(stake); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, dto.ErrorResponse{Reason: engine.ReasonInvalidAmount, Message: "invalid bet amount"})
		return
	}

	out, err := s.engine.PlaceBet(r.Context(), engine.Request{
		Address:     addr,
		Game:        req.GameType,
		Selection:   req.Selection,
		Stake:       stake,
		Referral:    req.Referral,
		FeeReceiver: req.FeeReceiver,
	})
	if err != nil {
		s.writeError(w, out, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, dto.PlaceBetResponse{
		Status:         true,
		Win:            out.Win,
		Payout:         money.String(out.Payout),
		NetWin:         money.String(out.NetWin),
		Draw:           out.Draw,
		BetID:          out.BetID,
		Balance:        money.String(out.Balance),
		PendingPayouts: out.PendingPayouts,
	})
}

// writeError mapeia erros do engine para status HTTP
func (s *Server) writeError(w http.ResponseWriter, out engine.Outcome, err error) {
	var rej *engine.RejectError
	switch {
	case errors.As(err, &rej):
		resp := dto.ErrorResponse{Reason: rej.Reason, Message: rej.Message}
		if rej.Balance != nil {
			b := money.String(*rej.Balance)
			resp.Balance = &b
		}
		httpx.WriteJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, engine.ErrSettlementFailure):
		b := money.String(out.Balance)
		httpx.WriteJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Reason: "internal_error", Message: "bet refunded", Balance: &b})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteJSON(w, http.StatusRequestTimeout, dto.ErrorResponse{Reason: "cancelled"})
	default:
		s.log.Error("place bet", zap.Error(err))
		httpx.WriteJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Reason: "internal_error"})
	}
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	addr, _ := auth.Address(r.Context())
	b, err := s.bets.Get(r.Context(), chi.URLParam(r, "id"))
	// aposta de outro endereço responde como inexistente
	if errors.Is(err, repo.ErrNotFound) || (err == nil && b.Address != addr) {
		httpx.WriteJSON(w, http.StatusNotFound, dto.ErrorResponse{Reason: "not_found"})
		return
	}
	if err != nil {
		s.log.Error("get bet", zap.Error(err))
		httpx.WriteJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Reason: "internal_error"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	addr, _ := auth.Address(r.Context())
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	bets, err := s.bets.ListByAddress(r.Context(), addr, limit)
	if err != nil {
		s.log.Error("list bets", zap.Error(err))
		httpx.WriteJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Reason: "internal_error"})
		return
	}
	if bets == nil {
		bets = []repo.Bet{}
	}
	httpx.WriteJSON(w, http.StatusOK, bets)
}

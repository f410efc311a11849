package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/ipn"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/reconciler"
	"github.com/radieske/royalbet-wager-core/internal/shared/httpx"
)

// limite do corpo de uma IPN
const maxBody = 64 << 10

// IPNHandler é o reconciliador visto pelo webhook
type IPNHandler interface {
	Handle(ctx context.Context, body []byte, signature string) (reconciler.Outcome, error)
}

type response struct {
	Status    bool   `json:"status"`
	Result    string `json:"result,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type Server struct {
	log *zap.Logger
	rec IPNHandler
}

func NewServer(log *zap.Logger, rec IPNHandler) *Server {
	return &Server{log: log, rec: rec}
}

func (s *Server) Router() http.Handler {
	r := httpx.NewRouter()
	s.Register(r)
	return r
}

func (s *Server) Register(r chi.Router) {
	r.Post("/webhooks/ipn", s.ipn)
}

// ipn responde 200 quando a IPN foi aplicada ou já era conhecida;
// qualquer outra resposta faz o processador reenviar
func (s *Server) ipn(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, response{Reason: "unreadable body"})
		return
	}

	out, err := s.rec.Handle(r.Context(), body, r.Header.Get(ipn.HeaderHMAC))
	if err != nil {
		reason := "internal error"
		switch {
		case errors.Is(err, reconciler.ErrUnauthorized):
			reason = "unauthorized"
		case errors.Is(err, reconciler.ErrUnknownTransaction):
			reason = "unknown transaction"
		case errors.Is(err, ipn.ErrMalformed):
			reason = "malformed ipn"
		}
		s.log.Warn("ipn rejected", zap.String("reason", reason), zap.Error(err))
		httpx.WriteJSON(w, http.StatusInternalServerError, response{Reason: reason})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, response{Status: true, Result: out.Status, Duplicate: out.Duplicate})
}

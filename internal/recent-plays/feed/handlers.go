package feed

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/recent-plays/store"
	"github.com/radieske/royalbet-wager-core/internal/shared/httpx"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/ledger"
)

// GamePlayedRequest é o corpo de POST /game_played
type GamePlayedRequest struct {
	Type         string          `json:"type"`
	IsWin        bool            `json:"is_win"`
	AmountPlayed decimal.Decimal `json:"amount_played"`
	Payout       decimal.Decimal `json:"payout"`
	Player       string          `json:"player"`
	Referral     string          `json:"referral"`
	Chain        string          `json:"chain"`
	Token        string          `json:"token"`
	DuplicateID  string          `json:"duplicate_id"`
}

type response struct {
	Status  bool   `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Register expõe as rotas públicas do feed
func (f *Feed) Register(r chi.Router) {
	r.Get("/recent_plays", f.recentPlays)
	r.Post("/game_played", f.gamePlayed)
}

func (f *Feed) recentPlays(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	plays, err := f.Latest(r.Context(), limit)
	if err != nil {
		f.log.Error("recent plays", zap.Error(err))
		httpx.WriteJSON(w, http.StatusInternalServerError, response{Message: "something went wrong"})
		return
	}
	if plays == nil {
		plays = []store.RecentPlay{}
	}
	httpx.WriteJSON(w, http.StatusOK, response{Status: true, Data: plays})
}

func (f *Feed) gamePlayed(w http.ResponseWriter, r *http.Request) {
	var req GamePlayedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, response{Message: "bad json"})
		return
	}

	p := store.RecentPlay{
		CorrelationID: req.DuplicateID,
		Game:          req.Type,
		Player:        ledger.NormalizeAddress(req.Player),
		Win:           req.IsWin,
		AmountPlayed:  req.AmountPlayed,
		Payout:        req.Payout,
		Referral:      req.Referral,
		Chain:         req.Chain,
		Token:         req.Token,
	}
	inserted, err := f.Ingest(r.Context(), p)
	switch {
	case errors.Is(err, ErrInvalidPlay):
		httpx.WriteJSON(w, http.StatusBadRequest, response{Message: err.Error()})
	case err != nil:
		f.log.Error("game played", zap.Error(err))
		httpx.WriteJSON(w, http.StatusInternalServerError, response{Message: "something went wrong"})
	case !inserted:
		httpx.WriteJSON(w, http.StatusCreated, response{Message: "duplicate data"})
	default:
		httpx.WriteJSON(w, http.StatusCreated, response{Status: true, Data: p, Message: "data entered successfully"})
	}
}

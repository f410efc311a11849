package events

import "time"

// Evento emitido pelo wager-service após liquidar uma aposta.
// Consumido pelo recent-plays-worker; CorrelationID é a chave de deduplicação.
type BetSettled struct {
	CorrelationID string    `json:"correlation_id"` // betID
	Game          string    `json:"game"`           // dice | flip | slot
	Player        string    `json:"player"`
	Win           bool      `json:"win"`
	AmountPlayed  string    `json:"amount_played"` // decimal em string
	Payout        string    `json:"payout"`
	Referral      string    `json:"referral,omitempty"`
	Chain         string    `json:"chain,omitempty"`
	Token         string    `json:"token,omitempty"`
	Ts            time.Time `json:"ts"`
}

package events

import "time"

// PayoutRequested representa uma transferência on-chain que falhou e aguarda nova tentativa.
type PayoutRequested struct {
	PayoutID  string    `json:"payout_id"` // betID + ":" + papel
	BetID     string    `json:"bet_id"`
	Role      string    `json:"role"` // referral | fee
	Address   string    `json:"address"`
	Amount    string    `json:"amount"`
	Asset     string    `json:"asset"`
	Attempt   int       `json:"attempt"`
	LastError string    `json:"last_error,omitempty"`
	Ts        time.Time `json:"ts"`
}

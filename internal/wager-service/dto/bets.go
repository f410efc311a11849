package dto

import "github.com/shopspring/decimal"

// PlaceBetRequest é o corpo de POST /bets; o endereço vem do token
type PlaceBetRequest struct {
	GameType    string          `json:"gameType"` // dice | flip | slot
	Selection   int             `json:"selection"`
	BetAmount   decimal.Decimal `json:"betAmount"` // número ou string, até 2 casas
	Referral    string          `json:"referral,omitempty"`
	FeeReceiver string          `json:"feeReceiver,omitempty"`
}

type PlaceBetResponse struct {
	Status         bool     `json:"status"`
	Win            bool     `json:"win"`
	Payout         string   `json:"payout"`
	NetWin         string   `json:"netWin"`
	Draw           int      `json:"draw"`
	BetID          string   `json:"betId"`
	Balance        string   `json:"balance"`
	PendingPayouts []string `json:"pendingPayouts,omitempty"`
}

// ErrorResponse expõe só o código, a mensagem e o saldo quando conhecido
type ErrorResponse struct {
	Status  bool    `json:"status"`
	Reason  string  `json:"reason"`
	Message string  `json:"message,omitempty"`
	Balance *string `json:"balance,omitempty"`
}

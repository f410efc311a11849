package repo

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("bet not found")
	ErrDuplicate = errors.New("bet already recorded")
)

// Bet é o registro imutável de uma aposta liquidada
type Bet struct {
	ID            string          `json:"id"`
	CorrelationID string          `json:"correlationId"`
	Address       string          `json:"address"`
	Game          string          `json:"game"`
	Selection     int             `json:"selection"`
	Stake         decimal.Decimal `json:"stake"`
	HouseCharge   decimal.Decimal `json:"houseCharge"`
	Draw          int             `json:"draw"`
	Win           bool            `json:"win"`
	Payout        decimal.Decimal `json:"payout"`
	ReferralCut   decimal.Decimal `json:"referralCut"`
	FeeCut        decimal.Decimal `json:"feeCut"`
	HouseNet      decimal.Decimal `json:"houseNet"`
	NetWin        decimal.Decimal `json:"netWin"`
	Referral      string          `json:"referral,omitempty"`
	FeeReceiver   string          `json:"feeReceiver,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

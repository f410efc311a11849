package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MaxLimit é o maior número de jogadas devolvido por consulta
const MaxLimit = 50

// RecentPlay é uma jogada exibida no feed público
type RecentPlay struct {
	CorrelationID string          `db:"correlation_id" json:"duplicateId"`
	Game          string          `db:"game" json:"type"`
	Player        string          `db:"player" json:"player"`
	Win           bool            `db:"win" json:"isWin"`
	AmountPlayed  decimal.Decimal `db:"amount_played" json:"amountPlayed"`
	Payout        decimal.Decimal `db:"payout" json:"payout"`
	Referral      string          `db:"referral" json:"referral,omitempty"`
	Chain         string          `db:"chain" json:"chain,omitempty"`
	Token         string          `db:"token" json:"token,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// Store persiste o feed; Insert devolve false quando o CorrelationID já existe
type Store interface {
	Insert(ctx context.Context, p RecentPlay) (bool, error)
	Latest(ctx context.Context, limit int) ([]RecentPlay, error)
}

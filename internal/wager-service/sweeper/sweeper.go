package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/shared/money"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/ledger"
)

// Ledger é o subconjunto do ledger usado pela varredura
type Ledger interface {
	ListStale(ctx context.Context, before time.Time, limit int) ([]ledger.Reservation, error)
	Refund(ctx context.Context, ref string) (ledger.Reservation, decimal.Decimal, error)
}

// Sweeper estorna reservas de aposta que ficaram PENDING além de MaxAge,
// por exemplo quando o processo caiu entre a reserva e a liquidação.
// Reservas de saque são ignoradas: só a IPN do processador as encerra.
type Sweeper struct {
	Log      *zap.Logger
	Ledger   Ledger
	MaxAge   time.Duration
	Interval time.Duration
	Batch    int

	OnRefund func() // métricas
	OnError  func() // métricas

	now func() time.Time
}

// Run executa Sweep a cada Interval até o contexto ser cancelado
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.Log.Warn("reservation sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.Log.Info("stale reservations refunded", zap.Int("count", n))
			}
		}
	}
}

// Sweep faz uma passada e devolve quantas reservas foram estornadas
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	batch := s.Batch
	if batch <= 0 {
		batch = 100
	}

	lctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	stale, err := s.Ledger.ListStale(lctx, now().Add(-s.MaxAge), batch)
	cancel()
	if err != nil {
		return 0, err
	}

	refunded := 0
	for _, r := range stale {
		if ledger.IsWithdrawalRef(r.Ref) {
			continue
		}
		_, bal, err := s.Ledger.Refund(ctx, r.Ref)
		if err != nil {
			// liquidada entre a listagem e o estorno
			if errors.Is(err, ledger.ErrReservationClosed) {
				continue
			}
			s.Log.Error("stale reservation refund failed",
				zap.String("ref", r.Ref),
				zap.String("address", r.Address),
				zap.Error(err))
			if s.OnError != nil {
				s.OnError()
			}
			continue
		}
		refunded++
		s.Log.Warn("stale reservation refunded",
			zap.String("ref", r.Ref),
			zap.String("address", r.Address),
			zap.String("amount", money.String(r.Amount)),
			zap.String("balance", money.String(bal)),
			zap.Duration("age", now().Sub(r.CreatedAt)))
		if s.OnRefund != nil {
			s.OnRefund()
		}
	}
	return refunded, nil
}

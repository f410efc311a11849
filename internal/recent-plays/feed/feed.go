package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/recent-plays/store"
	"github.com/radieske/royalbet-wager-core/internal/shared/idempotency"
	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

const (
	scopeFeed    = "feed"
	DefaultLimit = 7
)

var ErrInvalidPlay = errors.New("invalid play")

// Feed ingere jogadas liquidadas, no máximo uma vez por CorrelationID
type Feed struct {
	log   *zap.Logger
	store store.Store
	guard idempotency.Guard

	OnIngested  func()
	OnDuplicate func()
}

func New(log *zap.Logger, s store.Store, g idempotency.Guard) *Feed {
	return &Feed{log: log, store: s, guard: g}
}

// FromSettled converte o evento do wager-service numa jogada do feed
func FromSettled(e events.BetSettled) (store.RecentPlay, error) {
	amount, err := decimal.NewFromString(e.AmountPlayed)
	if err != nil {
		return store.RecentPlay{}, fmt.Errorf("%w: amount_played: %v", ErrInvalidPlay, err)
	}
	payout, err := decimal.NewFromString(e.Payout)
	if err != nil {
		return store.RecentPlay{}, fmt.Errorf("%w: payout: %v", ErrInvalidPlay, err)
	}
	return store.RecentPlay{
		CorrelationID: e.CorrelationID,
		Game:          e.Game,
		Player:        e.Player,
		Win:           e.Win,
		AmountPlayed:  amount,
		Payout:        payout,
		Referral:      e.Referral,
		Chain:         e.Chain,
		Token:         e.Token,
		CreatedAt:     e.Ts,
	}, nil
}

// Ingest grava a jogada; devolve false se o CorrelationID já foi visto
func (f *Feed) Ingest(ctx context.Context, p store.RecentPlay) (bool, error) {
	p.CorrelationID = strings.TrimSpace(p.CorrelationID)
	if p.CorrelationID == "" || p.Game == "" || p.Player == "" {
		return false, fmt.Errorf("%w: duplicate_id, type and player are required", ErrInvalidPlay)
	}
	if p.AmountPlayed.IsNegative() || p.Payout.IsNegative() {
		return false, fmt.Errorf("%w: negative amount", ErrInvalidPlay)
	}

	admitted, err := f.guard.Admit(ctx, scopeFeed, p.CorrelationID)
	if err != nil {
		return false, err
	}
	if !admitted {
		f.duplicate()
		return false, nil
	}

	inserted, err := f.store.Insert(ctx, p)
	if err != nil {
		if rerr := f.guard.Release(ctx, scopeFeed, p.CorrelationID); rerr != nil {
			f.log.Warn("idempotency release failed", zap.String("correlation_id", p.CorrelationID), zap.Error(rerr))
		}
		return false, err
	}
	if !inserted {
		// guard expirado, mas a linha já existe
		f.duplicate()
		return false, nil
	}
	if f.OnIngested != nil {
		f.OnIngested()
	}
	return true, nil
}

func (f *Feed) duplicate() {
	if f.OnDuplicate != nil {
		f.OnDuplicate()
	}
}

// Latest devolve as jogadas mais recentes; limit fora de (0, MaxLimit] usa o padrão
func (f *Feed) Latest(ctx context.Context, limit int) ([]store.RecentPlay, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > store.MaxLimit {
		limit = store.MaxLimit
	}
	return f.store.Latest(ctx, limit)
}

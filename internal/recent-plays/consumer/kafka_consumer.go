package consumer

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/recent-plays/feed"
	"github.com/radieske/royalbet-wager-core/internal/recent-plays/store"
	"github.com/radieske/royalbet-wager-core/internal/shared/kafka"
	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Ingestor interface {
	Ingest(ctx context.Context, p store.RecentPlay) (bool, error)
}

// Processor consome bet_settled e grava cada aposta no feed de jogadas recentes
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Feed   Ingestor

	OnConsumed func()
	OnError    func(string) // métricas por fase
}

func (p *Processor) fail(phase string) {
	if p.OnError != nil {
		p.OnError(phase)
	}
}

// Run inicia o loop de consumo até o contexto ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem; mensagens inválidas são descartadas com log
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	var ev events.BetSettled
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		return
	}
	play, err := feed.FromSettled(ev)
	if err != nil {
		p.Log.Warn("invalid bet settled event", zap.String("correlation_id", ev.CorrelationID), zap.Error(err))
		p.fail("decode")
		return
	}

	// nova tentativa limitada para falhas transitórias do banco
	for attempt := 1; attempt <= 3; attempt++ {
		_, err = p.Feed.Ingest(ctx, play)
		if err == nil || ctx.Err() != nil {
			break
		}
		p.Log.Warn("feed ingest failed", zap.String("correlation_id", ev.CorrelationID), zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
	}
	if err != nil {
		p.fail("db")
	}
}

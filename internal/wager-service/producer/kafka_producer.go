package producer

import (
	"context"
	"time"

	"github.com/radieske/royalbet-wager-core/internal/shared/kafka"
	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

// KafkaPublisher publica apostas liquidadas no tópico do feed
type KafkaPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Writer: w}
}

// PublishBetSettled usa o CorrelationID como chave
func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}
	return kafka.PublishJSON(ctx, p.Writer, e.CorrelationID, e)
}

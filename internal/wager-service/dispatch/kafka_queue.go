package dispatch

import (
	"context"

	"github.com/radieske/royalbet-wager-core/internal/shared/kafka"
	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

// KafkaQueue publica pedidos de payout num tópico (retry ou DLQ)
type KafkaQueue struct {
	w *kafka.Writer
}

func NewKafkaQueue(w *kafka.Writer) *KafkaQueue { return &KafkaQueue{w: w} }

func (q *KafkaQueue) Enqueue(ctx context.Context, req events.PayoutRequested) error {
	return kafka.PublishJSON(ctx, q.w, req.PayoutID, req)
}

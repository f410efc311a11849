package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/recent-plays/feed"
	"github.com/radieske/royalbet-wager-core/internal/recent-plays/store"
	"github.com/radieske/royalbet-wager-core/internal/shared/idempotency"
	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

// sliceReader entrega as mensagens e depois bloqueia até o cancelamento
type sliceReader struct {
	msgs []kafka.Message
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func msg(t *testing.T, e events.BetSettled) kafka.Message {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Key: []byte(e.CorrelationID), Value: b}
}

func TestProcessorDeduplicatesRedelivery(t *testing.T) {
	s := store.NewMemory()
	f := feed.New(zap.NewNop(), s, idempotency.NewMemoryGuard())

	ev := events.BetSettled{CorrelationID: "bet-1", Game: "flip", Player: "0xabc", AmountPlayed: "5.00", Payout: "0.00", Ts: time.Now().UTC()}
	reader := &sliceReader{msgs: []kafka.Message{
		msg(t, ev),
		{Value: []byte("not json")},
		msg(t, ev),
	}}

	var consumed int
	var phases []string
	p := &Processor{
		Log:        zap.NewNop(),
		Reader:     reader,
		Feed:       f,
		OnConsumed: func() { consumed++ },
		OnError:    func(phase string) { phases = append(phases, phase) },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run = %v", err)
	}

	got, _ := s.Latest(context.Background(), 10)
	if len(got) != 1 || consumed != 3 {
		t.Fatalf("plays %d, consumed %d", len(got), consumed)
	}
	if len(phases) != 1 || phases[0] != "decode" {
		t.Fatalf("phases = %v", phases)
	}
}

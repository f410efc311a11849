package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/shared/kafka"
	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

// limite de passos do backoff; acima disso o atraso fica constante
const maxBackoffSteps = 10

// MessageReader é o subconjunto do kafka.Reader usado pelo worker
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// RetryWorker consome o tópico de retry, reenvia a transferência com backoff
// e manda para a DLQ depois de MaxAttempts tentativas
type RetryWorker struct {
	Log         *zap.Logger
	Reader      MessageReader
	Sender      PaymentSender
	Requeue     RetryQueue
	DLQ         RetryQueue
	MaxAttempts int
	BaseDelay   time.Duration

	OnSent  func()       // métricas
	OnDLQ   func()       // métricas
	OnError func(string) // métricas por fase
}

// Run inicia o loop de consumo até o contexto ser cancelado
func (w *RetryWorker) Run(ctx context.Context) error {
	for {
		m, err := w.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka read failed", zap.Error(err))
			w.onError("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		var ev events.PayoutRequested
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			w.Log.Warn("invalid payout message", zap.Error(err))
			w.onError("decode")
			continue
		}

		if err := w.Handle(ctx, ev); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Handle faz uma tentativa de envio do pedido
func (w *RetryWorker) Handle(ctx context.Context, ev events.PayoutRequested) error {
	t, err := fromEvent(ev)
	if err != nil {
		w.Log.Error("payout unparseable, sending to dlq", zap.String("payoutId", ev.PayoutID), zap.Error(err))
		return w.deadLetter(ctx, ev, err)
	}

	// backoff linear: BaseDelay × tentativas anteriores
	if delay := w.backoff(ev.Attempt); delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	txRef, err := w.Sender.Send(ctx, t)
	if err == nil {
		w.Log.Info("payout retry sent",
			zap.String("payoutId", ev.PayoutID),
			zap.Int("attempt", ev.Attempt+1),
			zap.String("txRef", txRef),
		)
		if w.OnSent != nil {
			w.OnSent()
		}
		return nil
	}

	w.onError("send")
	next := toEvent(t, ev.Attempt+1, err)
	if next.Attempt >= w.MaxAttempts {
		w.Log.Error("payout exhausted retries",
			zap.String("payoutId", ev.PayoutID),
			zap.String("betId", ev.BetID),
			zap.String("amount", ev.Amount),
			zap.Int("attempts", next.Attempt),
			zap.Error(err),
		)
		return w.deadLetter(ctx, next, err)
	}

	if qerr := w.Requeue.Enqueue(ctx, next); qerr != nil {
		w.Log.Error("payout requeue failed", zap.String("payoutId", ev.PayoutID), zap.Error(qerr))
		w.onError("requeue")
		return qerr
	}
	return err
}

func (w *RetryWorker) deadLetter(ctx context.Context, ev events.PayoutRequested, cause error) error {
	if cause != nil && ev.LastError == "" {
		ev.LastError = cause.Error()
	}
	if err := w.DLQ.Enqueue(ctx, ev); err != nil {
		w.Log.Error("payout dlq publish failed", zap.String("payoutId", ev.PayoutID), zap.Error(err))
		w.onError("dlq")
		return err
	}
	if w.OnDLQ != nil {
		w.OnDLQ()
	}
	return cause
}

func (w *RetryWorker) backoff(attempt int) time.Duration {
	if attempt <= 0 || w.BaseDelay <= 0 {
		return 0
	}
	if attempt > maxBackoffSteps {
		attempt = maxBackoffSteps
	}
	return w.BaseDelay * time.Duration(attempt)
}

func (w *RetryWorker) onError(stage string) {
	if w.OnError != nil {
		w.OnError(stage)
	}
}

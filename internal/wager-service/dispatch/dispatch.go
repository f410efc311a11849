package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/shared/money"
	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

// Papéis de uma transferência de comissão
const (
	RoleReferral = "referral"
	RoleFee      = "fee"
)

// ZeroAddress é tratado como destinatário ausente
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// ErrDispatchFailed indica transferência não concluída e enviada para a fila de retry.
// Nunca desfaz o acerto da aposta.
var ErrDispatchFailed = errors.New("payment dispatch failed")

// Transfer é uma transferência on-chain a executar
type Transfer struct {
	PayoutID string
	BetID    string
	Role     string
	To       string
	Amount   decimal.Decimal
	Asset    string
}

// PaymentSender executa a transferência e devolve a referência da transação
type PaymentSender interface {
	Send(ctx context.Context, t Transfer) (string, error)
}

// RetryQueue recebe transferências que falharam
type RetryQueue interface {
	Enqueue(ctx context.Context, req events.PayoutRequested) error
}

// Payable diz se o endereço é um destinatário válido de comissão
func Payable(address string) bool {
	a := strings.ToLower(strings.TrimSpace(address))
	return a != "" && a != ZeroAddress
}

func toEvent(t Transfer, attempt int, lastErr error) events.PayoutRequested {
	ev := events.PayoutRequested{
		PayoutID: t.PayoutID,
		BetID:    t.BetID,
		Role:     t.Role,
		Address:  t.To,
		Amount:   money.String(t.Amount),
		Asset:    t.Asset,
		Attempt:  attempt,
		Ts:       time.Now().UTC(),
	}
	if lastErr != nil {
		ev.LastError = lastErr.Error()
	}
	return ev
}

func fromEvent(ev events.PayoutRequested) (Transfer, error) {
	amount, err := decimal.NewFromString(ev.Amount)
	if err != nil {
		return Transfer{}, fmt.Errorf("payout %s amount: %w", ev.PayoutID, err)
	}
	return Transfer{
		PayoutID: ev.PayoutID,
		BetID:    ev.BetID,
		Role:     ev.Role,
		To:       ev.Address,
		Amount:   amount,
		Asset:    ev.Asset,
	}, nil
}

// Dispatcher envia as comissões depois do acerto da aposta
type Dispatcher struct {
	log    *zap.Logger
	sender PaymentSender
	retry  RetryQueue
}

func NewDispatcher(log *zap.Logger, sender PaymentSender, retry RetryQueue) *Dispatcher {
	return &Dispatcher{log: log, sender: sender, retry: retry}
}

// Dispatch faz uma tentativa de envio; em caso de falha enfileira para retry e retorna ErrDispatchFailed.
// Destinatário ausente ou valor zero não geram transferência.
func (d *Dispatcher) Dispatch(ctx context.Context, t Transfer) error {
	if !Payable(t.To) || !t.Amount.IsPositive() {
		return nil
	}
	if t.PayoutID == "" {
		t.PayoutID = t.BetID + ":" + t.Role
	}

	txRef, err := d.sender.Send(ctx, t)
	if err == nil {
		d.log.Info("payout sent",
			zap.String("betId", t.BetID),
			zap.String("role", t.Role),
			zap.String("to", t.To),
			zap.String("amount", money.String(t.Amount)),
			zap.String("txRef", txRef),
		)
		return nil
	}

	d.log.Warn("payout failed, queued for retry",
		zap.String("betId", t.BetID),
		zap.String("role", t.Role),
		zap.String("payoutId", t.PayoutID),
		zap.Error(err),
	)
	if qerr := d.retry.Enqueue(ctx, toEvent(t, 1, err)); qerr != nil {
		d.log.Error("payout retry enqueue failed",
			zap.String("payoutId", t.PayoutID),
			zap.String("amount", money.String(t.Amount)),
			zap.Error(qerr),
		)
	}
	return fmt.Errorf("%w: %s to %s: %v", ErrDispatchFailed, t.Role, t.To, err)
}

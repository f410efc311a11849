package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/quote"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/repo"
	"github.com/radieske/royalbet-wager-core/internal/shared/money"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/address"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/ledger"
)

// casas decimais da quantidade do ativo num saque
const assetPlaces = 8

var (
	ErrInvalidAddress = errors.New("invalid destination address")
	ErrProcessor      = errors.New("payment processor unavailable")
)

// Processor é a API do processador usada para abrir depósitos e saques
type Processor interface {
	DepositAddress(ctx context.Context, asset, reference string) (string, error)
	Withdraw(ctx context.Context, reference, asset, address string, amount decimal.Decimal) (string, error)
}

type TransactionStore interface {
	Create(ctx context.Context, t repo.Transaction) error
	MarkFailed(ctx context.Context, id, correlationID string) error
	ListByOwner(ctx context.Context, owner string, limit int) ([]repo.Transaction, error)
}

// Initiator registra depósitos e saques pendentes; o saldo só muda quando a IPN é conciliada
type Initiator struct {
	log       *zap.Logger
	ledger    ledger.Ledger
	txs       TransactionStore
	quotes    quote.PriceQuote
	processor Processor
	addresses address.Validator
	newID     func() string
}

func NewInitiator(log *zap.Logger, l ledger.Ledger, txs TransactionStore, q quote.PriceQuote, p Processor, v address.Validator) *Initiator {
	return &Initiator{log: log, ledger: l, txs: txs, quotes: q, processor: p, addresses: v, newID: uuid.NewString}
}

func normalizeAsset(asset string) string { return strings.ToUpper(strings.TrimSpace(asset)) }

// Deposit pede um endereço de depósito ao processador e grava a cotação do momento
func (i *Initiator) Deposit(ctx context.Context, owner, asset string) (repo.Transaction, error) {
	owner = ledger.NormalizeAddress(owner)
	asset = normalizeAsset(asset)

	price, err := i.quotes.Price(ctx, asset)
	if err != nil {
		return repo.Transaction{}, err
	}

	id := i.newID()
	addr, err := i.processor.DepositAddress(ctx, asset, id)
	if err != nil {
		return repo.Transaction{}, fmt.Errorf("%w: %v", ErrProcessor, err)
	}

	tx := repo.Transaction{
		ID:          id,
		Kind:        repo.KindDeposit,
		Asset:       asset,
		Address:     ledger.NormalizeAddress(addr),
		Owner:       owner,
		QuotedPrice: price,
		Status:      repo.StatusPending,
	}
	if err := i.txs.Create(ctx, tx); err != nil {
		return repo.Transaction{}, err
	}
	i.log.Info("deposit opened", zap.String("tx_id", id), zap.String("owner", owner), zap.String("asset", asset))
	return tx, nil
}

// Withdraw valida o destino, reserva o valor em dólar e pede a transferência do ativo.
// A reserva é efetivada na IPN de sucesso e estornada na de falha.
func (i *Initiator) Withdraw(ctx context.Context, owner, asset, dest string, amount decimal.Decimal) (repo.Transaction, error) {
	owner = ledger.NormalizeAddress(owner)
	asset = normalizeAsset(asset)
	if !amount.IsPositive() {
		return repo.Transaction{}, ledger.ErrInvalidAmount
	}
	if !i.addresses.Valid(dest) {
		return repo.Transaction{}, ErrInvalidAddress
	}

	price, err := i.quotes.Price(ctx, asset)
	if err != nil {
		return repo.Transaction{}, err
	}
	if !price.IsPositive() {
		return repo.Transaction{}, fmt.Errorf("%w: %s", quote.ErrUnsupportedAsset, asset)
	}
	units := amount.DivRound(price, assetPlaces)

	tx := repo.Transaction{
		ID:          i.newID(),
		Kind:        repo.KindWithdrawal,
		Asset:       asset,
		Address:     ledger.NormalizeAddress(dest),
		Owner:       owner,
		QuotedPrice: price,
		Amount:      units,
		Status:      repo.StatusPending,
	}
	ref := ledger.WithdrawalRef(tx.ID)

	// 1) segura o saldo antes de qualquer chamada externa
	if _, err := i.ledger.Reserve(ctx, owner, amount, ref); err != nil {
		return repo.Transaction{}, err
	}

	// 2) registra a transação pendente que a IPN vai conciliar
	if err := i.txs.Create(ctx, tx); err != nil {
		i.release(ctx, ref)
		return repo.Transaction{}, err
	}

	// 3) pede o envio ao processador
	if _, err := i.processor.Withdraw(ctx, tx.ID, asset, tx.Address, units); err != nil {
		if merr := i.txs.MarkFailed(ctx, tx.ID, ""); merr != nil {
			i.log.Error("mark withdrawal failed", zap.String("tx_id", tx.ID), zap.Error(merr))
		}
		i.release(ctx, ref)
		return repo.Transaction{}, fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	i.log.Info("withdrawal requested",
		zap.String("tx_id", tx.ID),
		zap.String("owner", owner),
		zap.String("asset", asset),
		zap.String("amount", money.String(amount)),
		zap.String("units", units.String()))
	return tx, nil
}

func (i *Initiator) release(ctx context.Context, ref string) {
	if _, _, err := i.ledger.Refund(ctx, ref); err != nil {
		i.log.Error("reconciliation alert: withdrawal reservation not released", zap.String("ref", ref), zap.Error(err))
	}
}

func (i *Initiator) History(ctx context.Context, owner string, limit int) ([]repo.Transaction, error) {
	return i.txs.ListByOwner(ctx, ledger.NormalizeAddress(owner), limit)
}

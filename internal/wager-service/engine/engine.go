package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/shared/db"
	"github.com/radieske/royalbet-wager-core/internal/shared/money"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/dispatch"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/game"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/repo"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/rng"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/address"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/ledger"
	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

// Códigos de rejeição devolvidos ao cliente
const (
	ReasonBelowMinimum        = "bet_below_minimum"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonInvalidSelection    = "invalid_selection"
	ReasonInvalidGameType     = "invalid_game_type"
	ReasonInvalidAmount       = "invalid_amount"
	ReasonInvalidAddress      = "invalid_address"
	ReasonAccountNotFound     = "account_not_found"
)

// ErrSettlementFailure indica falha depois da reserva; a reserva foi estornada
var ErrSettlementFailure = errors.New("bet settlement failed")

// RejectError é a rejeição na validação; nenhum saldo foi alterado
type RejectError struct {
	Reason  string
	Message string
	Balance *decimal.Decimal
}

func (e *RejectError) Error() string { return e.Reason + ": " + e.Message }

func reject(reason, msg string, balance *decimal.Decimal) error {
	return &RejectError{Reason: reason, Message: msg, Balance: balance}
}

// Request é uma aposta recebida; Address vem do token autenticado
type Request struct {
	Address     string
	Game        string
	Selection   int
	Stake       decimal.Decimal
	Referral    string
	FeeReceiver string
}

// Outcome é o resultado devolvido ao cliente
type Outcome struct {
	BetID   string
	Win     bool
	Payout  decimal.Decimal
	NetWin  decimal.Decimal
	Draw    int
	Balance decimal.Decimal
	// papéis cujas transferências ficaram na fila de retry
	PendingPayouts []string
}

type BetStore interface {
	Insert(ctx context.Context, b repo.Bet) error
}

type PayoutDispatcher interface {
	Dispatch(ctx context.Context, t dispatch.Transfer) error
}

type FeedPublisher interface {
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
}

// Hooks são callbacks de métricas
type Hooks struct {
	OnSettled        func(gameType string, win bool)
	OnRejected       func(reason string)
	OnRefund         func()
	OnRefundFailed   func()
	OnDispatchFailed func(role string)
}

// Deps reúne as capacidades injetadas no engine
type Deps struct {
	Ledger     ledger.Ledger
	Tx         db.Transactor
	Source     rng.Source
	Calculator *game.Calculator
	Addresses  address.Validator
	Bets       BetStore
	Dispatcher PayoutDispatcher
	Feed       FeedPublisher
	Chain      string
}

// Engine conduz a aposta: validação, reserva, sorteio, acerto e comissões
type Engine struct {
	log   *zap.Logger
	deps  Deps
	hooks Hooks
	newID func() string
}

func New(log *zap.Logger, deps Deps, hooks Hooks) *Engine {
	if deps.Tx == nil {
		deps.Tx = db.NoopTransactor{}
	}
	return &Engine{log: log, deps: deps, hooks: hooks, newID: uuid.NewString}
}

// PlaceBet executa a aposta de ponta a ponta.
// O cancelamento do chamador só é respeitado antes da reserva.
func (e *Engine) PlaceBet(ctx context.Context, req Request) (Outcome, error) {
	req.Address = ledger.NormalizeAddress(req.Address)

	houseCharge, err := e.validate(ctx, req)
	if err != nil {
		var rej *RejectError
		if errors.As(err, &rej) && e.hooks.OnRejected != nil {
			e.hooks.OnRejected(rej.Reason)
		}
		return Outcome{}, err
	}

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	ctx = context.WithoutCancel(ctx)

	betID := e.newID()
	reserved := req.Stake.Add(houseCharge)
	if _, err := e.deps.Ledger.Reserve(ctx, req.Address, reserved, betID); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			bal, _ := e.deps.Ledger.Balance(ctx, req.Address)
			if e.hooks.OnRejected != nil {
				e.hooks.OnRejected(ReasonInsufficientBalance)
			}
			return Outcome{}, reject(ReasonInsufficientBalance, "insufficient balance", &bal)
		}
		return Outcome{}, fmt.Errorf("reserve: %w", err)
	}

	bet, res, balance, err := e.settle(ctx, req, betID)
	if err != nil {
		return e.refund(ctx, req, betID, reserved, err)
	}

	out := Outcome{
		BetID:   betID,
		Win:     res.Win,
		Payout:  res.Payout,
		NetWin:  res.NetWin,
		Draw:    bet.Draw,
		Balance: balance,
	}
	out.PendingPayouts = e.payCommissions(ctx, bet)

	if e.hooks.OnSettled != nil {
		e.hooks.OnSettled(req.Game, res.Win)
	}
	e.publish(ctx, bet)

	e.log.Info("bet settled",
		zap.String("betId", betID),
		zap.String("address", req.Address),
		zap.String("game", req.Game),
		zap.Int("draw", bet.Draw),
		zap.Bool("win", res.Win),
		zap.String("stake", money.String(req.Stake)),
		zap.String("netWin", money.String(res.NetWin)),
	)
	return out, nil
}

func (e *Engine) validate(ctx context.Context, req Request) (decimal.Decimal, error) {
	if e.deps.Addresses != nil {
		if !e.deps.Addresses.Valid(req.Address) {
			return decimal.Zero, reject(ReasonInvalidAddress, "invalid wallet address", nil)
		}
		// endereço zero ou vazio significa "sem destinatário"
		if dispatch.Payable(req.Referral) && !e.deps.Addresses.Valid(req.Referral) {
			return decimal.Zero, reject(ReasonInvalidAddress, "invalid referral address", nil)
		}
		if dispatch.Payable(req.FeeReceiver) && !e.deps.Addresses.Valid(req.FeeReceiver) {
			return decimal.Zero, reject(ReasonInvalidAddress, "invalid fee receiver address", nil)
		}
	}
	if err := game.Validate(req.Game, req.Selection); err != nil {
		if errors.Is(err, game.ErrUnknownGame) {
			return decimal.Zero, reject(ReasonInvalidGameType, "invalid game type", nil)
		}
		return decimal.Zero, reject(ReasonInvalidSelection, err.Error(), nil)
	}
	if !req.Stake.IsPositive() || !req.Stake.Equal(money.Round(req.Stake)) {
		return decimal.Zero, reject(ReasonInvalidAmount, "bet amount must be positive with at most 2 decimals", nil)
	}

	cfg := e.deps.Calculator.Config()
	if req.Stake.LessThan(cfg.MinBet) {
		return decimal.Zero, reject(ReasonBelowMinimum, "bet amount is below the minimum", nil)
	}

	bal, err := e.deps.Ledger.Balance(ctx, req.Address)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return decimal.Zero, reject(ReasonAccountNotFound, "account not found", nil)
		}
		return decimal.Zero, fmt.Errorf("balance: %w", err)
	}
	houseCharge := e.deps.Calculator.HouseCharge(req.Stake)
	if bal.LessThan(req.Stake.Add(houseCharge)) {
		return decimal.Zero, reject(ReasonInsufficientBalance, "insufficient balance", &bal)
	}
	return houseCharge, nil
}

// settle sorteia, calcula e aplica o resultado numa única transação.
// Pânico aqui vira erro para que a reserva seja estornada.
func (e *Engine) settle(ctx context.Context, req Request, betID string) (bet repo.Bet, res game.Result, balance decimal.Decimal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during settlement: %v", r)
		}
	}()

	draw, err := e.deps.Source.Draw(game.DrawBound)
	if err != nil {
		return bet, res, balance, fmt.Errorf("draw: %w", err)
	}

	res, err = e.deps.Calculator.Resolve(req.Game, req.Selection, req.Stake, draw, dispatch.Payable(req.Referral))
	if err != nil {
		return bet, res, balance, fmt.Errorf("resolve: %w", err)
	}

	bet = repo.Bet{
		ID:            betID,
		CorrelationID: betID,
		Address:       req.Address,
		Game:          req.Game,
		Selection:     req.Selection,
		Stake:         req.Stake,
		HouseCharge:   res.HouseCharge,
		Draw:          draw,
		Win:           res.Win,
		Payout:        res.Payout,
		ReferralCut:   res.ReferralCut,
		FeeCut:        res.FeeCut,
		HouseNet:      res.HouseNet(),
		NetWin:        res.NetWin,
		Referral:      req.Referral,
		FeeReceiver:   req.FeeReceiver,
		CreatedAt:     time.Now().UTC(),
	}

	err = e.deps.Tx.Do(ctx, func(ctx context.Context) error {
		if err := e.deps.Bets.Insert(ctx, bet); err != nil {
			return fmt.Errorf("insert bet: %w", err)
		}
		if res.NetWin.IsPositive() {
			if _, err := e.deps.Ledger.Credit(ctx, req.Address, res.NetWin, "win:"+betID, betID); err != nil {
				return fmt.Errorf("credit win: %w", err)
			}
		}
		if _, err := e.deps.Ledger.Commit(ctx, betID); err != nil {
			return fmt.Errorf("commit reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return bet, res, balance, err
	}

	balance, err = e.deps.Ledger.Balance(ctx, req.Address)
	if err != nil {
		// aposta já liquidada; saldo só é informativo aqui
		e.log.Warn("balance after settlement", zap.String("betId", betID), zap.Error(err))
	}
	return bet, res, balance, nil
}

func (e *Engine) refund(ctx context.Context, req Request, betID string, reserved decimal.Decimal, cause error) (Outcome, error) {
	r, bal, err := e.deps.Ledger.Refund(ctx, betID)
	if err != nil {
		e.log.Error("reconciliation alert: refund failed",
			zap.String("betId", betID),
			zap.String("address", req.Address),
			zap.String("reserved", money.String(reserved)),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		if e.hooks.OnRefundFailed != nil {
			e.hooks.OnRefundFailed()
		}
		bal, _ = e.deps.Ledger.Balance(ctx, req.Address)
	} else {
		e.log.Warn("bet refunded after settlement failure",
			zap.String("betId", betID),
			zap.String("address", req.Address),
			zap.String("reserved", money.String(reserved)),
			zap.String("refunded", money.String(r.Amount)),
			zap.Error(cause),
		)
		if e.hooks.OnRefund != nil {
			e.hooks.OnRefund()
		}
	}
	return Outcome{BetID: betID, Balance: bal}, fmt.Errorf("%w: %v", ErrSettlementFailure, cause)
}

// payCommissions roda depois do commit; falhas vão para a fila de retry e não desfazem a aposta
func (e *Engine) payCommissions(ctx context.Context, bet repo.Bet) []string {
	asset := e.deps.Calculator.Config().Asset
	transfers := []dispatch.Transfer{
		{BetID: bet.ID, Role: dispatch.RoleReferral, To: bet.Referral, Amount: bet.ReferralCut, Asset: asset},
		{BetID: bet.ID, Role: dispatch.RoleFee, To: bet.FeeReceiver, Amount: bet.FeeCut, Asset: asset},
	}

	var pending []string
	for _, t := range transfers {
		if err := e.deps.Dispatcher.Dispatch(ctx, t); err != nil {
			pending = append(pending, t.Role)
			if e.hooks.OnDispatchFailed != nil {
				e.hooks.OnDispatchFailed(t.Role)
			}
		}
	}
	return pending
}

func (e *Engine) publish(ctx context.Context, bet repo.Bet) {
	if e.deps.Feed == nil {
		return
	}
	ev := events.BetSettled{
		CorrelationID: bet.CorrelationID,
		Game:          bet.Game,
		Player:        bet.Address,
		Win:           bet.Win,
		AmountPlayed:  money.String(bet.Stake),
		Payout:        money.String(bet.Payout),
		Referral:      bet.Referral,
		Chain:         e.deps.Chain,
		Token:         e.deps.Calculator.Config().Asset,
		Ts:            bet.CreatedAt,
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := e.deps.Feed.PublishBetSettled(pctx, ev); err != nil {
		e.log.Warn("bet_settled publish failed", zap.String("betId", bet.ID), zap.Error(err))
	}
}

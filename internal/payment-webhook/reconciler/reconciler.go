package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/ipn"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/repo"
	"github.com/radieske/royalbet-wager-core/internal/shared/db"
	"github.com/radieske/royalbet-wager-core/internal/shared/idempotency"
	"github.com/radieske/royalbet-wager-core/internal/shared/money"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/ledger"
	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

// escopo do guard de idempotência para ids de IPN
const scopeIPN = "ipn"

// Status devolvidos em Outcome
const (
	StatusCredited  = "credited"
	StatusDebited   = "debited"
	StatusFailed    = "failed"
	StatusPending   = "pending"
	StatusDuplicate = "duplicate"
)

var (
	ErrUnauthorized       = errors.New("ipn not authorized")
	ErrUnknownTransaction = errors.New("no pending transaction for address")
)

// TransactionStore é o subconjunto do repositório usado na conciliação
type TransactionStore interface {
	FindByAddress(ctx context.Context, address, kind string) (repo.Transaction, error)
	FindByCorrelation(ctx context.Context, correlationID string) (repo.Transaction, error)
	Lock(ctx context.Context, id string) (repo.Transaction, error)
	MarkSuccess(ctx context.Context, id, correlationID string, amount decimal.Decimal) error
	MarkFailed(ctx context.Context, id, correlationID string) error
}

// Notifier entrega o aviso de saldo ao cliente; falhas não desfazem a conciliação
type Notifier interface {
	Notify(ctx context.Context, n events.AccountNotification) error
}

// Hooks são callbacks de métricas
type Hooks struct {
	OnApplied   func(kind string)
	OnDuplicate func()
	OnRejected  func(reason string)
	OnAlert     func(kind string)
}

type Config struct {
	Secret     string
	MerchantID string
}

type Deps struct {
	Transactions TransactionStore
	Ledger       ledger.Ledger
	Tx           db.Transactor
	Guard        idempotency.Guard
	Notifier     Notifier
}

// Outcome é o resultado da conciliação de uma IPN
type Outcome struct {
	Duplicate   bool
	Status      string
	Transaction repo.Transaction
	Balance     decimal.Decimal
}

// Reconciler aplica IPNs de depósito e saque ao ledger, no máximo uma vez por IPN
type Reconciler struct {
	log   *zap.Logger
	cfg   Config
	deps  Deps
	hooks Hooks

	mu    sync.Mutex
	locks map[string]*txLock
	now   func() time.Time
}

// txLock é removido do mapa quando o último interessado libera
type txLock struct {
	sync.Mutex
	refs int
}

func New(log *zap.Logger, cfg Config, deps Deps, hooks Hooks) *Reconciler {
	if deps.Tx == nil {
		deps.Tx = db.NoopTransactor{}
	}
	return &Reconciler{
		log:   log,
		cfg:   cfg,
		deps:  deps,
		hooks: hooks,
		locks: make(map[string]*txLock),
		now:   time.Now,
	}
}

// lock serializa a conciliação de uma mesma transação dentro do processo
func (r *Reconciler) lock(id string) func() {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &txLock{}
		r.locks[id] = l
	}
	l.refs++
	r.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		r.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}

// pendingLocks é usado nos testes
func (r *Reconciler) pendingLocks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

func (r *Reconciler) rejected(reason string) {
	if r.hooks.OnRejected != nil {
		r.hooks.OnRejected(reason)
	}
}

func (r *Reconciler) duplicate(tx repo.Transaction) Outcome {
	if r.hooks.OnDuplicate != nil {
		r.hooks.OnDuplicate()
	}
	return Outcome{Duplicate: true, Status: StatusDuplicate, Transaction: tx}
}

// Handle verifica, interpreta e aplica uma IPN.
// body é o corpo bruto recebido; signature é o valor do header HMAC.
func (r *Reconciler) Handle(ctx context.Context, body []byte, signature string) (Outcome, error) {
	if !ipn.Verify(body, signature, r.cfg.Secret) {
		r.rejected("bad_hmac")
		return Outcome{}, ErrUnauthorized
	}

	n, err := ipn.Parse(body)
	if err != nil {
		r.rejected("malformed")
		return Outcome{}, err
	}
	if n.Merchant != r.cfg.MerchantID {
		r.rejected("bad_merchant")
		return Outcome{}, ErrUnauthorized
	}

	tx, err := r.deps.Transactions.FindByAddress(ctx, n.Address, n.Type)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			r.rejected("unknown_transaction")
			return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownTransaction, n.Address)
		}
		return Outcome{}, err
	}
	if tx.Status != repo.StatusPending {
		return r.duplicate(tx), nil
	}

	// status intermediário: só confirma o recebimento
	if !n.Complete() && !n.Failed() {
		r.log.Debug("ipn pending", zap.String("ipn_id", n.ID), zap.Int("status", n.Status))
		return Outcome{Status: StatusPending, Transaction: tx}, nil
	}

	admitted, err := r.deps.Guard.Admit(ctx, scopeIPN, n.ID)
	if err != nil {
		return Outcome{}, err
	}
	if !admitted {
		// o id já passou pelo guard; o banco diz se chegou a ser aplicado
		prev, err := r.deps.Transactions.FindByCorrelation(ctx, n.ID)
		switch {
		case err == nil:
			return r.duplicate(prev), nil
		case !errors.Is(err, repo.ErrNotFound):
			return Outcome{}, err
		}
		// admitido antes mas sem commit (queda no meio); reaplica sob o lock da transação
		r.log.Warn("ipn admitted without settlement, reapplying", zap.String("ipn_id", n.ID), zap.String("tx_id", tx.ID))
	}

	out, err := r.apply(ctx, n, tx)
	if err != nil {
		if rerr := r.deps.Guard.Release(ctx, scopeIPN, n.ID); rerr != nil {
			r.log.Warn("idempotency release failed", zap.String("ipn_id", n.ID), zap.Error(rerr))
		}
		return Outcome{}, err
	}
	if out.Duplicate {
		return out, nil
	}

	r.notify(ctx, n, out)
	return out, nil
}

// amount converte a IPN de depósito para o saldo interno: quantidade × cotação, ou o valor fiat do processador
func amount(n ipn.Notification, tx repo.Transaction) (decimal.Decimal, error) {
	var v decimal.Decimal
	switch {
	case n.Amount != nil && tx.QuotedPrice.IsPositive():
		v = money.Round(n.Amount.Mul(tx.QuotedPrice))
	case n.FiatAmount != nil:
		v = money.Round(*n.FiatAmount)
	default:
		return decimal.Zero, fmt.Errorf("%w: no amount to convert", ipn.ErrMalformed)
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", ipn.ErrMalformed)
	}
	return v, nil
}

func (r *Reconciler) apply(ctx context.Context, n ipn.Notification, tx repo.Transaction) (Outcome, error) {
	var value decimal.Decimal
	if n.Complete() && tx.Kind == repo.KindDeposit {
		var err error
		if value, err = amount(n, tx); err != nil {
			r.rejected("malformed")
			return Outcome{}, err
		}
	}

	unlock := r.lock(tx.ID)
	defer unlock()

	out := Outcome{}
	err := r.deps.Tx.Do(ctx, func(ctx context.Context) error {
		cur, err := r.deps.Transactions.Lock(ctx, tx.ID)
		if err != nil {
			return err
		}
		if cur.Status != repo.StatusPending {
			out = Outcome{Duplicate: true, Status: StatusDuplicate, Transaction: cur}
			return nil
		}

		var bal decimal.Decimal
		switch {
		case n.Failed() && cur.Kind == repo.KindWithdrawal:
			// saque recusado: devolve o valor reservado
			if _, bal, err = r.deps.Ledger.Refund(ctx, ledger.WithdrawalRef(cur.ID)); err != nil {
				return fmt.Errorf("refund withdrawal: %w", err)
			}
			out.Status = StatusFailed
		case n.Failed():
			out.Status = StatusFailed
		case cur.Kind == repo.KindDeposit:
			if _, err := r.deps.Ledger.GetOrCreate(ctx, cur.Owner); err != nil {
				return err
			}
			if bal, err = r.deps.Ledger.Credit(ctx, cur.Owner, value, "deposit:"+n.ID, n.ID); err != nil {
				return err
			}
			out.Status = StatusCredited
		case cur.Kind == repo.KindWithdrawal:
			// o débito já foi feito na reserva; aqui só é efetivado
			res, err := r.deps.Ledger.Commit(ctx, ledger.WithdrawalRef(cur.ID))
			if err != nil {
				return fmt.Errorf("commit withdrawal: %w", err)
			}
			value = res.Amount
			if bal, err = r.deps.Ledger.Balance(ctx, cur.Owner); err != nil {
				return err
			}
			out.Status = StatusDebited
		default:
			return fmt.Errorf("unknown transaction kind %q", cur.Kind)
		}

		now := r.now().UTC()
		if out.Status == StatusFailed {
			if err := r.deps.Transactions.MarkFailed(ctx, cur.ID, n.ID); err != nil {
				return err
			}
			cur.Status = repo.StatusFailed
		} else {
			if err := r.deps.Transactions.MarkSuccess(ctx, cur.ID, n.ID, value); err != nil {
				return err
			}
			cur.Status = repo.StatusSuccess
			cur.SettledAmount = value
		}
		cur.CorrelationID = n.ID
		cur.SettledAt = &now
		out.Transaction = cur
		out.Balance = bal
		return nil
	})
	if err != nil {
		if tx.Kind == repo.KindWithdrawal && (errors.Is(err, ledger.ErrNotFound) || errors.Is(err, ledger.ErrReservationClosed)) {
			r.log.Error("reconciliation alert: withdrawal reservation unavailable",
				zap.String("ipn_id", n.ID),
				zap.String("tx_id", tx.ID),
				zap.String("owner", tx.Owner),
				zap.Int("status", n.Status),
				zap.Error(err))
			if r.hooks.OnAlert != nil {
				r.hooks.OnAlert(tx.Kind)
			}
		}
		return Outcome{}, err
	}

	if out.Duplicate {
		return r.duplicate(out.Transaction), nil
	}
	if r.hooks.OnApplied != nil {
		r.hooks.OnApplied(tx.Kind)
	}
	r.log.Info("ipn applied",
		zap.String("ipn_id", n.ID),
		zap.String("tx_id", tx.ID),
		zap.String("kind", tx.Kind),
		zap.String("status", out.Status),
		zap.String("amount", money.String(value)))
	return out, nil
}

func (r *Reconciler) notify(ctx context.Context, n ipn.Notification, out Outcome) {
	if r.deps.Notifier == nil {
		return
	}
	msg := events.AccountNotification{
		Address: out.Transaction.Owner,
		Type:    out.Transaction.Kind,
		Status:  out.Status,
		TxID:    out.Transaction.ID,
		Ts:      r.now().UTC(),
	}
	if out.Status != StatusFailed {
		msg.Amount = money.String(out.Transaction.SettledAmount)
	}
	// depósito recusado não mexe no saldo; saque recusado devolve a reserva
	if out.Status != StatusFailed || out.Transaction.Kind == repo.KindWithdrawal {
		msg.Balance = money.String(out.Balance)
	}
	if err := r.deps.Notifier.Notify(ctx, msg); err != nil {
		r.log.Warn("account notification failed", zap.String("ipn_id", n.ID), zap.Error(err))
	}
}

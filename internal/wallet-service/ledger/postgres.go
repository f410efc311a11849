package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/royalbet-wager-core/internal/shared/db"
)

const (
	tableAccounts     = "accounts"
	tableReservations = "wallet_reservations"
	tableLedger       = "wallet_ledger"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres implementa o Ledger em banco.
// Cada operação roda em transação própria ou participa da transação do contexto.
type Postgres struct {
	db *sql.DB
	tx db.Transactor
}

func NewPostgres(conn *sql.DB, tx db.Transactor) *Postgres {
	return &Postgres{db: conn, tx: tx}
}

func (p *Postgres) exec(ctx context.Context, q sq.Sqlizer) error {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = db.Conn(ctx, p.db).ExecContext(ctx, sqlStr, args...)
	return err
}

func (p *Postgres) queryRow(ctx context.Context, q sq.Sqlizer) (*sql.Row, error) {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return db.Conn(ctx, p.db).QueryRowContext(ctx, sqlStr, args...), nil
}

// lockAccount lê o saldo com lock pessimista na linha da conta
func (p *Postgres) lockAccount(ctx context.Context, address string) (decimal.Decimal, error) {
	row, err := p.queryRow(ctx, psql.Select("balance").From(tableAccounts).
		Where(sq.Eq{"address": address}).Suffix("FOR UPDATE"))
	if err != nil {
		return decimal.Zero, err
	}
	var bal decimal.Decimal
	if err := row.Scan(&bal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, err
	}
	return bal, nil
}

// setBalance grava o novo saldo e a linha correspondente no ledger
func (p *Postgres) setBalance(ctx context.Context, address string, bal decimal.Decimal, e Entry) error {
	if err := p.exec(ctx, psql.Update(tableAccounts).
		Set("balance", bal).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"address": address})); err != nil {
		return err
	}
	return p.appendEntry(ctx, e)
}

func (p *Postgres) appendEntry(ctx context.Context, e Entry) error {
	return p.exec(ctx, psql.Insert(tableLedger).
		Columns("address", "operation_type", "amount", "balance_after", "description", "external_ref").
		Values(e.Address, e.Operation, e.Amount, e.BalanceAfter, e.Reason, e.Ref))
}

// GetOrCreate retorna a conta, criando com saldo zero se não existir
func (p *Postgres) GetOrCreate(ctx context.Context, address string) (Account, error) {
	address = NormalizeAddress(address)
	if err := p.exec(ctx, psql.Insert(tableAccounts).
		Columns("address", "balance", "version").
		Values(address, decimal.Zero, 1).
		Suffix("ON CONFLICT (address) DO NOTHING")); err != nil {
		return Account{}, err
	}
	return p.Account(ctx, address)
}

func (p *Postgres) Account(ctx context.Context, address string) (Account, error) {
	address = NormalizeAddress(address)
	row, err := p.queryRow(ctx, psql.Select("address", "display_name", "balance", "version", "created_at").
		From(tableAccounts).Where(sq.Eq{"address": address}))
	if err != nil {
		return Account{}, err
	}

	var a Account
	var name sql.NullString
	if err := row.Scan(&a.Address, &name, &a.Balance, &a.Version, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	if name.Valid {
		a.DisplayName = &name.String
	}
	return a, nil
}

func (p *Postgres) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	a, err := p.Account(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

func (p *Postgres) SetDisplayName(ctx context.Context, address, name string) (Account, error) {
	address = NormalizeAddress(address)
	err := p.exec(ctx, psql.Update(tableAccounts).
		Set("display_name", name).
		Where(sq.Eq{"address": address}))
	if err != nil {
		// violação da constraint UNIQUE de display_name
		if strings.Contains(err.Error(), "accounts_display_name_key") {
			return Account{}, ErrDisplayNameTaken
		}
		return Account{}, err
	}
	return p.Account(ctx, address)
}

// Reserve cria uma reserva PENDING e debita o saldo
// Idempotente por external_ref
func (p *Postgres) Reserve(ctx context.Context, address string, amount decimal.Decimal, ref string) (Reservation, error) {
	if !amount.IsPositive() {
		return Reservation{}, ErrInvalidAmount
	}
	address = NormalizeAddress(address)

	var res Reservation
	err := p.tx.Do(ctx, func(ctx context.Context) error {
		bal, err := p.lockAccount(ctx, address)
		if err != nil {
			return err
		}

		existing, err := p.reservation(ctx, ref, false)
		if err == nil {
			res = existing
			return nil
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		if bal.LessThan(amount) {
			return ErrInsufficientFunds
		}

		res = Reservation{ID: uuid.NewString(), Address: address, Ref: ref, Amount: amount, Status: StatusPending, CreatedAt: time.Now().UTC()}
		if err := p.exec(ctx, psql.Insert(tableReservations).
			Columns("id", "address", "external_ref", "amount", "status", "created_at").
			Values(res.ID, address, ref, amount, StatusPending, res.CreatedAt)); err != nil {
			return err
		}

		bal = bal.Sub(amount)
		return p.setBalance(ctx, address, bal, Entry{
			Address: address, Operation: OpReserve, Amount: amount, BalanceAfter: bal, Reason: "reserve:" + ref, Ref: ref,
		})
	})
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

func (p *Postgres) reservation(ctx context.Context, ref string, forUpdate bool) (Reservation, error) {
	q := psql.Select(reservationCols...).
		From(tableReservations).Where(sq.Eq{"external_ref": ref})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	row, err := p.queryRow(ctx, q)
	if err != nil {
		return Reservation{}, err
	}

	r, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reservation{}, ErrNotFound
		}
		return Reservation{}, err
	}
	return r, nil
}

var reservationCols = []string{"id", "address", "external_ref", "amount", "status", "created_at"}

func scanReservation(s interface{ Scan(...any) error }) (Reservation, error) {
	var r Reservation
	err := s.Scan(&r.ID, &r.Address, &r.Ref, &r.Amount, &r.Status, &r.CreatedAt)
	return r, err
}

// ListStale lista reservas PENDING criadas antes de before, mais antigas primeiro
func (p *Postgres) ListStale(ctx context.Context, before time.Time, limit int) ([]Reservation, error) {
	sqlStr, args, err := psql.Select(reservationCols...).
		From(tableReservations).
		Where(sq.Eq{"status": StatusPending}).
		Where(sq.Lt{"created_at": before}).
		OrderBy("created_at").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.Conn(ctx, p.db).QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) setReservationStatus(ctx context.Context, id, status string) error {
	return p.exec(ctx, psql.Update(tableReservations).
		Set("status", status).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}))
}

// Commit efetiva a reserva; idempotente se já estiver COMMITTED
func (p *Postgres) Commit(ctx context.Context, ref string) (Reservation, error) {
	var r Reservation
	err := p.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		r, err = p.reservation(ctx, ref, true)
		if err != nil {
			return err
		}
		switch r.Status {
		case StatusCommitted:
			return nil
		case StatusRefunded:
			return ErrReservationClosed
		}

		bal, err := p.lockAccount(ctx, r.Address)
		if err != nil {
			return err
		}
		if err := p.setReservationStatus(ctx, r.ID, StatusCommitted); err != nil {
			return err
		}
		r.Status = StatusCommitted
		return p.appendEntry(ctx, Entry{
			Address: r.Address, Operation: OpCommit, Amount: r.Amount, BalanceAfter: bal, Reason: "commit:" + ref, Ref: ref,
		})
	})
	return r, err
}

// Refund devolve o saldo de uma reserva PENDING; idempotente se já estiver REFUNDED
func (p *Postgres) Refund(ctx context.Context, ref string) (Reservation, decimal.Decimal, error) {
	var (
		r   Reservation
		bal decimal.Decimal
	)
	err := p.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		r, err = p.reservation(ctx, ref, true)
		if err != nil {
			return err
		}
		bal, err = p.lockAccount(ctx, r.Address)
		if err != nil {
			return err
		}

		switch r.Status {
		case StatusRefunded:
			return nil
		case StatusCommitted:
			return ErrReservationClosed
		}

		bal = bal.Add(r.Amount)
		if err := p.setReservationStatus(ctx, r.ID, StatusRefunded); err != nil {
			return err
		}
		r.Status = StatusRefunded
		return p.setBalance(ctx, r.Address, bal, Entry{
			Address: r.Address, Operation: OpRefund, Amount: r.Amount, BalanceAfter: bal, Reason: "refund:" + ref, Ref: ref,
		})
	})
	return r, bal, err
}

// Credit incrementa o saldo e registra a operação no ledger
func (p *Postgres) Credit(ctx context.Context, address string, amount decimal.Decimal, reason, ref string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	address = NormalizeAddress(address)

	var bal decimal.Decimal
	err := p.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		if bal, err = p.lockAccount(ctx, address); err != nil {
			return err
		}
		bal = bal.Add(amount)
		return p.setBalance(ctx, address, bal, Entry{
			Address: address, Operation: OpCredit, Amount: amount, BalanceAfter: bal, Reason: reason, Ref: ref,
		})
	})
	if err != nil {
		return decimal.Zero, err
	}
	return bal, nil
}

// Debit decrementa o saldo; falha sem alterar nada se o saldo for insuficiente
func (p *Postgres) Debit(ctx context.Context, address string, amount decimal.Decimal, reason, ref string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	address = NormalizeAddress(address)

	var bal decimal.Decimal
	err := p.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		if bal, err = p.lockAccount(ctx, address); err != nil {
			return err
		}
		if bal.LessThan(amount) {
			return ErrInsufficientFunds
		}
		bal = bal.Sub(amount)
		return p.setBalance(ctx, address, bal, Entry{
			Address: address, Operation: OpDebit, Amount: amount, BalanceAfter: bal, Reason: reason, Ref: ref,
		})
	})
	if err != nil {
		return decimal.Zero, err
	}
	return bal, nil
}

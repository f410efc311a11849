package repo

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/radieske/royalbet-wager-core/internal/shared/db"
)

const tableTx = "pending_transactions"

var (
	psql   = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	txCols = []string{
		"id", "kind", "asset", "address", "owner", "quoted_price", "amount", "status",
		"correlation_id", "settled_amount", "created_at", "settled_at",
	}
)

// row é o formato lido via sqlx
type row struct {
	ID            string          `db:"id"`
	Kind          string          `db:"kind"`
	Asset         string          `db:"asset"`
	Address       string          `db:"address"`
	Owner         string          `db:"owner"`
	QuotedPrice   decimal.Decimal `db:"quoted_price"`
	Amount        decimal.Decimal `db:"amount"`
	Status        string          `db:"status"`
	CorrelationID string          `db:"correlation_id"`
	SettledAmount decimal.Decimal `db:"settled_amount"`
	CreatedAt     sql.NullTime    `db:"created_at"`
	SettledAt     sql.NullTime    `db:"settled_at"`
}

func (r row) model() Transaction {
	t := Transaction{
		ID: r.ID, Kind: r.Kind, Asset: r.Asset, Address: r.Address, Owner: r.Owner,
		QuotedPrice: r.QuotedPrice, Amount: r.Amount, Status: r.Status,
		CorrelationID: r.CorrelationID, SettledAmount: r.SettledAmount, CreatedAt: r.CreatedAt.Time,
	}
	if r.SettledAt.Valid {
		at := r.SettledAt.Time
		t.SettledAt = &at
	}
	return t
}

// Postgres persiste transações pendentes.
// Escritas e Lock usam a transação do contexto; listagens usam sqlx direto no pool.
type Postgres struct {
	db *sql.DB
	x  *sqlx.DB
}

func NewPostgres(conn *sql.DB) *Postgres {
	return &Postgres{db: conn, x: sqlx.NewDb(conn, "postgres")}
}

func (p *Postgres) Create(ctx context.Context, t Transaction) error {
	sqlStr, args, err := psql.Insert(tableTx).
		Columns("id", "kind", "asset", "address", "owner", "quoted_price", "amount", "status").
		Values(t.ID, t.Kind, t.Asset, t.Address, t.Owner, t.QuotedPrice, t.Amount, StatusPending).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.Conn(ctx, p.db).ExecContext(ctx, sqlStr, args...)
	return err
}

func (p *Postgres) getOne(ctx context.Context, q sq.SelectBuilder) (Transaction, error) {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Transaction{}, err
	}
	rows, err := db.Conn(ctx, p.db).QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Transaction{}, err
		}
		return Transaction{}, ErrNotFound
	}
	var r row
	if err := sqlx.StructScan(rows, &r); err != nil {
		return Transaction{}, err
	}
	return r.model(), nil
}

// FindByAddress devolve a transação mais recente do endereço, preferindo a pendente
func (p *Postgres) FindByAddress(ctx context.Context, address, kind string) (Transaction, error) {
	return p.getOne(ctx, psql.Select(txCols...).From(tableTx).
		Where(sq.Eq{"address": address, "kind": kind}).
		OrderBy("(status = 'pending') DESC", "created_at DESC").
		Limit(1))
}

// FindByCorrelation devolve a transação liquidada pela IPN correlationID
func (p *Postgres) FindByCorrelation(ctx context.Context, correlationID string) (Transaction, error) {
	if correlationID == "" {
		return Transaction{}, ErrNotFound
	}
	return p.getOne(ctx, psql.Select(txCols...).From(tableTx).
		Where(sq.Eq{"correlation_id": correlationID}).
		Limit(1))
}

// Lock relê a transação com lock pessimista
func (p *Postgres) Lock(ctx context.Context, id string) (Transaction, error) {
	return p.getOne(ctx, psql.Select(txCols...).From(tableTx).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE"))
}

func (p *Postgres) settle(ctx context.Context, id, status, correlationID string, amount decimal.Decimal) error {
	sqlStr, args, err := psql.Update(tableTx).
		Set("status", status).
		Set("correlation_id", correlationID).
		Set("settled_amount", amount).
		Set("settled_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id, "status": StatusPending}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := db.Conn(ctx, p.db).ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotPending
	}
	return nil
}

func (p *Postgres) MarkSuccess(ctx context.Context, id, correlationID string, amount decimal.Decimal) error {
	return p.settle(ctx, id, StatusSuccess, correlationID, amount)
}

func (p *Postgres) MarkFailed(ctx context.Context, id, correlationID string) error {
	return p.settle(ctx, id, StatusFailed, correlationID, decimal.Zero)
}

// ListByOwner retorna as transações de uma conta, mais recentes primeiro
func (p *Postgres) ListByOwner(ctx context.Context, owner string, limit int) ([]Transaction, error) {
	sqlStr, args, err := psql.Select(txCols...).From(tableTx).
		Where(sq.Eq{"owner": owner}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []row
	if err := p.x.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

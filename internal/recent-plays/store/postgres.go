package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(conn *sql.DB) *Postgres {
	return &Postgres{db: sqlx.NewDb(conn, "postgres")}
}

func (p *Postgres) Insert(ctx context.Context, r RecentPlay) (bool, error) {
	q := psql.Insert("recent_plays").
		Columns("correlation_id", "game", "player", "win", "amount_played", "payout", "referral", "chain", "token").
		Values(r.CorrelationID, r.Game, r.Player, r.Win, r.AmountPlayed, r.Payout, r.Referral, r.Chain, r.Token).
		Suffix("ON CONFLICT (correlation_id) DO NOTHING")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return false, err
	}
	res, err := p.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *Postgres) Latest(ctx context.Context, limit int) ([]RecentPlay, error) {
	sqlStr, args, err := psql.Select("correlation_id", "game", "player", "win", "amount_played", "payout",
		"referral", "chain", "token", "created_at").
		From("recent_plays").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	var out []RecentPlay
	if err := p.db.SelectContext(ctx, &out, sqlStr, args...); err != nil {
		return nil, err
	}
	return out, nil
}

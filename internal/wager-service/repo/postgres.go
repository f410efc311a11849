package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/radieske/royalbet-wager-core/internal/shared/db"
)

const tableBets = "bets"

var (
	psql    = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	betCols = []string{
		"id", "correlation_id", "address", "game", "selection", "stake", "house_charge", "draw", "win",
		"payout", "referral_cut", "fee_cut", "house_net", "net_win", "referral", "fee_receiver", "created_at",
	}
)

// Postgres persiste apostas; Insert participa da transação do contexto (trm)
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(conn *sql.DB) *Postgres { return &Postgres{db: conn} }

// Insert grava a aposta liquidada
func (p *Postgres) Insert(ctx context.Context, b Bet) error {
	sqlStr, args, err := psql.Insert(tableBets).
		Columns(betCols[:16]...).
		Values(b.ID, b.CorrelationID, b.Address, b.Game, b.Selection, b.Stake, b.HouseCharge, b.Draw, b.Win,
			b.Payout, b.ReferralCut, b.FeeCut, b.HouseNet, b.NetWin, b.Referral, b.FeeReceiver).
		ToSql()
	if err != nil {
		return err
	}
	if _, err = db.Conn(ctx, p.db).ExecContext(ctx, sqlStr, args...); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func scanBet(s interface{ Scan(...any) error }) (Bet, error) {
	var b Bet
	err := s.Scan(&b.ID, &b.CorrelationID, &b.Address, &b.Game, &b.Selection, &b.Stake, &b.HouseCharge, &b.Draw, &b.Win,
		&b.Payout, &b.ReferralCut, &b.FeeCut, &b.HouseNet, &b.NetWin, &b.Referral, &b.FeeReceiver, &b.CreatedAt)
	return b, err
}

// Get retorna uma aposta pelo id
func (p *Postgres) Get(ctx context.Context, id string) (Bet, error) {
	sqlStr, args, err := psql.Select(betCols...).From(tableBets).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Bet{}, err
	}
	b, err := scanBet(db.Conn(ctx, p.db).QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Bet{}, ErrNotFound
	}
	return b, err
}

// ListByAddress retorna as apostas mais recentes de um endereço
func (p *Postgres) ListByAddress(ctx context.Context, address string, limit int) ([]Bet, error) {
	sqlStr, args, err := psql.Select(betCols...).From(tableBets).
		Where(sq.Eq{"address": address}).
		OrderBy("created_at DESC").
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

	var out []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

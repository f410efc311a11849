package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

func ConnectPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// Migrate aplica as migrations embutidas no binário
func Migrate(dsn string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Transactor executa fn dentro de uma transação propagada via contexto.
// Chamadas aninhadas reaproveitam a transação externa.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// NewTxManager cria o gerenciador de transações sobre database/sql
func NewTxManager(db *sql.DB) (*manager.Manager, error) {
	m, err := manager.New(trmsql.NewDefaultFactory(db))
	if err != nil {
		return nil, fmt.Errorf("tx manager: %w", err)
	}
	return m, nil
}

// Conn retorna a transação corrente do contexto ou o próprio *sql.DB
func Conn(ctx context.Context, db *sql.DB) trmsql.Tr {
	return trmsql.DefaultCtxGetter.DefaultTrOrDB(ctx, db)
}

// NoopTransactor apenas executa fn; usado com stores em memória, que já serializam por conta própria
type NoopTransactor struct{}

func (NoopTransactor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

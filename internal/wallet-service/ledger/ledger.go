package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de operação gravados no ledger
const (
	OpReserve = "RESERVE"
	OpCommit  = "COMMIT"
	OpRefund  = "REFUND"
	OpCredit  = "CREDIT"
	OpDebit   = "DEBIT"
)

// Status de uma reserva
const (
	StatusPending   = "PENDING"
	StatusCommitted = "COMMITTED"
	StatusRefunded  = "REFUNDED"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("reservation not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrReservationClosed = errors.New("reservation already committed")
	ErrDisplayNameTaken  = errors.New("display name already taken")
)

// Account é a conta identificada pelo endereço da carteira (sempre em minúsculas)
type Account struct {
	Address     string          `json:"address"`
	DisplayName *string         `json:"displayName,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Reservation é o token devolvido por Reserve; Ref é a chave externa (betID ou WithdrawalRef)
type Reservation struct {
	ID        string
	Address   string
	Ref       string
	Amount    decimal.Decimal
	Status    string
	CreatedAt time.Time
}

// prefixo das reservas de saque; ficam PENDING até a IPN do processador
const withdrawalPrefix = "withdrawal:"

// WithdrawalRef é a chave da reserva que segura o valor de um saque
func WithdrawalRef(txID string) string { return withdrawalPrefix + txID }

// IsWithdrawalRef diz se a reserva pertence a um saque
func IsWithdrawalRef(ref string) bool { return strings.HasPrefix(ref, withdrawalPrefix) }

// Entry é uma linha do ledger de auditoria
type Entry struct {
	Address      string
	Operation    string
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Reason       string
	Ref          string
	CreatedAt    time.Time
}

// Ledger é a autoridade sobre o saldo das contas.
// Todas as mutações são linearizáveis por conta.
type Ledger interface {
	GetOrCreate(ctx context.Context, address string) (Account, error)
	Account(ctx context.Context, address string) (Account, error)
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
	SetDisplayName(ctx context.Context, address, name string) (Account, error)

	Reserve(ctx context.Context, address string, amount decimal.Decimal, ref string) (Reservation, error)
	Commit(ctx context.Context, ref string) (Reservation, error)
	Refund(ctx context.Context, ref string) (Reservation, decimal.Decimal, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]Reservation, error)
	Credit(ctx context.Context, address string, amount decimal.Decimal, reason, ref string) (decimal.Decimal, error)
	Debit(ctx context.Context, address string, amount decimal.Decimal, reason, ref string) (decimal.Decimal, error)
}

// NormalizeAddress padroniza o endereço usado como chave da conta
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

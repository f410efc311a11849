package repo

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de transação
const (
	KindDeposit    = "deposit"
	KindWithdrawal = "withdrawal"
)

// Status de uma transação pendente; success e failed são terminais
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	ErrNotFound   = errors.New("transaction not found")
	ErrNotPending = errors.New("transaction already settled")
)

// Transaction é um depósito ou saque aguardando confirmação do processador
type Transaction struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Asset         string          `json:"asset"`
	Address       string          `json:"address"` // endereço de depósito ou destino do saque
	Owner         string          `json:"owner"`
	QuotedPrice   decimal.Decimal `json:"quotedPrice"`
	Amount        decimal.Decimal `json:"amount"` // quantidade do ativo pedida no saque
	Status        string          `json:"status"`
	CorrelationID string          `json:"correlationId,omitempty"`
	SettledAmount decimal.Decimal `json:"settledAmount"`
	CreatedAt     time.Time       `json:"createdAt"`
	SettledAt     *time.Time      `json:"settledAt,omitempty"`
}

package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Memory guarda transações em memória (testes e modo local)
type Memory struct {
	mu  sync.Mutex
	txs map[string]*Transaction
	seq int64
}

func NewMemory() *Memory {
	return &Memory{txs: make(map[string]*Transaction)}
}

func (m *Memory) Create(_ context.Context, t Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.Status = StatusPending
	if t.CreatedAt.IsZero() {
		// seq garante ordem estável quando o relógio não avança
		t.CreatedAt = time.Now().UTC().Add(time.Duration(m.seq))
	}
	m.txs[t.ID] = &t
	return nil
}

func (m *Memory) FindByAddress(_ context.Context, address, kind string) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *Transaction
	for _, t := range m.txs {
		if t.Address != address || t.Kind != kind {
			continue
		}
		if best == nil {
			best = t
			continue
		}
		bp, tp := best.Status == StatusPending, t.Status == StatusPending
		if (tp && !bp) || (tp == bp && t.CreatedAt.After(best.CreatedAt)) {
			best = t
		}
	}
	if best == nil {
		return Transaction{}, ErrNotFound
	}
	return *best, nil
}

// FindByCorrelation devolve a transação liquidada pela IPN correlationID
func (m *Memory) FindByCorrelation(_ context.Context, correlationID string) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if correlationID != "" && t.CorrelationID == correlationID {
			return *t, nil
		}
	}
	return Transaction{}, ErrNotFound
}

func (m *Memory) Lock(_ context.Context, id string) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return *t, nil
}

func (m *Memory) settle(id, status, correlationID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status != StatusPending {
		return ErrNotPending
	}
	now := time.Now().UTC()
	t.Status = status
	t.CorrelationID = correlationID
	t.SettledAmount = amount
	t.SettledAt = &now
	return nil
}

func (m *Memory) MarkSuccess(_ context.Context, id, correlationID string, amount decimal.Decimal) error {
	return m.settle(id, StatusSuccess, correlationID, amount)
}

func (m *Memory) MarkFailed(_ context.Context, id, correlationID string) error {
	return m.settle(id, StatusFailed, correlationID, decimal.Zero)
}

func (m *Memory) ListByOwner(_ context.Context, owner string, limit int) ([]Transaction, error) {
	m.mu.Lock()
	var out []Transaction
	for _, t := range m.txs {
		if t.Owner == owner {
			out = append(out, *t)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

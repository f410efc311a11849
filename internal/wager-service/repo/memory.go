package repo

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory guarda apostas em memória (testes e modo local)
type Memory struct {
	mu   sync.RWMutex
	bets map[string]Bet
	refs map[string]string
}

func NewMemory() *Memory {
	return &Memory{bets: make(map[string]Bet), refs: make(map[string]string)}
}

func (m *Memory) Insert(_ context.Context, b Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bets[b.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := m.refs[b.CorrelationID]; ok {
		return ErrDuplicate
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	m.bets[b.ID] = b
	m.refs[b.CorrelationID] = b.ID
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bets[id]
	if !ok {
		return Bet{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) ListByAddress(_ context.Context, address string, limit int) ([]Bet, error) {
	m.mu.RLock()
	var out []Bet
	for _, b := range m.bets {
		if b.Address == address {
			out = append(out, b)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count retorna o total de apostas gravadas
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bets)
}

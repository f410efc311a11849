package store

import (
	"context"
	"sync"
	"time"
)

// Memory mantém o feed em memória, mais recente por último
type Memory struct {
	mu    sync.Mutex
	plays []RecentPlay
	seen  map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) Insert(_ context.Context, p RecentPlay) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[p.CorrelationID]; ok {
		return false, nil
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.seen[p.CorrelationID] = struct{}{}
	m.plays = append(m.plays, p)
	return true, nil
}

func (m *Memory) Latest(_ context.Context, limit int) ([]RecentPlay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecentPlay, 0, limit)
	for i := len(m.plays) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.plays[i])
	}
	return out, nil
}

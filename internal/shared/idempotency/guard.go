package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard admite cada (scope, id) exatamente uma vez.
// Release reabre um id cujo processamento falhou antes de qualquer mutação.
type Guard interface {
	Admit(ctx context.Context, scope, id string) (bool, error)
	Release(ctx context.Context, scope, id string) error
}

func key(scope, id string) string { return "idem:" + scope + ":" + id }

// RedisGuard usa SET NX com TTL; compartilhado entre réplicas do serviço
type RedisGuard struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisGuard(rdb redis.Cmdable, ttl time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisGuard) Admit(ctx context.Context, scope, id string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, key(scope, id), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency admit: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, scope, id string) error {
	if err := g.rdb.Del(ctx, key(scope, id)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

// MemoryGuard mantém os ids num mapa protegido por mutex (processo único)
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]struct{})}
}

func (g *MemoryGuard) Admit(_ context.Context, scope, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := key(scope, id)
	if _, ok := g.seen[k]; ok {
		return false, nil
	}
	g.seen[k] = struct{}{}
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, scope, id string) error {
	g.mu.Lock()
	delete(g.seen, key(scope, id))
	g.mu.Unlock()
	return nil
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/shared/cache"
)

const keyLatest = "recent_plays:latest"

// Cached guarda as MaxLimit jogadas mais recentes no Redis e invalida a cada inserção
type Cached struct {
	log  *zap.Logger
	next Store
	rdb  redis.Cmdable
	ttl  time.Duration
}

func NewCached(log *zap.Logger, next Store, rdb redis.Cmdable, ttl time.Duration) *Cached {
	return &Cached{log: log, next: next, rdb: rdb, ttl: ttl}
}

func (c *Cached) Insert(ctx context.Context, p RecentPlay) (bool, error) {
	ok, err := c.next.Insert(ctx, p)
	if err != nil || !ok {
		return ok, err
	}
	if err := c.rdb.Del(ctx, keyLatest).Err(); err != nil {
		c.log.Warn("recent plays cache invalidation failed", zap.Error(err))
	}
	return true, nil
}

func (c *Cached) Latest(ctx context.Context, limit int) ([]RecentPlay, error) {
	var plays []RecentPlay
	err := cache.GetJSON(ctx, c.rdb, keyLatest, &plays)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.log.Warn("recent plays cache read failed", zap.Error(err))
		}
		if plays, err = c.next.Latest(ctx, MaxLimit); err != nil {
			return nil, err
		}
		if err := cache.SetJSON(ctx, c.rdb, keyLatest, plays, c.ttl); err != nil {
			c.log.Warn("recent plays cache write failed", zap.Error(err))
		}
	}
	if len(plays) > limit {
		plays = plays[:limit]
	}
	return plays, nil
}

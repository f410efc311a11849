package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func play(id string) RecentPlay {
	return RecentPlay{CorrelationID: id, Game: "dice", Player: "0xabc", AmountPlayed: decimal.NewFromInt(1), Payout: decimal.Zero}
}

func TestMemoryDedupAndOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 10; i++ {
		if ok, err := m.Insert(ctx, play(fmt.Sprint(i))); !ok || err != nil {
			t.Fatalf("insert %d = %v, %v", i, ok, err)
		}
	}
	if ok, _ := m.Insert(ctx, play("3")); ok {
		t.Fatal("duplicate accepted")
	}

	got, _ := m.Latest(ctx, 7)
	if len(got) != 7 || got[0].CorrelationID != "9" || got[6].CorrelationID != "3" {
		t.Fatalf("latest = %+v", got)
	}
}

func TestCachedInvalidatesOnInsert(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := NewCached(zap.NewNop(), NewMemory(), rdb, time.Minute)
	_, _ = c.Insert(ctx, play("a"))

	got, err := c.Latest(ctx, 7)
	if err != nil || len(got) != 1 {
		t.Fatalf("latest = %+v, %v", got, err)
	}
	if !mr.Exists(keyLatest) {
		t.Fatal("expected cached list")
	}

	_, _ = c.Insert(ctx, play("b"))
	if mr.Exists(keyLatest) {
		t.Fatal("cache not invalidated")
	}
	got, _ = c.Latest(ctx, 1)
	if len(got) != 1 || got[0].CorrelationID != "b" {
		t.Fatalf("latest = %+v", got)
	}
}

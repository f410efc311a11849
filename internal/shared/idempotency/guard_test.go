package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func guards(t *testing.T) map[string]Guard {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Guard{
		"memory": NewMemoryGuard(),
		"redis":  NewRedisGuard(rdb, time.Hour),
	}
}

func TestAdmitOnce(t *testing.T) {
	ctx := context.Background()
	for name, g := range guards(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := g.Admit(ctx, "ipn", "abc")
			if err != nil || !ok {
				t.Fatalf("first admit = %v, %v", ok, err)
			}
			ok, err = g.Admit(ctx, "ipn", "abc")
			if err != nil || ok {
				t.Fatalf("second admit = %v, %v", ok, err)
			}
			// scopes são independentes
			if ok, _ := g.Admit(ctx, "feed", "abc"); !ok {
				t.Fatal("other scope should be admitted")
			}
		})
	}
}

func TestReleaseReopens(t *testing.T) {
	ctx := context.Background()
	for name, g := range guards(t) {
		t.Run(name, func(t *testing.T) {
			_, _ = g.Admit(ctx, "ipn", "x")
			if err := g.Release(ctx, "ipn", "x"); err != nil {
				t.Fatal(err)
			}
			if ok, _ := g.Admit(ctx, "ipn", "x"); !ok {
				t.Fatal("released id should be admitted again")
			}
		})
	}
}

func TestConcurrentAdmit(t *testing.T) {
	ctx := context.Background()
	for name, g := range guards(t) {
		t.Run(name, func(t *testing.T) {
			var admitted int32
			var wg sync.WaitGroup
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if ok, err := g.Admit(ctx, "ipn", "same"); err == nil && ok {
						atomic.AddInt32(&admitted, 1)
					}
				}()
			}
			wg.Wait()
			if admitted != 1 {
				t.Fatalf("admitted = %d", admitted)
			}
		})
	}
}

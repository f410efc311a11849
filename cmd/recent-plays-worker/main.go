package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/recent-plays/consumer"
	"github.com/radieske/royalbet-wager-core/internal/recent-plays/feed"
	"github.com/radieske/royalbet-wager-core/internal/recent-plays/store"
	"github.com/radieske/royalbet-wager-core/internal/shared/cache"
	"github.com/radieske/royalbet-wager-core/internal/shared/config"
	"github.com/radieske/royalbet-wager-core/internal/shared/db"
	"github.com/radieske/royalbet-wager-core/internal/shared/idempotency"
	"github.com/radieske/royalbet-wager-core/internal/shared/kafka"
	"github.com/radieske/royalbet-wager-core/internal/shared/logger"
	"github.com/radieske/royalbet-wager-core/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetSettled, "recent-plays")
	defer reader.Close()

	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "recent_plays_messages_consumed_total", Help: "mensagens consumidas"})
	ingested := prometheus.NewCounter(prometheus.CounterOpts{Name: "recent_plays_ingested_total", Help: "jogadas gravadas no feed"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{Name: "recent_plays_duplicates_total", Help: "jogadas já conhecidas"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "recent_plays_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, ingested, duplicates, errorsBy)

	// mesma chave de cache e de idempotência usadas pelo wager-service
	f := feed.New(log, store.NewCached(log, store.NewPostgres(pg), rdb, 5*time.Second), idempotency.NewRedisGuard(rdb, 7*24*time.Hour))
	f.OnIngested = ingested.Inc
	f.OnDuplicate = duplicates.Inc

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Feed:       f,
		OnConsumed: consumed.Inc,
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)
	defer metricsSrv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("recent-plays-worker started", zap.String("consume", cfg.TopicBetSettled))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("recent-plays-worker stopped")
}

package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/notification-service/pubsub"
	phttp "github.com/radieske/royalbet-wager-core/internal/payment-webhook/http"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/reconciler"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/repo"
	"github.com/radieske/royalbet-wager-core/internal/shared/cache"
	"github.com/radieske/royalbet-wager-core/internal/shared/config"
	"github.com/radieske/royalbet-wager-core/internal/shared/db"
	"github.com/radieske/royalbet-wager-core/internal/shared/httpx"
	"github.com/radieske/royalbet-wager-core/internal/shared/idempotency"
	"github.com/radieske/royalbet-wager-core/internal/shared/logger"
	"github.com/radieske/royalbet-wager-core/internal/shared/metrics"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/ledger"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.RequireSecrets("IPN_SECRET"); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	txm, err := db.NewTxManager(pg)
	if err != nil {
		log.Fatal("tx manager", zap.Error(err))
	}

	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	applied := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ipn_applied_total", Help: "IPNs aplicadas ao ledger"}, []string{"kind"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{Name: "ipn_duplicates_total", Help: "IPNs reentregues"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ipn_rejected_total", Help: "IPNs recusadas por motivo"}, []string{"reason"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ipn_reconciliation_alerts_total", Help: "saques acima do saldo"}, []string{"kind"})
	prometheus.MustRegister(applied, duplicates, rejected, alerts)

	rec := reconciler.New(log, reconciler.Config{Secret: cfg.IPNSecret, MerchantID: cfg.IPNMerchantID}, reconciler.Deps{
		Transactions: repo.NewPostgres(pg),
		Ledger:       ledger.NewPostgres(pg, txm),
		Tx:           txm,
		Guard:        idempotency.NewRedisGuard(rdb, 30*24*time.Hour),
		Notifier:     pubsub.NewRedisNotifier(rdb, cfg.RedisPubSubChannel),
	}, reconciler.Hooks{
		OnApplied:   func(kind string) { applied.WithLabelValues(kind).Inc() },
		OnDuplicate: duplicates.Inc,
		OnRejected:  func(reason string) { rejected.WithLabelValues(reason).Inc() },
		OnAlert:     func(kind string) { alerts.WithLabelValues(kind).Inc() },
	})

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)
	defer metricsSrv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: phttp.NewServer(log, rec).Router(), ReadHeaderTimeout: 5 * time.Second}
	if err := httpx.Serve(ctx, log, srv); err != nil {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("payment-webhook-service stopped")
}

package main

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/recent-plays/feed"
	"github.com/radieske/royalbet-wager-core/internal/recent-plays/store"
	"github.com/radieske/royalbet-wager-core/internal/shared/auth"
	"github.com/radieske/royalbet-wager-core/internal/shared/cache"
	"github.com/radieske/royalbet-wager-core/internal/shared/config"
	"github.com/radieske/royalbet-wager-core/internal/shared/db"
	"github.com/radieske/royalbet-wager-core/internal/shared/httpx"
	"github.com/radieske/royalbet-wager-core/internal/shared/idempotency"
	"github.com/radieske/royalbet-wager-core/internal/shared/kafka"
	"github.com/radieske/royalbet-wager-core/internal/shared/logger"
	"github.com/radieske/royalbet-wager-core/internal/shared/metrics"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/dispatch"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/engine"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/game"
	whttp "github.com/radieske/royalbet-wager-core/internal/wager-service/http"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/producer"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/repo"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/rng"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/sweeper"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/address"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/ledger"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.RequireSecrets("JWT_SECRET"); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	gameCfg, err := config.LoadGameConfig(cfg.GameConfigPath)
	if err != nil {
		log.Fatal("game config", zap.String("path", cfg.GameConfigPath), zap.Error(err))
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

	// Kafka: feed de jogadas e fila de retry das comissões
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer settledWriter.Close()
	retryWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutRetry)
	defer retryWriter.Close()

	// Métricas
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wager_bets_settled_total", Help: "apostas liquidadas"}, []string{"game", "win"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wager_bets_rejected_total", Help: "apostas rejeitadas por motivo"}, []string{"reason"})
	refunds := prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_refunds_total", Help: "reservas estornadas"})
	refundFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_refund_failures_total", Help: "estornos que falharam"})
	dispatchFailures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wager_dispatch_failures_total", Help: "comissões enviadas para retry"}, []string{"role"})
	swept := prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_stale_reservations_refunded_total", Help: "reservas abandonadas estornadas pela varredura"})
	prometheus.MustRegister(settled, rejected, refunds, refundFailures, dispatchFailures, swept)

	led := ledger.NewPostgres(pg, txm)
	bets := repo.NewPostgres(pg)
	eng := engine.New(log, engine.Deps{
		Ledger:     led,
		Tx:         txm,
		Source:     rng.CryptoSource{},
		Calculator: game.NewCalculator(gameCfg),
		Addresses:  address.EVM{},
		Bets:       bets,
		Dispatcher: dispatch.NewDispatcher(log, dispatch.NewHTTPSender(cfg.PayoutURL), dispatch.NewKafkaQueue(retryWriter)),
		Feed:       producer.NewKafkaPublisher(settledWriter),
		Chain:      cfg.Chain,
	}, engine.Hooks{
		OnSettled:        func(g string, win bool) { settled.WithLabelValues(g, strconv.FormatBool(win)).Inc() },
		OnRejected:       func(reason string) { rejected.WithLabelValues(reason).Inc() },
		OnRefund:         refunds.Inc,
		OnRefundFailed:   refundFailures.Inc,
		OnDispatchFailed: func(role string) { dispatchFailures.WithLabelValues(role).Inc() },
	})

	// Feed público de jogadas recentes (leitura com cache e POST /game_played)
	plays := store.NewCached(log, store.NewPostgres(pg), rdb, 5*time.Second)
	recent := feed.New(log, plays, idempotency.NewRedisGuard(rdb, 7*24*time.Hour))

	api := whttp.NewServer(log, eng, bets, auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL), recent)

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)
	defer metricsSrv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Estorno de reservas que ficaram presas entre a reserva e a liquidação
	sw := &sweeper.Sweeper{
		Log:      log,
		Ledger:   led,
		MaxAge:   cfg.ReservationMaxAge,
		Interval: cfg.ReservationSweepInterval,
		OnRefund: swept.Inc,
		OnError:  refundFailures.Inc,
	}
	go sw.Run(ctx)

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: api.Router(), ReadHeaderTimeout: 5 * time.Second}
	if err := httpx.Serve(ctx, log, srv); err != nil {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("wager-service stopped")
}

package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/notification-service/ws"
	"github.com/radieske/royalbet-wager-core/internal/shared/auth"
	"github.com/radieske/royalbet-wager-core/internal/shared/cache"
	"github.com/radieske/royalbet-wager-core/internal/shared/config"
	"github.com/radieske/royalbet-wager-core/internal/shared/httpx"
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

	if err := cfg.RequireSecrets("JWT_SECRET"); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := ws.NewHub(log, auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL), func(r *http.Request) bool { return true })
	if err := ws.StartRedisSubscriber(ctx, log, rdb, cfg.RedisPubSubChannel, hub); err != nil {
		log.Fatal("redis subscribe", zap.Error(err))
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort,
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)
	defer metricsSrv.Close()

	r := httpx.NewRouter()
	hub.Register(r)

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	if err := httpx.Serve(ctx, log, srv); err != nil {
		log.Fatal("ws", zap.Error(err))
	}
	log.Info("notification-service stopped")
}

package main

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/shared/config"
	"github.com/radieske/royalbet-wager-core/internal/shared/httpx"
	"github.com/radieske/royalbet-wager-core/internal/shared/logger"
	"github.com/radieske/royalbet-wager-core/internal/shared/metrics"
)

func rp(log *zap.Logger, to string) *httputil.ReverseProxy {
	u, err := url.Parse(to)
	if err != nil {
		log.Fatal("invalid upstream", zap.String("url", to), zap.Error(err))
	}
	return httputil.NewSingleHostReverseProxy(u)
}

func target(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	wager := rp(log, target("WAGER_URL", "http://localhost:8083"))
	wallet := rp(log, target("WALLET_URL", "http://localhost:8082"))
	notifications := rp(log, target("NOTIFICATION_URL", "http://localhost:8085"))

	r := httpx.NewRouter()

	// wager (ex.: /api/wager/bets -> wager-service /bets)
	r.Mount("/api/wager", http.StripPrefix("/api/wager", wager))

	// wallet (ex.: /api/wallet/account -> wallet-service /account)
	r.Mount("/api/wallet", http.StripPrefix("/api/wallet", wallet))

	// websocket de avisos de saldo; o ReverseProxy repassa o upgrade
	r.Handle("/api/ws", http.StripPrefix("/api", notifications))

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort)
	defer metricsSrv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	if err := httpx.Serve(ctx, log, srv); err != nil {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

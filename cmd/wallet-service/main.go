package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/processor"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/quote"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/repo"
	"github.com/radieske/royalbet-wager-core/internal/shared/auth"
	"github.com/radieske/royalbet-wager-core/internal/shared/config"
	"github.com/radieske/royalbet-wager-core/internal/shared/db"
	"github.com/radieske/royalbet-wager-core/internal/shared/httpx"
	"github.com/radieske/royalbet-wager-core/internal/shared/logger"
	"github.com/radieske/royalbet-wager-core/internal/shared/metrics"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/address"
	whttp "github.com/radieske/royalbet-wager-core/internal/wallet-service/http"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/ledger"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/payments"
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

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	txm, err := db.NewTxManager(pg)
	if err != nil {
		log.Fatal("tx manager", zap.Error(err))
	}

	// cotação: CoinGecko em produção, tabela fixa no ambiente local
	var prices quote.PriceQuote = quote.NewCoinGecko(cfg.PriceAPIURL, time.Minute)
	if cfg.Env == "local" {
		prices = quote.Static{
			"ETH":  decimal.NewFromInt(2000),
			"BTC":  decimal.NewFromInt(60000),
			"USDT": decimal.NewFromInt(1),
		}
	}

	l := ledger.NewPostgres(pg, txm)
	initiator := payments.NewInitiator(log, l, repo.NewPostgres(pg), prices,
		processor.New(cfg.ProcessorURL, cfg.IPNMerchantID), address.EVM{})
	api := whttp.NewServer(log, l, initiator, auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL), address.EVM{})

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Check{Name: "postgres", Fn: pg.PingContext})
	defer metricsSrv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: api.Router(), ReadHeaderTimeout: 5 * time.Second}
	if err := httpx.Serve(ctx, log, srv); err != nil {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("wallet-service stopped")
}

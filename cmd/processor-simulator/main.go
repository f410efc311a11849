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

	"github.com/radieske/royalbet-wager-core/internal/processor-simulator/sim"
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

	if err := cfg.RequireSecrets("IPN_SECRET"); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "processor_sim_payouts_total", Help: "payouts por resultado"}, []string{"status"})
	ipns := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "processor_sim_ipn_total", Help: "IPNs entregues"}, []string{"kind", "accepted"})
	prometheus.MustRegister(payouts, ipns)

	// 80% dos payouts aceitos
	s := sim.NewServer(log, sim.NewIPNSender(cfg.WebhookURL, cfg.IPNSecret), cfg.IPNMerchantID, 80)
	s.OnPayout = func(status string) { payouts.WithLabelValues(status).Inc() }
	s.OnIPN = func(kind string, ok bool) { ipns.WithLabelValues(kind, strconv.FormatBool(ok)).Inc() }

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort)
	defer metricsSrv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}
	log.Info("processor simulator running", zap.String("webhook", cfg.WebhookURL))
	if err := httpx.Serve(ctx, log, srv); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}

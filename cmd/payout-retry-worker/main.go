package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/shared/config"
	"github.com/radieske/royalbet-wager-core/internal/shared/kafka"
	"github.com/radieske/royalbet-wager-core/internal/shared/logger"
	"github.com/radieske/royalbet-wager-core/internal/shared/metrics"
	"github.com/radieske/royalbet-wager-core/internal/wager-service/dispatch"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Kafka consumer: pedidos de comissão que falharam no wager-service
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicPayoutRetry, "payout-retry")
	defer reader.Close()

	requeue := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutRetry)
	defer requeue.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutRetryDLQ)
	defer dlq.Close()

	sent := prometheus.NewCounter(prometheus.CounterOpts{Name: "payout_retry_sent_total", Help: "comissões enviadas na nova tentativa"})
	dead := prometheus.NewCounter(prometheus.CounterOpts{Name: "payout_retry_dlq_total", Help: "comissões enviadas para a DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "payout_retry_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(sent, dead, errorsBy)

	worker := &dispatch.RetryWorker{
		Log:         log,
		Reader:      reader,
		Sender:      dispatch.NewHTTPSender(cfg.PayoutURL),
		Requeue:     dispatch.NewKafkaQueue(requeue),
		DLQ:         dispatch.NewKafkaQueue(dlq),
		MaxAttempts: cfg.PayoutMaxAttempts,
		BaseDelay:   cfg.PayoutRetryBaseDelay,
		OnSent:      sent.Inc,
		OnDLQ:       dead.Inc,
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort)
	defer metricsSrv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("payout-retry-worker started",
		zap.String("consume", cfg.TopicPayoutRetry),
		zap.String("dlq", cfg.TopicPayoutRetryDLQ),
		zap.Int("max_attempts", cfg.PayoutMaxAttempts))
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("worker stopped with error", zap.Error(err))
	}
	log.Info("payout-retry-worker stopped")
}

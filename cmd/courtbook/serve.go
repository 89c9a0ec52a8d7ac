package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/logging"
	"courtbook/internal/metrics"
	"courtbook/internal/mq"
	"courtbook/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run sweeps, calendar sync, payment consumer, backups and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, serve)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	logger := logging.Component(&a.logger, "serve")
	var wg sync.WaitGroup
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	startMetrics(ctx, a, goRun, &logger)

	if a.cfg.Backup.Enabled {
		backups := database.NewBackupService(a.db, a.cfg.Backup, &logger)
		goRun(func() { backups.Start(ctx) })
	}

	if a.calendar != nil {
		goRun(func() { a.calendar.Start(ctx) })
	} else {
		logger.Info().Msg("google calendar not configured, calendar sync disabled")
	}

	closeBroker := startBroker(ctx, a, goRun, &logger)
	defer closeBroker()

	sched := scheduler.New(a.reminders, a.waitlist, a.cfg.Scheduler, &a.logger)
	schedErr := make(chan error, 1)
	goRun(func() { schedErr <- sched.Run(ctx) })

	logger.Info().Str("db_path", a.cfg.Database.Path).Msg("courtbook started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-schedErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info().Msg("courtbook stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn().Dur("timeout", shutdownTimeout).Msg("shutdown timed out")
	}
	return nil
}

// startBroker wires RabbitMQ when configured. Connection failures are
// logged and the daemon keeps running without the broker.
func startBroker(ctx context.Context, a *app, goRun func(func()), logger *zerolog.Logger) func() {
	cfg := a.cfg.RabbitMQ
	if cfg.URL == "" {
		return func() {}
	}

	var closers []func() error
	if cfg.EventsEnabled {
		publisher, err := mq.NewPublisher(cfg.URL, cfg.Exchange, a.logger)
		if err != nil {
			logger.Warn().Err(err).Msg("rabbitmq publisher unavailable, events stay in-process")
		} else {
			publisher.Forward(a.bus)
			closers = append(closers, publisher.Close)
		}
	}

	consumer, err := mq.NewConsumer(cfg.URL, cfg.Exchange, cfg.PaymentQueue, []string{cfg.PaymentRoutingKey})
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq consumer unavailable, payment signals only via CLI")
	} else {
		deliveries, err := consumer.Deliveries(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("rabbitmq consume failed")
			_ = consumer.Close()
		} else {
			handler := mq.NewPaymentHandler(a.reconciler, a.logger)
			goRun(func() {
				if err := handler.Run(ctx, deliveries); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("payment consumer stopped")
				}
			})
			closers = append(closers, consumer.Close)
			logger.Info().Str("queue", cfg.PaymentQueue).Msg("consuming payment outcomes")
		}
	}

	return func() {
		for _, c := range closers {
			_ = c()
		}
	}
}

func startMetrics(ctx context.Context, a *app, goRun func(func()), logger *zerolog.Logger) {
	if !a.cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := a.cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	goRun(func() { startMetricsServer(ctx, port, logger) })
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

// Package driftmonitor читает очередь сигналов о расхождениях
// и отдаёт их счётчики на /metrics.
package driftmonitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/payflow/internal/config"
	"github.com/magabrotheeeer/payflow/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/metrics"
	"github.com/magabrotheeeer/payflow/internal/services/drift"
)

// App читает очередь расхождений.
type App struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	monitor *drift.Monitor
	server  *http.Server
	logger  *slog.Logger
}

// New подключается к брокеру и объявляет очередь.
func New(ctx context.Context, cfg *config.Config, metricsAddr string, logger *slog.Logger) (*App, error) {
	const op = "app.driftmonitor.New"
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("%s: rabbitmq url is empty", op)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.Retries, cfg.Delay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.DriftQueues(cfg.Queue))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &App{
		conn:    conn,
		ch:      ch,
		queue:   cfg.Queue,
		monitor: drift.New(logger, m),
		server:  &http.Server{Addr: metricsAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second},
		logger:  logger,
	}, nil
}

// Run читает очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, a.queue, a.monitor.Handle); err != nil {
		a.logger.Error("failed to start drift consumer", sl.Err(err))
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("metrics server starting on", slog.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("drift monitor shutting down gracefully")
	case runErr = <-errCh:
		a.logger.Error("metrics server failed", sl.Err(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to stop metrics server", sl.Err(err))
	}
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return runErr
}

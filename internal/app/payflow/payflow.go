package payflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/payflow/internal/cache"
	"github.com/magabrotheeeer/payflow/internal/config"
	"github.com/magabrotheeeer/payflow/internal/events"
	"github.com/magabrotheeeer/payflow/internal/http/handlers/health"
	"github.com/magabrotheeeer/payflow/internal/lib/jwt"
	"github.com/magabrotheeeer/payflow/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/metrics"
	"github.com/magabrotheeeer/payflow/internal/migrations"
	gateway "github.com/magabrotheeeer/payflow/internal/openpay"
	"github.com/magabrotheeeer/payflow/internal/services/auth"
	"github.com/magabrotheeeer/payflow/internal/services/catalog"
	"github.com/magabrotheeeer/payflow/internal/services/charge"
	"github.com/magabrotheeeer/payflow/internal/services/customer"
	"github.com/magabrotheeeer/payflow/internal/services/subscription"
	"github.com/magabrotheeeer/payflow/internal/services/webhook"
	"github.com/magabrotheeeer/payflow/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App держит HTTP-сервер и его зависимости.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
	amqp   *amqp.Connection
}

// New поднимает хранилище, кеш, брокер и шлюз и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.payflow.New"

	db, err := storage.New(cfg.StorageConnectionString, cfg.StorageTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	app := &App{logger: logger, db: db, cache: cacheRedis}

	alerts, err := app.publisher(ctx, cfg.RabbitMQ, m)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client, err := gateway.New(gateway.Config{
		MerchantID: cfg.MerchantID,
		PrivateKey: cfg.PrivateKey,
		BaseURL:    cfg.BaseURL,
		Sandbox:    cfg.Sandbox,
		Timeout:    cfg.Openpay.Timeout,
	}, logger)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	client.WithRecorder(m)

	tokens := jwt.NewMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	catalogService := catalog.New(db, client, cacheRedis, alerts, logger, cfg.PlanTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, Services{
		Customers:     customer.New(db, client, alerts, m, logger, cfg.DefaultDeviceSessionID),
		Auth:          auth.New(db, tokens, logger),
		Charges:       charge.New(db, client, alerts, m, logger, cfg.DefaultDeviceSessionID),
		Subscriptions: subscription.New(db, client, catalogService, alerts, logger),
		Catalog:       catalogService,
		Webhooks:      webhook.New(db, m, logger),
		Tokens:        tokens,
		Health: map[string]health.Check{
			"database": db.CheckDatabaseReady,
			"redis":    cacheRedis.Ping,
		},
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// publisher выбирает издателя сигналов о расхождениях. Без адреса
// брокера сигналы только пишутся в лог.
func (a *App) publisher(ctx context.Context, cfg config.RabbitMQ, m *metrics.Metrics) (events.Publisher, error) {
	if cfg.URL == "" {
		a.logger.Warn("rabbitmq url is empty, drift alerts go to log only")
		return events.NewLogPublisher(a.logger, m), nil
	}

	conn, err := rabbitmq.Connect(ctx, cfg.URL, cfg.Retries, cfg.Delay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.DriftQueues(cfg.Queue))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	a.amqp = conn
	return events.NewAMQPPublisher(ch, cfg.Exchange, a.logger, m), nil
}

// Run запускает сервер и останавливает его после отмены ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}

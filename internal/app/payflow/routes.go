// Package payflow собирает HTTP-приложение сервиса платежей.
package payflow

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	// Регистрация swagger-спецификации.
	_ "github.com/magabrotheeeer/payflow/docs"
	"github.com/magabrotheeeer/payflow/internal/config"
	"github.com/magabrotheeeer/payflow/internal/http/handlers/auth/login"
	cardcreate "github.com/magabrotheeeer/payflow/internal/http/handlers/card/create"
	cardlist "github.com/magabrotheeeer/payflow/internal/http/handlers/card/list"
	chargecreate "github.com/magabrotheeeer/payflow/internal/http/handlers/charge/create"
	chargelist "github.com/magabrotheeeer/payflow/internal/http/handlers/charge/list"
	chargeowned "github.com/magabrotheeeer/payflow/internal/http/handlers/charge/owned"
	chargerefresh "github.com/magabrotheeeer/payflow/internal/http/handlers/charge/refresh"
	"github.com/magabrotheeeer/payflow/internal/http/handlers/customer/addresses"
	customercreate "github.com/magabrotheeeer/payflow/internal/http/handlers/customer/create"
	"github.com/magabrotheeeer/payflow/internal/http/handlers/health"
	plancreate "github.com/magabrotheeeer/payflow/internal/http/handlers/plan/create"
	productcreate "github.com/magabrotheeeer/payflow/internal/http/handlers/product/create"
	productget "github.com/magabrotheeeer/payflow/internal/http/handlers/product/get"
	productlist "github.com/magabrotheeeer/payflow/internal/http/handlers/product/list"
	"github.com/magabrotheeeer/payflow/internal/http/handlers/subscription/cancel"
	subcreate "github.com/magabrotheeeer/payflow/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/payflow/internal/http/handlers/subscription/history"
	"github.com/magabrotheeeer/payflow/internal/http/handlers/webhook/openpay"
	"github.com/magabrotheeeer/payflow/internal/http/middlewarectx"
	"github.com/magabrotheeeer/payflow/internal/lib/jwt"
	"github.com/magabrotheeeer/payflow/internal/services/auth"
	"github.com/magabrotheeeer/payflow/internal/services/catalog"
	"github.com/magabrotheeeer/payflow/internal/services/charge"
	"github.com/magabrotheeeer/payflow/internal/services/customer"
	"github.com/magabrotheeeer/payflow/internal/services/subscription"
	"github.com/magabrotheeeer/payflow/internal/services/webhook"
)

// Services перечисляет сервисы, которые обслуживает HTTP API.
type Services struct {
	Customers     *customer.Service
	Auth          *auth.Service
	Charges       *charge.Service
	Subscriptions *subscription.Service
	Catalog       *catalog.Service
	Webhooks      *webhook.Service
	Tokens        *jwt.Maker
	Health        map[string]health.Check
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, limiter))

			// Открытые конечные точки
			r.Post("/customers", customercreate.New(logger, svc.Customers).ServeHTTP)
			r.Post("/login", login.New(logger, svc.Auth).ServeHTTP)
			r.Get("/products", productlist.New(logger, svc.Catalog).ServeHTTP)
			r.Get("/products/{id}", productget.New(logger, svc.Catalog).ServeHTTP)

			// Группа с JWT аутентификацией
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.JWTMiddleware(svc.Tokens, logger))
				r.Get("/me/addresses", addresses.New(logger, svc.Customers).ServeHTTP)
				r.Post("/cards", cardcreate.New(logger, svc.Customers).ServeHTTP)
				r.Get("/cards", cardlist.New(logger, svc.Customers).ServeHTTP)
				r.Post("/charges", chargecreate.New(logger, svc.Charges).ServeHTTP)
				r.Get("/charges/{id}", chargerefresh.New(logger, svc.Charges).ServeHTTP)
				r.Get("/me/charges", chargeowned.New(logger, svc.Charges).ServeHTTP)
				r.Post("/subscriptions", subcreate.New(logger, svc.Subscriptions).ServeHTTP)
				r.Get("/subscriptions", history.New(logger, svc.Subscriptions).ServeHTTP)
				r.Delete("/subscriptions/{id}", cancel.New(logger, svc.Subscriptions).ServeHTTP)

				// Только администратор
				r.Group(func(r chi.Router) {
					r.Use(middlewarectx.RequireAdmin(logger))
					r.Get("/charges", chargelist.New(logger, svc.Charges).ServeHTTP)
					r.Post("/products", productcreate.New(logger, svc.Catalog).ServeHTTP)
					r.Post("/plans", plancreate.New(logger, svc.Catalog).ServeHTTP)
				})
			})
		})

		// Вебхук шлюза: без JWT и без лимита, опционально Basic
		r.With(middlewarectx.BasicAuth(cfg.Webhook.User, cfg.Webhook.Password, logger)).
			Post("/webhooks/openpay", openpay.New(logger, svc.Webhooks).ServeHTTP)
	})

	r.Get("/health", health.New(logger, svc.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

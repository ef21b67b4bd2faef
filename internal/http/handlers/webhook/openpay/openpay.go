// Package openpay принимает уведомления Openpay о платежах.
//
// Ответ всегда 200: ошибки обработки только логируются,
// чтобы шлюз не повторял доставку бесконечно.
package openpay

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/payflow/internal/http/response"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
)

const maxBodyBytes = 1 << 20

// Service обрабатывает тело уведомления.
type Service interface {
	Handle(ctx context.Context, body []byte)
}

// Handler принимает вебхуки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Вебхук Openpay
// @Description Принимает события charge.succeeded, charge.failed, charge.cancelled и verification.
// @Tags Webhooks
// @Accept  json
// @Produce  json
// @Security BasicAuth
// @Success 200 {object} response.Response
// @Router /webhooks/openpay [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook.openpay"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	defer r.Body.Close()
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
	} else {
		h.service.Handle(r.Context(), body)
	}

	render.JSON(w, r, response.OK())
}

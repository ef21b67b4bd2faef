// Package refresh отдаёт платёж, перечитанный из шлюза.
//
// Локальные статус и метаданные перезаписываются ответом шлюза, поэтому
// запрос подходит для сверки платежа, результат которого не дошёл.
package refresh

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/http/middlewarectx"
	"github.com/magabrotheeeer/payflow/internal/http/response"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/services/charge"
)

// Service описывает сверку платежа со шлюзом.
type Service interface {
	Refresh(ctx context.Context, caller charge.Caller, gatewayID string) (*models.Charge, error)
}

// Handler обрабатывает запрос статуса платежа.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Статус платежа
// @Description Перечитывает платёж из Openpay и сохраняет его статус. Пользователь видит только свои платежи.
// @Tags Charges
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID платежа в Openpay"
// @Success 200 {object} response.Response{data=models.Charge}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /charges/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.charge.refresh"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFromContext(r.Context())
	if !ok {
		log.Error("user identification missing")
		response.AppError(w, r, apperr.Unauthorized("user identification missing"))
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" || len(id) > 255 {
		log.Warn("invalid charge id")
		response.AppError(w, r, apperr.Validation("invalid charge id"))
		return
	}

	c, err := h.service.Refresh(r.Context(), charge.Caller{
		UserID: userID,
		Admin:  middlewarectx.IsAdmin(r.Context()),
	}, id)
	if err != nil {
		log.Warn("failed to refresh charge", slog.String("charge_id", id), sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("charge refreshed", slog.String("charge_id", id), slog.String("status", c.Status))
	render.JSON(w, r, response.StatusOKWithData(c))
}

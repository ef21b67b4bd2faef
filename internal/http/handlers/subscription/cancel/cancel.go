package cancel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/http/middlewarectx"
	"github.com/magabrotheeeer/payflow/internal/http/response"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
)

// Handler отменяет подписку текущего пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает отмену подписки.
type Service interface {
	CancelOwned(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отменить подписку
// @Description Отменяет подписку в Openpay и локально. Повторная отмена возвращает ту же подписку.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Success 200 {object} response.Response{data=models.Subscription}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse "Некорректный ID"
// @Failure 502 {object} response.ErrorResponse
// @Router /subscriptions/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"

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

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		log.Warn("invalid id format", sl.Err(err))
		response.AppError(w, r, apperr.Validation("invalid subscription id"))
		return
	}

	sub, err := h.service.CancelOwned(r.Context(), userID, id)
	if err != nil {
		log.Error("failed to cancel subscription", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("subscription cancelled", slog.String("subscription_id", sub.ID.String()))
	render.JSON(w, r, response.StatusOKWithData(sub))
}

// Package list отдаёт карты текущего пользователя.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/http/middlewarectx"
	"github.com/magabrotheeeer/payflow/internal/http/response"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
)

type Service interface {
	ListCards(ctx context.Context, userID uuid.UUID) ([]*models.Card, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Карты пользователя
// @Tags Cards
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.Card}
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /cards [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.card.list"
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

	cards, err := h.service.ListCards(r.Context(), userID)
	if err != nil {
		log.Error("failed to list cards", sl.Err(err))
		response.AppError(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(cards))
}

// Package addresses отдаёт адреса текущего пользователя.
package addresses

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
	"github.com/magabrotheeeer/payflow/internal/services/customer"
)

// Service описывает чтение адресов.
type Service interface {
	ListAddresses(ctx context.Context, userID uuid.UUID) (*customer.Addresses, error)
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
// @Summary Адреса пользователя
// @Description Адреса в порядке создания; первый считается основным.
// @Tags Customers
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=customer.Addresses}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /me/addresses [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.customer.addresses"
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

	addrs, err := h.service.ListAddresses(r.Context(), userID)
	if err != nil {
		log.Error("failed to list addresses", sl.Err(err))
		response.AppError(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(addrs))
}

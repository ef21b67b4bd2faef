package owned

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/http/middlewarectx"
	"github.com/magabrotheeeer/payflow/internal/http/response"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
)

// Service описывает выборку платежей пользователя.
type Service interface {
	ListOwned(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Charge, error)
}

// Handler отдаёт платежи текущего пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Мои платежи
// @Description Платежи по email пользователя или его клиенту в Openpay, от новых к старым.
// @Tags Charges
// @Produce  json
// @Security BearerAuth
// @Param limit query int false "Размер страницы (по умолчанию 50, максимум 200)"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response{data=[]models.Charge}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /me/charges [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.charge.owned"
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

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	charges, err := h.service.ListOwned(r.Context(), userID, limit, offset)
	if err != nil {
		log.Error("failed to list charges", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("user charges listed", slog.Int("count", len(charges)))
	render.JSON(w, r, response.StatusOKWithData(charges))
}

package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/payflow/internal/http/response"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/services/charge"
)

// Service описывает выборку платежей.
type Service interface {
	List(ctx context.Context, f models.ChargeFilter) ([]*models.Charge, error)
}

// Handler отдаёт историю платежей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список платежей
// @Description Платежи по фильтру, новые первыми. Доступно администратору.
// @Tags Charges
// @Produce  json
// @Security BearerAuth
// @Param product_id query int false "ID товара"
// @Param status query string false "Статус платежа"
// @Param customer_email query string false "Email покупателя"
// @Param limit query int false "Размер страницы" default(50)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} response.Response{data=[]models.Charge}
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /charges [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.charge.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := r.URL.Query()
	productID, err := charge.ParseProductID(q.Get("product_id"))
	if err != nil {
		log.Warn("invalid product_id", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = 0
	}
	offset, err := strconv.Atoi(q.Get("offset"))
	if err != nil {
		offset = 0
	}

	res, err := h.service.List(r.Context(), models.ChargeFilter{
		ProductID:     productID,
		Status:        q.Get("status"),
		CustomerEmail: q.Get("customer_email"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		log.Error("failed to list charges", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("charges listed", slog.Int("count", len(res)))
	render.JSON(w, r, response.StatusOKWithData(res))
}

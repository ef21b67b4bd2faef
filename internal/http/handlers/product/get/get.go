package get

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/http/response"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
)

// Service описывает чтение товара.
type Service interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
}

// Handler отдаёт товар по ID.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Товар по ID
// @Tags Products
// @Produce  json
// @Param id path int true "ID товара"
// @Success 200 {object} response.Response{data=models.Product}
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /products/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.product.get"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		log.Warn("invalid id format", slog.String("id", chi.URLParam(r, "id")))
		response.AppError(w, r, apperr.Validation("invalid product id"))
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		log.Error("failed to get product", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(product))
}

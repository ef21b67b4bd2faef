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
)

// Service описывает выборку товаров.
type Service interface {
	ListProducts(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.Product, error)
}

// Handler отдаёт каталог товаров.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Каталог товаров
// @Description По умолчанию только активные товары. active=false отдаёт все.
// @Tags Products
// @Produce  json
// @Param active query bool false "Только активные" default(true)
// @Param limit query int false "Размер страницы" default(50)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} response.Response{data=[]models.Product}
// @Failure 500 {object} response.ErrorResponse
// @Router /products [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.product.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := r.URL.Query()
	activeOnly := true
	if v, err := strconv.ParseBool(q.Get("active")); err == nil {
		activeOnly = v
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = 0
	}
	offset, err := strconv.Atoi(q.Get("offset"))
	if err != nil {
		offset = 0
	}

	res, err := h.service.ListProducts(r.Context(), activeOnly, limit, offset)
	if err != nil {
		log.Error("failed to list products", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("products listed", slog.Int("count", len(res)))
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Package create реализует HTTP-обработчик добавления товара в каталог.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/payflow/internal/http/response"
	"github.com/magabrotheeeer/payflow/internal/lib/money"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/services/catalog"
)

// Request описывает новый товар.
type Request struct {
	Name        string       `json:"name" validate:"required,max=255" example:"Mug"`
	Description string       `json:"description" validate:"max=1000"`
	Price       money.Amount `json:"price" swaggertype:"number" example:"100.00"`
	Currency    string       `json:"currency" validate:"omitempty,len=3" example:"MXN"`
	Quantity    int          `json:"quantity" validate:"min=0"`
	Category    string       `json:"category" validate:"max=100"`
	ImageURL    string       `json:"image_url" validate:"omitempty,url"`
}

// Service описывает создание товара.
type Service interface {
	CreateProduct(ctx context.Context, req catalog.ProductRequest) (*models.Product, error)
}

// Handler обрабатывает добавление товаров.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Добавить товар
// @Description Создаёт активный товар. Только для администратора.
// @Tags Products
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Данные товара"
// @Success 201 {object} response.Response{data=models.Product}
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /products [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.product.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), catalog.ProductRequest{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		Quantity:    req.Quantity,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		log.Error("failed to create product", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("product created", slog.Int64("product_id", product.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(product))
}

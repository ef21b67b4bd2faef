// Package create реализует HTTP-обработчик разового платежа по токену карты.
//
// Отказ шлюза не является ошибкой запроса: попытка сохраняется,
// а клиент получает 402 с нормализованным кодом и сообщением.
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
	"github.com/magabrotheeeer/payflow/internal/services/charge"
)

// CustomerRequest описывает покупателя.
type CustomerRequest struct {
	Name        string `json:"name" validate:"max=100"`
	LastName    string `json:"last_name" validate:"max=100"`
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,numeric,max=20"`
}

// Request задаёт платёж: либо amount, либо product_id.
type Request struct {
	SourceID        string          `json:"source_id" validate:"required,max=255"`
	Amount          *money.Amount   `json:"amount" swaggertype:"number" example:"100.00"`
	Currency        string          `json:"currency" validate:"omitempty,len=3" example:"MXN"`
	ProductID       *int64          `json:"product_id" validate:"omitempty,min=1"`
	OrderID         string          `json:"order_id" validate:"max=100"`
	Description     string          `json:"description" validate:"max=250"`
	DeviceSessionID string          `json:"device_session_id" validate:"max=255"`
	Customer        CustomerRequest `json:"customer"`
}

// Service описывает проведение платежа.
type Service interface {
	Charge(ctx context.Context, req charge.Request) (*charge.Result, error)
}

// Handler обрабатывает создание платежей.
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
// @Summary Разовый платёж
// @Description Одна попытка платежа в Openpay. Каждая попытка, включая неуспешные, сохраняется.
// @Tags Charges
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Параметры платежа"
// @Success 201 {object} response.Response{data=charge.Result} "Платёж проведён"
// @Failure 402 {object} response.Response{data=Declined} "Платёж отклонён"
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Товар не найден"
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /charges [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.charge.create"
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

	res, err := h.service.Charge(r.Context(), charge.Request{
		SourceID:        req.SourceID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		ProductID:       req.ProductID,
		OrderID:         req.OrderID,
		Description:     req.Description,
		DeviceSessionID: req.DeviceSessionID,
		Customer: charge.Customer{
			Name:        req.Customer.Name,
			LastName:    req.Customer.LastName,
			Email:       req.Customer.Email,
			PhoneNumber: req.Customer.PhoneNumber,
		},
	})
	if err != nil {
		log.Error("charge failed", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	if !res.Success {
		log.Info("charge declined", slog.String("code", res.Error.Code))
		render.Status(r, http.StatusPaymentRequired)
		render.JSON(w, r, response.Response{
			Status: response.StatusError,
			Code:   res.Error.Code,
			Error:  res.Error.Message,
			Data:   newDeclined(res),
		})
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Declined описывает отклонённый платёж в ответе 402.
type Declined struct {
	ChargeID string `json:"openpay_id,omitempty"`
	OrderID  string `json:"order_id,omitempty"`
	Status   string `json:"status"`
}

func newDeclined(res *charge.Result) Declined {
	d := Declined{Status: models.ChargeFailed}
	if res.Charge != nil {
		d.ChargeID = res.Charge.GatewayChargeID
		d.OrderID = res.Charge.OrderID
		d.Status = res.Charge.Status
	}
	return d
}

// Package create реализует HTTP-обработчик регистрации карты клиента.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/http/middlewarectx"
	"github.com/magabrotheeeer/payflow/internal/http/response"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/services/customer"
)

// Request — данные карты. Номер и CVV не логируются и не сохраняются.
type Request struct {
	AddressID       int64  `json:"address_id" validate:"required,min=1"`
	CardNumber      string `json:"card_number" validate:"required,numeric,min=13,max=19"`
	HolderName      string `json:"holder_name" validate:"required,max=100"`
	ExpirationYear  string `json:"expiration_year" validate:"required,numeric,len=2"`
	ExpirationMonth string `json:"expiration_month" validate:"required,numeric,len=2"`
	CVV2            string `json:"cvv2" validate:"required,numeric,min=3,max=4"`
	DeviceSessionID string `json:"device_session_id" validate:"max=255"`
}

// Service описывает регистрацию карты.
type Service interface {
	ProvisionCard(ctx context.Context, userID uuid.UUID, req customer.CardRequest) (*models.Card, error)
}

// Handler обрабатывает регистрацию карт.
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
// @Summary Регистрация карты
// @Description Токенизирует карту в Openpay и сохраняет её публичный дескриптор.
// @Description Платёжный адрес копируется из адреса клиента address_id.
// @Tags Cards
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Данные карты"
// @Success 201 {object} response.Response{data=models.Card}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Пользователь или адрес не найден"
// @Failure 412 {object} response.ErrorResponse "Нет клиента в шлюзе или чужой адрес"
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /cards [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.card.create"
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

	card, err := h.service.ProvisionCard(r.Context(), userID, customer.CardRequest{
		AddressID:       req.AddressID,
		CardNumber:      req.CardNumber,
		HolderName:      req.HolderName,
		ExpirationYear:  req.ExpirationYear,
		ExpirationMonth: req.ExpirationMonth,
		CVV2:            req.CVV2,
		DeviceSessionID: req.DeviceSessionID,
	})
	if err != nil {
		log.Error("failed to provision card", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("card created", slog.String("card_id", card.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(card))
}

// Package create реализует HTTP-обработчик оформления подписки на план.
//
// Оплата задаётся либо сохранённой картой (source_id), либо данными новой карты (card).
// У пользователя может быть только одна неотменённая подписка.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/http/middlewarectx"
	"github.com/magabrotheeeer/payflow/internal/http/response"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/services/subscription"
)

// CardRequest описывает новую карту для подписки.
type CardRequest struct {
	CardNumber      string `json:"card_number" validate:"required,numeric,min=13,max=19"`
	HolderName      string `json:"holder_name" validate:"required,max=100"`
	ExpirationYear  string `json:"expiration_year" validate:"required,numeric,len=2"`
	ExpirationMonth string `json:"expiration_month" validate:"required,numeric,len=2"`
	CVV2            string `json:"cvv2" validate:"required,numeric,min=3,max=4"`
}

// Request описывает новую подписку.
type Request struct {
	PlanID          string       `json:"plan_id" validate:"required,max=100" example:"pbi4kb8hpb64x0uud2eb"`
	SourceID        string       `json:"source_id" validate:"max=255"`
	Card            *CardRequest `json:"card"`
	TrialEndDate    string       `json:"trial_end_date" example:"2024-06-30"`
	DeviceSessionID string       `json:"device_session_id" validate:"max=255"`
}

// Service описывает оформление подписки.
type Service interface {
	Create(ctx context.Context, req subscription.CreateRequest) (*models.Subscription, error)
}

// Handler обрабатывает оформление подписок.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

var errInvalidTrialEnd = errors.New("field TrialEndDate must be a date in format YYYY-MM-DD")

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Оформить подписку
// @Description Создаёт подписку в Openpay и сохраняет её локально.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Параметры подписки"
// @Success 201 {object} response.Response{data=models.Subscription}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 409 {object} response.ErrorResponse "Уже есть активная подписка"
// @Failure 412 {object} response.ErrorResponse "Нет клиента в шлюзе"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse
// @Router /subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"
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

	in := subscription.CreateRequest{
		UserID:          userID,
		PlanID:          req.PlanID,
		SourceID:        req.SourceID,
		DeviceSessionID: req.DeviceSessionID,
	}
	if req.Card != nil {
		in.Card = &subscription.CardRequest{
			CardNumber:      req.Card.CardNumber,
			HolderName:      req.Card.HolderName,
			ExpirationYear:  req.Card.ExpirationYear,
			ExpirationMonth: req.Card.ExpirationMonth,
			CVV2:            req.Card.CVV2,
		}
	}
	if req.TrialEndDate != "" {
		d, err := time.Parse(time.DateOnly, req.TrialEndDate)
		if err != nil {
			log.Warn("invalid trial end date", sl.Err(err))
			response.Invalid(w, r, errInvalidTrialEnd)
			return
		}
		in.TrialEndDate = &d
	}

	sub, err := h.service.Create(r.Context(), in)
	if err != nil {
		log.Error("failed to create subscription", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("subscription created", slog.String("subscription_id", sub.ID.String()))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(sub))
}

// Package create реализует HTTP-обработчик создания тарифного плана.
//
// План создаётся в Openpay и затем сохраняется локально. Если локальная запись
// не удалась, план остаётся в шлюзе, а в очередь уходит оповещение о расхождении.
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

// Request описывает новый план.
type Request struct {
	Name             string       `json:"name" validate:"required,max=255" example:"Monthly"`
	Amount           money.Amount `json:"amount" swaggertype:"number" example:"199.00"`
	Currency         string       `json:"currency" validate:"omitempty,len=3" example:"MXN"`
	RepeatEvery      int          `json:"repeat_every" validate:"min=0" example:"1"`
	RepeatUnit       string       `json:"repeat_unit" validate:"omitempty,oneof=week month year" example:"month"`
	RetryTimes       int          `json:"retry_times" validate:"min=0"`
	StatusAfterRetry string       `json:"status_after_retry" validate:"omitempty,oneof=unpaid cancelled" example:"cancelled"`
	TrialDays        int          `json:"trial_days" validate:"min=0"`
}

// Service описывает создание плана.
type Service interface {
	CreatePlan(ctx context.Context, req catalog.PlanRequest) (*models.Plan, error)
}

// Handler обрабатывает создание планов.
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
// @Summary Создать тарифный план
// @Description Создаёт план в Openpay и сохраняет его локально. Только для администратора.
// @Tags Plans
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Параметры плана"
// @Success 201 {object} response.Response{data=models.Plan}
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse "План создан в шлюзе, но не сохранён"
// @Router /plans [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.create"
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

	plan, err := h.service.CreatePlan(r.Context(), catalog.PlanRequest(req))
	if err != nil {
		log.Error("failed to create plan", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("plan created", slog.String("openpay_id", plan.GatewayPlanID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(plan))
}

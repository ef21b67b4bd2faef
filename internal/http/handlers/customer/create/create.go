// Package create реализует HTTP-обработчик регистрации клиента.
//
// Клиент создаётся одновременно в платёжном шлюзе и в локальном хранилище
// вместе с первым (основным) адресом.
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

	"github.com/magabrotheeeer/payflow/internal/http/response"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/services/customer"
)

const birthDateLayout = "2006-01-02"

var errInvalidBirthDate = errors.New("field birth_date must be in format YYYY-MM-DD")

// AddressRequest — адрес клиента.
type AddressRequest struct {
	Line1       string `json:"line1" validate:"required,max=255"`
	Line2       string `json:"line2" validate:"max=255"`
	City        string `json:"city" validate:"required,max=100"`
	State       string `json:"state" validate:"required,max=100"`
	PostalCode  string `json:"postal_code" validate:"required,max=10"`
	CountryCode string `json:"country_code" validate:"required,len=2,uppercase"`
}

// Request — данные нового клиента.
type Request struct {
	Name        string         `json:"name" validate:"required,max=100"`
	LastName    string         `json:"last_name" validate:"max=100"`
	Email       string         `json:"email" validate:"required,email"`
	PhoneNumber string         `json:"phone_number" validate:"omitempty,numeric,max=20"`
	Password    string         `json:"password" validate:"required,min=6,max=72"`
	BirthDate   string         `json:"birth_date" example:"1990-04-17"`
	Address     AddressRequest `json:"address" validate:"required"`
}

// Service описывает создание клиента.
type Service interface {
	ProvisionCustomer(ctx context.Context, req customer.CustomerRequest) (*models.User, error)
}

// Handler обрабатывает регистрацию клиентов.
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
// @Summary Регистрация клиента
// @Description Создаёт клиента в Openpay и локально вместе с основным адресом.
// @Tags Customers
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные клиента"
// @Success 201 {object} response.Response{data=models.User}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Email уже зарегистрирован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Ошибка платёжного шлюза"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /customers [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.customer.create"
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

	var birthDate *time.Time
	if req.BirthDate != "" {
		parsed, err := time.Parse(birthDateLayout, req.BirthDate)
		if err != nil {
			log.Warn("invalid birth date", slog.String("birth_date", req.BirthDate))
			response.Invalid(w, r, errInvalidBirthDate)
			return
		}
		birthDate = &parsed
	}

	user, err := h.service.ProvisionCustomer(r.Context(), customer.CustomerRequest{
		Name:        req.Name,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		BirthDate:   birthDate,
		Address: customer.AddressRequest{
			Line1:       req.Address.Line1,
			Line2:       req.Address.Line2,
			City:        req.Address.City,
			State:       req.Address.State,
			PostalCode:  req.Address.PostalCode,
			CountryCode: req.Address.CountryCode,
		},
	})
	if err != nil {
		log.Error("failed to provision customer", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("customer created", slog.String("user_id", user.ID.String()))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(user))
}

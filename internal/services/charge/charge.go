// Package charge проводит разовые платежи.
//
// Каждый вызов Charge делает ровно одну попытку в шлюзе и сохраняет её
// результат локально, в том числе полностью неуспешный: такие строки
// получают идентификатор вида FAIL-<uuid>.
package charge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/events"
	"github.com/magabrotheeeer/payflow/internal/lib/money"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/openpay"
	"github.com/magabrotheeeer/payflow/internal/storage"
)

// Коды неуспешного платежа, кроме числовых кодов шлюза.
const (
	CodeTimeout     = "GATEWAY_TIMEOUT"
	CodeUnreachable = "GATEWAY_UNREACHABLE"
	CodePayment     = "PAYMENT_ERROR"
)

const (
	methodCard   = "card"
	defaultLimit = 50
	maxLimit     = 200
)

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Repository описывает операции хранилища, нужные сервису.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateCharge(ctx context.Context, c models.Charge) (*models.Charge, error)
	ListCharges(ctx context.Context, f models.ChargeFilter) ([]*models.Charge, error)
	GetChargeByGatewayID(ctx context.Context, gatewayID string) (*models.Charge, error)
	UpdateChargeStatus(ctx context.Context, gatewayID, status string, metadata json.RawMessage) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Gateway создаёт платёж в шлюзе и читает его состояние.
type Gateway interface {
	CreateCharge(ctx context.Context, req openpay.ChargeRequest) (*openpay.Charge, error)
	GetCharge(ctx context.Context, chargeID string) (*openpay.Charge, error)
}

// Caller — пользователь, от имени которого выполняется запрос.
// Администратор видит любые платежи.
type Caller struct {
	UserID uuid.UUID
	Admin  bool
}

// Metrics учитывает сохранённые попытки.
type Metrics interface {
	ChargeRecorded(status string)
}

// Customer передаётся в шлюз и сохраняется в платеже.
type Customer struct {
	Name        string
	LastName    string
	Email       string
	PhoneNumber string
}

// Request — параметры платежа. Сумма задаётся либо явно (Amount),
// либо ценой товара (ProductID).
type Request struct {
	SourceID        string
	Amount          *money.Amount
	Currency        string
	ProductID       *int64
	OrderID         string
	Description     string
	DeviceSessionID string
	Customer        Customer
}

// Failure — нормализованная причина отказа.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result — итог попытки. При Success=false Charge содержит сохранённую
// строку неуспешной попытки без Metadata, если её удалось записать.
type Result struct {
	Success bool            `json:"success"`
	Charge  *models.Charge  `json:"charge,omitempty"`
	Gateway json.RawMessage `json:"gateway_response,omitempty"`
	Error   *Failure        `json:"error,omitempty"`
}

// Service проводит платежи.
type Service struct {
	repo            Repository
	gateway         Gateway
	alerts          events.Publisher
	metrics         Metrics
	log             *slog.Logger
	deviceSessionID string
}

// New создаёт сервис платежей.
func New(repo Repository, gateway Gateway, alerts events.Publisher, metrics Metrics, log *slog.Logger, deviceSessionID string) *Service {
	return &Service{
		repo:            repo,
		gateway:         gateway,
		alerts:          alerts,
		metrics:         metrics,
		log:             log,
		deviceSessionID: deviceSessionID,
	}
}

// Charge делает одну попытку платежа и сохраняет её.
//
// Отказ шлюза, таймаут и недоступность шлюза не являются ошибкой вызова:
// они возвращаются в Result со Success=false. Ошибка возвращается для
// неверных данных, отсутствующего товара и при потере успешного платежа
// на этапе сохранения.
func (s *Service) Charge(ctx context.Context, req Request) (*Result, error) {
	const op = "services.charge.Charge"
	log := s.log.With(sl.Op(op))

	if strings.TrimSpace(req.SourceID) == "" {
		return nil, apperr.Validation("source_id is required")
	}
	if (req.Amount == nil) == (req.ProductID == nil) {
		return nil, apperr.Validation("exactly one of amount or product_id is required")
	}

	amount, currency := money.Amount(0), strings.ToUpper(req.Currency)
	description := req.Description
	if req.ProductID != nil {
		product, err := s.repo.GetProduct(ctx, *req.ProductID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && !product.IsActive) {
			return nil, apperr.NotFound("product not found")
		}
		if err != nil {
			log.Error("failed to load product", sl.Err(err))
			return nil, apperr.Persistence("failed to load product", err)
		}
		amount, currency = product.Price, product.Currency
		if description == "" {
			description = "Payment for: " + product.Name
		}
	} else {
		amount = *req.Amount
	}
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	if currency == "" {
		currency = money.DefaultCurrency
	}
	if !currencyRe.MatchString(currency) {
		return nil, apperr.Validation("currency must be a 3-letter code")
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = "ORDER-" + uuid.NewString()
	}
	deviceSessionID := req.DeviceSessionID
	if deviceSessionID == "" {
		deviceSessionID = s.deviceSessionID
	}

	gwReq := openpay.ChargeRequest{
		SourceID:        req.SourceID,
		Method:          methodCard,
		Amount:          amount,
		Currency:        currency,
		Description:     description,
		OrderID:         orderID,
		DeviceSessionID: deviceSessionID,
	}
	if req.Customer.Email != "" || req.Customer.Name != "" {
		gwReq.Customer = &openpay.ChargeCustomer{
			Name:        req.Customer.Name,
			LastName:    req.Customer.LastName,
			Email:       req.Customer.Email,
			PhoneNumber: req.Customer.PhoneNumber,
		}
	}

	local := models.Charge{
		OrderID:       orderID,
		ProductID:     req.ProductID,
		SourceID:      req.SourceID,
		Amount:        amount,
		Currency:      currency,
		CustomerName:  strings.TrimSpace(req.Customer.Name + " " + req.Customer.LastName),
		CustomerEmail: req.Customer.Email,
		Description:   description,
	}

	gwCharge, err := s.gateway.CreateCharge(ctx, gwReq)
	if err != nil {
		return s.recordFailure(ctx, log, local, err), nil
	}

	applyGatewayCharge(&local, gwCharge)
	saved, err := s.repo.CreateCharge(ctx, local)
	if err != nil {
		log.Error("charge succeeded at gateway but was not recorded",
			slog.String("charge_id", gwCharge.ID), sl.Err(err))
		if pubErr := s.alerts.PublishDrift(context.WithoutCancel(ctx), models.DriftAlert{
			Kind:       models.DriftChargeUnrecorded,
			GatewayID:  gwCharge.ID,
			CustomerID: gwCharge.CustomerID,
			Email:      req.Customer.Email,
			Reason:     err.Error(),
		}); pubErr != nil {
			log.Error("failed to publish drift alert", sl.Err(pubErr))
		}
		return nil, apperr.Persistence("charge was processed but could not be recorded", err)
	}
	s.metrics.ChargeRecorded(saved.Status)

	log.Info("charge processed",
		slog.String("charge_id", saved.GatewayChargeID),
		slog.String("status", saved.Status),
	)
	return &Result{
		Success: true,
		Charge:  saved,
		Gateway: gwCharge.Raw,
	}, nil
}

// recordFailure сохраняет неуспешную попытку. Ошибка сохранения только логируется.
func (s *Service) recordFailure(ctx context.Context, log *slog.Logger, c models.Charge, gwErr error) *Result {
	failure := classify(gwErr)
	log.Warn("charge failed",
		slog.String("order_id", c.OrderID),
		slog.String("code", failure.Code),
		sl.Err(gwErr),
	)

	c.GatewayChargeID = models.FailedChargePrefix + uuid.NewString()
	c.Status = models.ChargeFailed
	c.ErrorCode = &failure.Code
	c.ErrorMessage = &failure.Message
	c.Metadata = failureMetadata(gwErr, failure)
	c.CreationDate = time.Now().UTC()

	res := &Result{Success: false, Error: &failure}
	saved, err := s.repo.CreateCharge(context.WithoutCancel(ctx), c)
	if err != nil {
		log.Error("failed to record failed charge", slog.String("order_id", c.OrderID), sl.Err(err))
		return res
	}
	s.metrics.ChargeRecorded(saved.Status)
	// ответ шлюза и причина отказа остаются только в хранилище
	res.Charge = withoutMetadata(saved)
	return res
}

// List возвращает платежи по фильтру, новые первыми.
func (s *Service) List(ctx context.Context, f models.ChargeFilter) ([]*models.Charge, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	charges, err := s.repo.ListCharges(ctx, f)
	if err != nil {
		s.log.Error("failed to list charges", sl.Err(err))
		return nil, apperr.Persistence("failed to list charges", err)
	}
	if charges == nil {
		charges = []*models.Charge{}
	}
	return charges, nil
}

// Refresh перечитывает платёж из шлюза и перезаписывает локальные статус
// и метаданные. Платёж с идентификатором FAIL- в шлюз не запрашивается.
// Чужой платёж для обычного пользователя не существует.
func (s *Service) Refresh(ctx context.Context, caller Caller, gatewayID string) (*models.Charge, error) {
	const op = "services.charge.Refresh"
	log := s.log.With(sl.Op(op), slog.String("charge_id", gatewayID))

	local, err := s.repo.GetChargeByGatewayID(ctx, gatewayID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("charge not found")
	}
	if err != nil {
		log.Error("failed to load charge", sl.Err(err))
		return nil, apperr.Persistence("failed to load charge", err)
	}
	if !caller.Admin {
		owner, err := s.owner(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if !owner.Owns(local) {
			log.Warn("charge requested by another user", slog.String("user_id", caller.UserID.String()))
			return nil, apperr.NotFound("charge not found")
		}
	}
	if strings.HasPrefix(local.GatewayChargeID, models.FailedChargePrefix) {
		return withoutMetadata(local), nil
	}

	remote, err := s.gateway.GetCharge(ctx, gatewayID)
	if openpay.IsNotFound(err) {
		log.Warn("charge is missing at gateway")
		return nil, apperr.NotFound("charge not found at gateway")
	}
	if err != nil {
		log.Error("failed to fetch charge", sl.Err(err))
		return nil, apperr.Gateway(openpay.Message(err), err)
	}

	status := remote.Status
	if status == "" {
		status = local.Status
	}
	if err := s.repo.UpdateChargeStatus(ctx, gatewayID, status, remote.Raw); err != nil {
		log.Error("failed to update charge", sl.Err(err))
		return nil, apperr.Persistence("failed to update charge", err)
	}
	if status != local.Status {
		log.Info("charge status refreshed", slog.String("from", local.Status), slog.String("to", status))
	}

	local.Status = status
	local.Metadata = remote.Raw
	if opDate := remote.OperationDate.Ptr(); opDate != nil {
		local.OperationDate = opDate
	}
	if remote.Authorization != "" {
		local.AuthorizationCode = remote.Authorization
	}
	return local, nil
}

// ListOwned возвращает платежи пользователя, новые первыми.
func (s *Service) ListOwned(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Charge, error) {
	owner, err := s.owner(ctx, userID)
	if err != nil {
		return nil, err
	}
	charges, err := s.List(ctx, models.ChargeFilter{Owner: &owner, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	for i, c := range charges {
		if strings.HasPrefix(c.GatewayChargeID, models.FailedChargePrefix) {
			charges[i] = withoutMetadata(c)
		}
	}
	return charges, nil
}

func (s *Service) owner(ctx context.Context, userID uuid.UUID) (models.ChargeOwner, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.ChargeOwner{}, apperr.NotFound("user not found")
	}
	if err != nil {
		s.log.Error("failed to load user", sl.Op("services.charge.owner"), sl.Err(err))
		return models.ChargeOwner{}, apperr.Persistence("failed to load user", err)
	}
	return models.ChargeOwner{Email: user.Email, CustomerID: user.CustomerID()}, nil
}

// withoutMetadata убирает из копии платежа ответ шлюза и причину отказа.
func withoutMetadata(c *models.Charge) *models.Charge {
	cp := *c
	cp.Metadata = nil
	return &cp
}

func classify(err error) Failure {
	var apiErr *openpay.Error
	switch {
	case errors.As(err, &apiErr):
		code := apiErr.Code()
		if code == "" {
			code = CodePayment
		}
		return Failure{Code: code, Message: openpay.ChargeMessage(apiErr.ErrorCode)}
	case errors.Is(err, openpay.ErrTimeout):
		return Failure{Code: CodeTimeout, Message: openpay.Message(err)}
	case errors.Is(err, openpay.ErrUnreachable):
		return Failure{Code: CodeUnreachable, Message: openpay.Message(err)}
	default:
		return Failure{Code: CodePayment, Message: openpay.ChargeMessage(0)}
	}
}

func failureMetadata(err error, f Failure) json.RawMessage {
	var apiErr *openpay.Error
	if errors.As(err, &apiErr) && json.Valid(apiErr.Raw) {
		return apiErr.Raw
	}
	b, mErr := json.Marshal(map[string]string{
		"error_code": f.Code,
		"message":    f.Message,
		"cause":      err.Error(),
	})
	if mErr != nil {
		return nil
	}
	return b
}

func applyGatewayCharge(c *models.Charge, g *openpay.Charge) {
	c.GatewayChargeID = g.ID
	if g.OrderID != "" {
		c.OrderID = g.OrderID
	}
	if g.Amount.IsPositive() {
		c.Amount = g.Amount
	}
	if g.Currency != "" {
		c.Currency = strings.ToUpper(g.Currency)
	}
	if g.Description != "" {
		c.Description = g.Description
	}
	c.Status = g.Status
	c.AuthorizationCode = g.Authorization
	c.CustomerID = g.CustomerID
	c.Metadata = g.Raw
	c.CreationDate = g.CreationDate.Time
	if c.CreationDate.IsZero() {
		c.CreationDate = time.Now().UTC()
	}
	c.OperationDate = g.OperationDate.Ptr()
	if g.ErrorMessage != nil {
		c.ErrorMessage = g.ErrorMessage
	}
}

// ParseProductID разбирает идентификатор товара из строки запроса.
func ParseProductID(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperr.Validation("product_id must be a positive integer")
	}
	return &id, nil
}

// Package catalog управляет товарами и тарифными планами.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/cache"
	"github.com/magabrotheeeer/payflow/internal/events"
	"github.com/magabrotheeeer/payflow/internal/lib/money"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/openpay"
	"github.com/magabrotheeeer/payflow/internal/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

var (
	currencyRe         = regexp.MustCompile(`^[A-Z]{3}$`)
	repeatUnits        = map[string]bool{"week": true, "month": true, "year": true}
	afterRetryStatuses = map[string]bool{"unpaid": true, "cancelled": true}
)

// Repository описывает операции хранилища каталога.
type Repository interface {
	CreateProduct(ctx context.Context, p models.Product) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.Product, error)
	CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error)
	GetPlanByGatewayID(ctx context.Context, gatewayID string) (*models.Plan, error)
}

// Gateway создаёт план в шлюзе.
type Gateway interface {
	CreatePlan(ctx context.Context, req openpay.PlanRequest) (*openpay.Plan, error)
}

// Cache описывает методы для кеширования планов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// ProductRequest — данные нового товара.
type ProductRequest struct {
	Name        string
	Description string
	Price       money.Amount
	Currency    string
	Quantity    int
	Category    string
	ImageURL    string
}

// PlanRequest — данные нового плана.
type PlanRequest struct {
	Name             string
	Amount           money.Amount
	Currency         string
	RepeatEvery      int
	RepeatUnit       string
	RetryTimes       int
	StatusAfterRetry string
	TrialDays        int
}

// Service управляет каталогом.
type Service struct {
	repo    Repository
	gateway Gateway
	cache   Cache
	alerts  events.Publisher
	log     *slog.Logger
	planTTL time.Duration
}

// New создаёт сервис каталога. planTTL задаёт время жизни плана в кеше.
func New(repo Repository, gateway Gateway, cache Cache, alerts events.Publisher, log *slog.Logger, planTTL time.Duration) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		cache:   cache,
		alerts:  alerts,
		log:     log,
		planTTL: planTTL,
	}
}

// CreateProduct сохраняет новый активный товар.
func (s *Service) CreateProduct(ctx context.Context, req ProductRequest) (*models.Product, error) {
	const op = "services.catalog.CreateProduct"
	log := s.log.With(sl.Op(op))

	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.Validation("name is required")
	}
	if !req.Price.IsPositive() {
		return nil, apperr.Validation("price must be positive")
	}
	if req.Quantity < 0 {
		return nil, apperr.Validation("quantity must not be negative")
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.CreateProduct(ctx, models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    currency,
		Quantity:    req.Quantity,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		IsActive:    true,
	})
	if err != nil {
		log.Error("failed to save product", sl.Err(err))
		return nil, apperr.Persistence("failed to save product", err)
	}
	log.Info("product created", slog.Int64("product_id", product.ID))
	return product, nil
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("product not found")
	}
	if err != nil {
		s.log.Error("failed to load product", slog.Int64("product_id", id), sl.Err(err))
		return nil, apperr.Persistence("failed to load product", err)
	}
	return product, nil
}

// ListProducts возвращает товары по возрастанию идентификатора.
func (s *Service) ListProducts(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.Product, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	products, err := s.repo.ListProducts(ctx, activeOnly, limit, offset)
	if err != nil {
		s.log.Error("failed to list products", sl.Err(err))
		return nil, apperr.Persistence("failed to list products", err)
	}
	if products == nil {
		products = []*models.Product{}
	}
	return products, nil
}

// CreatePlan создаёт план в шлюзе и сохраняет его зеркало.
// Компенсации нет: план без локальной записи даёт сигнал plan.orphaned.
func (s *Service) CreatePlan(ctx context.Context, req PlanRequest) (*models.Plan, error) {
	const op = "services.catalog.CreatePlan"
	log := s.log.With(sl.Op(op), slog.String("name", req.Name))

	if err := validatePlan(&req); err != nil {
		return nil, err
	}

	gwPlan, err := s.gateway.CreatePlan(ctx, openpay.PlanRequest{
		Name:             req.Name,
		Amount:           req.Amount,
		Currency:         req.Currency,
		RepeatEvery:      req.RepeatEvery,
		RepeatUnit:       req.RepeatUnit,
		RetryTimes:       req.RetryTimes,
		StatusAfterRetry: req.StatusAfterRetry,
		TrialDays:        req.TrialDays,
	})
	if err != nil {
		log.Error("gateway rejected plan", sl.Err(err))
		return nil, apperr.Gateway(openpay.Message(err), err)
	}

	plan, err := s.repo.CreatePlan(ctx, planFromGateway(gwPlan, req))
	if err != nil {
		log.Error("plan created at gateway but not saved", slog.String("openpay_id", gwPlan.ID), sl.Err(err))
		if pubErr := s.alerts.PublishDrift(context.WithoutCancel(ctx), models.DriftAlert{
			Kind:      models.DriftPlanOrphaned,
			GatewayID: gwPlan.ID,
			Reason:    err.Error(),
		}); pubErr != nil {
			log.Error("failed to publish drift alert", sl.Err(pubErr))
		}
		return nil, apperr.Persistence("failed to save plan", err)
	}

	if err := s.cache.Invalidate(ctx, cache.PlanKey(plan.GatewayPlanID)); err != nil {
		log.Warn("failed to invalidate plan cache", sl.Err(err))
	}
	log.Info("plan created", slog.String("openpay_id", plan.GatewayPlanID))
	return plan, nil
}

// PlanByGatewayID ищет план сначала в кеше, затем в хранилище.
// Ошибки кеша не мешают чтению из хранилища.
func (s *Service) PlanByGatewayID(ctx context.Context, gatewayPlanID string) (*models.Plan, error) {
	const op = "services.catalog.PlanByGatewayID"
	log := s.log.With(sl.Op(op), slog.String("plan_id", gatewayPlanID))
	key := cache.PlanKey(gatewayPlanID)

	var cached models.Plan
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Warn("plan cache unavailable", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	plan, err := s.repo.GetPlanByGatewayID(ctx, gatewayPlanID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("plan not found")
	}
	if err != nil {
		log.Error("failed to load plan", sl.Err(err))
		return nil, apperr.Persistence("failed to load plan", err)
	}

	if err := s.cache.Set(ctx, key, plan, s.planTTL); err != nil {
		log.Warn("failed to cache plan", sl.Err(err))
	}
	return plan, nil
}

func validatePlan(req *PlanRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return apperr.Validation("name is required")
	}
	if !req.Amount.IsPositive() {
		return apperr.Validation("amount must be positive")
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return err
	}
	req.Currency = currency
	if req.RepeatEvery <= 0 {
		req.RepeatEvery = 1
	}
	if req.RepeatUnit == "" {
		req.RepeatUnit = "month"
	}
	if !repeatUnits[req.RepeatUnit] {
		return apperr.Validation("repeat_unit must be one of week, month, year")
	}
	if req.RetryTimes < 0 || req.TrialDays < 0 {
		return apperr.Validation("retry_times and trial_days must not be negative")
	}
	if req.StatusAfterRetry == "" {
		req.StatusAfterRetry = "cancelled"
	}
	if !afterRetryStatuses[req.StatusAfterRetry] {
		return apperr.Validation("status_after_retry must be unpaid or cancelled")
	}
	return nil
}

func normalizeCurrency(c string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return money.DefaultCurrency, nil
	}
	if !currencyRe.MatchString(c) {
		return "", apperr.Validation("currency must be a 3-letter code")
	}
	return c, nil
}

func planFromGateway(g *openpay.Plan, req PlanRequest) models.Plan {
	p := models.Plan{
		GatewayPlanID:    g.ID,
		Name:             req.Name,
		Amount:           req.Amount,
		Currency:         req.Currency,
		RepeatEvery:      req.RepeatEvery,
		RepeatUnit:       req.RepeatUnit,
		RetryTimes:       req.RetryTimes,
		StatusAfterRetry: req.StatusAfterRetry,
		TrialDays:        req.TrialDays,
	}
	if g.Name != "" {
		p.Name = g.Name
	}
	if g.Amount.IsPositive() {
		p.Amount = g.Amount
	}
	if g.Currency != "" {
		p.Currency = strings.ToUpper(g.Currency)
	}
	if g.RepeatUnit != "" && g.RepeatEvery > 0 {
		p.RepeatUnit = g.RepeatUnit
		p.RepeatEvery = g.RepeatEvery
	}
	return p
}

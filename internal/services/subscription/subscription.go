// Package subscription управляет жизненным циклом подписок пользователя.
//
// У пользователя не больше одной неотменённой подписки. Флаг
// has_active_subscription пользователя пересчитывается после каждого
// создания и отмены.
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/events"
	"github.com/magabrotheeeer/payflow/internal/lib/saga"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/openpay"
	"github.com/magabrotheeeer/payflow/internal/storage"
)

const (
	stepGatewaySubscription = "gateway.create_subscription"
	stepStoreSubscription   = "store.create_subscription"
	stepStoreFlag           = "store.set_active_flag"

	trialDateLayout = "2006-01-02"
)

// Repository описывает операции хранилища, нужные сервису.
type Repository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetActiveSubscription(ctx context.Context, userID uuid.UUID, active bool) error
	CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Subscription, error)
	ListOpenSubscriptions(ctx context.Context, userID uuid.UUID) ([]*models.Subscription, error)
	MarkSubscriptionCancelled(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	CountOpenSubscriptions(ctx context.Context, userID, excludeID uuid.UUID) (int, error)
}

// Gateway создаёт и отменяет подписки в шлюзе.
type Gateway interface {
	CreateSubscription(ctx context.Context, customerID string, req openpay.SubscriptionRequest) (*openpay.Subscription, error)
	CancelSubscription(ctx context.Context, customerID, subscriptionID string) error
}

// Plans находит план по идентификатору шлюза.
type Plans interface {
	PlanByGatewayID(ctx context.Context, gatewayPlanID string) (*models.Plan, error)
}

// CardRequest передаётся в шлюз вместе с подпиской.
type CardRequest struct {
	CardNumber      string
	HolderName      string
	ExpirationYear  string
	ExpirationMonth string
	CVV2            string
}

// CreateRequest — параметры новой подписки. Источник средств задаётся
// ровно одним из SourceID или Card.
type CreateRequest struct {
	UserID          uuid.UUID
	PlanID          string
	SourceID        string
	Card            *CardRequest
	TrialEndDate    *time.Time
	DeviceSessionID string
}

// Service управляет подписками.
type Service struct {
	repo    Repository
	gateway Gateway
	plans   Plans
	alerts  events.Publisher
	log     *slog.Logger
}

// New создаёт сервис подписок.
func New(repo Repository, gateway Gateway, plans Plans, alerts events.Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		plans:   plans,
		alerts:  alerts,
		log:     log,
	}
}

// Create подписывает пользователя на план.
//
// Наличие неотменённой подписки отклоняется как Conflict до обращения к шлюзу.
// Компенсаций нет: если подписка создана в шлюзе, но не сохранена локально,
// публикуется сигнал subscription.unmirrored. Если не обновился только флаг
// пользователя, публикуется subscription.flag_stale.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Subscription, error) {
	const op = "services.subscription.Create"
	log := s.log.With(sl.Op(op), slog.String("user_id", req.UserID.String()))

	if strings.TrimSpace(req.PlanID) == "" {
		return nil, apperr.Validation("plan_id is required")
	}
	if (req.SourceID == "") == (req.Card == nil) {
		return nil, apperr.Validation("exactly one of source_id or card is required")
	}

	user, err := s.repo.GetUserByID(ctx, req.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		return nil, apperr.Persistence("failed to load user", err)
	}
	customerID := user.CustomerID()
	if customerID == "" {
		return nil, apperr.Precondition("user has no payment gateway customer")
	}

	open, err := s.repo.ListOpenSubscriptions(ctx, user.ID)
	if err != nil {
		log.Error("failed to check open subscriptions", sl.Err(err))
		return nil, apperr.Persistence("failed to check subscriptions", err)
	}
	if len(open) > 0 {
		return nil, apperr.Conflict("user already has an active subscription", nil)
	}

	plan, err := s.plans.PlanByGatewayID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	gwReq := openpay.SubscriptionRequest{
		PlanID:          plan.GatewayPlanID,
		SourceID:        req.SourceID,
		DeviceSessionID: req.DeviceSessionID,
	}
	if req.Card != nil {
		gwReq.Card = &openpay.CardRequest{
			CardNumber:      req.Card.CardNumber,
			HolderName:      req.Card.HolderName,
			ExpirationYear:  req.Card.ExpirationYear,
			ExpirationMonth: req.Card.ExpirationMonth,
			CVV2:            req.Card.CVV2,
		}
	}
	if req.TrialEndDate != nil {
		gwReq.TrialEndDate = req.TrialEndDate.Format(trialDateLayout)
	}

	var (
		gwSub *openpay.Subscription
		sub   *models.Subscription
	)
	run := saga.New("subscription", log,
		saga.Step{
			Name: stepGatewaySubscription,
			Do: func(ctx context.Context) error {
				var err error
				gwSub, err = s.gateway.CreateSubscription(ctx, customerID, gwReq)
				return err
			},
		},
		saga.Step{
			Name: stepStoreSubscription,
			Do: func(ctx context.Context) error {
				var err error
				sub, err = s.repo.CreateSubscription(ctx, mirror(gwSub, user, plan))
				return err
			},
		},
		saga.Step{
			Name: stepStoreFlag,
			Do: func(ctx context.Context) error {
				return s.repo.SetActiveSubscription(ctx, user.ID, true)
			},
		},
	)

	if err := run.Run(ctx); err != nil {
		var stepErr *saga.StepError
		if !errors.As(err, &stepErr) || stepErr.Step == stepGatewaySubscription {
			return nil, apperr.Gateway(openpay.Message(err), err)
		}
		kind := models.DriftSubscriptionUnmirrored
		if stepErr.Step == stepStoreFlag {
			// строка подписки сохранена, has_active_subscription остался false
			kind = models.DriftSubscriptionFlagStale
		}
		s.publish(ctx, models.DriftAlert{
			Kind:       kind,
			GatewayID:  gwSub.ID,
			CustomerID: customerID,
			UserID:     user.ID.String(),
			Reason:     stepErr.Error(),
		})
		if errors.Is(err, storage.ErrUniqueViolation) {
			return nil, apperr.Conflict("user already has an active subscription", err)
		}
		return nil, apperr.Persistence("failed to save subscription", err)
	}

	log.Info("subscription created",
		slog.String("subscription_id", sub.ID.String()),
		slog.String("openpay_id", sub.GatewaySubscriptionID),
		slog.String("status", sub.Status),
	)
	return sub, nil
}

// Cancel отменяет подписку в шлюзе и локально.
// Подписка, которой уже нет в шлюзе, считается отменённой.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	const op = "services.subscription.Cancel"
	log := s.log.With(sl.Op(op), slog.String("subscription_id", id.String()))

	sub, err := s.repo.GetSubscription(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("subscription not found")
	}
	if err != nil {
		log.Error("failed to load subscription", sl.Err(err))
		return nil, apperr.Persistence("failed to load subscription", err)
	}

	if sub.IsCancelled() {
		if err := s.syncFlag(ctx, sub); err != nil {
			log.Error("failed to recompute active flag", sl.Err(err))
			return nil, apperr.Persistence("failed to update user", err)
		}
		return sub, nil
	}

	err = s.gateway.CancelSubscription(ctx, sub.GatewayCustomerID, sub.GatewaySubscriptionID)
	switch {
	case openpay.IsNotFound(err):
		log.Warn("subscription already gone at gateway", slog.String("openpay_id", sub.GatewaySubscriptionID))
	case err != nil:
		log.Error("gateway cancel failed", sl.Err(err))
		return nil, apperr.Gateway(openpay.Message(err), err)
	}

	cancelled, err := s.repo.MarkSubscriptionCancelled(ctx, sub.ID)
	if err != nil {
		log.Error("failed to mark subscription cancelled", sl.Err(err))
		return nil, apperr.Persistence("failed to save subscription", err)
	}
	if err := s.syncFlag(ctx, cancelled); err != nil {
		log.Error("failed to recompute active flag", sl.Err(err))
		return nil, apperr.Persistence("failed to update user", err)
	}

	log.Info("subscription cancelled")
	return cancelled, nil
}

// CancelOwned отменяет подписку от имени пользователя.
// Чужая подписка для него не существует.
func (s *Service) CancelOwned(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error) {
	const op = "services.subscription.CancelOwned"

	sub, err := s.repo.GetSubscription(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("subscription not found")
	}
	if err != nil {
		s.log.Error("failed to load subscription", sl.Op(op), sl.Err(err))
		return nil, apperr.Persistence("failed to load subscription", err)
	}
	if sub.UserID != userID {
		s.log.Warn("cancel of foreign subscription rejected", sl.Op(op),
			slog.String("subscription_id", id.String()),
			slog.String("user_id", userID.String()),
		)
		return nil, apperr.NotFound("subscription not found")
	}
	return s.Cancel(ctx, id)
}

// History возвращает все подписки пользователя от новых к старым.
func (s *Service) History(ctx context.Context, userID uuid.UUID) (*models.SubscriptionHistory, error) {
	const op = "services.subscription.History"
	log := s.log.With(sl.Op(op), slog.String("user_id", userID.String()))

	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		return nil, apperr.Persistence("failed to load user", err)
	}

	subs, err := s.repo.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		log.Error("failed to list subscriptions", sl.Err(err))
		return nil, apperr.Persistence("failed to list subscriptions", err)
	}

	history := &models.SubscriptionHistory{
		Subscriptions:         make([]*models.Subscription, 0, len(subs)),
		HasActiveSubscription: user.HasActiveSubscription,
	}
	for _, sub := range subs {
		history.Subscriptions = append(history.Subscriptions, sub)
		if history.Current == nil && !sub.IsCancelled() {
			history.Current = sub
		}
	}
	return history, nil
}

// syncFlag выставляет флаг пользователя по числу оставшихся неотменённых подписок.
func (s *Service) syncFlag(ctx context.Context, sub *models.Subscription) error {
	n, err := s.repo.CountOpenSubscriptions(ctx, sub.UserID, sub.ID)
	if err != nil {
		return err
	}
	return s.repo.SetActiveSubscription(ctx, sub.UserID, n > 0)
}

func (s *Service) publish(ctx context.Context, alert models.DriftAlert) {
	if err := s.alerts.PublishDrift(context.WithoutCancel(ctx), alert); err != nil {
		s.log.Error("failed to publish drift alert",
			slog.String("kind", alert.Kind),
			slog.String("gateway_id", alert.GatewayID),
			sl.Err(err),
		)
	}
}

func mirror(g *openpay.Subscription, user *models.User, plan *models.Plan) models.Subscription {
	sub := models.Subscription{
		UserID:                user.ID,
		PlanID:                plan.ID,
		GatewaySubscriptionID: g.ID,
		GatewayPlanID:         plan.GatewayPlanID,
		GatewayCustomerID:     user.CustomerID(),
		Status:                g.Status,
		CancelAtPeriodEnd:     g.CancelAtPeriodEnd,
		ChargeDate:            g.ChargeDate.Ptr(),
		CurrentPeriodNumber:   g.CurrentPeriodNumber,
		PeriodEndDate:         g.PeriodEndDate.Ptr(),
		TrialEndDate:          g.TrialEndDate.Ptr(),
		Card:                  g.Card,
		CreationDate:          g.CreationDate.Ptr(),
	}
	if g.CustomerID != "" {
		sub.GatewayCustomerID = g.CustomerID
	}
	if g.PlanID != "" {
		sub.GatewayPlanID = g.PlanID
	}
	if sub.Status == "" {
		sub.Status = models.SubscriptionActive
	}
	return sub
}

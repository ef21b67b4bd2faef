package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/payflow/internal/models"
)

const subscriptionColumns = `id, user_id, plan_id, openpay_id, openpay_plan_id, customer_id, status,
	cancel_at_period_end, charge_date, current_period_number, period_end_date, trial_end_date,
	card, creation_date, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var (
		sub          models.Subscription
		chargeDate   sql.NullTime
		periodEnd    sql.NullTime
		trialEnd     sql.NullTime
		creationDate sql.NullTime
		card         []byte
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &sub.GatewaySubscriptionID, &sub.GatewayPlanID,
		&sub.GatewayCustomerID, &sub.Status, &sub.CancelAtPeriodEnd, &chargeDate, &sub.CurrentPeriodNumber,
		&periodEnd, &trialEnd, &card, &creationDate, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.ChargeDate = timePtr(chargeDate)
	sub.PeriodEndDate = timePtr(periodEnd)
	sub.TrialEndDate = timePtr(trialEnd)
	sub.CreationDate = timePtr(creationDate)
	if len(card) > 0 {
		sub.Card = json.RawMessage(card)
	}
	return &sub, nil
}

// CreateSubscription сохраняет зеркало подписки шлюза.
// Вторая неотменённая подписка пользователя даёт ErrUniqueViolation.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	query := `INSERT INTO subscriptions (id, user_id, plan_id, openpay_id, openpay_plan_id, customer_id,
			      status, cancel_at_period_end, charge_date, current_period_number, period_end_date,
			      trial_end_date, card, creation_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			  RETURNING ` + subscriptionColumns
	created, err := scanSubscription(s.DB.QueryRowContext(ctx, query,
		sub.ID, sub.UserID, sub.PlanID, sub.GatewaySubscriptionID, sub.GatewayPlanID, sub.GatewayCustomerID,
		sub.Status, sub.CancelAtPeriodEnd, nullTime(sub.ChargeDate), sub.CurrentPeriodNumber,
		nullTime(sub.PeriodEndDate), nullTime(sub.TrialEndDate), nullJSON(sub.Card), nullTime(sub.CreationDate)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return created, nil
}

// GetSubscription возвращает подписку по локальному идентификатору.
func (s *Storage) GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return sub, nil
}

// ListSubscriptionsByUser возвращает все подписки пользователя, новые первыми.
func (s *Storage) ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsByUser"
	return s.listSubscriptions(ctx, op,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListOpenSubscriptions возвращает неотменённые подписки пользователя.
func (s *Storage) ListOpenSubscriptions(ctx context.Context, userID uuid.UUID) ([]*models.Subscription, error) {
	const op = "storage.ListOpenSubscriptions"
	return s.listSubscriptions(ctx, op,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = $1 AND status <> 'cancelled' ORDER BY created_at DESC`, userID)
}

func (s *Storage) listSubscriptions(ctx context.Context, op, query string, args ...any) ([]*models.Subscription, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkSubscriptionCancelled переводит подписку в cancelled и возвращает её.
func (s *Storage) MarkSubscriptionCancelled(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	const op = "storage.MarkSubscriptionCancelled"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`UPDATE subscriptions SET status = 'cancelled', cancel_at_period_end = false, updated_at = NOW()
		 WHERE id = $1 RETURNING `+subscriptionColumns, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return sub, nil
}

// CountOpenSubscriptions считает неотменённые подписки пользователя,
// не считая excludeID.
func (s *Storage) CountOpenSubscriptions(ctx context.Context, userID, excludeID uuid.UUID) (int, error) {
	const op = "storage.CountOpenSubscriptions"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE user_id = $1 AND status <> 'cancelled' AND id <> $2`,
		userID, excludeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

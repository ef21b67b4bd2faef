package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Статусы подписки в словаре шлюза.
const (
	SubscriptionActive    = "active"
	SubscriptionTrial     = "trial"
	SubscriptionPastDue   = "past_due"
	SubscriptionUnpaid    = "unpaid"
	SubscriptionCancelled = "cancelled"
)

// Subscription — подписка пользователя на план.
// У пользователя может быть не больше одной подписки в статусе,
// отличном от cancelled. Строки не удаляются.
type Subscription struct {
	ID                    uuid.UUID       `json:"id"`
	UserID                uuid.UUID       `json:"user_id"`
	PlanID                int64           `json:"plan_id"`
	GatewaySubscriptionID string          `json:"openpay_id"`
	GatewayPlanID         string          `json:"openpay_plan_id"`
	GatewayCustomerID     string          `json:"customer_id"`
	Status                string          `json:"status"`
	CancelAtPeriodEnd     bool            `json:"cancel_at_period_end"`
	ChargeDate            *time.Time      `json:"charge_date,omitempty"`
	CurrentPeriodNumber   int             `json:"current_period_number"`
	PeriodEndDate         *time.Time      `json:"period_end_date,omitempty"`
	TrialEndDate          *time.Time      `json:"trial_end_date,omitempty"`
	Card                  json.RawMessage `json:"card,omitempty"`
	CreationDate          *time.Time      `json:"creation_date,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// IsCancelled сообщает, что подписка в терминальном статусе.
func (s *Subscription) IsCancelled() bool {
	return s.Status == SubscriptionCancelled
}

// SubscriptionHistory — история подписок пользователя от новых к старым
// и указатель на текущую неотменённую подписку.
type SubscriptionHistory struct {
	Subscriptions         []*Subscription `json:"subscriptions"`
	Current               *Subscription   `json:"current"`
	HasActiveSubscription bool            `json:"has_active_subscription"`
}

package models

import (
	"time"

	"github.com/magabrotheeeer/payflow/internal/lib/money"
)

// Plan — тарифный план, зеркало плана в шлюзе.
// Ищется по GatewayPlanID при создании подписки.
type Plan struct {
	ID               int64        `json:"id"`
	GatewayPlanID    string       `json:"openpay_id"`
	Name             string       `json:"name"`
	Amount           money.Amount `json:"amount"`
	Currency         string       `json:"currency"`
	RepeatEvery      int          `json:"repeat_every"`
	RepeatUnit       string       `json:"repeat_unit"`
	RetryTimes       int          `json:"retry_times"`
	StatusAfterRetry string       `json:"status_after_retry"`
	TrialDays        int          `json:"trial_days"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Product — товар, цена которого может быть суммой разового платежа.
type Product struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       money.Amount `json:"price"`
	Currency    string       `json:"currency"`
	Quantity    int          `json:"quantity"`
	Category    string       `json:"category"`
	ImageURL    string       `json:"image_url,omitempty"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

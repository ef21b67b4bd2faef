package models

import "time"

// Виды расхождений между шлюзом и локальным хранилищем.
const (
	DriftCustomerOrphaned       = "customer.orphaned"
	DriftCardOrphaned           = "card.orphaned"
	DriftPlanOrphaned           = "plan.orphaned"
	DriftChargeUnrecorded       = "charge.unrecorded"
	DriftSubscriptionUnmirrored = "subscription.unmirrored"
	DriftSubscriptionFlagStale  = "subscription.flag_stale"
	DriftCompensationFailed     = "compensation.failed"
)

// DriftAlert — сообщение о ресурсе, который существует в шлюзе,
// но не отражён локально. Автоматически не исправляется.
type DriftAlert struct {
	Kind       string    `json:"kind"`
	GatewayID  string    `json:"gateway_id"`
	CustomerID string    `json:"customer_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

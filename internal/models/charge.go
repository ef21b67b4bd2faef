package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/magabrotheeeer/payflow/internal/lib/money"
)

// Статусы платежа. Статусы шлюза сохраняются как есть,
// ChargeFailed проставляется локально для неуспешных попыток.
const (
	ChargeInProgress = "in_progress"
	ChargeCompleted  = "completed"
	ChargeFailed     = "failed"
	ChargeCancelled  = "cancelled"
)

// FailedChargePrefix — префикс локального идентификатора платежа,
// до которого шлюз не дошёл или вернул ошибку.
const FailedChargePrefix = "FAIL-"

// Charge — одна попытка оплаты. Строка пишется для каждой попытки,
// включая полностью неуспешные, и никогда не удаляется.
type Charge struct {
	ID                int64           `json:"id"`
	GatewayChargeID   string          `json:"openpay_id"`
	OrderID           string          `json:"order_id"`
	ProductID         *int64          `json:"product_id,omitempty"`
	SourceID          string          `json:"source_id"`
	Amount            money.Amount    `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	ErrorCode         *string         `json:"error_code,omitempty"`
	ErrorMessage      *string         `json:"error_message,omitempty"`
	CustomerID        string          `json:"customer_id,omitempty"`
	CustomerName      string          `json:"customer_name"`
	CustomerEmail     string          `json:"customer_email"`
	Description       string          `json:"description"`
	AuthorizationCode string          `json:"authorization,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	CreationDate      time.Time       `json:"creation_date"`
	OperationDate     *time.Time      `json:"operation_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ChargeFilter задаёт выборку платежей.
type ChargeFilter struct {
	ProductID     *int64
	Status        string
	CustomerEmail string
	Owner         *ChargeOwner
	Limit         int
	Offset        int
}

// ChargeOwner выбирает платежи пользователя: по email покупателя
// или по идентификатору клиента в шлюзе.
type ChargeOwner struct {
	Email      string
	CustomerID string
}

// Owns сообщает, что платёж принадлежит владельцу.
func (o ChargeOwner) Owns(c *Charge) bool {
	if o.Email != "" && strings.EqualFold(c.CustomerEmail, o.Email) {
		return true
	}
	return o.CustomerID != "" && c.CustomerID == o.CustomerID
}

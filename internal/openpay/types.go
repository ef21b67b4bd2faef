package openpay

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/payflow/internal/lib/money"
)

// Time разбирает даты шлюза: как полные RFC 3339, так и "2006-01-02".
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("openpay.Time: unsupported format %q", s)
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// Ptr возвращает nil для нулевой даты.
func (t Time) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// Address — адрес в формате шлюза.
type Address struct {
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	Line3       string `json:"line3,omitempty"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
}

// CustomerRequest: тело создания клиента.
type CustomerRequest struct {
	Name            string   `json:"name"`
	LastName        string   `json:"last_name,omitempty"`
	Email           string   `json:"email"`
	PhoneNumber     string   `json:"phone_number,omitempty"`
	RequiresAccount bool     `json:"requires_account"`
	Address         *Address `json:"address,omitempty"`
}

// Customer — клиент в шлюзе.
type Customer struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	LastName     string   `json:"last_name"`
	Email        string   `json:"email"`
	PhoneNumber  string   `json:"phone_number"`
	Status       string   `json:"status"`
	CreationDate Time     `json:"creation_date"`
	Address      *Address `json:"address,omitempty"`
}

// CardRequest — данные карты для токенизации. В локальное хранилище не попадают.
type CardRequest struct {
	CardNumber      string   `json:"card_number"`
	HolderName      string   `json:"holder_name"`
	ExpirationYear  string   `json:"expiration_year"`
	ExpirationMonth string   `json:"expiration_month"`
	CVV2            string   `json:"cvv2"`
	DeviceSessionID string   `json:"device_session_id,omitempty"`
	Address         *Address `json:"address,omitempty"`
}

// Card — публичный дескриптор карты.
type Card struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Brand           string   `json:"brand"`
	CardNumber      string   `json:"card_number"`
	HolderName      string   `json:"holder_name"`
	ExpirationYear  string   `json:"expiration_year"`
	ExpirationMonth string   `json:"expiration_month"`
	AllowsCharges   bool     `json:"allows_charges"`
	AllowsPayouts   bool     `json:"allows_payouts"`
	BankName        string   `json:"bank_name"`
	BankCode        string   `json:"bank_code"`
	PointsCard      bool     `json:"points_card"`
	CustomerID      string   `json:"customer_id"`
	CreationDate    Time     `json:"creation_date"`
	Address         *Address `json:"address,omitempty"`
}

// ChargeCustomer описывает покупателя в теле разового платежа.
type ChargeCustomer struct {
	Name        string `json:"name"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// ChargeRequest: тело разового платежа по токену карты.
type ChargeRequest struct {
	SourceID        string          `json:"source_id"`
	Method          string          `json:"method"`
	Amount          money.Amount    `json:"amount"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	OrderID         string          `json:"order_id"`
	DeviceSessionID string          `json:"device_session_id,omitempty"`
	Customer        *ChargeCustomer `json:"customer,omitempty"`
}

// Charge — платёж в шлюзе. Используется и в ответе на создание,
// и в объекте webhook-уведомления.
type Charge struct {
	ID              string       `json:"id"`
	Authorization   string       `json:"authorization"`
	OperationType   string       `json:"operation_type"`
	TransactionType string       `json:"transaction_type"`
	Method          string       `json:"method"`
	Status          string       `json:"status"`
	Conciliated     bool         `json:"conciliated"`
	Description     string       `json:"description"`
	ErrorMessage    *string      `json:"error_message"`
	OrderID         string       `json:"order_id"`
	Amount          money.Amount `json:"amount"`
	Currency        string       `json:"currency"`
	CustomerID      string       `json:"customer_id"`
	CreationDate    Time         `json:"creation_date"`
	OperationDate   Time         `json:"operation_date"`
	Card            *Card        `json:"card,omitempty"`
	// Raw хранит тело ответа шлюза целиком.
	Raw json.RawMessage `json:"-"`
}

// SubscriptionRequest: тело создания подписки.
// Источник средств задаётся ровно одним из SourceID или Card.
type SubscriptionRequest struct {
	PlanID          string       `json:"plan_id"`
	SourceID        string       `json:"source_id,omitempty"`
	Card            *CardRequest `json:"card,omitempty"`
	TrialEndDate    string       `json:"trial_end_date,omitempty"`
	DeviceSessionID string       `json:"device_session_id,omitempty"`
}

// Subscription — подписка в шлюзе.
type Subscription struct {
	ID                  string          `json:"id"`
	Status              string          `json:"status"`
	CancelAtPeriodEnd   bool            `json:"cancel_at_period_end"`
	ChargeDate          Time            `json:"charge_date"`
	CreationDate        Time            `json:"creation_date"`
	CurrentPeriodNumber int             `json:"current_period_number"`
	PeriodEndDate       Time            `json:"period_end_date"`
	TrialEndDate        Time            `json:"trial_end_date"`
	PlanID              string          `json:"plan_id"`
	CustomerID          string          `json:"customer_id"`
	Card                json.RawMessage `json:"card,omitempty"`
}

// PlanRequest: тело создания плана.
type PlanRequest struct {
	Name             string       `json:"name"`
	Amount           money.Amount `json:"amount"`
	Currency         string       `json:"currency,omitempty"`
	RepeatEvery      int          `json:"repeat_every"`
	RepeatUnit       string       `json:"repeat_unit"`
	RetryTimes       int          `json:"retry_times"`
	StatusAfterRetry string       `json:"status_after_retry"`
	TrialDays        int          `json:"trial_days"`
}

// Plan — план в шлюзе.
type Plan struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Status           string       `json:"status"`
	Amount           money.Amount `json:"amount"`
	Currency         string       `json:"currency"`
	RepeatEvery      int          `json:"repeat_every"`
	RepeatUnit       string       `json:"repeat_unit"`
	RetryTimes       int          `json:"retry_times"`
	StatusAfterRetry string       `json:"status_after_retry"`
	TrialDays        int          `json:"trial_days"`
	CreationDate     Time         `json:"creation_date"`
}

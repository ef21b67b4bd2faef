package models

import (
	"time"

	"github.com/google/uuid"
)

// Card — локальная копия токенизированной карты.
// Хранит только публичный дескриптор от шлюза, без PAN и CVV.
// Платёжный адрес скопирован из Address в момент создания карты.
type Card struct {
	ID              string    `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	AddressID       int64     `json:"address_id"`
	Type            string    `json:"type"`
	Brand           string    `json:"brand"`
	CardNumber      string    `json:"card_number"`
	HolderName      string    `json:"holder_name"`
	ExpirationYear  string    `json:"expiration_year"`
	ExpirationMonth string    `json:"expiration_month"`
	AllowsCharges   bool      `json:"allows_charges"`
	AllowsPayouts   bool      `json:"allows_payouts"`
	BankName        string    `json:"bank_name"`
	BankCode        string    `json:"bank_code"`
	PointsCard      bool      `json:"points_card"`
	Line1           string    `json:"line1"`
	Line2           string    `json:"line2,omitempty"`
	Line3           string    `json:"line3,omitempty"`
	City            string    `json:"city"`
	State           string    `json:"state"`
	PostalCode      string    `json:"postal_code"`
	CountryCode     string    `json:"country_code"`
	CreationDate    time.Time `json:"creation_date"`
	CreatedAt       time.Time `json:"created_at"`
}

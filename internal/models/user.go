// Package models содержит доменные сущности сервиса: клиентов и их адреса,
// карты, платежи, тарифные планы, товары и подписки.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User — клиент сервиса и его зеркало в платёжном шлюзе.
//
// HasActiveSubscription хранится денормализованно и после каждой
// изменяющей операции должен совпадать с наличием неотменённой подписки.
type User struct {
	ID                    uuid.UUID  `json:"id"`
	Name                  string     `json:"name"`
	LastName              string     `json:"last_name"`
	Email                 string     `json:"email"`
	PhoneNumber           string     `json:"phone_number"`
	BirthDate             *time.Time `json:"birth_date,omitempty"`
	PasswordHash          string     `json:"-"`
	Role                  string     `json:"role"`
	GatewayCustomerID     *string    `json:"openpay_customer_id,omitempty"`
	HasActiveSubscription bool       `json:"has_active_subscription"`
	Addresses             []Address  `json:"addresses,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// CustomerID возвращает идентификатор клиента в шлюзе или пустую строку.
func (u *User) CustomerID() string {
	if u.GatewayCustomerID == nil {
		return ""
	}
	return *u.GatewayCustomerID
}

// Address — адрес клиента. Первый созданный адрес считается основным,
// поэтому порядок создания (ID по возрастанию) значим.
type Address struct {
	ID          int64     `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Line1       string    `json:"line1"`
	Line2       string    `json:"line2,omitempty"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	PostalCode  string    `json:"postal_code"`
	CountryCode string    `json:"country_code"`
	CreatedAt   time.Time `json:"created_at"`
}

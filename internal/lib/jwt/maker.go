// Package jwt выпускает и проверяет access-токены клиентов.
//
// В токен кладутся идентификатор пользователя, email, роль и
// идентификатор клиента в платёжном шлюзе (если он уже создан).
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken возвращается для токенов с неверной подписью или структурой.
var ErrInvalidToken = errors.New("invalid token")

// Claims — данные пользователя внутри токена.
type Claims struct {
	UserID     string `json:"uid"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	CustomerID string `json:"openpay_customer_id,omitempty"`
	jwt.RegisteredClaims
}

// Maker подписывает токены секретом HS256.
type Maker struct {
	secretKey []byte
	tokenTTL  time.Duration
}

// NewMaker создаёт Maker с секретом и временем жизни токена.
func NewMaker(secretKey string, ttl time.Duration) *Maker {
	return &Maker{
		secretKey: []byte(secretKey),
		tokenTTL:  ttl,
	}
}

// GenerateToken выпускает токен для пользователя.
func (m *Maker) GenerateToken(userID, email, role, customerID string) (string, error) {
	const op = "jwt.GenerateToken"
	now := time.Now()
	claims := Claims{
		UserID:     userID,
		Email:      email,
		Role:       role,
		CustomerID: customerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken проверяет подпись и срок действия, возвращает Claims.
func (m *Maker) ParseToken(tokenStr string) (*Claims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	return claims, nil
}

package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret_key_1234567890"

func TestMaker_GenerateAndParse(t *testing.T) {
	ttl := 15 * time.Minute
	maker := NewMaker(testSecret, ttl)

	tests := []struct {
		name       string
		userID     string
		email      string
		role       string
		customerID string
	}{
		{name: "customer with gateway id", userID: "6f1c", email: "a@x.com", role: "user", customerID: "cus_1"},
		{name: "customer without gateway id", userID: "7a2d", email: "b@x.com", role: "user"},
		{name: "admin", userID: "9b3e", email: "admin@x.com", role: "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.userID, tt.email, tt.role, tt.customerID)
			require.NoError(t, err)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, claims.UserID)
			assert.Equal(t, tt.userID, claims.Subject)
			assert.Equal(t, tt.email, claims.Email)
			assert.Equal(t, tt.role, claims.Role)
			assert.Equal(t, tt.customerID, claims.CustomerID)
			assert.WithinDuration(t, time.Now().Add(ttl), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestMaker_ParseToken_Invalid(t *testing.T) {
	maker := NewMaker(testSecret, 15*time.Minute)

	valid, err := maker.GenerateToken("u1", "a@x.com", "user", "")
	require.NoError(t, err)

	expired, err := NewMaker(testSecret, -time.Hour).GenerateToken("u1", "a@x.com", "user", "")
	require.NoError(t, err)

	foreign, err := NewMaker("other_secret", time.Hour).GenerateToken("u1", "a@x.com", "user", "")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "malformed", token: "invalid.token.here"},
		{name: "expired", token: expired},
		{name: "wrong secret", token: foreign},
		{name: "tampered", token: valid + "x"},
		{name: "alg none", token: noneAlg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestMaker_ParseToken_MissingUserID(t *testing.T) {
	maker := NewMaker(testSecret, time.Minute)

	token, err := maker.GenerateToken("", "a@x.com", "user", "")
	require.NoError(t, err)

	_, err = maker.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

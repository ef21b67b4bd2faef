package middlewarectx_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/payflow/internal/http/middlewarectx"
	"github.com/magabrotheeeer/payflow/internal/lib/jwt"
	"github.com/magabrotheeeer/payflow/internal/models"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	maker := jwt.NewMaker("secret", time.Hour)
	expiredMaker := jwt.NewMaker("secret", -time.Minute)
	otherMaker := jwt.NewMaker("other-secret", time.Hour)
	userID := uuid.New()

	valid, err := maker.GenerateToken(userID.String(), "a@x.com", models.RoleUser, "cus_1")
	require.NoError(t, err)
	expired, err := expiredMaker.GenerateToken(userID.String(), "a@x.com", models.RoleUser, "")
	require.NoError(t, err)
	foreign, err := otherMaker.GenerateToken(userID.String(), "a@x.com", models.RoleUser, "")
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		wantStatusCode int
		wantCalled     bool
	}{
		{name: "missing Authorization header", wantStatusCode: http.StatusUnauthorized},
		{name: "invalid Authorization header prefix", authHeader: "Basic sometoken", wantStatusCode: http.StatusUnauthorized},
		{name: "garbage token", authHeader: "Bearer token", wantStatusCode: http.StatusUnauthorized},
		{name: "expired token", authHeader: "Bearer " + expired, wantStatusCode: http.StatusUnauthorized},
		{name: "foreign signature", authHeader: "Bearer " + foreign, wantStatusCode: http.StatusUnauthorized},
		{name: "valid token", authHeader: "Bearer " + valid, wantStatusCode: http.StatusOK, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				id, ok := middlewarectx.UserIDFromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, userID, id)
				assert.Equal(t, "a@x.com", r.Context().Value(middlewarectx.Email))
				assert.Equal(t, models.RoleUser, r.Context().Value(middlewarectx.Role))
				assert.Equal(t, "cus_1", r.Context().Value(middlewarectx.CustomerID))
				w.WriteHeader(http.StatusOK)
			})
			h := middlewarectx.JWTMiddleware(maker, newNoopLogger())(next)

			req := httptest.NewRequest(http.MethodGet, "/somepath", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, handlerCalled)
			if !tt.wantCalled {
				assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	h := middlewarectx.RequireAdmin(newNoopLogger())(next)

	tests := []struct {
		name string
		role string
		want int
	}{
		{name: "admin", role: models.RoleAdmin, want: http.StatusCreated},
		{name: "user", role: models.RoleUser, want: http.StatusForbidden},
		{name: "anonymous", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/products", nil)
			if tt.role != "" {
				req = req.WithContext(middlewarectx.WithUser(req.Context(), uuid.New(), tt.role))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestUserIDFromContext(t *testing.T) {
	_, ok := middlewarectx.UserIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := context.WithValue(context.Background(), middlewarectx.UserID, "not-a-uuid")
	_, ok = middlewarectx.UserIDFromContext(ctx)
	assert.False(t, ok)
}

func TestIsAdmin(t *testing.T) {
	assert.False(t, middlewarectx.IsAdmin(context.Background()))
	assert.False(t, middlewarectx.IsAdmin(middlewarectx.WithUser(context.Background(), uuid.New(), models.RoleUser)))
	assert.True(t, middlewarectx.IsAdmin(middlewarectx.WithUser(context.Background(), uuid.New(), models.RoleAdmin)))
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 2)
	h := middlewarectx.RateLimitMiddleware(newNoopLogger(), limiter)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestBasicAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		user     string
		password string
		reqUser  string
		reqPass  string
		setAuth  bool
		want     int
	}{
		{name: "disabled", want: http.StatusOK},
		{name: "valid credentials", user: "openpay", password: "s3cret", reqUser: "openpay", reqPass: "s3cret", setAuth: true, want: http.StatusOK},
		{name: "wrong password", user: "openpay", password: "s3cret", reqUser: "openpay", reqPass: "nope", setAuth: true, want: http.StatusUnauthorized},
		{name: "missing header", user: "openpay", password: "s3cret", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := middlewarectx.BasicAuth(tt.user, tt.password, newNoopLogger())(next)
			req := httptest.NewRequest(http.MethodPost, "/webhooks/openpay", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.reqUser, tt.reqPass)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

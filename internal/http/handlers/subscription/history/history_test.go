package history

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/http/middlewarectx"
	"github.com/magabrotheeeer/payflow/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) History(ctx context.Context, userID uuid.UUID) (*models.SubscriptionHistory, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionHistory), args.Error(1)
}

func TestHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	userID := uuid.New()
	current := &models.Subscription{ID: uuid.New(), Status: "active"}

	tests := []struct {
		name         string
		setupMock    func(*MockService)
		wantStatus   int
		expectedBody []string
	}{
		{
			name: "есть текущая подписка",
			setupMock: func(m *MockService) {
				m.On("History", mock.Anything, userID).Return(&models.SubscriptionHistory{
					Subscriptions:         []*models.Subscription{current, {ID: uuid.New(), Status: "cancelled"}},
					Current:               current,
					HasActiveSubscription: true,
				}, nil)
			},
			wantStatus:   http.StatusOK,
			expectedBody: []string{`"has_active_subscription":true`, `"current":{"id":"` + current.ID.String()},
		},
		{
			name: "нет подписок",
			setupMock: func(m *MockService) {
				m.On("History", mock.Anything, userID).
					Return(&models.SubscriptionHistory{Subscriptions: []*models.Subscription{}}, nil)
			},
			wantStatus:   http.StatusOK,
			expectedBody: []string{`"subscriptions":[]`, `"current":null`},
		},
		{
			name: "пользователь удалён",
			setupMock: func(m *MockService) {
				m.On("History", mock.Anything, userID).Return(nil, apperr.NotFound("user not found"))
			},
			wantStatus:   http.StatusNotFound,
			expectedBody: []string{`"code":"NOT_FOUND"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
			req = req.WithContext(middlewarectx.WithUser(req.Context(), userID, models.RoleUser))
			rec := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			for _, want := range tt.expectedBody {
				assert.Contains(t, rec.Body.String(), want)
			}
			svc.AssertExpectations(t)
		})
	}
}

package list

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, f models.ChargeFilter) ([]*models.Charge, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Charge), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_ServeHTTP(t *testing.T) {
	productID := int64(3)

	tests := []struct {
		name       string
		query      string
		setupMock  func(m *MockService)
		wantStatus int
		wantBody   string
	}{
		{
			name:  "all filters",
			query: "?product_id=3&status=completed&customer_email=a@x.com&limit=10&offset=20",
			setupMock: func(m *MockService) {
				m.On("List", mock.Anything, models.ChargeFilter{
					ProductID:     &productID,
					Status:        "completed",
					CustomerEmail: "a@x.com",
					Limit:         10,
					Offset:        20,
				}).Return([]*models.Charge{{ID: 1, GatewayChargeID: "tr_1"}}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"openpay_id":"tr_1"`,
		},
		{
			name:  "no filters",
			query: "",
			setupMock: func(m *MockService) {
				m.On("List", mock.Anything, models.ChargeFilter{}).Return([]*models.Charge{}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"data":[]`,
		},
		{
			name:       "bad product id",
			query:      "?product_id=abc",
			setupMock:  func(*MockService) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `"code":"VALIDATION_ERROR"`,
		},
		{
			name:  "store down",
			query: "?limit=5",
			setupMock: func(m *MockService) {
				m.On("List", mock.Anything, mock.Anything).Return(nil, apperr.Persistence("failed to list charges", nil))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charges"+tt.query, nil))

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			svc.AssertExpectations(t)
		})
	}
}

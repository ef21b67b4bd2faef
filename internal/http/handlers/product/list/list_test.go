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

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ListProducts(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.Product, error) {
	args := m.Called(ctx, activeOnly, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Product), args.Error(1)
}

func TestHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		query      string
		setupMock  func(*MockService)
		wantStatus int
		wantBody   string
	}{
		{
			name:  "по умолчанию активные",
			query: "",
			setupMock: func(m *MockService) {
				m.On("ListProducts", mock.Anything, true, 0, 0).Return([]*models.Product{{ID: 1, Name: "Mug"}}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"name":"Mug"`,
		},
		{
			name:  "все товары со смещением",
			query: "?active=false&limit=10&offset=10",
			setupMock: func(m *MockService) {
				m.On("ListProducts", mock.Anything, false, 10, 10).Return([]*models.Product{}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"data":[]`,
		},
		{
			name:  "мусор в параметрах",
			query: "?active=maybe&limit=x",
			setupMock: func(m *MockService) {
				m.On("ListProducts", mock.Anything, true, 0, 0).Return([]*models.Product{}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "ошибка хранилища",
			query: "",
			setupMock: func(m *MockService) {
				m.On("ListProducts", mock.Anything, true, 0, 0).Return(nil, apperr.Persistence("failed to list products", nil))
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `"code":"PERSISTENCE_ERROR"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}

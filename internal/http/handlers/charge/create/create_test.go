package create

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/lib/money"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/services/charge"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Charge(ctx context.Context, req charge.Request) (*charge.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*charge.Result), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestHandler_ServeHTTP(t *testing.T) {
	failedCode := "3001"
	failedMsg := "The card was declined."

	tests := []struct {
		name       string
		body       string
		setupMock  func(m *MockService)
		wantStatus int
		wantBody   []string
		wantAbsent []string
	}{
		{
			name: "charge by product",
			body: `{"source_id":"tok_1","product_id":3,"customer":{"name":"Ana","email":"a@x.com"}}`,
			setupMock: func(m *MockService) {
				m.On("Charge", mock.Anything, mock.MatchedBy(func(r charge.Request) bool {
					return r.ProductID != nil && *r.ProductID == 3 && r.Amount == nil && r.Customer.Email == "a@x.com"
				})).Return(&charge.Result{
					Success: true,
					Charge:  &models.Charge{GatewayChargeID: "tr_1", Amount: money.MustParse("100.00"), Currency: "MXN", Status: "completed"},
					Gateway: json.RawMessage(`{"id":"tr_1"}`),
				}, nil)
			},
			wantStatus: http.StatusCreated,
			wantBody:   []string{`"success":true`, `"amount":100.00`, `"status":"completed"`, `"gateway_response":{"id":"tr_1"}`},
		},
		{
			name: "explicit amount",
			body: `{"source_id":"tok_1","amount":12.5,"currency":"usd"}`,
			setupMock: func(m *MockService) {
				m.On("Charge", mock.Anything, mock.MatchedBy(func(r charge.Request) bool {
					return r.Amount != nil && *r.Amount == money.MustParse("12.50") && r.Currency == "usd"
				})).Return(&charge.Result{Success: true, Charge: &models.Charge{Status: "in_progress"}}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "declined",
			body: `{"source_id":"tok_1","amount":100}`,
			setupMock: func(m *MockService) {
				m.On("Charge", mock.Anything, mock.Anything).Return(&charge.Result{
					Success: false,
					Charge: &models.Charge{
						GatewayChargeID: "FAIL-1",
						OrderID:         "ORDER-1",
						Status:          "failed",
						ErrorCode:       &failedCode,
						ErrorMessage:    &failedMsg,
						Metadata:        json.RawMessage(`{"cause":"dial tcp 10.0.0.7:443: connect: connection refused"}`),
					},
					Error: &charge.Failure{Code: failedCode, Message: failedMsg},
				}, nil)
			},
			wantStatus: http.StatusPaymentRequired,
			wantBody:   []string{`"code":"3001"`, `"error":"The card was declined."`, `"openpay_id":"FAIL-1"`, `"order_id":"ORDER-1"`, `"status":"failed"`},
			wantAbsent: []string{"metadata", "10.0.0.7", "cause", "source_id"},
		},
		{
			name: "declined without saved row",
			body: `{"source_id":"tok_1","amount":100}`,
			setupMock: func(m *MockService) {
				m.On("Charge", mock.Anything, mock.Anything).Return(&charge.Result{
					Success: false,
					Error:   &charge.Failure{Code: "GATEWAY_TIMEOUT", Message: "timeout"},
				}, nil)
			},
			wantStatus: http.StatusPaymentRequired,
			wantBody:   []string{`"code":"GATEWAY_TIMEOUT"`, `"data":{"status":"failed"}`},
		},
		{
			name:       "missing source",
			body:       `{"amount":100}`,
			setupMock:  func(*MockService) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   []string{"field SourceID is a required field"},
		},
		{
			name:       "malformed amount",
			body:       `{"source_id":"tok_1","amount":"abc"}`,
			setupMock:  func(*MockService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "inactive product",
			body: `{"source_id":"tok_1","product_id":9}`,
			setupMock: func(m *MockService) {
				m.On("Charge", mock.Anything, mock.Anything).Return(nil, apperr.NotFound("product not found"))
			},
			wantStatus: http.StatusNotFound,
			wantBody:   []string{`"code":"NOT_FOUND"`},
		},
		{
			name: "unrecorded success",
			body: `{"source_id":"tok_1","amount":100}`,
			setupMock: func(m *MockService) {
				m.On("Charge", mock.Anything, mock.Anything).
					Return(nil, apperr.Persistence("charge was processed but could not be recorded", nil))
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   []string{`"code":"PERSISTENCE_ERROR"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/charges", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			for _, want := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), want)
			}
			for _, absent := range tt.wantAbsent {
				assert.NotContains(t, rec.Body.String(), absent)
			}
			svc.AssertExpectations(t)
		})
	}
}

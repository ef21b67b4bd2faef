package openpay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Handle(ctx context.Context, body []byte) {
	m.Called(ctx, body)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("событие передано сервису", func(t *testing.T) {
		body := `{"type":"charge.succeeded","transaction":{"id":"tr_1","status":"completed"}}`
		svc := new(MockService)
		svc.On("Handle", mock.Anything, []byte(body)).Return()

		rec := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/openpay", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"OK"}`, rec.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("мусор тоже подтверждается", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Handle", mock.Anything, []byte("not json")).Return()

		rec := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/openpay", strings.NewReader("not json")))

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("тело не прочитано", func(t *testing.T) {
		svc := new(MockService)

		rec := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/openpay", failingReader{}))

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})
}

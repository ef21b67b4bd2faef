package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantBody   string
	}{
		{
			name:       "всё работает",
			checks:     map[string]Check{"database": ok, "redis": ok},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"OK","data":{"database":"ok","redis":"ok"}}`,
		},
		{
			name:       "redis недоступен",
			checks:     map[string]Check{"database": ok, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"Error","data":{"database":"ok","redis":"down"}}`,
		},
		{
			name:       "без проверок",
			checks:     nil,
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"OK","data":{}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			New(logger, tt.checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

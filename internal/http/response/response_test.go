package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/payflow/internal/apperr"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{name: "conflict", err: apperr.Conflict("customer with this email already exists", nil), wantStatus: http.StatusConflict, wantCode: "CONFLICT", wantMsg: "customer with this email already exists"},
		{name: "gateway hides cause", err: apperr.Gateway("The card was declined.", errors.New(`{"raw":"body"}`)), wantStatus: http.StatusBadGateway, wantCode: "GATEWAY_ERROR", wantMsg: "The card was declined."},
		{name: "plain error", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR", wantMsg: "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			AppError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, StatusError, body.Status)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Error)
		})
	}
}

func TestInvalid(t *testing.T) {
	type payload struct {
		Email string `validate:"required,email"`
		Code  string `validate:"len=3"`
	}
	err := validator.New().Struct(payload{Code: "MX"})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	Invalid(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperr.CodeValidation, body.Code)
	assert.Contains(t, body.Error, "field Email is a required field")
	assert.Contains(t, body.Error, "field Code must be 3 characters long")
}

func TestBadRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest(rec, httptest.NewRequest(http.MethodPost, "/", nil), "invalid request body")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"Error","code":"BAD_REQUEST","error":"invalid request body"}`, rec.Body.String())
}

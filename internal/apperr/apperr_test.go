package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cause := errors.New("db down")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "validation", err: Validation("bad amount"), wantStatus: http.StatusUnprocessableEntity, wantCode: CodeValidation},
		{name: "unauthorized", err: Unauthorized("invalid credentials"), wantStatus: http.StatusUnauthorized, wantCode: CodeUnauthorized},
		{name: "not found", err: NotFound("product not found"), wantStatus: http.StatusNotFound, wantCode: CodeNotFound},
		{name: "conflict", err: Conflict("email taken", nil), wantStatus: http.StatusConflict, wantCode: CodeConflict},
		{name: "precondition", err: Precondition("no gateway customer"), wantStatus: http.StatusPreconditionFailed, wantCode: CodePrecondition},
		{name: "gateway", err: Gateway("card declined", cause), wantStatus: http.StatusBadGateway, wantCode: CodeGateway},
		{name: "persistence", err: Persistence("could not save", cause), wantStatus: http.StatusInternalServerError, wantCode: CodePersistence},
		{name: "wrapped", err: fmt.Errorf("services.X: %w", NotFound("user not found")), wantStatus: http.StatusNotFound, wantCode: CodeNotFound},
		{name: "unknown", err: cause, wantStatus: http.StatusInternalServerError, wantCode: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, HTTPStatus(tt.err))
			code, _ := Public(tt.err)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("unique violation")
	err := Conflict("email already registered", cause)

	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrPersistence)
	assert.Equal(t, "email already registered: unique violation", err.Error())

	_, msg := Public(err)
	assert.Equal(t, "email already registered", msg)
}

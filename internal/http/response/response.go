// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Пакет упрощает возврат
// успешных ответов, ошибок и сообщений валидации в едином формате.
package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/payflow/internal/apperr"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Code — стабильный код ошибки (при неуспехе).
// Поле Error — текст ошибки (опционально, при неуспехе).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Code   string `json:"code" example:"VALIDATION_ERROR"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"

	// CodeBadRequest: тело запроса не разобрано.
	CodeBadRequest = "BAD_REQUEST"
	// CodeRateLimited: превышен лимит запросов.
	CodeRateLimited = "RATE_LIMITED"
	// CodeForbidden: недостаточно прав.
	CodeForbidden = "FORBIDDEN"
)

// OK возвращает успешный Response без данных.
func OK() Response {
	return Response{Status: StatusOK}
}

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает ответ с ошибкой, кодом и сообщением.
func Error(code, msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Code:   code,
		Error:  msg,
	}
}

// AppError пишет ошибку сервиса: HTTP-статус, код и сообщение берутся из apperr.
// Внутренние причины в ответ не попадают.
func AppError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := apperr.Public(err)
	render.Status(r, apperr.HTTPStatus(err))
	render.JSON(w, r, Error(code, msg))
}

// BadRequest пишет 400 для неразобранного тела запроса.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Error(CodeBadRequest, msg))
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "numeric":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only numbers", err.Field()))
		case "len":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be %s characters long", err.Field(), err.Param()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param()))
		case "uppercase":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be uppercase", err.Field()))
		case "url":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid url", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Code:   apperr.CodeValidation,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

// Invalid пишет 422 с ошибками валидации. Ошибки другого типа
// считаются нарушением одного неизвестного поля.
func Invalid(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, http.StatusUnprocessableEntity)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		render.JSON(w, r, ValidationError(verrs))
		return
	}
	render.JSON(w, r, Error(apperr.CodeValidation, err.Error()))
}

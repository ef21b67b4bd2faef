// Package apperr описывает таксономию ошибок сервиса.
//
// Каждая ошибка уровня сервиса относится к одному из видов (Kind):
// ошибка валидации, отсутствующая сущность, конфликт, невыполненное предусловие,
// ошибка платёжного шлюза и ошибка локального хранилища.
// Вид проверяется через errors.Is, а стабильный код и сообщение
// отдаются клиенту без внутренних подробностей.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Виды ошибок.
var (
	ErrValidation         = errors.New("validation error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrGateway            = errors.New("gateway error")
	ErrPersistence        = errors.New("persistence error")
)

// Стабильные коды ошибок, которые видит клиент.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodePrecondition = "PRECONDITION_FAILED"
	CodeGateway      = "GATEWAY_ERROR"
	CodePersistence  = "PERSISTENCE_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

// Error описывает ошибку сервиса: вид, код и сообщение для клиента.
// Err хранит исходную причину и попадает только в логи.
type Error struct {
	Kind    error
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap позволяет сопоставлять ошибку и с видом, и с причиной.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation возвращает ошибку входных данных.
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Code: CodeValidation, Message: msg}
}

// Unauthorized возвращает ошибку неверных учётных данных.
func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Code: CodeUnauthorized, Message: msg}
}

// NotFound возвращает ошибку отсутствующей сущности.
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Code: CodeNotFound, Message: msg}
}

// Conflict возвращает ошибку нарушения уникальности или инварианта.
func Conflict(msg string, err error) error {
	return &Error{Kind: ErrConflict, Code: CodeConflict, Message: msg, Err: err}
}

// Precondition возвращает ошибку сущности без нужного связанного состояния.
func Precondition(msg string) error {
	return &Error{Kind: ErrPreconditionFailed, Code: CodePrecondition, Message: msg}
}

// Gateway оборачивает ошибку платёжного шлюза. msg должен быть уже нормализован.
func Gateway(msg string, err error) error {
	return &Error{Kind: ErrGateway, Code: CodeGateway, Message: msg, Err: err}
}

// Persistence оборачивает ошибку хранилища.
func Persistence(msg string, err error) error {
	return &Error{Kind: ErrPersistence, Code: CodePersistence, Message: msg, Err: err}
}

// HTTPStatus сопоставляет вид ошибки с HTTP-статусом.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Public возвращает код и сообщение, безопасные для клиента.
// Для ошибок вне таксономии отдаётся общий INTERNAL_ERROR.
func Public(err error) (code, msg string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, e.Message
	}
	return CodeInternal, "internal error"
}

package openpay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

var (
	// ErrTimeout: шлюз не ответил вовремя. Состояние на стороне шлюза неизвестно.
	ErrTimeout = errors.New("openpay: request timed out")
	// ErrUnreachable: запрос не дошёл до шлюза или ответ не прочитан.
	ErrUnreachable = errors.New("openpay: gateway unreachable")
)

// Error — ошибка, которую вернул шлюз в теле ответа.
type Error struct {
	HTTPStatus  int             `json:"http_code"`
	ErrorCode   int             `json:"error_code"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	RequestID   string          `json:"request_id"`
	Raw         json.RawMessage `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("openpay: %d %s (code %d, request %s)", e.HTTPStatus, e.Description, e.ErrorCode, e.RequestID)
}

// Code возвращает код ошибки строкой или пустую строку, если шлюз его не передал.
func (e *Error) Code() string {
	if e.ErrorCode == 0 {
		return ""
	}
	return strconv.Itoa(e.ErrorCode)
}

// IsNotFound сообщает, что ресурс на стороне шлюза не существует.
func IsNotFound(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.HTTPStatus == http.StatusNotFound || e.ErrorCode == 1005
}

// Message возвращает нормализованное описание ошибки шлюза без сырого тела ответа.
func Message(err error) string {
	var e *Error
	switch {
	case errors.As(err, &e):
		if msg, ok := errorMessages[e.ErrorCode]; ok {
			return msg
		}
		if e.Description != "" {
			return e.Description
		}
		return "payment gateway rejected the request"
	case errors.Is(err, ErrTimeout):
		return "payment gateway did not respond in time"
	default:
		return "payment gateway is unavailable"
	}
}

// ChargeMessage сопоставляет код ошибки платежа с сообщением для клиента.
// Для неизвестных кодов возвращается общий ответ с просьбой повторить позже.
func ChargeMessage(code int) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Payment could not be processed. Please retry later."
}

var errorMessages = map[int]string{
	1000: "Internal error at the payment processor.",
	1001: "The request is malformed.",
	1002: "The request was not authenticated by the payment processor.",
	1003: "The operation could not be completed with the given parameters.",
	1004: "The payment service is temporarily unavailable.",
	1005: "The requested resource does not exist.",
	1006: "A transaction with the same order id already exists.",
	1008: "The merchant account is deactivated.",
	1009: "The request body is too large.",
	1010: "The public key cannot be used for this operation.",
	2004: "The card number is invalid.",
	2005: "The card expiration date has passed.",
	2006: "The card security code is required.",
	2007: "The card number is a test card and can only be used in sandbox.",
	2009: "The card security code is invalid.",
	2010: "3D Secure authentication failed.",
	2011: "The card type is not supported.",
	3001: "The card was declined.",
	3002: "The card has expired.",
	3003: "The card has insufficient funds.",
	3004: "The card was reported stolen.",
	3005: "The card was declined due to fraud risk.",
	3006: "The operation is not allowed for this card.",
	3008: "The card does not support online transactions.",
	3009: "The card was reported lost.",
	3010: "The bank has restricted the card.",
	3011: "The bank requested to hold the card.",
	3012: "Bank authorization is required for this charge.",
	4001: "The account has insufficient funds.",
}

// Package webhook применяет уведомления шлюза к локальным платежам.
//
// Тело уведомления разбирается в один из вариантов Event. Повторная
// доставка того же уведомления приводит к тому же состоянию.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/openpay"
	"github.com/magabrotheeeer/payflow/internal/storage"
)

// Типы уведомлений шлюза.
const (
	TypeChargeSucceeded = "charge.succeeded"
	TypeChargeFailed    = "charge.failed"
	TypeChargeCancelled = "charge.cancelled"
	TypeVerification    = "verification"
)

// Результаты обработки для метрик.
const (
	resultApplied  = "applied"
	resultMissing  = "missing"
	resultIgnored  = "ignored"
	resultInvalid  = "invalid"
	resultError    = "error"
	resultVerified = "verified"
)

// ErrMalformed возвращается для тела, которое не является уведомлением.
var ErrMalformed = errors.New("malformed webhook payload")

// chargeTypes сводит короткие теги событий к полным.
var chargeTypes = map[string]string{
	TypeChargeSucceeded: TypeChargeSucceeded,
	TypeChargeFailed:    TypeChargeFailed,
	TypeChargeCancelled: TypeChargeCancelled,
	"succeeded":         TypeChargeSucceeded,
	"failed":            TypeChargeFailed,
	"cancelled":         TypeChargeCancelled,
}

var impliedStatus = map[string]string{
	TypeChargeSucceeded: models.ChargeCompleted,
	TypeChargeFailed:    models.ChargeFailed,
	TypeChargeCancelled: models.ChargeCancelled,
}

// Event представляет разобранное уведомление.
type Event interface {
	EventType() string
}

// ChargeEvent — изменение статуса платежа.
type ChargeEvent struct {
	Type      string
	EventDate time.Time
	Charge    openpay.Charge
	// Raw хранит объект платежа из уведомления как есть.
	Raw json.RawMessage
}

func (e ChargeEvent) EventType() string { return e.Type }

// Status возвращает статус из объекта платежа или следующий из типа уведомления.
func (e ChargeEvent) Status() string {
	if e.Charge.Status != "" {
		return e.Charge.Status
	}
	return impliedStatus[e.Type]
}

// VerificationEvent — проверка адреса webhook при его регистрации в шлюзе.
type VerificationEvent struct {
	Code string
}

func (VerificationEvent) EventType() string { return TypeVerification }

// UnknownEvent описывает уведомление, которое сервис не обрабатывает.
type UnknownEvent struct {
	Type string
}

func (e UnknownEvent) EventType() string { return e.Type }

type envelope struct {
	Type             string          `json:"type"`
	EventDate        openpay.Time    `json:"event_date"`
	VerificationCode string          `json:"verification_code"`
	Transaction      json.RawMessage `json:"transaction"`
	Data             struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// object возвращает объект платежа: data.object, иначе transaction.
func (e envelope) object() json.RawMessage {
	if !isEmpty(e.Data.Object) {
		return e.Data.Object
	}
	if !isEmpty(e.Transaction) {
		return e.Transaction
	}
	return nil
}

func isEmpty(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// Decode разбирает тело уведомления. Объект платежа читается из data.object
// или из transaction. Теги succeeded, failed и cancelled равны charge.*.
func Decode(body []byte) (Event, error) {
	const op = "webhook.Decode"

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%s: %w: missing type", op, ErrMalformed)
	}

	if eventType, ok := chargeTypes[env.Type]; ok {
		object := env.object()
		if object == nil {
			return nil, fmt.Errorf("%s: %w: missing charge object", op, ErrMalformed)
		}
		var charge openpay.Charge
		if err := json.Unmarshal(object, &charge); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
		}
		if charge.ID == "" {
			return nil, fmt.Errorf("%s: %w: missing charge id", op, ErrMalformed)
		}
		return ChargeEvent{
			Type:      eventType,
			EventDate: env.EventDate.Time,
			Charge:    charge,
			Raw:       object,
		}, nil
	}

	switch env.Type {
	case TypeVerification:
		return VerificationEvent{Code: env.VerificationCode}, nil
	default:
		return UnknownEvent{Type: env.Type}, nil
	}
}

// Repository обновляет статус платежа.
type Repository interface {
	UpdateChargeStatus(ctx context.Context, gatewayID, status string, metadata json.RawMessage) error
}

// Metrics учитывает обработанные уведомления.
type Metrics interface {
	Webhook(eventType, result string)
}

// Service применяет уведомления.
type Service struct {
	repo    Repository
	metrics Metrics
	log     *slog.Logger
}

// New создаёт сервис уведомлений.
func New(repo Repository, metrics Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		metrics: metrics,
		log:     log,
	}
}

// Handle разбирает и применяет уведомление. Ошибки только логируются:
// шлюз должен получить успешный ответ в любом случае.
func (s *Service) Handle(ctx context.Context, body []byte) {
	const op = "services.webhook.Handle"
	log := s.log.With(sl.Op(op))

	event, err := Decode(body)
	if err != nil {
		log.Warn("failed to decode webhook", sl.Err(err))
		s.metrics.Webhook("unknown", resultInvalid)
		return
	}

	result, err := s.Reconcile(ctx, event)
	if err != nil {
		log.Error("failed to reconcile webhook", slog.String("type", event.EventType()), sl.Err(err))
	}
	s.metrics.Webhook(event.EventType(), result)
}

// Reconcile применяет событие и возвращает итог для метрик.
// Платёж, неизвестный локально, пропускается без ошибки.
func (s *Service) Reconcile(ctx context.Context, event Event) (string, error) {
	const op = "services.webhook.Reconcile"
	log := s.log.With(sl.Op(op), slog.String("type", event.EventType()))

	switch e := event.(type) {
	case ChargeEvent:
		log = log.With(slog.String("charge_id", e.Charge.ID))
		err := s.repo.UpdateChargeStatus(ctx, e.Charge.ID, e.Status(), e.Raw)
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn("webhook for unknown charge")
			return resultMissing, nil
		}
		if err != nil {
			return resultError, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("charge status updated", slog.String("status", e.Status()))
		return resultApplied, nil
	case VerificationEvent:
		log.Info("webhook verification received", slog.String("verification_code", e.Code))
		return resultVerified, nil
	default:
		log.Debug("webhook ignored")
		return resultIgnored, nil
	}
}

// Package events публикует сигналы о расхождениях между шлюзом
// и локальным хранилищем.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/payflow/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/payflow/internal/models"
)

// Publisher отправляет сигнал о расхождении.
type Publisher interface {
	PublishDrift(ctx context.Context, alert models.DriftAlert) error
}

// Counter учитывает отправленные сигналы.
type Counter interface {
	DriftPublished(kind string)
}

// AMQPPublisher публикует сигналы в exchange RabbitMQ с ключом, равным виду сигнала.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
	log      *slog.Logger
	counter  Counter
}

// NewAMQPPublisher создаёт издателя поверх настроенного канала.
func NewAMQPPublisher(ch *amqp.Channel, exchange string, log *slog.Logger, counter Counter) *AMQPPublisher {
	return &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		log:      log,
		counter:  counter,
	}
}

// PublishDrift публикует сигнал. Канал AMQP не потокобезопасен, публикации сериализуются.
func (p *AMQPPublisher) PublishDrift(ctx context.Context, alert models.DriftAlert) error {
	const op = "events.PublishDrift"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if alert.OccurredAt.IsZero() {
		alert.OccurredAt = time.Now().UTC()
	}

	p.mu.Lock()
	err := rabbitmq.PublishMessage(p.ch, p.exchange, alert.Kind, alert)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if p.counter != nil {
		p.counter.DriftPublished(alert.Kind)
	}
	p.log.Warn("drift alert published",
		slog.String("kind", alert.Kind),
		slog.String("gateway_id", alert.GatewayID),
	)
	return nil
}

// LogPublisher только пишет сигнал в лог. Используется, когда брокер не настроен.
type LogPublisher struct {
	log     *slog.Logger
	counter Counter
}

// NewLogPublisher создаёт издателя без брокера.
func NewLogPublisher(log *slog.Logger, counter Counter) *LogPublisher {
	return &LogPublisher{log: log, counter: counter}
}

// PublishDrift пишет сигнал в лог.
func (p *LogPublisher) PublishDrift(_ context.Context, alert models.DriftAlert) error {
	if p.counter != nil {
		p.counter.DriftPublished(alert.Kind)
	}
	p.log.Warn("drift alert",
		slog.String("kind", alert.Kind),
		slog.String("gateway_id", alert.GatewayID),
		slog.String("customer_id", alert.CustomerID),
		slog.String("email", alert.Email),
		slog.String("reason", alert.Reason),
	)
	return nil
}

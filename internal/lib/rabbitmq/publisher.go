package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

const appID = "payflow"

// PublishMessage сериализует message в JSON и публикует его в exchange
// с ключом routingKey. Сообщения сохраняются брокером на диск.
func PublishMessage(ch *amqp.Channel, exchange, routingKey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}
	if ch == nil {
		return fmt.Errorf("%s: %w", op, amqp.ErrClosed)
	}

	if err := ch.Publish(exchange, routingKey, false, false, jsonPublishing(routingKey, body)); err != nil {
		return fmt.Errorf("%s: publish %s: %w", op, routingKey, err)
	}
	return nil
}

func jsonPublishing(kind string, body []byte) amqp.Publishing {
	return amqp.Publishing{
		AppId:        appID,
		MessageId:    uuid.NewString(),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         kind,
		Body:         body,
	}
}

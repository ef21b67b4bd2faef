// Package drift разбирает сигналы о расхождениях между шлюзом
// и локальным хранилищем. Сигналы только логируются и считаются:
// исправлять ресурс должен оператор.
package drift

import (
	"encoding/json"
	"log/slog"

	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
)

// Counter учитывает полученные сигналы.
type Counter interface {
	DriftReceived(kind string)
}

// Monitor обрабатывает сообщения из очереди расхождений.
type Monitor struct {
	log     *slog.Logger
	counter Counter
}

// New создаёт монитор.
func New(log *slog.Logger, counter Counter) *Monitor {
	return &Monitor{log: log, counter: counter}
}

// Handle обрабатывает одно сообщение. Битое сообщение подтверждается,
// иначе оно бесконечно возвращалось бы в очередь.
func (m *Monitor) Handle(body []byte) error {
	const op = "services.drift.Handle"
	log := m.log.With(sl.Op(op))

	var alert models.DriftAlert
	if err := json.Unmarshal(body, &alert); err != nil {
		log.Error("malformed drift alert dropped", sl.Err(err), slog.Int("size", len(body)))
		m.counter.DriftReceived("malformed")
		return nil
	}
	if alert.Kind == "" {
		alert.Kind = "unknown"
	}

	log.Error("gateway and store out of sync",
		slog.String("kind", alert.Kind),
		slog.String("gateway_id", alert.GatewayID),
		slog.String("customer_id", alert.CustomerID),
		slog.String("user_id", alert.UserID),
		slog.String("email", alert.Email),
		slog.String("reason", alert.Reason),
		slog.Time("occurred_at", alert.OccurredAt),
	)
	m.counter.DriftReceived(alert.Kind)
	return nil
}

package rabbitmq

// QueueConfig очередь и ключ её привязки к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// DriftQueues очереди монитора расхождений: все сигналы в одну очередь.
func DriftQueues(queue string) []QueueConfig {
	return []QueueConfig{
		{QueueName: queue, RoutingKey: "#"},
	}
}

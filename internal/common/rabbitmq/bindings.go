package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names. Routing keys for broadcasts are location.update.<owner_id>;
// the history queue binds the wildcard so every owner's stream is archived.
const (
	ExchangeLocationTopic = "location_topic"
	QueueLocationHistory  = "location_history"
	RouteLocationUpdate   = "location.update."
)

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeLocationTopic, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeLocationTopic, err)
	}

	if _, err := ch.QueueDeclare(QueueLocationHistory, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueLocationHistory, err)
	}

	if err := ch.QueueBind(QueueLocationHistory, RouteLocationUpdate+"*", ExchangeLocationTopic, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", QueueLocationHistory, ExchangeLocationTopic, err)
	}

	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"locshare/internal/common/rabbitmq"
	"locshare/internal/sharing/domain"
)

// EventPublisher pushes broadcast events onto the location topic exchange,
// one routing key per owner.
type EventPublisher struct {
	client *rabbitmq.Client
}

func NewEventPublisher(client *rabbitmq.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) PublishLocation(ctx context.Context, event domain.LocationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal location event: %w", err)
	}

	routingKey := rabbitmq.RouteLocationUpdate + event.OwnerID
	if err := p.client.PublishMessage(ctx, rabbitmq.ExchangeLocationTopic, routingKey, body); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

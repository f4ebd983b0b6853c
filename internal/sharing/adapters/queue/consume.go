package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"locshare/internal/common/logger"
	"locshare/internal/common/rabbitmq"
	"locshare/internal/sharing/domain"
)

// Archiver consumes the location history queue and writes every event into
// durable storage.
type Archiver struct {
	client   *rabbitmq.Client
	history  domain.HistoryRepository
	log      *logger.Logger
	prefetch int
}

func NewArchiver(client *rabbitmq.Client, history domain.HistoryRepository, log *logger.Logger, prefetch int) *Archiver {
	return &Archiver{client: client, history: history, log: log, prefetch: prefetch}
}

// Run blocks consuming the history queue until ctx is cancelled or the
// channel dies. Callers are expected to restart it on error.
func (a *Archiver) Run(ctx context.Context) error {
	a.log.Info(ctx, "archiver_started", "Consuming location history queue", map[string]any{
		"queue":    rabbitmq.QueueLocationHistory,
		"prefetch": a.prefetch,
	})
	return a.client.Consume(ctx, rabbitmq.QueueLocationHistory, "location-archiver", a.prefetch, a.handle)
}

func (a *Archiver) handle(ctx context.Context, d amqp.Delivery) error {
	var event domain.LocationEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		a.log.Error(ctx, "archive_decode_failed", "Dropping undecodable location event", err, map[string]any{
			"routing_key": d.RoutingKey,
			"size":        len(d.Body),
		})
		return fmt.Errorf("decode location event: %w", err)
	}
	if event.EventID == "" || event.OwnerID == "" {
		return fmt.Errorf("location event missing identifiers")
	}

	if err := a.history.Archive(ctx, event); err != nil {
		a.log.Error(ctx, "archive_write_failed", "Failed to archive location event", err, map[string]any{
			"event_id": event.EventID,
			"owner_id": event.OwnerID,
		})
		return err
	}

	a.log.Debug(ctx, "event_archived", "Archived location event", map[string]any{
		"event_id": event.EventID,
		"owner_id": event.OwnerID,
	})
	return nil
}

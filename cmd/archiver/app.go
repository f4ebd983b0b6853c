package archiver

import (
	"context"
	"time"

	"locshare/internal/common/config"
	"locshare/internal/common/contextx"
	"locshare/internal/common/logger"
	"locshare/internal/common/postgres"
	"locshare/internal/common/rabbitmq"
	"locshare/internal/sharing/adapters/queue"
	"locshare/internal/sharing/adapters/repository"
)

// Run consumes the location history queue into Postgres until ctx is
// cancelled. Consumer failures (channel death during a broker restart) are
// retried with a flat backoff; the rabbitmq client reconnects underneath.
func Run(ctx context.Context, prefetch int, configPath string) error {
	log := logger.New("archiver")
	ctx = contextx.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load config", err, map[string]any{"path": configPath})
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	rmq, err := rabbitmq.Connect(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()

	history := repository.NewHistoryRepository(pool)
	arc := queue.NewArchiver(rmq, history, log, prefetch)

	for {
		err := arc.Run(ctx)
		if ctx.Err() != nil {
			log.Info(ctx, "archiver_stopped", "Archiver stopped", nil)
			return nil
		}
		if err != nil {
			log.Error(ctx, "archiver_consume_failed", "Consumer stopped, retrying", err, nil)
		}

		select {
		case <-ctx.Done():
			log.Info(ctx, "archiver_stopped", "Archiver stopped", nil)
			return nil
		case <-time.After(5 * time.Second):
		}
	}
}

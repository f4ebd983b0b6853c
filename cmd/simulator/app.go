package simulator

import (
	"context"
	"time"

	"locshare/internal/common/config"
	"locshare/internal/common/contextx"
	"locshare/internal/common/logger"
	"locshare/internal/common/rabbitmq"
	"locshare/internal/sharing/adapters/queue"
	"locshare/internal/sharing/adapters/source"
	"locshare/internal/sharing/adapters/store"
	"locshare/internal/sharing/app"
	"locshare/internal/sharing/cache"
	"locshare/internal/sharing/domain"
	"locshare/internal/sharing/identity"
	"locshare/internal/sharing/tracker"
)

// Run drives the full device-side pipeline for one simulated user: a random
// walk source feeds the tracker, and every validated reading is broadcast
// through the service. Useful for exercising subscribers and the archiver
// without a real client.
func Run(ctx context.Context, userID string, lat, lng float64, configPath string) error {
	log := logger.New("simulator")
	ctx = contextx.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load config", err, map[string]any{"path": configPath})
		return err
	}

	records, err := store.NewRecordStore(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "redis_connection_failed", "Failed to connect to Redis", err, nil)
		return err
	}
	defer records.Close()

	rmq, err := rabbitmq.Connect(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()

	validator := domain.NewValidator(domain.ValidatorConfig{
		MaxAccuracyMeters: cfg.Sharing.MaxAccuracyMeters,
		MaxReadingAge:     cfg.Sharing.MaxReadingAge,
		MaxClockSkew:      cfg.Sharing.ClockSkew,
		MinAltitudeMeters: domain.DefaultValidatorConfig().MinAltitudeMeters,
		MaxAltitudeMeters: domain.DefaultValidatorConfig().MaxAltitudeMeters,
	})

	locCache := cache.New(cache.NewMemoryStore(), cfg.Sharing.CacheTTL)
	publisher := queue.NewEventPublisher(rmq)
	svc := app.NewService(identity.Static(userID), records, validator, locCache, publisher, log)

	if err := svc.EnableSharing(ctx); err != nil {
		log.Error(ctx, "sharing_enable_failed", "Failed to enable sharing for simulated user", err, nil)
		return err
	}

	src := source.NewSimulated(lat, lng)
	trk := tracker.New(src, validator, log, tracker.Config{
		ForegroundInterval: cfg.Sharing.ForegroundInterval,
		BackgroundInterval: cfg.Sharing.BackgroundInterval,
	})

	if err := trk.Start(ctx); err != nil {
		log.Error(ctx, "tracking_start_failed", "Failed to start tracking", err, nil)
		return err
	}

	log.Info(ctx, "simulator_started", "Simulated device broadcasting", map[string]any{
		"user_id":  userID,
		"interval": cfg.Sharing.ForegroundInterval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			trk.Stop(stopCtx)
			cancel()
			log.Info(stopCtx, "simulator_stopped", "Simulated device stopped", nil)
			return nil

		case loc := <-trk.Updates():
			if err := svc.Broadcast(ctx, loc); err != nil {
				log.Error(ctx, "broadcast_failed", "Simulated broadcast failed", err, nil)
			}

		case re := <-trk.Errors():
			log.Debug(ctx, "reading_rejected", re.Error(), map[string]any{
				"latitude":  re.Reading.Latitude,
				"longitude": re.Reading.Longitude,
			})
		}
	}
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"locshare/internal/sharing/domain"
)

// HistoryRepository appends published location events to location_history.
type HistoryRepository struct {
	db *pgxpool.Pool
}

func NewHistoryRepository(db *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Archive(ctx context.Context, event domain.LocationEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO location_history (
			event_id, owner_id, latitude, longitude, accuracy_meters,
			altitude_meters, speed_kmh, bearing_degrees, recorded_at, published_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO NOTHING
	`, event.EventID, event.OwnerID, event.Latitude, event.Longitude, event.AccuracyMeters,
		event.Altitude, event.SpeedKMH, event.BearingDegrees, event.RecordedAt, event.PublishedAt)
	if err != nil {
		return fmt.Errorf("insert location history: %w", err)
	}
	return nil
}

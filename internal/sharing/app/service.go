package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"locshare/internal/common/logger"
	"locshare/internal/observability"
	"locshare/internal/sharing/cache"
	"locshare/internal/sharing/domain"
)

// Service is the network-facing layer of the engine: it publishes the acting
// user's position and subscribes to friends' position streams. Inbound
// failures are absorbed (dropped reading, cache fallback downstream);
// outbound failures are always returned, because they represent an action
// the user took and must know did not succeed.
type Service struct {
	ids       domain.IdentityProvider
	store     domain.RecordStore
	validator *domain.Validator
	cache     *cache.Cache
	events    domain.EventPublisher // optional firehose; nil disables it
	log       *logger.Logger
}

// NewService wires the sharing service.
func NewService(
	ids domain.IdentityProvider,
	store domain.RecordStore,
	validator *domain.Validator,
	locCache *cache.Cache,
	events domain.EventPublisher,
	log *logger.Logger,
) *Service {
	return &Service{
		ids:       ids,
		store:     store,
		validator: validator,
		cache:     locCache,
		events:    events,
		log:       log,
	}
}

// Broadcast validates and publishes the acting user's position. The cache
// write is fire-and-forget and lands before the remote write is attempted;
// a failed remote write does not revert it. The event-queue publish is best
// effort and never fails the broadcast.
func (s *Service) Broadcast(ctx context.Context, loc domain.Location) error {
	observability.BroadcastsTotal.Inc()

	uid, ok := s.ids.CurrentUserID(ctx)
	if !ok {
		observability.BroadcastsFailed.Inc()
		return domain.ErrUserNotAuthenticated
	}

	if res := s.validator.Validate(loc); !res.IsValid {
		observability.BroadcastsFailed.Inc()
		return fmt.Errorf("%w: %v", domain.ErrInvalidLocation, res.Errors)
	}

	enabled, err := s.store.ReadSharingEnabled(ctx, uid)
	if err != nil {
		observability.BroadcastsFailed.Inc()
		return fmt.Errorf("read sharing flag: %w", err)
	}
	if !enabled {
		observability.BroadcastsFailed.Inc()
		return domain.ErrSharingDisabled
	}

	s.cache.Put(cache.UserKey(uid), loc)

	if err := s.store.WriteLocation(ctx, uid, loc.ToRecord()); err != nil {
		observability.BroadcastsFailed.Inc()
		return fmt.Errorf("write location: %w", err)
	}

	s.publishEvent(ctx, uid, loc)
	return nil
}

// publishEvent fans the broadcast out to the location event queue. The
// remote store write is the authoritative effect; a queue failure is logged
// and counted, never surfaced.
func (s *Service) publishEvent(ctx context.Context, uid string, loc domain.Location) {
	if s.events == nil {
		return
	}

	event := domain.LocationEvent{
		EventID:        uuid.NewString(),
		OwnerID:        uid,
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		AccuracyMeters: loc.AccuracyMeters,
		Altitude:       loc.AltitudeMeters,
		SpeedKMH:       loc.SpeedKMH,
		BearingDegrees: loc.BearingDegrees,
		RecordedAt:     loc.Timestamp,
		PublishedAt:    time.Now().UTC(),
	}
	if err := s.events.PublishLocation(ctx, event); err != nil {
		s.log.Error(ctx, "location_event_publish_failed", "Location event not published; broadcast unaffected", err, map[string]any{
			"event_id": event.EventID,
		})
		return
	}
	observability.EventsPublished.Inc()
}

// EnableSharing turns the acting user's sharing flag on in the remote store.
func (s *Service) EnableSharing(ctx context.Context) error {
	return s.setSharing(ctx, true)
}

// DisableSharing turns the acting user's sharing flag off.
func (s *Service) DisableSharing(ctx context.Context) error {
	return s.setSharing(ctx, false)
}

func (s *Service) setSharing(ctx context.Context, enabled bool) error {
	uid, ok := s.ids.CurrentUserID(ctx)
	if !ok {
		return domain.ErrUserNotAuthenticated
	}
	if err := s.store.WriteSharingEnabled(ctx, uid, enabled); err != nil {
		return fmt.Errorf("write sharing flag: %w", err)
	}
	s.log.Info(ctx, "sharing_flag_changed", "Location sharing flag updated", map[string]any{"enabled": enabled})
	return nil
}

// SharingEnabled reads the acting user's own sharing flag.
func (s *Service) SharingEnabled(ctx context.Context) (bool, error) {
	uid, ok := s.ids.CurrentUserID(ctx)
	if !ok {
		return false, domain.ErrUserNotAuthenticated
	}
	return s.store.ReadSharingEnabled(ctx, uid)
}

package domain

import (
	"context"
	"time"
)

// IdentityProvider exposes the current identity, if any. The engine never
// keeps a process-wide current user; every operation resolves identity
// through this port so multiple identities can coexist in one process.
type IdentityProvider interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// RecordStore is the remote record store keyed by user id. Observe streams
// are push-based; cancelling ctx stops the underlying observation and
// closes the returned channel.
type RecordStore interface {
	ReadLocation(ctx context.Context, userID string) (*LocationRecord, error)
	WriteLocation(ctx context.Context, userID string, record LocationRecord) error
	ObserveLocation(ctx context.Context, userID string) (<-chan LocationRecord, error)

	ReadSharingEnabled(ctx context.Context, userID string) (bool, error)
	WriteSharingEnabled(ctx context.Context, userID string, enabled bool) error
}

// FriendStore is the friend relationship store. Get returns (nil, nil) when
// the relationship does not exist; absence is not an error.
type FriendStore interface {
	Get(ctx context.Context, userID, friendID string) (*Friendship, error)
	GetAll(ctx context.Context, userID string) ([]Friendship, error)
	UpdatePermission(ctx context.Context, userID, friendID string, state PermissionState) error
	ObserveAll(ctx context.Context, userID string) (<-chan []Friendship, error)
}

// AcquisitionOptions tunes how the device source samples positions.
// SignificantChangesOnly requests the platform's coarse change-based mode
// where supported; sources without it fall back to the interval.
type AcquisitionOptions struct {
	Interval               time.Duration
	SignificantChangesOnly bool
}

// LocationSource is the device position source driving the tracker. Readings
// are raw samples; validation happens in the tracker.
type LocationSource interface {
	Authorization(ctx context.Context) Authorization
	ServicesEnabled(ctx context.Context) bool
	Readings(ctx context.Context, opts AcquisitionOptions) (<-chan Location, error)
}

// EventPublisher fans validated broadcasts out to the location event queue.
type EventPublisher interface {
	PublishLocation(ctx context.Context, event LocationEvent) error
}

// HistoryRepository archives location events.
type HistoryRepository interface {
	Archive(ctx context.Context, event LocationEvent) error
}

package app

import (
	"context"
	"fmt"

	"locshare/internal/common/logger"
	"locshare/internal/sharing/cache"
	"locshare/internal/sharing/domain"
)

// Repository is the read-side composition over the remote store and the
// local cache: try remote, on failure read the cache, on a cache miss
// propagate the original remote error. The fallback decision lives here, at
// the call site, not inside the store adapter — so it stays explicit and
// testable.
type Repository struct {
	store     domain.RecordStore
	validator *domain.Validator
	cache     *cache.Cache
	log       *logger.Logger
}

// NewRepository wires the fallback repository.
func NewRepository(store domain.RecordStore, validator *domain.Validator, locCache *cache.Cache, log *logger.Logger) *Repository {
	return &Repository{store: store, validator: validator, cache: locCache, log: log}
}

// FriendLocation returns the friend's current position, preferring a live
// remote read. A remote failure or an implausible remote record degrades to
// the last cached value; with nothing cached the original error is returned
// unchanged. A successful remote read refreshes the cache.
func (r *Repository) FriendLocation(ctx context.Context, friendID string) (domain.Location, error) {
	return r.read(ctx, friendID, cache.FriendKey(friendID))
}

// OwnLocation is the same composition for the user's own last position.
func (r *Repository) OwnLocation(ctx context.Context, userID string) (domain.Location, error) {
	return r.read(ctx, userID, cache.UserKey(userID))
}

func (r *Repository) read(ctx context.Context, ownerID, cacheKey string) (domain.Location, error) {
	record, err := r.store.ReadLocation(ctx, ownerID)
	switch {
	case err == nil && record == nil:
		err = domain.ErrNoLocation
	case err == nil:
		loc := record.ToLocation()
		res := r.validator.Validate(loc)
		if res.IsValid {
			r.cache.Put(cacheKey, loc)
			return loc, nil
		}
		err = fmt.Errorf("%w: %v", domain.ErrInvalidLocation, res.Errors)
	}

	if cached, ok := r.cache.Get(cacheKey); ok {
		r.log.Debug(ctx, "location_cache_fallback", "Serving cached location after remote failure", map[string]any{
			"owner_id": ownerID,
		})
		return cached, nil
	}

	return domain.Location{}, err
}

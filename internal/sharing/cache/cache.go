package cache

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"locshare/internal/observability"
	"locshare/internal/sharing/domain"
)

// DefaultTTL is the staleness window applied when the config does not
// override it.
const DefaultTTL = 30 * time.Minute

const (
	userKeyPrefix   = "user_location_"
	friendKeyPrefix = "friend_location_"
	cachedAtSuffix  = "_cached_at"
)

// UserKey namespaces a self-owned entry.
func UserKey(id string) string { return userKeyPrefix + id }

// FriendKey namespaces a friend-owned entry.
func FriendKey(id string) string { return friendKeyPrefix + id }

// Store is the persisted key-value layer under the cache. Implementations
// must tolerate arbitrary bytes; the cache treats undecodable values as
// absent rather than failing.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string)
	Keys(prefix string) []string
}

type storedLocation struct {
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	AccuracyMeters float64  `json:"accuracy_meters"`
	TimestampMS    int64    `json:"timestamp_ms"`
	AltitudeMeters *float64 `json:"altitude_meters,omitempty"`
	SpeedKMH       *float64 `json:"speed_kmh,omitempty"`
	BearingDegrees *float64 `json:"bearing_degrees,omitempty"`
	IsMoving       *bool    `json:"is_moving,omitempty"`
}

// Cache is the last-known-location store, one entry per owner key,
// last-write-wins, evicted on expired reads. Safe for concurrent use from
// tracker callbacks and consumers; read-evict and writes share one critical
// section so an expiry check can never evict a concurrently written fresh
// value.
type Cache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	store Store
}

// New builds a Cache over the given store. A ttl of 0 selects DefaultTTL.
func New(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, now: time.Now, store: store}
}

// NewAt builds a Cache with a fixed clock, for tests.
func NewAt(store Store, ttl time.Duration, now func() time.Time) *Cache {
	c := New(store, ttl)
	c.now = now
	return c
}

// Put stores the location under the key, overwriting any previous entry and
// stamping the write time. Writes always succeed against the in-memory
// store; persistence errors are swallowed so a full disk cannot break the
// pipeline.
func (c *Cache) Put(key string, loc domain.Location) {
	rec := storedLocation{
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		AccuracyMeters: loc.AccuracyMeters,
		TimestampMS:    loc.Timestamp.UnixMilli(),
		AltitudeMeters: loc.AltitudeMeters,
		SpeedKMH:       loc.SpeedKMH,
		BearingDegrees: loc.BearingDegrees,
		IsMoving:       loc.IsMoving,
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.store.Set(key, string(body))
	_ = c.store.Set(key+cachedAtSuffix, strconv.FormatInt(c.now().UnixMilli(), 10))
}

// Get returns the cached location if present and younger than the TTL.
// Expired or undecodable entries are removed and reported as absent. Cached
// values are returned as stored; they were validated before caching and are
// not re-validated here.
func (c *Cache) Get(key string) (domain.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.store.Get(key)
	if !ok {
		observability.CacheMisses.Inc()
		return domain.Location{}, false
	}

	cachedAt, ok := c.readCachedAt(key)
	if !ok || c.now().Sub(cachedAt) >= c.ttl {
		c.evict(key)
		observability.CacheMisses.Inc()
		return domain.Location{}, false
	}

	var rec storedLocation
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// corrupted entry: treat as absent, not as an error
		c.evict(key)
		observability.CacheMisses.Inc()
		return domain.Location{}, false
	}

	observability.CacheHits.Inc()
	loc := domain.Location{
		Latitude:       rec.Latitude,
		Longitude:      rec.Longitude,
		AccuracyMeters: rec.AccuracyMeters,
		Timestamp:      time.UnixMilli(rec.TimestampMS).UTC(),
		AltitudeMeters: rec.AltitudeMeters,
		SpeedKMH:       rec.SpeedKMH,
		BearingDegrees: rec.BearingDegrees,
		IsMoving:       rec.IsMoving,
	}
	return loc, true
}

// ClearAll removes every location-namespaced entry and nothing else;
// unrelated keys in the same store survive.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, prefix := range []string{userKeyPrefix, friendKeyPrefix} {
		for _, key := range c.store.Keys(prefix) {
			c.store.Delete(key)
		}
	}
}

func (c *Cache) readCachedAt(key string) (time.Time, bool) {
	raw, ok := c.store.Get(key + cachedAtSuffix)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (c *Cache) evict(key string) {
	c.store.Delete(key)
	c.store.Delete(key + cachedAtSuffix)
	observability.CacheEvictions.Inc()
}

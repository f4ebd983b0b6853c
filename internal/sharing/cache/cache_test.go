package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"locshare/internal/sharing/domain"
)

var cacheNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestCache(ttl time.Duration, now *time.Time) *Cache {
	return NewAt(NewMemoryStore(), ttl, func() time.Time { return *now })
}

func sample() domain.Location {
	return domain.NewLocation(37.7749, -122.4194, 10, cacheNow.Add(-time.Minute)).WithAltitude(12)
}

func TestPutGetRoundTrip(t *testing.T) {
	now := cacheNow
	c := newTestCache(30*time.Minute, &now)

	want := sample()
	c.Put(UserKey("alice"), want)

	got, ok := c.Get(UserKey("alice"))
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Latitude != want.Latitude || got.Longitude != want.Longitude {
		t.Fatalf("coordinates changed: got (%v,%v)", got.Latitude, got.Longitude)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Fatalf("timestamp changed: got %v want %v", got.Timestamp, want.Timestamp)
	}
	if got.AltitudeMeters == nil || *got.AltitudeMeters != 12 {
		t.Fatalf("altitude lost: %v", got.AltitudeMeters)
	}
}

func TestGetMissOnAbsent(t *testing.T) {
	now := cacheNow
	c := newTestCache(30*time.Minute, &now)
	if _, ok := c.Get(UserKey("nobody")); ok {
		t.Fatal("expected miss")
	}
}

func TestExpiredEntryEvicted(t *testing.T) {
	now := cacheNow
	store := NewMemoryStore()
	c := NewAt(store, 30*time.Minute, func() time.Time { return now })

	c.Put(FriendKey("bob"), sample())
	now = now.Add(30 * time.Minute) // exactly at TTL is expired

	if _, ok := c.Get(FriendKey("bob")); ok {
		t.Fatal("expected expired entry to miss")
	}
	if _, ok := store.Get(FriendKey("bob")); ok {
		t.Fatal("expected expired entry to be evicted from the store")
	}
	if _, ok := store.Get(FriendKey("bob") + "_cached_at"); ok {
		t.Fatal("expected cached_at stamp to be evicted too")
	}
}

func TestFreshEntryJustUnderTTL(t *testing.T) {
	now := cacheNow
	c := newTestCache(30*time.Minute, &now)

	c.Put(UserKey("alice"), sample())
	now = now.Add(30*time.Minute - time.Second)

	if _, ok := c.Get(UserKey("alice")); !ok {
		t.Fatal("entry under TTL should still hit")
	}
}

func TestLastWriteWins(t *testing.T) {
	now := cacheNow
	c := newTestCache(30*time.Minute, &now)

	first := sample()
	second := domain.NewLocation(40.4168, -3.7038, 8, cacheNow)
	c.Put(UserKey("alice"), first)
	c.Put(UserKey("alice"), second)

	got, ok := c.Get(UserKey("alice"))
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Latitude != second.Latitude {
		t.Fatalf("expected the later write, got lat %v", got.Latitude)
	}
}

func TestCorruptEntryTreatedAsAbsent(t *testing.T) {
	now := cacheNow
	store := NewMemoryStore()
	c := NewAt(store, 30*time.Minute, func() time.Time { return now })

	_ = store.Set(UserKey("alice"), "{not json")
	_ = store.Set(UserKey("alice")+"_cached_at", "1765700000000")
	now = time.UnixMilli(1765700000000).Add(time.Minute)

	if _, ok := c.Get(UserKey("alice")); ok {
		t.Fatal("corrupt entry should read as a miss")
	}
	if _, ok := store.Get(UserKey("alice")); ok {
		t.Fatal("corrupt entry should be evicted")
	}
}

func TestClearAllScopedToLocationKeys(t *testing.T) {
	now := cacheNow
	store := NewMemoryStore()
	c := NewAt(store, 30*time.Minute, func() time.Time { return now })

	c.Put(UserKey("alice"), sample())
	c.Put(FriendKey("bob"), sample())
	_ = store.Set("session_token", "keep-me")

	c.ClearAll()

	if _, ok := c.Get(UserKey("alice")); ok {
		t.Fatal("user entry should be cleared")
	}
	if _, ok := c.Get(FriendKey("bob")); ok {
		t.Fatal("friend entry should be cleared")
	}
	if v, ok := store.Get("session_token"); !ok || v != "keep-me" {
		t.Fatal("unrelated key must survive ClearAll")
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	now := cacheNow
	c := NewAt(fs, 30*time.Minute, func() time.Time { return now })
	c.Put(UserKey("alice"), sample())

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	c2 := NewAt(reopened, 30*time.Minute, func() time.Time { return now })
	if _, ok := c2.Get(UserKey("alice")); !ok {
		t.Fatal("entry should survive reopen")
	}
}

func TestFileStoreCorruptFileLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("corrupt file should load as empty, got %v", err)
	}
	if _, ok := fs.Get(UserKey("alice")); ok {
		t.Fatal("corrupt file should hold no entries")
	}
}

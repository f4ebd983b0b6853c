package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"locshare/internal/common/logger"
	"locshare/internal/sharing/cache"
	"locshare/internal/sharing/domain"
)

func testRepository(store *fakeRecordStore) (*Repository, *cache.Cache) {
	v := domain.NewValidator(domain.DefaultValidatorConfig())
	c := cache.New(cache.NewMemoryStore(), 30*time.Minute)
	return NewRepository(store, v, c, logger.New("test")), c
}

func TestReadPrefersRemote(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	repo, c := testRepository(store)

	want := validLoc()
	store.records["bob"] = want.ToRecord()

	got, err := repo.FriendLocation(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if got.Latitude != want.Latitude {
		t.Fatalf("got lat %v", got.Latitude)
	}
	// a successful remote read refreshes the cache
	if _, ok := c.Get(cache.FriendKey("bob")); !ok {
		t.Fatal("cache not refreshed after remote read")
	}
}

func TestReadFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	repo, c := testRepository(store)

	cached := validLoc()
	c.Put(cache.FriendKey("bob"), cached)
	store.failReads = true

	got, err := repo.FriendLocation(ctx, "bob")
	if err != nil {
		t.Fatalf("expected cache fallback, got %v", err)
	}
	if got.Latitude != cached.Latitude {
		t.Fatalf("got lat %v", got.Latitude)
	}
}

func TestReadBothFailReturnsRemoteError(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	repo, _ := testRepository(store)
	store.failReads = true

	_, err := repo.FriendLocation(ctx, "bob")
	if err == nil || err.Error() != "store down" {
		t.Fatalf("expected the original remote error, got %v", err)
	}
}

func TestReadAbsentRecordIsNoLocation(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	repo, _ := testRepository(store)

	if _, err := repo.FriendLocation(ctx, "bob"); !errors.Is(err, domain.ErrNoLocation) {
		t.Fatalf("expected ErrNoLocation, got %v", err)
	}
}

func TestReadInvalidRemoteDegradesToCache(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	repo, c := testRepository(store)

	cached := validLoc()
	c.Put(cache.FriendKey("bob"), cached)

	implausible := validLoc()
	implausible.Latitude = 95
	store.records["bob"] = implausible.ToRecord()

	got, err := repo.FriendLocation(ctx, "bob")
	if err != nil {
		t.Fatalf("expected cache fallback for invalid remote record, got %v", err)
	}
	if got.Latitude != cached.Latitude {
		t.Fatalf("got lat %v", got.Latitude)
	}
}

func TestReadInvalidRemoteNoCacheReturnsInvalid(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	repo, _ := testRepository(store)

	implausible := validLoc()
	implausible.Latitude = 95
	store.records["bob"] = implausible.ToRecord()

	if _, err := repo.FriendLocation(ctx, "bob"); !errors.Is(err, domain.ErrInvalidLocation) {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}
}

func TestOwnLocationUsesUserNamespace(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	repo, c := testRepository(store)

	store.records["alice"] = validLoc().ToRecord()
	if _, err := repo.OwnLocation(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(cache.UserKey("alice")); !ok {
		t.Fatal("own read should refresh the user-namespaced entry")
	}
	if _, ok := c.Get(cache.FriendKey("alice")); ok {
		t.Fatal("own read must not touch the friend namespace")
	}
}

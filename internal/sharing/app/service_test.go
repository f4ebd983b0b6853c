package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"locshare/internal/common/logger"
	"locshare/internal/sharing/cache"
	"locshare/internal/sharing/domain"
	"locshare/internal/sharing/identity"
)

type fakeRecordStore struct {
	mu        sync.Mutex
	records   map[string]domain.LocationRecord
	sharing   map[string]bool
	observers map[string]chan domain.LocationRecord

	failReads  bool
	failWrites bool
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{
		records:   make(map[string]domain.LocationRecord),
		sharing:   make(map[string]bool),
		observers: make(map[string]chan domain.LocationRecord),
	}
}

func (s *fakeRecordStore) ReadLocation(_ context.Context, userID string) (*domain.LocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return nil, errors.New("store down")
	}
	r, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *fakeRecordStore) WriteLocation(_ context.Context, userID string, record domain.LocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.New("store down")
	}
	s.records[userID] = record
	if ch, ok := s.observers[userID]; ok {
		select {
		case ch <- record:
		default:
		}
	}
	return nil
}

func (s *fakeRecordStore) ObserveLocation(ctx context.Context, userID string) (<-chan domain.LocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return nil, errors.New("store down")
	}
	ch := make(chan domain.LocationRecord, 16)
	s.observers[userID] = ch

	out := make(chan domain.LocationRecord)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-ch:
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *fakeRecordStore) ReadSharingEnabled(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return false, errors.New("store down")
	}
	return s.sharing[userID], nil
}

func (s *fakeRecordStore) WriteSharingEnabled(_ context.Context, userID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.New("store down")
	}
	s.sharing[userID] = enabled
	return nil
}

// push injects a remote write from another user, as the friend's device would.
func (s *fakeRecordStore) push(userID string, record domain.LocationRecord) {
	_ = s.WriteLocation(context.Background(), userID, record)
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.LocationEvent
	fail   bool
}

func (p *capturingPublisher) PublishLocation(_ context.Context, event domain.LocationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func testService(store *fakeRecordStore, events domain.EventPublisher) (*Service, *cache.Cache) {
	v := domain.NewValidator(domain.DefaultValidatorConfig())
	c := cache.New(cache.NewMemoryStore(), 30*time.Minute)
	svc := NewService(identity.Static("alice"), store, v, c, events, logger.New("test"))
	return svc, c
}

func validLoc() domain.Location {
	return domain.NewLocation(37.7749, -122.4194, 10, time.Now().UTC())
}

func TestBroadcastHappyPath(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	store.sharing["alice"] = true
	pub := &capturingPublisher{}
	svc, c := testService(store, pub)

	loc := validLoc()
	if err := svc.Broadcast(ctx, loc); err != nil {
		t.Fatal(err)
	}

	rec, ok := store.records["alice"]
	if !ok {
		t.Fatal("remote record not written")
	}
	if rec.Latitude != loc.Latitude {
		t.Fatalf("remote lat = %v", rec.Latitude)
	}
	if _, ok := c.Get(cache.UserKey("alice")); !ok {
		t.Fatal("own cache entry not written")
	}
	if pub.count() != 1 {
		t.Fatalf("published %d events, want 1", pub.count())
	}
	if pub.events[0].OwnerID != "alice" || pub.events[0].EventID == "" {
		t.Fatalf("event = %+v", pub.events[0])
	}
}

func TestBroadcastRejectsInvalidReading(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	store.sharing["alice"] = true
	svc, _ := testService(store, nil)

	loc := validLoc()
	loc.Latitude = 91
	err := svc.Broadcast(ctx, loc)
	if !errors.Is(err, domain.ErrInvalidLocation) {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}
	if _, ok := store.records["alice"]; ok {
		t.Fatal("invalid reading must not be written")
	}
}

func TestBroadcastRequiresSharingEnabled(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore() // sharing flag defaults to false
	svc, _ := testService(store, nil)

	if err := svc.Broadcast(ctx, validLoc()); !errors.Is(err, domain.ErrSharingDisabled) {
		t.Fatalf("expected ErrSharingDisabled, got %v", err)
	}
}

func TestBroadcastRequiresIdentity(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	v := domain.NewValidator(domain.DefaultValidatorConfig())
	c := cache.New(cache.NewMemoryStore(), 30*time.Minute)
	svc := NewService(identity.None{}, store, v, c, nil, logger.New("test"))

	if err := svc.Broadcast(ctx, validLoc()); !errors.Is(err, domain.ErrUserNotAuthenticated) {
		t.Fatalf("expected ErrUserNotAuthenticated, got %v", err)
	}
}

func TestBroadcastCacheWrittenBeforeFailedRemoteWrite(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	store.sharing["alice"] = true
	store.failWrites = true
	svc, c := testService(store, nil)

	err := svc.Broadcast(ctx, validLoc())
	if err == nil {
		t.Fatal("expected remote write failure")
	}
	// the local cache keeps the reading even though the remote write failed
	if _, ok := c.Get(cache.UserKey("alice")); !ok {
		t.Fatal("cache entry should survive a failed remote write")
	}
}

func TestBroadcastSurvivesPublisherFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	store.sharing["alice"] = true
	pub := &capturingPublisher{fail: true}
	svc, _ := testService(store, pub)

	if err := svc.Broadcast(ctx, validLoc()); err != nil {
		t.Fatalf("queue failure must not fail the broadcast: %v", err)
	}
}

func TestSharingFlagRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeRecordStore()
	svc, _ := testService(store, nil)

	if err := svc.EnableSharing(ctx); err != nil {
		t.Fatal(err)
	}
	if on, _ := svc.SharingEnabled(ctx); !on {
		t.Fatal("flag should be on")
	}
	if err := svc.DisableSharing(ctx); err != nil {
		t.Fatal(err)
	}
	if on, _ := svc.SharingEnabled(ctx); on {
		t.Fatal("flag should be off")
	}
}

func TestSubscribeFriendDeliversValidatedUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newFakeRecordStore()
	svc, c := testService(store, nil)

	updates, err := svc.SubscribeFriend(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}

	want := validLoc()
	store.push("bob", want.ToRecord())

	select {
	case got := <-updates:
		if got.Latitude != want.Latitude {
			t.Fatalf("got lat %v", got.Latitude)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}

	// validated updates are written through to the friend cache
	if _, ok := c.Get(cache.FriendKey("bob")); !ok {
		t.Fatal("friend cache entry not written")
	}
}

func TestSubscribeFriendDropsInvalidUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newFakeRecordStore()
	svc, _ := testService(store, nil)

	updates, err := svc.SubscribeFriend(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}

	bad := validLoc()
	bad.AccuracyMeters = -1
	store.push("bob", bad.ToRecord())
	good := validLoc()
	store.push("bob", good.ToRecord())

	// only the valid update arrives; the invalid one was dropped silently
	select {
	case got := <-updates:
		if got.AccuracyMeters != good.AccuracyMeters {
			t.Fatalf("invalid reading leaked through: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}
}

func TestSubscribeFriendClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newFakeRecordStore()
	svc, _ := testService(store, nil)

	updates, err := svc.SubscribeFriend(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, open := <-updates:
		if open {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}

func TestSubscribeFriendsSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newFakeRecordStore()
	svc, _ := testService(store, nil)

	snapshots, err := svc.SubscribeFriends(ctx, []string{"bob", "carol"})
	if err != nil {
		t.Fatal(err)
	}

	store.push("bob", validLoc().ToRecord())
	select {
	case snap := <-snapshots:
		if len(snap) != 1 {
			t.Fatalf("first snapshot size = %d", len(snap))
		}
		if _, ok := snap["bob"]; !ok {
			t.Fatal("first snapshot missing bob")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after first update")
	}

	store.push("carol", validLoc().ToRecord())
	select {
	case snap := <-snapshots:
		if len(snap) != 2 {
			t.Fatalf("second snapshot size = %d", len(snap))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after second update")
	}
}

func TestSubscribeRequiresIdentity(t *testing.T) {
	store := newFakeRecordStore()
	v := domain.NewValidator(domain.DefaultValidatorConfig())
	c := cache.New(cache.NewMemoryStore(), 30*time.Minute)
	svc := NewService(identity.None{}, store, v, c, nil, logger.New("test"))

	if _, err := svc.SubscribeFriend(context.Background(), "bob"); !errors.Is(err, domain.ErrUserNotAuthenticated) {
		t.Fatalf("expected ErrUserNotAuthenticated, got %v", err)
	}
}

package permission

import (
	"context"
	"fmt"
	"sync"

	"locshare/internal/common/logger"
	"locshare/internal/sharing/domain"
)

// Manager drives the consent lifecycle for the acting user's friend pairs.
// The friend store is authoritative; the in-memory index is a write-through
// mirror updated only after a store operation completes, and is rebuilt from
// the store on Initialize rather than trusted across restarts.
//
// Updates for the same friend are serialized so overlapping grant/deny calls
// cannot lose writes; different friends proceed independently.
type Manager struct {
	friends domain.FriendStore
	ids     domain.IdentityProvider
	log     *logger.Logger

	mu    sync.Mutex
	index map[string]domain.PermissionState // friend_id -> last completed state
	locks map[string]*sync.Mutex            // friend_id -> update serializer
}

// NewManager builds a Manager over the friend store.
func NewManager(friends domain.FriendStore, ids domain.IdentityProvider, log *logger.Logger) *Manager {
	return &Manager{
		friends: friends,
		ids:     ids,
		log:     log,
		index:   make(map[string]domain.PermissionState),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Initialize populates the status index from the store. A store failure
// leaves the index empty; the engine starts degraded instead of crashing.
func (m *Manager) Initialize(ctx context.Context) {
	uid, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		return
	}

	all, err := m.friends.GetAll(ctx, uid)
	if err != nil {
		m.log.Error(ctx, "permission_index_init_failed", "Could not load friendships; starting with an empty index", err, nil)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]domain.PermissionState, len(all))
	for _, f := range all {
		m.index[f.FriendID] = f.State
	}
}

// Request transitions NONE -> REQUESTED.
func (m *Manager) Request(ctx context.Context, friendID string) error {
	return m.transition(ctx, friendID, domain.PermissionRequested, domain.ErrRequestFailed)
}

// Grant transitions REQUESTED -> GRANTED.
func (m *Manager) Grant(ctx context.Context, friendID string) error {
	return m.transition(ctx, friendID, domain.PermissionGranted, domain.ErrPermissionUpdateFailed)
}

// Deny transitions REQUESTED -> DENIED.
func (m *Manager) Deny(ctx context.Context, friendID string) error {
	return m.transition(ctx, friendID, domain.PermissionDenied, domain.ErrPermissionUpdateFailed)
}

// Revoke returns any non-NONE state to NONE. Either party may do this.
func (m *Manager) Revoke(ctx context.Context, friendID string) error {
	return m.transition(ctx, friendID, domain.PermissionNone, domain.ErrPermissionUpdateFailed)
}

// Permission returns the stored state for the pair. A missing relationship
// is NONE, not an error.
func (m *Manager) Permission(ctx context.Context, friendID string) (domain.PermissionState, error) {
	uid, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		return domain.PermissionNone, domain.ErrUserNotAuthenticated
	}

	f, err := m.friends.Get(ctx, uid, friendID)
	if err != nil {
		return domain.PermissionNone, err
	}
	if f == nil {
		return domain.PermissionNone, nil
	}
	return f.State, nil
}

// SharingActive reports whether the pair is exactly GRANTED. Any failure
// reads as inactive; a degraded store must never look like a grant.
func (m *Manager) SharingActive(ctx context.Context, friendID string) bool {
	state, err := m.Permission(ctx, friendID)
	if err != nil {
		return false
	}
	return state.Active()
}

// AuthorizedFriends returns the ids of all friends currently GRANTED. On a
// store failure it returns the empty set rather than the error, for the same
// reason as SharingActive.
func (m *Manager) AuthorizedFriends(ctx context.Context) map[string]struct{} {
	out := make(map[string]struct{})

	uid, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		return out
	}

	all, err := m.friends.GetAll(ctx, uid)
	if err != nil {
		m.log.Error(ctx, "authorized_friends_read_failed", "Treating authorization set as empty", err, nil)
		return out
	}

	for _, f := range all {
		if f.State.Active() {
			out[f.FriendID] = struct{}{}
		}
	}
	return out
}

// transition performs one guarded, serialized state change. Repeating an
// established state is a no-op success; an illegal step fails without
// touching the store or the index. NONE is not an established state, so a
// revoke on a pair that never had a relationship is rejected, not absorbed.
func (m *Manager) transition(ctx context.Context, friendID string, next domain.PermissionState, failure error) error {
	uid, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		return fmt.Errorf("%w: %v", failure, domain.ErrUserNotAuthenticated)
	}

	lock := m.friendLock(friendID)
	lock.Lock()
	defer lock.Unlock()

	cur, err := m.Permission(ctx, friendID)
	if err != nil {
		return fmt.Errorf("%w: %v", failure, err)
	}

	if cur == next && cur != domain.PermissionNone {
		return nil // idempotent
	}
	if !cur.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cur, next)
	}

	if err := m.friends.UpdatePermission(ctx, uid, friendID, next); err != nil {
		return fmt.Errorf("%w: %v", failure, err)
	}

	m.mu.Lock()
	if next == domain.PermissionNone {
		delete(m.index, friendID)
	} else {
		m.index[friendID] = next
	}
	m.mu.Unlock()

	m.log.Info(ctx, "permission_changed", "Friend permission state updated", map[string]any{
		"friend_id": friendID,
		"from":      cur.String(),
		"to":        next.String(),
	})
	return nil
}

// friendLock returns the per-friend serializer, creating it on first use.
func (m *Manager) friendLock(friendID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[friendID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[friendID] = l
	}
	return l
}

// IndexedState returns the last completed state recorded in the index. Meant
// for fast-path checks; the store remains the source of truth.
func (m *Manager) IndexedState(friendID string) domain.PermissionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.index[friendID]; ok {
		return s
	}
	return domain.PermissionNone
}

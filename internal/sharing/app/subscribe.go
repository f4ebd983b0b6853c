package app

import (
	"context"

	"locshare/internal/observability"
	"locshare/internal/sharing/cache"
	"locshare/internal/sharing/domain"
)

// SubscribeFriend streams a friend's validated positions. Invalid remote
// values are dropped silently: one malformed remote write must not stall or
// end the subscriber's stream. Each validated value is written through to
// the cache before delivery, so a later remote outage still has something to
// fall back to. Cancelling ctx stops the remote observation and closes the
// channel.
func (s *Service) SubscribeFriend(ctx context.Context, friendID string) (<-chan domain.Location, error) {
	if _, ok := s.ids.CurrentUserID(ctx); !ok {
		return nil, domain.ErrUserNotAuthenticated
	}

	records, err := s.store.ObserveLocation(ctx, friendID)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.Location)
	observability.ActiveSubscriptions.Inc()

	go func() {
		defer close(out)
		defer observability.ActiveSubscriptions.Dec()

		for {
			select {
			case <-ctx.Done():
				return
			case record, ok := <-records:
				if !ok {
					return
				}

				loc := record.ToLocation()
				if res := s.validator.Validate(loc); !res.IsValid {
					for _, code := range res.Errors {
						observability.ReadingsDropped.WithLabelValues(code.String()).Inc()
					}
					continue
				}

				s.cache.Put(cache.FriendKey(friendID), loc)

				select {
				case out <- loc:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// FriendLocations is one fan-in emission: the latest known position per
// friend id.
type FriendLocations map[string]domain.Location

// SubscribeFriends merges per-friend streams into a single stream of the
// latest known set. Every update from any friend produces a fresh snapshot;
// consumers never see a partially updated map.
func (s *Service) SubscribeFriends(ctx context.Context, friendIDs []string) (<-chan FriendLocations, error) {
	if _, ok := s.ids.CurrentUserID(ctx); !ok {
		return nil, domain.ErrUserNotAuthenticated
	}

	type update struct {
		friendID string
		loc      domain.Location
	}
	merged := make(chan update)

	started := 0
	for _, friendID := range friendIDs {
		stream, err := s.SubscribeFriend(ctx, friendID)
		if err != nil {
			// a friend whose observation cannot start is skipped, the
			// rest of the fan-in proceeds
			s.log.Error(ctx, "friend_subscribe_failed", "Skipping friend in fan-in", err, map[string]any{
				"friend_id": friendID,
			})
			continue
		}
		started++

		go func(friendID string, stream <-chan domain.Location) {
			for loc := range stream {
				select {
				case merged <- update{friendID: friendID, loc: loc}:
				case <-ctx.Done():
					return
				}
			}
		}(friendID, stream)
	}

	out := make(chan FriendLocations)
	go func() {
		defer close(out)

		latest := make(FriendLocations, started)
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-merged:
				latest[u.friendID] = u.loc

				snapshot := make(FriendLocations, len(latest))
				for id, loc := range latest {
					snapshot[id] = loc
				}

				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"locshare/internal/common/logger"
	"locshare/internal/sharing/domain"
)

// FriendRepository persists directional permission records in the
// friendships table and pushes change notifications over LISTEN/NOTIFY.
type FriendRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

func NewFriendRepository(db *pgxpool.Pool, log *logger.Logger) *FriendRepository {
	return &FriendRepository{db: db, log: log}
}

func (r *FriendRepository) Get(ctx context.Context, userID, friendID string) (*domain.Friendship, error) {
	var f domain.Friendship
	var state string
	err := r.db.QueryRow(ctx, `
		SELECT user_id, friend_id, state, updated_at
		FROM friendships
		WHERE user_id = $1 AND friend_id = $2
	`, userID, friendID).Scan(&f.UserID, &f.FriendID, &state, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query friendship: %w", err)
	}

	f.State, err = domain.ParsePermissionState(state)
	if err != nil {
		return nil, fmt.Errorf("friendship %s->%s: %w", userID, friendID, err)
	}
	return &f, nil
}

func (r *FriendRepository) GetAll(ctx context.Context, userID string) ([]domain.Friendship, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id, friend_id, state, updated_at
		FROM friendships
		WHERE user_id = $1
		ORDER BY friend_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query friendships: %w", err)
	}
	defer rows.Close()

	var out []domain.Friendship
	for rows.Next() {
		var f domain.Friendship
		var state string
		if err := rows.Scan(&f.UserID, &f.FriendID, &state, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		f.State, err = domain.ParsePermissionState(state)
		if err != nil {
			return nil, fmt.Errorf("friendship %s->%s: %w", userID, f.FriendID, err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friendships: %w", err)
	}
	return out, nil
}

func (r *FriendRepository) UpdatePermission(ctx context.Context, userID, friendID string, state domain.PermissionState) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO friendships (user_id, friend_id, state, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, friend_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = now()
	`, userID, friendID, state.String()); err != nil {
		return fmt.Errorf("upsert friendship: %w", err)
	}

	// notify observers of this user's friendship set
	if _, err := tx.Exec(ctx, `SELECT pg_notify('friendship_changes', $1)`, userID); err != nil {
		return fmt.Errorf("notify friendship change: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ObserveAll streams the full friendship set for userID on every change.
// It holds one dedicated connection for LISTEN until ctx is cancelled.
func (r *FriendRepository) ObserveAll(ctx context.Context, userID string) (<-chan []domain.Friendship, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, `LISTEN friendship_changes`); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen friendship_changes: %w", err)
	}

	out := make(chan []domain.Friendship, 1)

	// initial snapshot so subscribers do not wait for the first change
	initial, err := r.GetAll(ctx, userID)
	if err != nil {
		conn.Release()
		return nil, err
	}
	out <- initial

	go func() {
		defer close(out)
		defer conn.Release()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.log.Error(ctx, "friendship_listen_failed", "Lost friendship notification stream", err, nil)
				return
			}
			if n.Payload != userID {
				continue
			}

			snapCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			snapshot, err := r.GetAll(snapCtx, userID)
			cancel()
			if err != nil {
				r.log.Error(ctx, "friendship_snapshot_failed", "Failed to reload friendships after change", err, map[string]any{
					"user_id": userID,
				})
				continue
			}

			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"locshare/internal/common/config"
	"locshare/internal/common/logger"
	"locshare/internal/sharing/domain"
)

// RecordStore implements the remote record store on Redis: location records
// are hashes, the sharing flag is a plain key, and observation rides the
// pub/sub channel that every write publishes to.
type RecordStore struct {
	client *redis.Client
	log    *logger.Logger
}

var _ domain.RecordStore = (*RecordStore)(nil)

// NewRecordStore connects a go-redis client from config and verifies
// connectivity.
func NewRecordStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*RecordStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info(ctx, "redis_connected", "Connected to Redis record store", map[string]any{
		"addr": fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
	})
	return &RecordStore{client: client, log: log}, nil
}

// NewRecordStoreWithClient wraps an existing client, for tests.
func NewRecordStoreWithClient(client *redis.Client, log *logger.Logger) *RecordStore {
	return &RecordStore{client: client, log: log}
}

// Close releases the underlying client.
func (s *RecordStore) Close() error {
	return s.client.Close()
}

func locationKey(userID string) string     { return "users:" + userID + ":location" }
func locationChannel(userID string) string { return "users:" + userID + ":location:updates" }
func sharingKey(userID string) string      { return "users:" + userID + ":sharing_enabled" }

// WriteLocation stores the record hash and publishes it to the owner's
// update channel so observers see it without polling.
func (s *RecordStore) WriteLocation(ctx context.Context, userID string, record domain.LocationRecord) error {
	fields := map[string]any{
		"latitude":  strconv.FormatFloat(record.Latitude, 'f', -1, 64),
		"longitude": strconv.FormatFloat(record.Longitude, 'f', -1, 64),
		"accuracy":  strconv.FormatFloat(record.Accuracy, 'f', -1, 64),
		"timestamp": strconv.FormatInt(record.Timestamp, 10),
	}
	if record.Altitude != nil {
		fields["altitude"] = strconv.FormatFloat(*record.Altitude, 'f', -1, 64)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, locationKey(userID))
	pipe.HSet(ctx, locationKey(userID), fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis write location: %w", err)
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal location record: %w", err)
	}
	if err := s.client.Publish(ctx, locationChannel(userID), body).Err(); err != nil {
		return fmt.Errorf("redis publish location: %w", err)
	}
	return nil
}

// ReadLocation returns (nil, nil) when the owner has no stored record.
func (s *RecordStore) ReadLocation(ctx context.Context, userID string) (*domain.LocationRecord, error) {
	fields, err := s.client.HGetAll(ctx, locationKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read location: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	record, err := recordFromHash(fields)
	if err != nil {
		return nil, fmt.Errorf("decode location record: %w", err)
	}
	return record, nil
}

// ObserveLocation subscribes to the owner's update channel. The returned
// stream closes when ctx is cancelled; undecodable payloads are skipped.
func (s *RecordStore) ObserveLocation(ctx context.Context, userID string) (<-chan domain.LocationRecord, error) {
	pubsub := s.client.Subscribe(ctx, locationChannel(userID))

	// force the subscription onto the wire before returning
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan domain.LocationRecord)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var record domain.LocationRecord
				if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
					s.log.Error(ctx, "observe_decode_failed", "Skipping undecodable location payload", err, map[string]any{
						"channel": msg.Channel,
					})
					continue
				}

				select {
				case out <- record:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// ReadSharingEnabled reports the owner's sharing flag; a missing key reads
// as disabled.
func (s *RecordStore) ReadSharingEnabled(ctx context.Context, userID string) (bool, error) {
	val, err := s.client.Get(ctx, sharingKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis read sharing flag: %w", err)
	}
	return val == "1", nil
}

// WriteSharingEnabled sets the owner's sharing flag.
func (s *RecordStore) WriteSharingEnabled(ctx context.Context, userID string, enabled bool) error {
	val := "0"
	if enabled {
		val = "1"
	}
	if err := s.client.Set(ctx, sharingKey(userID), val, 0).Err(); err != nil {
		return fmt.Errorf("redis write sharing flag: %w", err)
	}
	return nil
}

func recordFromHash(fields map[string]string) (*domain.LocationRecord, error) {
	var record domain.LocationRecord
	var err error

	if record.Latitude, err = strconv.ParseFloat(fields["latitude"], 64); err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	if record.Longitude, err = strconv.ParseFloat(fields["longitude"], 64); err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	if record.Accuracy, err = strconv.ParseFloat(fields["accuracy"], 64); err != nil {
		return nil, fmt.Errorf("accuracy: %w", err)
	}
	if record.Timestamp, err = strconv.ParseInt(fields["timestamp"], 10, 64); err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	if raw, ok := fields["altitude"]; ok {
		alt, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("altitude: %w", err)
		}
		record.Altitude = &alt
	}
	return &record, nil
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `database:
  host: db.internal
  port: 5433
  user: locshare
  password: "s3cret"
  database: locshare

rabbitmq:
  host: mq.internal
  port: 5672
  user: guest
  password: 'guest'

redis:
  host: cache.internal
  port: 6380
  password: ""
  db: 2

websocket:
  port: 9090

jwt:
  secret_key: "super-secret"

sharing:
  cache_ttl_minutes: 15
  max_reading_age_minutes: 45
  clock_skew_minutes: 3
  max_accuracy_meters: 500
  foreground_interval_seconds: 5
  background_interval_seconds: 60
  cache_file: "/var/lib/locshare/cache.json"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFileFull(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 5433 {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Database.Password != "s3cret" {
		t.Fatalf("quoted password not unwrapped: %q", cfg.Database.Password)
	}
	if cfg.RabbitMQ.Password != "guest" {
		t.Fatalf("single-quoted password not unwrapped: %q", cfg.RabbitMQ.Password)
	}
	if cfg.Redis.DB != 2 || cfg.Redis.Port != 6380 {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
	if cfg.WebSocket.Port != 9090 {
		t.Fatalf("websocket port = %d", cfg.WebSocket.Port)
	}
	if cfg.JWT.SecretKey != "super-secret" {
		t.Fatalf("jwt secret = %q", cfg.JWT.SecretKey)
	}
	if cfg.Sharing.CacheTTL != 15*time.Minute {
		t.Fatalf("cache ttl = %v", cfg.Sharing.CacheTTL)
	}
	if cfg.Sharing.MaxReadingAge != 45*time.Minute {
		t.Fatalf("max reading age = %v", cfg.Sharing.MaxReadingAge)
	}
	if cfg.Sharing.ClockSkew != 3*time.Minute {
		t.Fatalf("clock skew = %v", cfg.Sharing.ClockSkew)
	}
	if cfg.Sharing.MaxAccuracyMeters != 500 {
		t.Fatalf("max accuracy = %v", cfg.Sharing.MaxAccuracyMeters)
	}
	if cfg.Sharing.ForegroundInterval != 5*time.Second {
		t.Fatalf("foreground interval = %v", cfg.Sharing.ForegroundInterval)
	}
	if cfg.Sharing.BackgroundInterval != time.Minute {
		t.Fatalf("background interval = %v", cfg.Sharing.BackgroundInterval)
	}
	if cfg.Sharing.CacheFile != "/var/lib/locshare/cache.json" {
		t.Fatalf("cache file = %q", cfg.Sharing.CacheFile)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	minimal := `database:
  user: locshare
  password: "pw"
  database: locshare

rabbitmq:
  user: guest
  password: "guest"
`
	cfg, err := LoadFromFile(writeConfig(t, minimal))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Database.Host != "localhost" || cfg.Database.Port != 5432 {
		t.Fatalf("database defaults = %+v", cfg.Database)
	}
	if cfg.Redis.Host != "localhost" || cfg.Redis.Port != 6379 {
		t.Fatalf("redis defaults = %+v", cfg.Redis)
	}
	if cfg.WebSocket.Port != 8080 {
		t.Fatalf("websocket default = %d", cfg.WebSocket.Port)
	}
	if cfg.JWT.SecretKey == "" {
		t.Fatal("a random jwt secret should be generated")
	}
	if cfg.Sharing.CacheTTL != 30*time.Minute {
		t.Fatalf("cache ttl default = %v", cfg.Sharing.CacheTTL)
	}
	if cfg.Sharing.MaxReadingAge != time.Hour {
		t.Fatalf("max reading age default = %v", cfg.Sharing.MaxReadingAge)
	}
	if cfg.Sharing.ClockSkew != 5*time.Minute {
		t.Fatalf("clock skew default = %v", cfg.Sharing.ClockSkew)
	}
	if cfg.Sharing.CacheFile != "" {
		t.Fatalf("cache file default = %q", cfg.Sharing.CacheFile)
	}
}

func TestLoadRejectsDuplicateSection(t *testing.T) {
	dup := `database:
  user: a
  password: "a"
  database: a

database:
  user: b
  password: "b"
  database: b

rabbitmq:
  user: guest
  password: "guest"
`
	_, err := LoadFromFile(writeConfig(t, dup))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate-section error, got %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	unknown := `database:
  user: a
  password: "a"
  database: a
  flavor: hazelnut

rabbitmq:
  user: guest
  password: "guest"
`
	_, err := LoadFromFile(writeConfig(t, unknown))
	if err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown-key error, got %v", err)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	missing := `database:
  user: a

rabbitmq:
  user: guest
  password: "guest"
`
	if _, err := LoadFromFile(writeConfig(t, missing)); err == nil {
		t.Fatal("expected validation error for missing database credentials")
	}
}

func TestLoadIgnoresComments(t *testing.T) {
	commented := `# top comment
database:
  user: locshare   # inline comment
  password: "pw"
  database: locshare

rabbitmq:
  user: guest
  password: "guest"
`
	cfg, err := LoadFromFile(writeConfig(t, commented))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.User != "locshare" {
		t.Fatalf("user = %q", cfg.Database.User)
	}
}

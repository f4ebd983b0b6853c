package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string // YAML key: "database"
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	Redis struct {
		Host     string
		Port     int
		Password string
		DB       int
	}
	WebSocket struct {
		Port int
	}
	JWT struct {
		SecretKey string
	}
	Sharing struct {
		CacheTTL           time.Duration // YAML key: cache_ttl_minutes
		MaxReadingAge      time.Duration // YAML key: max_reading_age_minutes
		ClockSkew          time.Duration // YAML key: clock_skew_minutes
		MaxAccuracyMeters  float64
		ForegroundInterval time.Duration // YAML key: foreground_interval_seconds
		BackgroundInterval time.Duration // YAML key: background_interval_seconds
		CacheFile          string        // empty means in-memory only
	}
}

// LoadFromFile loads config from a YAML file to a Config struct, applies defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := parseYAML(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Redis
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	// WebSocket
	if cfg.WebSocket.Port == 0 {
		cfg.WebSocket.Port = 8080
	}

	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}

	// Sharing thresholds
	if cfg.Sharing.CacheTTL == 0 {
		cfg.Sharing.CacheTTL = 30 * time.Minute
	}
	if cfg.Sharing.MaxReadingAge == 0 {
		cfg.Sharing.MaxReadingAge = time.Hour
	}
	if cfg.Sharing.ClockSkew == 0 {
		cfg.Sharing.ClockSkew = 5 * time.Minute
	}
	if cfg.Sharing.MaxAccuracyMeters == 0 {
		cfg.Sharing.MaxAccuracyMeters = 1000
	}
	if cfg.Sharing.ForegroundInterval == 0 {
		cfg.Sharing.ForegroundInterval = 10 * time.Second
	}
	if cfg.Sharing.BackgroundInterval == 0 {
		cfg.Sharing.BackgroundInterval = 2 * time.Minute
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// DB
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "database.password is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.database is required")
	}

	// RabbitMQ
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}
	if c.RabbitMQ.Password == "" {
		problems = append(problems, "rabbitmq.password is required")
	}

	// Redis
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		problems = append(problems, "redis.port must be in 1..65535")
	}

	// WebSocket
	if c.WebSocket.Port <= 0 || c.WebSocket.Port > 65535 {
		problems = append(problems, "websocket.port must be in 1..65535")
	}

	// Sharing thresholds must stay positive once defaults are applied
	if c.Sharing.CacheTTL <= 0 {
		problems = append(problems, "sharing.cache_ttl_minutes must be > 0")
	}
	if c.Sharing.MaxReadingAge <= 0 {
		problems = append(problems, "sharing.max_reading_age_minutes must be > 0")
	}
	if c.Sharing.ClockSkew < 0 {
		problems = append(problems, "sharing.clock_skew_minutes cannot be negative")
	}
	if c.Sharing.MaxAccuracyMeters <= 0 {
		problems = append(problems, "sharing.max_accuracy_meters must be > 0")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

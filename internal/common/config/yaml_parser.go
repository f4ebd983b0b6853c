package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// parseYAML parses the specific two-level mapping used by config.yaml
func parseYAML(r io.Reader, cfg *Config) error {
	type section int
	const (
		none section = iota
		db
		rm
		rd
		ws
		jw
		sh
	)

	scanner := bufio.NewScanner(r)
	var cur section

	lineNo := 0
	seenTop := map[section]bool{}

	markSection := func(s section, name string) error {
		if seenTop[s] {
			return fmt.Errorf("line %d: duplicate %q section", lineNo, name)
		}
		seenTop[s] = true
		cur = s
		return nil
	}

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		// strip comments
		if i := strings.IndexByte(raw, '#'); i >= 0 {
			raw = raw[:i]
		}

		line := strings.TrimRight(raw, " \t\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		// top-level section? (no leading spaces)
		if len(line) > 0 && (line[0] != ' ' && line[0] != '\t') {
			switch strings.TrimSpace(line) {
			case "database:":
				if err := markSection(db, "database"); err != nil {
					return err
				}
			case "rabbitmq:":
				if err := markSection(rm, "rabbitmq"); err != nil {
					return err
				}
			case "redis:":
				if err := markSection(rd, "redis"); err != nil {
					return err
				}
			case "websocket:":
				if err := markSection(ws, "websocket"); err != nil {
					return err
				}
			case "jwt:":
				if err := markSection(jw, "jwt"); err != nil {
					return err
				}
			case "sharing:":
				if err := markSection(sh, "sharing"); err != nil {
					return err
				}
			default:
				return fmt.Errorf("line %d: unknown top-level key %q", lineNo, strings.TrimSuffix(strings.TrimSpace(line), ":"))
			}
			continue
		}

		// expect indented "key: value"
		if cur == none {
			return fmt.Errorf("line %d: key without a section", lineNo)
		}
		trim := strings.TrimSpace(line)
		colon := strings.IndexByte(trim, ':')
		if colon <= 0 {
			return fmt.Errorf("line %d: expected 'key: value'", lineNo)
		}
		key := strings.TrimSpace(trim[:colon])
		val := strings.TrimLeft(strings.TrimSpace(trim[colon+1:]), " \t")

		atoi := func(section string) (int, error) {
			n, err := strconv.Atoi(resolveScalar(val))
			if err != nil {
				return 0, fmt.Errorf("line %d: %s.%s must be int: %v", lineNo, section, key, err)
			}
			return n, nil
		}

		switch cur {
		case db:
			switch key {
			case "host":
				cfg.Database.Host = resolveScalar(val)
			case "port":
				p, err := atoi("database")
				if err != nil {
					return err
				}
				cfg.Database.Port = p
			case "user":
				cfg.Database.User = resolveScalar(val)
			case "password":
				cfg.Database.Password = resolveScalar(val)
			case "database":
				cfg.Database.Name = resolveScalar(val)
			default:
				return fmt.Errorf("line %d: unknown key in database: %q", lineNo, key)
			}
		case rm:
			switch key {
			case "host":
				cfg.RabbitMQ.Host = resolveScalar(val)
			case "port":
				p, err := atoi("rabbitmq")
				if err != nil {
					return err
				}
				cfg.RabbitMQ.Port = p
			case "user":
				cfg.RabbitMQ.User = resolveScalar(val)
			case "password":
				cfg.RabbitMQ.Password = resolveScalar(val)
			default:
				return fmt.Errorf("line %d: unknown key in rabbitmq: %q", lineNo, key)
			}
		case rd:
			switch key {
			case "host":
				cfg.Redis.Host = resolveScalar(val)
			case "port":
				p, err := atoi("redis")
				if err != nil {
					return err
				}
				cfg.Redis.Port = p
			case "password":
				cfg.Redis.Password = resolveScalar(val)
			case "db":
				d, err := atoi("redis")
				if err != nil {
					return err
				}
				cfg.Redis.DB = d
			default:
				return fmt.Errorf("line %d: unknown key in redis: %q", lineNo, key)
			}
		case ws:
			switch key {
			case "port":
				p, err := atoi("websocket")
				if err != nil {
					return err
				}
				cfg.WebSocket.Port = p
			default:
				return fmt.Errorf("line %d: unknown key in websocket: %q", lineNo, key)
			}
		case jw:
			switch key {
			case "secret_key":
				cfg.JWT.SecretKey = resolveScalar(val)
			default:
				return fmt.Errorf("line %d: unknown key in jwt: %q", lineNo, key)
			}
		case sh:
			switch key {
			case "cache_ttl_minutes":
				n, err := atoi("sharing")
				if err != nil {
					return err
				}
				cfg.Sharing.CacheTTL = time.Duration(n) * time.Minute
			case "max_reading_age_minutes":
				n, err := atoi("sharing")
				if err != nil {
					return err
				}
				cfg.Sharing.MaxReadingAge = time.Duration(n) * time.Minute
			case "clock_skew_minutes":
				n, err := atoi("sharing")
				if err != nil {
					return err
				}
				cfg.Sharing.ClockSkew = time.Duration(n) * time.Minute
			case "max_accuracy_meters":
				f, err := strconv.ParseFloat(resolveScalar(val), 64)
				if err != nil {
					return fmt.Errorf("line %d: sharing.max_accuracy_meters must be a number: %v", lineNo, err)
				}
				cfg.Sharing.MaxAccuracyMeters = f
			case "foreground_interval_seconds":
				n, err := atoi("sharing")
				if err != nil {
					return err
				}
				cfg.Sharing.ForegroundInterval = time.Duration(n) * time.Second
			case "background_interval_seconds":
				n, err := atoi("sharing")
				if err != nil {
					return err
				}
				cfg.Sharing.BackgroundInterval = time.Duration(n) * time.Second
			case "cache_file":
				cfg.Sharing.CacheFile = resolveScalar(val)
			default:
				return fmt.Errorf("line %d: unknown key in sharing: %q", lineNo, key)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return nil
}

// resolveScalar trims whitespace and removes surrounding quotes from YAML-like scalars.
// For example:
//
//	"localhost"  -> localhost
//	'password123' -> password123
//	localhost     -> localhost
//
// This ensures values like jwt.secret_key are not stored with extra quotes.
func resolveScalar(s string) string {
	s = strings.TrimSpace(s)

	// if value is quoted with "..." or '...', remove quotes safely
	n := len(s)
	if n >= 2 {
		if (s[0] == '"' && s[n-1] == '"') || (s[0] == '\'' && s[n-1] == '\'') {
			if unq, err := strconv.Unquote(s); err == nil {
				return unq
			}
			// fallback if strconv.Unquote fails (e.g., mismatched quotes)
			return s[1 : n-1]
		}
	}

	return s
}

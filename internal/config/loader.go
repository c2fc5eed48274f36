package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the tracker service.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	SessionTTL      time.Duration
	ReminderOffsets []int
	PollInterval    time.Duration
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults; invalid values are reported together
// so a misconfigured deployment fails with one complete message.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		SQLiteDSN:       "file:tracker.db?_foreign_keys=on",
		SessionTTL:      24 * time.Hour,
		ReminderOffsets: []int{15, 10, 5, 1, 0},
		PollInterval:    time.Minute,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("TRACKER_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "TRACKER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("TRACKER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("TRACKER_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "TRACKER_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if offsetsValue := strings.TrimSpace(os.Getenv("TRACKER_REMINDER_OFFSETS")); offsetsValue != "" {
		offsets, err := parseOffsets(offsetsValue)
		if err != nil {
			invalid = append(invalid, "TRACKER_REMINDER_OFFSETS")
		} else {
			cfg.ReminderOffsets = offsets
		}
	}

	if intervalValue := strings.TrimSpace(os.Getenv("TRACKER_POLL_INTERVAL")); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "TRACKER_POLL_INTERVAL")
		} else {
			cfg.PollInterval = interval
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	if err := validatePollInterval(cfg.PollInterval, cfg.ReminderOffsets); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// parseOffsets reads a comma separated list of minute offsets, e.g. "30,10,0".
func parseOffsets(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	seen := make(map[int]bool, len(parts))
	offsets := make([]int, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		offset, err := strconv.Atoi(trimmed)
		if err != nil || offset < 0 {
			return nil, fmt.Errorf("invalid offset %q", part)
		}
		if seen[offset] {
			continue
		}
		seen[offset] = true
		offsets = append(offsets, offset)
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("no offsets provided")
	}
	sort.Ints(offsets)
	return offsets, nil
}

// validatePollInterval rejects poll intervals wider than the narrowest gap
// between consecutive reminder offsets. A coarser interval could step across
// two offsets in one tick, collapsing reminders the viewer expected to see
// separately.
func validatePollInterval(interval time.Duration, offsets []int) error {
	if len(offsets) < 2 {
		return nil
	}
	sorted := make([]int, len(offsets))
	copy(sorted, offsets)
	sort.Ints(sorted)

	smallestGap := sorted[1] - sorted[0]
	for i := 2; i < len(sorted); i++ {
		if gap := sorted[i] - sorted[i-1]; gap < smallestGap {
			smallestGap = gap
		}
	}

	if interval > time.Duration(smallestGap)*time.Minute {
		return fmt.Errorf("TRACKER_POLL_INTERVAL %s exceeds the smallest reminder offset gap of %dm", interval, smallestGap)
	}
	return nil
}

// Package util reads typed settings from the environment for cmd/Tranquil.
// Malformed values never abort startup; they fall back to the default and
// are logged.
package util

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// ParseBoolEnv reads key as a boolean. true/1/yes/on and false/0/no/off are
// accepted in any case.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("util.ParseBoolEnv: not a boolean, using default", "key", key, "value", val, "default", defaultValue)
	return defaultValue
}

// ParseDurationEnv reads key as a time.ParseDuration string such as "15m".
// Negative durations are rejected.
func ParseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	val, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		slog.Warn("util.ParseDurationEnv: not a duration, using default", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
	return d
}

func lookup(key string) (string, bool) {
	val := strings.TrimSpace(os.Getenv(key))
	return val, val != ""
}

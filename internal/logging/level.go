package logging

import (
	"log/slog"
	"strings"
)

// DefaultLevel applies when no level, or an unrecognized one, is configured.
const DefaultLevel = slog.LevelInfo

// levelNames holds the accepted log_level config values.
var levelNames = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLevel maps a config string to a slog.Level, case-insensitively.
// Unrecognized values return (DefaultLevel, false).
func ParseLevel(s string) (level slog.Level, ok bool) {
	level, ok = levelNames[strings.ToLower(s)]
	if !ok {
		return DefaultLevel, false
	}
	return level, true
}

// ParseLevelOrDefault is ParseLevel with the fallback already applied.
func ParseLevelOrDefault(s string) slog.Level {
	level, _ := ParseLevel(s)
	return level
}

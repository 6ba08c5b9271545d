package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevels = map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}

// NormalizeLogLevel case-folds raw. Unknown values become info.
func NormalizeLogLevel(raw string) LogLevel {
	if l, ok := logLevels[fold(raw)]; ok {
		return l
	}
	return LogLevelInfo
}

// SlogLevel maps the level onto log/slog.
func (l LogLevel) SlogLevel() slog.Level {
	switch NormalizeLogLevel(string(l)) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// NormalizeLogFormat case-folds raw. Unknown values become text.
func NormalizeLogFormat(raw string) LogFormat {
	if LogFormat(fold(raw)) == LogFormatJSON {
		return LogFormatJSON
	}
	return LogFormatText
}

// normalize canonicalises enumerations in place and returns a warning for
// every value it did not recognise.
func normalize(cfg *Config) []string {
	var warnings []string
	lg := &cfg.Monitoring.Logging

	if raw := fold(string(lg.Level)); raw != "" {
		if _, ok := logLevels[raw]; !ok {
			warnings = append(warnings, fmt.Sprintf("unknown logging.level %q, using %q", lg.Level, LogLevelInfo))
		}
	}
	lg.Level = NormalizeLogLevel(string(lg.Level))

	if raw := fold(string(lg.Format)); raw != "" && raw != string(LogFormatJSON) && raw != string(LogFormatText) {
		warnings = append(warnings, fmt.Sprintf("unknown logging.format %q, using %q", lg.Format, LogFormatText))
	}
	lg.Format = NormalizeLogFormat(string(lg.Format))
	return warnings
}

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

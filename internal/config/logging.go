package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LevelTrace sits below [slog.LevelDebug] and carries full reasoning
// request and response payloads.
const LevelTrace = slog.Level(-8)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ParseLogLevel converts a case-insensitive level name ("trace",
// "debug", "info", "warn"/"warning", "error") to an [slog.Level]. The
// empty string means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}

// ParseLogFormat normalizes a log_format value. Empty means text.
func ParseLogFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", LogFormatText:
		return LogFormatText, nil
	case LogFormatJSON:
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("log_format %q is not one of text, json", s)
	}
}

// ReplaceLogLevelNames renders [LevelTrace] as "TRACE" instead of
// slog's "DEBUG-4". Use it as [slog.HandlerOptions.ReplaceAttr].
func ReplaceLogLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

// NewLogger builds the process logger from the log_level and log_format
// settings. Unparseable values fall back to info and text; Validate
// reports them before this is reached.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLogLevel(c.LogLevel)
	format, err := ParseLogFormat(c.LogFormat)
	if err != nil {
		format = LogFormatText
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: ReplaceLogLevelNames}
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

package security

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a textual level (debug, info, warn/warning, error,
// case-insensitive) to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "critical":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("security: unknown log level %q", s)
	}
}

// NewLogger builds the process logger: a text or JSON handler writing to w,
// wrapped in a RedactingHandler.
func NewLogger(w io.Writer, level slog.Level, format string, redactor *Redactor) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if strings.EqualFold(format, "json") {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewRedactingHandler(inner, redactor))
}

package logfields

import (
	"io"
	"log/slog"
	"strings"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyWorkspaceID = "workspace_id"
	KeyJobID       = "job_id"
	KeyKind        = "kind"
	KeyItem        = "item"
	KeyPath        = "path"
	KeyShape       = "shape"
	KeyCount       = "count"
	KeyDurationMS  = "duration_ms"
	KeyMethod      = "method"
	KeyStatus      = "status"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func WorkspaceID(id string) slog.Attr { return slog.String(KeyWorkspaceID, id) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Item(name string) slog.Attr      { return slog.String(KeyItem, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Shape(s string) slog.Attr        { return slog.String(KeyShape, s) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// ParseLevel maps a config string to a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs the process-wide slog handler writing to w.
// format is "json" or "text" (default).
func Setup(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

package logging

import (
	"log/slog"
	"time"
)

// EntryCallback is invoked for each entry written to the history buffer.
type EntryCallback func(entry Entry)

// NewBufferHandler returns a handler that records into buffer. Grouped keys
// are joined with dots and a top-level "module" attribute becomes the
// entry's module.
func NewBufferHandler(buffer *RingBuffer, level slog.Leveler) slog.Handler {
	return &leafHandler{
		level: level,
		emit: func(r slog.Record, fields []field) error {
			entry := Entry{
				Timestamp:  r.Time,
				Level:      levelName(r.Level),
				Module:     "app",
				Message:    r.Message,
				Attributes: make(map[string]any, len(fields)),
			}
			for _, f := range fields {
				if len(f.path) == 1 && f.path[0] == "module" {
					entry.Module = f.value.String()
					continue
				}
				entry.Attributes[f.key(".")] = plainValue(f.value)
			}

			entry = buffer.Write(entry)
			if cb := entryCallback(); cb != nil {
				cb(entry)
			}
			return nil
		},
	}
}

// plainValue keeps entries JSON friendly: errors, times and durations are
// stored as text.
func plainValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.Any()
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

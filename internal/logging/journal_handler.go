package logging

import (
	"log/slog"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

const syslogIdentifier = "camcore"

// NewJournalHandler returns a handler that sends records to journald.
// Attribute keys become upper-case journal fields with groups joined by
// underscores, so {"req": {"path": ...}} is REQ_PATH.
func NewJournalHandler(level slog.Leveler) slog.Handler {
	return &leafHandler{
		level: level,
		emit: func(r slog.Record, fields []field) error {
			vars := make(map[string]string, len(fields)+1)
			for _, f := range fields {
				vars[journalKey(f)] = f.value.String()
			}
			vars["SYSLOG_IDENTIFIER"] = syslogIdentifier
			return journal.Send(r.Message, journalPriority(r.Level), vars)
		},
	}
}

// journalKey maps a field onto the journal's [A-Z0-9_] field alphabet.
func journalKey(f field) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, f.key("_"))
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	}
	return journal.PriDebug
}

// IsJournalAvailable reports whether journald is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}

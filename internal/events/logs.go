package events

import (
	"time"

	"github.com/smazurov/camcore/internal/logging"
)

// NewLogEntryEvent converts a log history entry for streaming.
func NewLogEntryEvent(entry logging.Entry) LogEntryEvent {
	return LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}

// PublishLogs forwards every future log entry to the bus as a
// LogEntryEvent. The returned function stops forwarding.
func PublishLogs(bus *Bus) func() {
	logging.SetEntryCallback(func(entry logging.Entry) {
		bus.Publish(NewLogEntryEvent(entry))
	})
	return func() { logging.SetEntryCallback(nil) }
}

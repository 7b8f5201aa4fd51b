package metrics

import (
	"log/slog"

	"github.com/smazurov/camcore/internal/events"
)

var stateValues = map[string]float64{
	"unconfigured": 0,
	"configuring":  1,
	"active":       2,
	"closing":      3,
	"closed":       4,
}

// Recorder subscribes to camera events and feeds the Prometheus metrics.
type Recorder struct {
	eventBus *events.Bus
	logger   *slog.Logger
	unsubs   []func()
}

// NewRecorder creates a recorder for eventBus.
func NewRecorder(eventBus *events.Bus, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{eventBus: eventBus, logger: logger}
}

// Start begins listening for camera events.
func (r *Recorder) Start() {
	r.unsubs = append(r.unsubs,
		r.eventBus.Subscribe(func(e events.SessionStateChangedEvent) {
			SetSessionState(e.Sensor, e.To, stateValues[e.To])
		}),
		r.eventBus.Subscribe(func(e events.PreviewRequestEvent) {
			RecordPreviewRequest(e.Sensor, e.Zoom)
		}),
		r.eventBus.Subscribe(func(e events.PhotoCapturedEvent) {
			RecordPhoto(e.Sensor, true)
		}),
		r.eventBus.Subscribe(func(e events.PhotoFailedEvent) {
			RecordPhoto(e.Sensor, false)
		}),
		r.eventBus.Subscribe(func(e events.SensorSwitchedEvent) {
			RecordSensorSwitch(e.Success)
		}),
		r.eventBus.Subscribe(func(e events.ListenerFailedEvent) {
			RecordListenerFailure(e.Listener)
		}),
	)
	r.logger.Info("Metrics recorder started")
}

// Stop unsubscribes from all events.
func (r *Recorder) Stop() {
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
	r.logger.Info("Metrics recorder stopped")
}

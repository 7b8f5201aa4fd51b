// Package metrics provides Prometheus metrics for the camera core.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camcore",
		Subsystem: "session",
		Name:      "state",
		Help:      "Capture session state (0 unconfigured, 1 configuring, 2 active, 3 closing, 4 closed)",
	}, []string{"sensor"})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camcore",
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Capture session state transitions",
	}, []string{"sensor", "to"})

	previewRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camcore",
		Subsystem: "preview",
		Name:      "requests_total",
		Help:      "Repeating preview requests submitted to the hardware",
	}, []string{"sensor"})

	previewZoom = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camcore",
		Subsystem: "preview",
		Name:      "zoom_ratio",
		Help:      "Zoom ratio of the last submitted preview request",
	}, []string{"sensor"})

	photos = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camcore",
		Subsystem: "still",
		Name:      "photos_total",
		Help:      "Resolved still captures by result",
	}, []string{"sensor", "result"})

	sensorSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camcore",
		Subsystem: "camera",
		Name:      "sensor_switches_total",
		Help:      "Sensor switch attempts by result",
	}, []string{"result"})

	listenerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camcore",
		Subsystem: "session",
		Name:      "listener_failures_total",
		Help:      "Session listener failures",
	}, []string{"listener"})

	dispatchCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camcore",
		Subsystem: "dispatch",
		Name:      "calls_total",
		Help:      "Caller operations by method and result code",
	}, []string{"method", "code"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "camcore",
		Subsystem: "dispatch",
		Name:      "call_duration_seconds",
		Help:      "Caller operation latency",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"method"})

	// Local totals for the status API.
	snapshot   Snapshot
	snapshotMu sync.RWMutex
)

// Snapshot holds running totals since process start.
type Snapshot struct {
	PreviewRequests  uint64 `json:"preview_requests"`
	PhotosSucceeded  uint64 `json:"photos_succeeded"`
	PhotosFailed     uint64 `json:"photos_failed"`
	SensorSwitches   uint64 `json:"sensor_switches"`
	SwitchFailures   uint64 `json:"switch_failures"`
	ListenerFailures uint64 `json:"listener_failures"`
	Calls            uint64 `json:"calls"`
	CallErrors       uint64 `json:"call_errors"`
}

// SetSessionState records a session transition for sensor.
func SetSessionState(sensor, state string, value float64) {
	sessionState.WithLabelValues(sensor).Set(value)
	sessionTransitions.WithLabelValues(sensor, state).Inc()
}

// RecordPreviewRequest counts a submitted preview request.
func RecordPreviewRequest(sensor string, zoom float64) {
	previewRequests.WithLabelValues(sensor).Inc()
	previewZoom.WithLabelValues(sensor).Set(zoom)
	update(func(s *Snapshot) { s.PreviewRequests++ })
}

// RecordPhoto counts a resolved still capture.
func RecordPhoto(sensor string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	photos.WithLabelValues(sensor, result).Inc()
	update(func(s *Snapshot) {
		if ok {
			s.PhotosSucceeded++
		} else {
			s.PhotosFailed++
		}
	})
}

// RecordSensorSwitch counts a sensor switch attempt.
func RecordSensorSwitch(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	sensorSwitches.WithLabelValues(result).Inc()
	update(func(s *Snapshot) {
		s.SensorSwitches++
		if !ok {
			s.SwitchFailures++
		}
	})
}

// RecordListenerFailure counts a failed listener notification.
func RecordListenerFailure(listener string) {
	listenerFailures.WithLabelValues(listener).Inc()
	update(func(s *Snapshot) { s.ListenerFailures++ })
}

// RecordCall counts one caller operation. code is empty on success.
func RecordCall(method, code string, seconds float64) {
	label := code
	if label == "" {
		label = "OK"
	}
	dispatchCalls.WithLabelValues(method, label).Inc()
	dispatchDuration.WithLabelValues(method).Observe(seconds)
	update(func(s *Snapshot) {
		s.Calls++
		if code != "" {
			s.CallErrors++
		}
	})
}

// Totals returns a copy of the running totals.
func Totals() Snapshot {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	return snapshot
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func update(fn func(*Snapshot)) {
	snapshotMu.Lock()
	defer snapshotMu.Unlock()
	fn(&snapshot)
}

package events

import (
	"time"

	"github.com/smazurov/camcore/internal/camera"
)

// CameraObserver publishes camera transitions on a Bus. It implements
// camera.Observer; kelindar/event dispatch is asynchronous, so it never
// blocks the session goroutine.
type CameraObserver struct {
	bus *Bus
	now func() time.Time
}

// NewCameraObserver creates an observer publishing to bus.
func NewCameraObserver(bus *Bus) *CameraObserver {
	return &CameraObserver{bus: bus, now: time.Now}
}

func (o *CameraObserver) timestamp() string {
	return o.now().UTC().Format(time.RFC3339Nano)
}

// SessionStateChanged implements camera.Observer.
func (o *CameraObserver) SessionStateChanged(sessionID string, id camera.Identity, from, to camera.SessionState) {
	o.bus.Publish(SessionStateChangedEvent{
		SessionID: sessionID,
		CameraID:  id.ID,
		Sensor:    string(id.Sensor),
		From:      from.String(),
		To:        to.String(),
		Timestamp: o.timestamp(),
	})
}

// PreviewSubmitted implements camera.Observer.
func (o *CameraObserver) PreviewSubmitted(id camera.Identity, req camera.CaptureRequest) {
	var target string
	if len(req.Targets) > 0 {
		target = string(req.Targets[0])
	}
	o.bus.Publish(PreviewRequestEvent{
		CameraID:    id.ID,
		Sensor:      string(id.Sensor),
		Target:      target,
		Zoom:        req.Zoom,
		Flash:       string(req.Flash),
		FocusLocked: req.FocusLocked,
		Width:       req.Size.Width,
		Height:      req.Size.Height,
		Timestamp:   o.timestamp(),
	})
}

// PhotoResolved implements camera.Observer.
func (o *CameraObserver) PhotoResolved(id camera.Identity, result camera.PhotoResult) {
	if result.Err == nil {
		o.bus.Publish(PhotoCapturedEvent{
			JobID:     result.JobID,
			CameraID:  id.ID,
			Sensor:    string(id.Sensor),
			Path:      result.Path,
			Timestamp: o.timestamp(),
		})
		return
	}
	o.bus.Publish(PhotoFailedEvent{
		JobID:     result.JobID,
		CameraID:  id.ID,
		Sensor:    string(id.Sensor),
		Path:      result.Path,
		Code:      camera.CodeOf(result.Err),
		Error:     result.Err.Error(),
		Timestamp: o.timestamp(),
	})
}

// SensorSwitched implements camera.Observer.
func (o *CameraObserver) SensorSwitched(from, to camera.Identity, err error) {
	ev := SensorSwitchedEvent{
		From:      string(from.Sensor),
		To:        string(to.Sensor),
		CameraID:  to.ID,
		Success:   err == nil,
		Timestamp: o.timestamp(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	o.bus.Publish(ev)
}

// ListenerFailed implements camera.Observer.
func (o *CameraObserver) ListenerFailed(sessionID, listener string, ev camera.Event, err error) {
	o.bus.Publish(ListenerFailedEvent{
		SessionID: sessionID,
		Listener:  listener,
		Event:     ev.Kind.String(),
		Error:     err.Error(),
		Timestamp: o.timestamp(),
	})
}

package events

// Event type constants for kelindar/event.
const (
	TypeSessionStateChanged uint32 = iota + 1
	TypePreviewRequest
	TypePhotoCaptured
	TypePhotoFailed
	TypeSensorSwitched
	TypeListenerFailed
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStateChangedEvent is published on every capture session transition.
type SessionStateChangedEvent struct {
	SessionID string `json:"session_id" example:"6f1c2a9e-0d4b-4a57-9a53-0e1f5c3b7d21" doc:"Capture session identifier"`
	CameraID  string `json:"camera_id" example:"0" doc:"Platform camera identifier"`
	Sensor    string `json:"sensor" example:"BACK" doc:"Logical sensor role"`
	From      string `json:"from" example:"configuring" doc:"Previous session state"`
	To        string `json:"to" example:"active" doc:"New session state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// PreviewRequestEvent is published when a repeating preview request reaches
// the hardware.
type PreviewRequestEvent struct {
	CameraID    string  `json:"camera_id" example:"0" doc:"Platform camera identifier"`
	Sensor      string  `json:"sensor" example:"BACK" doc:"Logical sensor role"`
	Target      string  `json:"target" example:"texture-1" doc:"Preview surface"`
	Zoom        float64 `json:"zoom" example:"2.0" doc:"Zoom ratio"`
	Flash       string  `json:"flash" example:"NONE" doc:"Flash mode"`
	FocusLocked bool    `json:"focus_locked" doc:"Whether autofocus is locked"`
	Width       int     `json:"width" example:"1920" doc:"Preview width"`
	Height      int     `json:"height" example:"1080" doc:"Preview height"`
	Timestamp   string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PreviewRequestEvent.
func (e PreviewRequestEvent) Type() uint32 { return TypePreviewRequest }

// PhotoCapturedEvent is published when a still capture resolves to success.
type PhotoCapturedEvent struct {
	JobID     string `json:"job_id" doc:"Still capture job identifier"`
	CameraID  string `json:"camera_id" example:"0" doc:"Platform camera identifier"`
	Sensor    string `json:"sensor" example:"BACK" doc:"Logical sensor role"`
	Path      string `json:"path" example:"/tmp/a.jpg" doc:"Written file"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PhotoCapturedEvent.
func (e PhotoCapturedEvent) Type() uint32 { return TypePhotoCaptured }

// PhotoFailedEvent is published when a still capture resolves to failure.
type PhotoFailedEvent struct {
	JobID     string `json:"job_id" doc:"Still capture job identifier"`
	CameraID  string `json:"camera_id" example:"0" doc:"Platform camera identifier"`
	Sensor    string `json:"sensor" example:"BACK" doc:"Logical sensor role"`
	Path      string `json:"path" example:"/tmp/a.jpg" doc:"Requested file"`
	Code      string `json:"code" example:"CAPTURE_FAILED" doc:"Error code"`
	Error     string `json:"error" doc:"Failure reason"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PhotoFailedEvent.
func (e PhotoFailedEvent) Type() uint32 { return TypePhotoFailed }

// SensorSwitchedEvent is published after every sensor switch attempt.
type SensorSwitchedEvent struct {
	From      string `json:"from" example:"BACK" doc:"Previous sensor role"`
	To        string `json:"to" example:"FRONT" doc:"Requested sensor role"`
	CameraID  string `json:"camera_id,omitempty" example:"1" doc:"New platform camera identifier"`
	Success   bool   `json:"success" doc:"Whether the switch completed"`
	Error     string `json:"error,omitempty" doc:"Failure reason"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SensorSwitchedEvent.
func (e SensorSwitchedEvent) Type() uint32 { return TypeSensorSwitched }

// ListenerFailedEvent is published when a session listener fails to handle
// a lifecycle event.
type ListenerFailedEvent struct {
	SessionID string `json:"session_id" doc:"Capture session identifier"`
	Listener  string `json:"listener" example:"preview" doc:"Listener name"`
	Event     string `json:"event" example:"active" doc:"Lifecycle event"`
	Error     string `json:"error" doc:"Failure reason"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ListenerFailedEvent.
func (e ListenerFailedEvent) Type() uint32 { return TypeListenerFailed }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

package camera

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sensor is the logical role of a physical camera.
type Sensor string

// Sensors
const (
	SensorBack  Sensor = "BACK"
	SensorFront Sensor = "FRONT"
)

// ParseSensor accepts "FRONT" or "BACK" in any case.
func ParseSensor(s string) (Sensor, error) {
	switch Sensor(strings.ToUpper(strings.TrimSpace(s))) {
	case SensorBack:
		return SensorBack, nil
	case SensorFront:
		return SensorFront, nil
	}
	return "", NewError(CodeSensorError, "a sensor FRONT or BACK must be provided", s, nil)
}

// Identity names one physical camera. It is immutable once chosen.
type Identity struct {
	ID     string `json:"id"`
	Sensor Sensor `json:"sensor"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%s(%s)", i.Sensor, i.ID)
}

// Size is an output resolution.
type Size struct {
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// IsZero reports whether no size was set.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Area returns Width*Height.
func (s Size) Area() int {
	return s.Width * s.Height
}

// ParseSize parses "WIDTHxHEIGHT".
func ParseSize(s string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Size{}, fmt.Errorf("invalid size %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Size{}, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Size{}, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return Size{}, fmt.Errorf("invalid size %q", s)
	}
	return Size{Width: width, Height: height}, nil
}

// Closest returns the supported size whose area is nearest to want. Ties go
// to the larger size. Returns want unchanged when sizes is empty.
func Closest(sizes []Size, want Size) Size {
	if len(sizes) == 0 {
		return want
	}
	best := sizes[0]
	bestDiff := math.Abs(float64(best.Area() - want.Area()))
	for _, s := range sizes[1:] {
		diff := math.Abs(float64(s.Area() - want.Area()))
		if diff < bestDiff || (diff == bestDiff && s.Area() > best.Area()) {
			best, bestDiff = s, diff
		}
	}
	return best
}

// Largest returns the biggest size by area.
func Largest(sizes []Size) Size {
	var best Size
	for _, s := range sizes {
		if s.Area() > best.Area() {
			best = s
		}
	}
	return best
}

// FlashMode controls the flash for preview and still capture.
type FlashMode string

// Flash modes
const (
	FlashNone   FlashMode = "NONE"
	FlashOn     FlashMode = "ON"
	FlashAuto   FlashMode = "AUTO"
	FlashAlways FlashMode = "ALWAYS"
)

// ParseFlashMode accepts NONE, ON, AUTO or ALWAYS in any case.
func ParseFlashMode(s string) (FlashMode, error) {
	switch m := FlashMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case FlashNone, FlashOn, FlashAuto, FlashAlways:
		return m, nil
	}
	return "", NewError(CodeModeNotSet, "unknown flash mode", s, nil)
}

// Characteristics is the read-only description of one sensor.
type Characteristics struct {
	Sizes []Size `json:"sizes"`
	// MaxZoom is the largest supported zoom ratio; the smallest is 1.0.
	MaxZoom float64 `json:"max_zoom"`
	// Orientation is the clockwise rotation, in degrees, needed to bring
	// sensor output upright for still capture.
	Orientation int `json:"orientation"`
}

// Surface is an opaque capture target. The core binds it to sessions and
// never looks inside.
type Surface string

// StillSurface is the target the still-capture pipeline writes through.
const StillSurface Surface = "still-capture"

// Template selects how the hardware treats a capture request.
type Template int

// Templates
const (
	TemplatePreview Template = iota
	TemplateStillCapture
)

func (t Template) String() string {
	if t == TemplateStillCapture {
		return "still"
	}
	return "preview"
}

// CaptureRequest is what controllers submit to a session.
type CaptureRequest struct {
	Template    Template
	Targets     []Surface
	Zoom        float64
	Flash       FlashMode
	FocusLocked bool
	Size        Size

	// Still capture only.
	Orientation int
	OutputPath  string
}

// SessionState is the lifecycle phase of a CaptureSession.
type SessionState int

// Session states
const (
	SessionUnconfigured SessionState = iota
	SessionConfiguring
	SessionActive
	SessionClosing
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionUnconfigured:
		return "unconfigured"
	case SessionConfiguring:
		return "configuring"
	case SessionActive:
		return "active"
	case SessionClosing:
		return "closing"
	case SessionClosed:
		return "closed"
	}
	return "unknown"
}

// DeviceState is the lifecycle phase of a DeviceHandle.
type DeviceState int

// Device states
const (
	DeviceClosed DeviceState = iota
	DeviceOpening
	DeviceOpen
	DeviceClosing
)

func (s DeviceState) String() string {
	switch s {
	case DeviceClosed:
		return "closed"
	case DeviceOpening:
		return "opening"
	case DeviceOpen:
		return "open"
	case DeviceClosing:
		return "closing"
	}
	return "unknown"
}

// EventKind tags a lifecycle Event.
type EventKind int

// Lifecycle events
const (
	EventActive EventKind = iota
	EventClosed
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventActive:
		return "active"
	case EventClosed:
		return "closed"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is delivered to every session listener on a lifecycle transition.
// Err is set only for EventError.
type Event struct {
	Kind EventKind
	Err  *Error
}

// PhotoResult resolves a still-capture job.
type PhotoResult struct {
	JobID string
	Path  string
	Err   error
}

package camera

import "context"

// Driver is the platform camera stack. Open returns once the device is
// usable or has failed. Errors matching ErrPermissionDenied are reported as
// such; anything else is reported as ErrDeviceUnavailable.
type Driver interface {
	Open(ctx context.Context, id Identity, cb DeviceCallbacks) (Device, error)
}

// Device is one open physical camera.
type Device interface {
	// CreateSession starts configuring a hardware session. The outcome is
	// delivered later through cb on the driver's callback context.
	CreateSession(surfaces []Surface, cb SessionCallbacks) (HardwareSession, error)

	// Close releases the device. It returns once the hardware is free; any
	// session on the device is torn down with it.
	Close(ctx context.Context) error
}

// HardwareSession is a configured pipeline on a Device.
type HardwareSession interface {
	SetRepeatingRequest(req CaptureRequest) error
	Capture(req CaptureRequest, cb CaptureCallbacks) error
	// Close begins teardown; OnClosed follows asynchronously.
	Close() error
}

// DeviceCallbacks receives faults on an open device.
type DeviceCallbacks interface {
	OnDisconnected()
	OnDeviceError(reason string)
}

// SessionCallbacks receives session lifecycle notifications from hardware.
type SessionCallbacks interface {
	OnConfigured()
	OnConfigureFailed(reason string)
	OnClosed()
}

// CaptureCallbacks receives the outcome of a single capture. OnCaptureCompleted
// is only called after the output file is fully written.
type CaptureCallbacks interface {
	OnCaptureCompleted()
	OnCaptureFailed(reason string)
}

// CharacteristicsSource describes the cameras present on the platform.
type CharacteristicsSource interface {
	// Choose returns the camera serving a logical role.
	Choose(sensor Sensor) (Identity, error)
	Characteristics(id Identity) (Characteristics, error)
}

// PermissionSource checks and requests camera permissions.
type PermissionSource interface {
	// CheckPermissions returns the names of permissions not yet granted.
	CheckPermissions() ([]string, error)
	// RequestPermissions asks the user; the answer arrives through onResult
	// at some later point.
	RequestPermissions(onResult func(granted bool))
}

// SurfaceProvider hands out preview targets paired with a numeric texture
// handle the caller uses for display.
type SurfaceProvider interface {
	CreateSurface() (Surface, int64, error)
	ReleaseSurface(s Surface)
}

// Observer is notified of notable transitions. Implementations must not
// block and must not call back into the camera.
type Observer interface {
	SessionStateChanged(sessionID string, id Identity, from, to SessionState)
	PreviewSubmitted(id Identity, req CaptureRequest)
	PhotoResolved(id Identity, result PhotoResult)
	SensorSwitched(from, to Identity, err error)
	ListenerFailed(sessionID, listener string, ev Event, err error)
}

type nopObserver struct{}

func (nopObserver) SessionStateChanged(string, Identity, SessionState, SessionState) {}
func (nopObserver) PreviewSubmitted(Identity, CaptureRequest) {}
func (nopObserver) PhotoResolved(Identity, PhotoResult) {}
func (nopObserver) SensorSwitched(Identity, Identity, error) {}
func (nopObserver) ListenerFailed(string, string, Event, error) {}

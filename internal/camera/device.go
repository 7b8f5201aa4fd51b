package camera

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// exclusive tracks the single device allowed open in the process.
var exclusive struct {
	mu     sync.Mutex
	holder *DeviceHandle
}

func claimDevice(h *DeviceHandle) bool {
	exclusive.mu.Lock()
	defer exclusive.mu.Unlock()
	if exclusive.holder != nil && exclusive.holder != h {
		return false
	}
	exclusive.holder = h
	return true
}

func releaseDevice(h *DeviceHandle) {
	exclusive.mu.Lock()
	defer exclusive.mu.Unlock()
	if exclusive.holder == h {
		exclusive.holder = nil
	}
}

// DeviceHandle owns one open camera device.
type DeviceHandle struct {
	driver Driver
	logger *slog.Logger

	mu       sync.Mutex
	state    DeviceState
	identity Identity
	device   Device
	session  *Session
}

// NewDeviceHandle creates a closed handle.
func NewDeviceHandle(driver Driver, logger *slog.Logger) *DeviceHandle {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceHandle{driver: driver, logger: logger}
}

// State returns the current device state.
func (h *DeviceHandle) State() DeviceState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Identity returns the camera the handle was last opened for.
func (h *DeviceHandle) Identity() Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.identity
}

// Open opens the device for id. Only one device may be open per process.
func (h *DeviceHandle) Open(ctx context.Context, id Identity) error {
	h.mu.Lock()
	if h.state != DeviceClosed {
		h.mu.Unlock()
		return ErrAlreadyOpen.with(id.String(), nil)
	}
	if !claimDevice(h) {
		h.mu.Unlock()
		return ErrAlreadyOpen.with("another device is open", nil)
	}
	h.state = DeviceOpening
	h.identity = id
	h.mu.Unlock()

	h.logger.Debug("Opening camera device", "camera", id.String())
	dev, err := h.driver.Open(ctx, id, h)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.state = DeviceClosed
		releaseDevice(h)
		h.logger.Warn("Failed to open camera device", "camera", id.String(), "error", err)
		if errors.Is(err, ErrPermissionDenied) {
			return ErrPermissionDenied.with(id.String(), err)
		}
		return ErrDeviceUnavailable.with(id.String(), err)
	}
	h.device = dev
	h.state = DeviceOpen
	h.logger.Info("Camera device open", "camera", id.String())
	return nil
}

// Close releases the device. It is idempotent and returns once the hardware
// is free.
func (h *DeviceHandle) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.state != DeviceOpen {
		h.mu.Unlock()
		return nil
	}
	h.state = DeviceClosing
	dev := h.device
	session := h.session
	id := h.identity
	h.mu.Unlock()

	err := dev.Close(ctx)

	h.mu.Lock()
	h.state = DeviceClosed
	h.device = nil
	h.session = nil
	releaseDevice(h)
	h.mu.Unlock()

	// Closing a device closes its session; make sure the session hears it
	// even if the hardware never reports onClosed.
	if session != nil {
		session.deviceClosed()
	}

	if err != nil {
		h.logger.Warn("Camera device closed with error", "camera", id.String(), "error", err)
		return err
	}
	h.logger.Info("Camera device closed", "camera", id.String())
	return nil
}

// createSession is used by Session.Configure under the session lock.
func (h *DeviceHandle) createSession(s *Session, surfaces []Surface) (HardwareSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != DeviceOpen {
		return nil, ErrDeviceNotOpen
	}
	hw, err := h.device.CreateSession(surfaces, s)
	if err != nil {
		return nil, err
	}
	h.session = s
	return hw, nil
}

// OnDisconnected implements DeviceCallbacks.
func (h *DeviceHandle) OnDisconnected() {
	h.fault("device disconnected")
}

// OnDeviceError implements DeviceCallbacks.
func (h *DeviceHandle) OnDeviceError(reason string) {
	h.fault(reason)
}

func (h *DeviceHandle) fault(reason string) {
	h.mu.Lock()
	session := h.session
	id := h.identity
	h.mu.Unlock()

	h.logger.Error("Camera device fault", "camera", id.String(), "reason", reason)
	if session != nil {
		session.post(sessionMsg{kind: msgDeviceError, reason: reason})
	}
}

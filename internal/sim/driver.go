package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/camcore/internal/camera"
	"github.com/smazurov/camcore/internal/logging"
)

// ErrDeviceClosed is returned by operations on a closed simulated device or
// session.
var ErrDeviceClosed = errors.New("simulated device closed")

// Submission is one request received by a simulated session.
type Submission struct {
	Identity camera.Identity
	Request  camera.CaptureRequest
}

// Driver simulates a platform camera stack. Every hardware callback is
// delivered on the driver's own callback goroutine, never on the caller's.
type Driver struct {
	catalog *Catalog
	logger  *slog.Logger

	mu              sync.Mutex
	openErr         map[string]error
	configureReason string
	captureReason   string
	stallConfigure  bool
	stallCapture    bool
	stalled         []func()
	current         *device
	opens           int
	repeating       []Submission
	captures        []Submission

	qmu    sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

// NewDriver starts a simulated driver. Still captures are rendered at the
// catalog's largest size unless a request asks for another one.
func NewDriver(catalog *Catalog) *Driver {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	d := &Driver{
		catalog: catalog,
		logger:  logging.GetLogger("sim"),
		openErr: make(map[string]error),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go d.dispatch()
	return d
}

// Close stops the callback goroutine. Pending callbacks are dropped.
func (d *Driver) Close() {
	d.qmu.Lock()
	if d.closed {
		d.qmu.Unlock()
		return
	}
	d.closed = true
	d.queue = nil
	d.qmu.Unlock()
	close(d.wake)
	<-d.done
}

// FailOpen makes opening camera id fail with err. A nil err clears it.
func (d *Driver) FailOpen(id string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.openErr, id)
		return
	}
	d.openErr[id] = err
}

// FailConfigure makes new sessions report configure failure with reason.
// An empty reason clears it.
func (d *Driver) FailConfigure(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configureReason = reason
}

// FailCapture makes still captures fail with reason. An empty reason
// clears it.
func (d *Driver) FailCapture(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.captureReason = reason
}

// StallConfigure holds configure callbacks until ReleaseStalled.
func (d *Driver) StallConfigure(stall bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stallConfigure = stall
}

// StallCapture holds capture callbacks until ReleaseStalled.
func (d *Driver) StallCapture(stall bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stallCapture = stall
}

// ReleaseStalled delivers every held callback and returns how many there
// were.
func (d *Driver) ReleaseStalled() int {
	d.mu.Lock()
	stalled := d.stalled
	d.stalled = nil
	d.mu.Unlock()
	for _, fn := range stalled {
		d.schedule(fn)
	}
	return len(stalled)
}

// Disconnect reports the open device as disconnected.
func (d *Driver) Disconnect() bool {
	d.mu.Lock()
	dev := d.current
	d.mu.Unlock()
	if dev == nil {
		return false
	}
	d.logger.Info("Simulating disconnect", "camera", dev.id.String())
	d.schedule(dev.cb.OnDisconnected)
	return true
}

// Repeating returns every repeating request received, oldest first.
func (d *Driver) Repeating() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Submission(nil), d.repeating...)
}

// LastRepeating returns the most recent repeating request.
func (d *Driver) LastRepeating() (Submission, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.repeating) == 0 {
		return Submission{}, false
	}
	return d.repeating[len(d.repeating)-1], true
}

// Captures returns every still request received, oldest first.
func (d *Driver) Captures() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Submission(nil), d.captures...)
}

// OpenDevice returns the identity of the open device, if any.
func (d *Driver) OpenDevice() (camera.Identity, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return camera.Identity{}, false
	}
	return d.current.id, true
}

// Opens returns how many devices have been opened in total.
func (d *Driver) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Open implements camera.Driver.
func (d *Driver) Open(ctx context.Context, id camera.Identity, cb camera.DeviceCallbacks) (camera.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := d.catalog.Characteristics(id); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.openErr[id.ID]; err != nil {
		return nil, err
	}
	if d.current != nil {
		return nil, fmt.Errorf("camera %s in use", d.current.id)
	}
	dev := &device{driver: d, id: id, cb: cb}
	d.current = dev
	d.opens++
	d.logger.Debug("Device opened", "camera", id.String())
	return dev, nil
}

// hold parks fn if stall is set, otherwise schedules it. Called with mu held.
func (d *Driver) hold(stall bool, fn func()) {
	if stall {
		d.stalled = append(d.stalled, fn)
		return
	}
	d.schedule(fn)
}

// schedule queues fn on the callback goroutine.
func (d *Driver) schedule(fn func()) {
	d.qmu.Lock()
	if d.closed {
		d.qmu.Unlock()
		return
	}
	d.queue = append(d.queue, fn)
	d.qmu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Driver) dispatch() {
	defer close(d.done)
	for range d.wake {
		d.qmu.Lock()
		batch := d.queue
		d.queue = nil
		d.qmu.Unlock()
		for _, fn := range batch {
			fn()
		}
	}
}

type device struct {
	driver *Driver
	id     camera.Identity
	cb     camera.DeviceCallbacks

	closed  bool
	session *session
}

// CreateSession implements camera.Device.
func (dev *device) CreateSession(surfaces []camera.Surface, cb camera.SessionCallbacks) (camera.HardwareSession, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if dev.closed {
		return nil, ErrDeviceClosed
	}
	if dev.session != nil && !dev.session.closed {
		dev.session.closeLocked()
	}

	s := &session{device: dev, cb: cb, surfaces: append([]camera.Surface(nil), surfaces...)}
	dev.session = s
	if reason := d.configureReason; reason != "" {
		d.hold(d.stallConfigure, func() { cb.OnConfigureFailed(reason) })
	} else {
		d.hold(d.stallConfigure, cb.OnConfigured)
	}
	return s, nil
}

// Close implements camera.Device. The device is free when Close returns.
func (dev *device) Close(_ context.Context) error {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if dev.closed {
		return nil
	}
	dev.closed = true
	if dev.session != nil && !dev.session.closed {
		dev.session.closeLocked()
	}
	if d.current == dev {
		d.current = nil
	}
	d.logger.Debug("Device closed", "camera", dev.id.String())
	return nil
}

type session struct {
	device   *device
	cb       camera.SessionCallbacks
	surfaces []camera.Surface
	closed   bool
}

// SetRepeatingRequest implements camera.HardwareSession.
func (s *session) SetRepeatingRequest(req camera.CaptureRequest) error {
	d := s.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.closed {
		return ErrDeviceClosed
	}
	d.repeating = append(d.repeating, Submission{Identity: s.device.id, Request: req})
	return nil
}

// Capture implements camera.HardwareSession. The still is rendered on the
// callback goroutine and completion is reported after the file is in place.
// A capture still pending when the session closes fails without a file.
func (s *session) Capture(req camera.CaptureRequest, cb camera.CaptureCallbacks) error {
	d := s.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.closed {
		return ErrDeviceClosed
	}
	d.captures = append(d.captures, Submission{Identity: s.device.id, Request: req})

	id := s.device.id
	if reason := d.captureReason; reason != "" {
		d.hold(d.stallCapture, func() { cb.OnCaptureFailed(reason) })
		return nil
	}
	d.hold(d.stallCapture, func() {
		d.mu.Lock()
		closed := s.closed
		d.mu.Unlock()
		if closed {
			cb.OnCaptureFailed(ErrDeviceClosed.Error())
			return
		}
		size := req.Size
		if size.IsZero() {
			chars, err := d.catalog.Characteristics(id)
			if err == nil {
				size = camera.Largest(chars.Sizes)
			}
		}
		if err := WriteStill(req.OutputPath, id, size, req.Orientation); err != nil {
			d.logger.Warn("Still render failed", "path", req.OutputPath, "error", err)
			cb.OnCaptureFailed(err.Error())
			return
		}
		cb.OnCaptureCompleted()
	})
	return nil
}

// Close implements camera.HardwareSession.
func (s *session) Close() error {
	d := s.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if !s.closed {
		s.closeLocked()
	}
	return nil
}

func (s *session) closeLocked() {
	s.closed = true
	s.device.driver.schedule(s.cb.OnClosed)
}

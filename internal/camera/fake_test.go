package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeDriver hands out devices whose hardware callbacks the test fires by
// hand.
type fakeDriver struct {
	mu      sync.Mutex
	openErr error
	devices []*fakeDevice
}

func (d *fakeDriver) Open(_ context.Context, id Identity, cb DeviceCallbacks) (Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	dev := &fakeDevice{id: id, cb: cb}
	d.devices = append(d.devices, dev)
	return dev, nil
}

type fakeDevice struct {
	id Identity
	cb DeviceCallbacks

	mu        sync.Mutex
	createErr error
	sessions  []*fakeSession
	closed    bool
}

func (d *fakeDevice) CreateSession(surfaces []Surface, cb SessionCallbacks) (HardwareSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return nil, d.createErr
	}
	s := &fakeSession{cb: cb, surfaces: surfaces}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDevice) Close(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) lastSession() *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

type fakeCapture struct {
	req CaptureRequest
	cb  CaptureCallbacks
}

type fakeSession struct {
	cb       SessionCallbacks
	surfaces []Surface

	mu        sync.Mutex
	repeating []CaptureRequest
	captures  []fakeCapture
	closes    int
}

func (s *fakeSession) SetRepeatingRequest(req CaptureRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeating = append(s.repeating, req)
	return nil
}

func (s *fakeSession) Capture(req CaptureRequest, cb CaptureCallbacks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures = append(s.captures, fakeCapture{req: req, cb: cb})
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSession) lastRepeating() (CaptureRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.repeating) == 0 {
		return CaptureRequest{}, false
	}
	return s.repeating[len(s.repeating)-1], true
}

func (s *fakeSession) repeatingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.repeating)
}

func (s *fakeSession) lastCapture() fakeCapture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures[len(s.captures)-1]
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// recordingListener keeps every event it receives. It can be told to fail
// or panic.
type recordingListener struct {
	name  string
	fail  error
	panic bool

	mu     sync.Mutex
	events []Event
}

func (l *recordingListener) listenerName() string { return l.name }

func (l *recordingListener) HandleSessionEvent(_ *Session, ev Event) error {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
	if l.panic {
		panic("listener exploded")
	}
	return l.fail
}

func (l *recordingListener) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]EventKind, 0, len(l.events))
	for _, ev := range l.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type failure struct {
	listener string
	kind     EventKind
}

type recordingObserver struct {
	nopObserver

	mu       sync.Mutex
	failures []failure
	states   []SessionState
}

func (o *recordingObserver) ListenerFailed(_, listener string, ev Event, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, failure{listener: listener, kind: ev.Kind})
}

func (o *recordingObserver) SessionStateChanged(_ string, _ Identity, _, to SessionState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, to)
}

func (o *recordingObserver) snapshot() ([]failure, []SessionState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]failure(nil), o.failures...), append([]SessionState(nil), o.states...)
}

var backID = Identity{ID: "0", Sensor: SensorBack}

var backChars = Characteristics{
	Sizes:       []Size{{4032, 3024}, {1920, 1080}, {1280, 720}, {640, 480}},
	MaxZoom:     4.0,
	Orientation: 90,
}

// openHandle opens a DeviceHandle on a fake driver and closes it when the
// test ends.
func openHandle(t *testing.T, driver *fakeDriver) (*DeviceHandle, *fakeDevice) {
	t.Helper()
	h := NewDeviceHandle(driver, nil)
	if err := h.Open(context.Background(), backID); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = h.Close(context.Background()) })

	driver.mu.Lock()
	dev := driver.devices[len(driver.devices)-1]
	driver.mu.Unlock()
	return h, dev
}

// activeSession configures a session with listeners and drives it to Active.
func activeSession(t *testing.T, observer Observer, listeners ...Listener) (*Session, *fakeSession, *DeviceHandle) {
	t.Helper()
	h, dev := openHandle(t, &fakeDriver{})
	s := NewSession(h, listeners, nil, observer)
	if err := s.Configure([]Surface{"preview", StillSurface}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	hw := dev.lastSession()
	hw.cb.OnConfigured()
	awaitActive(t, s)
	return s, hw, h
}

func awaitActive(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.AwaitActive(ctx); err != nil {
		t.Fatalf("AwaitActive() error = %v", err)
	}
}

func awaitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

func awaitResult(t *testing.T, ch <-chan PhotoResult) PhotoResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("photo result never arrived")
	}
	return PhotoResult{}
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %s", code)
	}
	if got := CodeOf(err); got != code {
		t.Fatalf("error code = %q, want %q (%v)", got, code, err)
	}
}

var errLensCap = errors.New("lens cap on")

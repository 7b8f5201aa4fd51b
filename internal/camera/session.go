package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Listener reacts to session lifecycle events. The set is closed: only the
// preview and still-capture controllers implement it.
type Listener interface {
	HandleSessionEvent(s *Session, ev Event) error
	listenerName() string
}

type msgKind int

const (
	msgConfigured msgKind = iota
	msgConfigureFailed
	msgDeviceError
	msgClosed
	msgCaptureResult
)

// sessionMsg is one entry in the session's transition queue.
type sessionMsg struct {
	kind   msgKind
	reason string
	fn     func()
}

// Session is the capture session bound to one open device. State changes
// from hardware callbacks are posted as messages and applied in order by a
// single goroutine; caller operations take the same lock as that goroutine
// so nothing races.
type Session struct {
	id        string
	device    *DeviceHandle
	identity  Identity
	listeners []Listener
	logger    *slog.Logger
	observer  Observer

	mu    sync.Mutex
	state SessionState
	hw    HardwareSession

	qmu     sync.Mutex
	queue   []sessionMsg
	wake    chan struct{}
	stopped bool
	done    chan struct{}

	readyOnce sync.Once
	ready     chan struct{}
	readyErr  error
}

// NewSession creates an unconfigured session on device. Listeners are
// notified in the given order for the life of the session.
func NewSession(device *DeviceHandle, listeners []Listener, logger *slog.Logger, observer Observer) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	id := uuid.NewString()
	s := &Session{
		id:        id,
		device:    device,
		identity:  device.Identity(),
		listeners: append([]Listener(nil), listeners...),
		logger:    logger.With("session_id", id),
		observer:  observer,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		ready:     make(chan struct{}),
	}
	go s.run()
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Identity returns the camera the session was built on.
func (s *Session) Identity() Identity { return s.identity }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session has reached Closed and all listeners
// have been told.
func (s *Session) Done() <-chan struct{} { return s.done }

// AwaitActive waits until the session is Active or can no longer become
// Active, bounded by ctx. Listeners have seen the outcome by the time it
// returns.
func (s *Session) AwaitActive(ctx context.Context) error {
	select {
	case <-s.ready:
		return s.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Configure binds the session to surfaces and starts hardware configuration.
// It returns without waiting; the outcome arrives as an Active or Error event.
// An unconfigured session that fails validation is closed. A session in any
// other state is left as it is.
func (s *Session) Configure(surfaces []Surface) error {
	s.mu.Lock()
	if s.state != SessionUnconfigured {
		state := s.state
		s.mu.Unlock()
		return ErrSessionConfigurationFailed.with("session is "+state.String(), nil)
	}
	if len(surfaces) == 0 {
		s.abandonLocked()
		return ErrInvalidSurfaceSet
	}
	if s.device.State() != DeviceOpen {
		s.abandonLocked()
		return ErrDeviceNotOpen
	}

	s.setState(SessionConfiguring)
	hw, err := s.device.createSession(s, surfaces)
	if err != nil {
		s.mu.Unlock()
		if CodeOf(err) == CodeDeviceNotOpen {
			s.post(sessionMsg{kind: msgClosed})
			return ErrDeviceNotOpen
		}
		s.post(sessionMsg{kind: msgConfigureFailed, reason: err.Error()})
		return ErrSessionConfigurationFailed.with(err.Error(), err)
	}
	s.hw = hw
	s.mu.Unlock()

	s.logger.Debug("Configuring capture session", "camera", s.identity.String(), "surfaces", len(surfaces))
	return nil
}

// abandonLocked closes a session that never reached the hardware so run
// exits and Done closes. It releases mu.
func (s *Session) abandonLocked() {
	s.setState(SessionClosed)
	s.mu.Unlock()
	s.post(sessionMsg{kind: msgClosed})
}

// SetRepeatingRequest replaces the session's repeating request.
func (s *Session) SetRepeatingRequest(req CaptureRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive {
		return ErrSessionNotActive.with(s.state.String(), nil)
	}
	if err := s.hw.SetRepeatingRequest(req); err != nil {
		return ErrDeviceUnavailable.with("repeating request rejected", err)
	}
	return nil
}

// Capture submits a one-shot request. onDone runs on the session goroutine
// with nil on success; it is never called if Capture returns an error.
func (s *Session) Capture(req CaptureRequest, onDone func(err *Error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive {
		return ErrSessionNotActive.with(s.state.String(), nil)
	}
	relay := &captureRelay{session: s, onDone: onDone}
	if err := s.hw.Capture(req, relay); err != nil {
		return ErrCaptureFailed.with("capture request rejected", err)
	}
	return nil
}

// Close tears the session down. Calling it again is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	switch s.state {
	case SessionClosing, SessionClosed:
		s.mu.Unlock()
		return nil
	case SessionUnconfigured:
		s.abandonLocked()
		return nil
	}

	hw := s.hw
	s.setState(SessionClosing)
	s.mu.Unlock()

	s.logger.Debug("Closing capture session")
	if hw == nil {
		s.post(sessionMsg{kind: msgClosed})
		return nil
	}
	if err := hw.Close(); err != nil {
		s.logger.Warn("Hardware session close failed", "error", err)
		s.post(sessionMsg{kind: msgClosed})
	}
	return nil
}

// OnConfigured implements SessionCallbacks.
func (s *Session) OnConfigured() {
	s.post(sessionMsg{kind: msgConfigured})
}

// OnConfigureFailed implements SessionCallbacks.
func (s *Session) OnConfigureFailed(reason string) {
	s.post(sessionMsg{kind: msgConfigureFailed, reason: reason})
}

// OnClosed implements SessionCallbacks.
func (s *Session) OnClosed() {
	s.post(sessionMsg{kind: msgClosed})
}

func (s *Session) deviceClosed() {
	s.post(sessionMsg{kind: msgClosed})
}

// setState must be called with mu held.
func (s *Session) setState(next SessionState) {
	prev := s.state
	if prev == next {
		return
	}
	s.state = next
	s.logger.Debug("Session state changed", "from", prev.String(), "to", next.String())
	s.observer.SessionStateChanged(s.id, s.identity, prev, next)
}

func (s *Session) resolveReady(err error) {
	s.readyOnce.Do(func() {
		s.readyErr = err
		close(s.ready)
	})
}

// post appends to the transition queue. Messages posted after the session
// has closed are dropped.
func (s *Session) post(m sessionMsg) {
	s.qmu.Lock()
	if s.stopped {
		s.qmu.Unlock()
		return
	}
	s.queue = append(s.queue, m)
	s.qmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) run() {
	defer close(s.done)
	for range s.wake {
		s.qmu.Lock()
		batch := s.queue
		s.queue = nil
		s.qmu.Unlock()

		for _, m := range batch {
			if s.apply(m) {
				s.qmu.Lock()
				s.stopped = true
				s.queue = nil
				s.qmu.Unlock()
				return
			}
		}
	}
}

// apply handles one message and reports whether the session is finished.
func (s *Session) apply(m sessionMsg) bool {
	switch m.kind {
	case msgConfigured:
		s.mu.Lock()
		if s.state != SessionConfiguring {
			s.mu.Unlock()
			return false
		}
		s.setState(SessionActive)
		s.mu.Unlock()

		s.logger.Info("Capture session active", "camera", s.identity.String())
		s.fanOut(Event{Kind: EventActive})
		s.resolveReady(nil)
		return false

	case msgConfigureFailed:
		s.mu.Lock()
		if s.state != SessionConfiguring {
			s.mu.Unlock()
			return false
		}
		s.setState(SessionClosed)
		s.hw = nil
		s.mu.Unlock()

		err := ErrSessionConfigurationFailed.with(m.reason, nil)
		s.logger.Error("Capture session configuration failed", "camera", s.identity.String(), "reason", m.reason)
		s.fanOut(Event{Kind: EventError, Err: err})
		s.resolveReady(err)
		return true

	case msgDeviceError:
		s.mu.Lock()
		if s.state == SessionClosed {
			s.mu.Unlock()
			return true
		}
		hw := s.hw
		s.setState(SessionClosing)
		s.mu.Unlock()

		err := ErrDeviceUnavailable.with(m.reason, nil)
		s.fanOut(Event{Kind: EventError, Err: err})
		s.resolveReady(err)
		if hw == nil {
			return s.apply(sessionMsg{kind: msgClosed})
		}
		if closeErr := hw.Close(); closeErr != nil {
			return s.apply(sessionMsg{kind: msgClosed})
		}
		return false

	case msgClosed:
		s.mu.Lock()
		if s.state == SessionClosed {
			s.mu.Unlock()
			s.resolveReady(ErrSessionNotActive.with("session closed", nil))
			return true
		}
		s.setState(SessionClosed)
		s.hw = nil
		s.mu.Unlock()

		s.logger.Info("Capture session closed", "camera", s.identity.String())
		s.fanOut(Event{Kind: EventClosed})
		s.resolveReady(ErrSessionNotActive.with("session closed", nil))
		return true

	case msgCaptureResult:
		if m.fn != nil {
			m.fn()
		}
	}
	return false
}

// fanOut delivers ev to every listener in order. A listener that fails or
// panics is reported and skipped.
func (s *Session) fanOut(ev Event) {
	for _, l := range s.listeners {
		if err := s.deliver(l, ev); err != nil {
			s.logger.Error("Session listener failed", "listener", l.listenerName(), "event", ev.Kind.String(), "error", err)
			s.observer.ListenerFailed(s.id, l.listenerName(), ev, err)
		}
	}
}

func (s *Session) deliver(l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l.HandleSessionEvent(s, ev)
}

// captureRelay turns hardware capture callbacks into queue messages. Only
// the first callback counts.
type captureRelay struct {
	session *Session
	onDone  func(err *Error)
	once    sync.Once
}

func (r *captureRelay) OnCaptureCompleted() {
	r.once.Do(func() {
		r.session.post(sessionMsg{kind: msgCaptureResult, fn: func() { r.onDone(nil) }})
	})
}

func (r *captureRelay) OnCaptureFailed(reason string) {
	r.once.Do(func() {
		err := ErrCaptureFailed.with(reason, nil)
		r.session.post(sessionMsg{kind: msgCaptureResult, fn: func() { r.onDone(err) }})
	})
}

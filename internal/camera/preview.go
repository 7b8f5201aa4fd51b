package camera

import (
	"fmt"
	"log/slog"
	"sync"
)

// PreviewSpec holds the desired preview parameters. It outlives sessions.
type PreviewSpec struct {
	Target      Surface
	Zoom        float64
	Flash       FlashMode
	FocusLocked bool
	// Size is the size the caller asked for; the effective size is the
	// closest one the sensor supports.
	Size Size
}

// PreviewController keeps the repeating preview request in step with its
// PreviewSpec. Changes made while no session is active are staged and
// applied on the next EventActive.
type PreviewController struct {
	logger   *slog.Logger
	observer Observer

	// mu also serializes submissions so the last write is the last request
	// the session sees.
	mu       sync.Mutex
	spec     PreviewSpec
	chars    Characteristics
	identity Identity
	session  *Session
}

// NewPreviewController creates a controller with a 1.0 zoom and no flash.
func NewPreviewController(logger *slog.Logger, observer Observer) *PreviewController {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &PreviewController{
		logger:   logger,
		observer: observer,
		spec:     PreviewSpec{Zoom: 1.0, Flash: FlashNone},
	}
}

func (p *PreviewController) listenerName() string { return "preview" }

// Bind points the controller at a sensor's characteristics. A staged zoom
// beyond the new sensor's range is clamped.
func (p *PreviewController) Bind(id Identity, chars Characteristics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity = id
	p.chars = chars
	if maxZoom := p.maxZoomLocked(); p.spec.Zoom > maxZoom {
		p.logger.Info("Clamping zoom to sensor range", "zoom", p.spec.Zoom, "max_zoom", maxZoom)
		p.spec.Zoom = maxZoom
	}
}

// Spec returns a copy of the current preview parameters.
func (p *PreviewController) Spec() PreviewSpec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spec
}

// EffectiveSize returns the supported size that will actually be streamed.
func (p *PreviewController) EffectiveSize() Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.effectiveSizeLocked()
}

// SetPreviewTarget sets the surface preview frames are drawn into.
func (p *PreviewController) SetPreviewTarget(target Surface) {
	p.update(func(s *PreviewSpec) { s.Target = target })
}

// SetZoom sets the zoom ratio; it must lie in [1.0, max zoom].
func (p *PreviewController) SetZoom(ratio float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	maxZoom := p.maxZoomLocked()
	if !(ratio >= 1.0 && ratio <= maxZoom) {
		return ErrZoomOutOfRange.with(fmt.Sprintf("%.2f not in [1.00, %.2f]", ratio, maxZoom), nil)
	}
	p.spec.Zoom = ratio
	p.resubmitLocked()
	return nil
}

// SetFlashMode sets the preview flash mode.
func (p *PreviewController) SetFlashMode(mode FlashMode) {
	p.update(func(s *PreviewSpec) { s.Flash = mode })
}

// SetPreviewSize records the requested preview size.
func (p *PreviewController) SetPreviewSize(size Size) {
	p.update(func(s *PreviewSpec) { s.Size = size })
}

// LockFocus locks autofocus on the current frame. It needs an active session.
func (p *PreviewController) LockFocus() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return ErrNotFocusing.with("no active session", nil)
	}
	p.spec.FocusLocked = true
	if err := p.submitLocked(); err != nil {
		return ErrNotFocusing.with("focus request rejected", err)
	}
	return nil
}

// HandleSessionEvent implements Listener.
func (p *PreviewController) HandleSessionEvent(s *Session, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case EventActive:
		p.session = s
		return p.submitLocked()
	case EventClosed, EventError:
		if p.session == s {
			p.session = nil
		}
	}
	return nil
}

// MaxZoom returns the bound sensor's maximum zoom ratio.
func (p *PreviewController) MaxZoom() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxZoomLocked()
}

func (p *PreviewController) update(mutate func(*PreviewSpec)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mutate(&p.spec)
	p.resubmitLocked()
}

// resubmitLocked pushes the current spec if a session is active.
func (p *PreviewController) resubmitLocked() {
	if p.session == nil {
		return
	}
	if err := p.submitLocked(); err != nil {
		// Stays staged; the next EventActive re-submits.
		p.logger.Debug("Preview change staged", "error", err)
	}
}

// submitLocked must be called with mu held and a session set.
func (p *PreviewController) submitLocked() error {
	if p.spec.Target == "" {
		p.logger.Debug("No preview target yet, nothing to submit")
		return nil
	}
	req := p.requestLocked()
	if err := p.session.SetRepeatingRequest(req); err != nil {
		return err
	}
	p.observer.PreviewSubmitted(p.identity, req)
	return nil
}

func (p *PreviewController) requestLocked() CaptureRequest {
	return CaptureRequest{
		Template:    TemplatePreview,
		Targets:     []Surface{p.spec.Target},
		Zoom:        p.spec.Zoom,
		Flash:       p.spec.Flash,
		FocusLocked: p.spec.FocusLocked,
		Size:        p.effectiveSizeLocked(),
	}
}

func (p *PreviewController) effectiveSizeLocked() Size {
	if p.spec.Size.IsZero() {
		return Largest(p.chars.Sizes)
	}
	return Closest(p.chars.Sizes, p.spec.Size)
}

func (p *PreviewController) maxZoomLocked() float64 {
	if p.chars.MaxZoom < 1.0 {
		return 1.0
	}
	return p.chars.MaxZoom
}

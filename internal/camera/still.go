package camera

import (
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
)

// stillJob is the single in-flight photo of a StillCaptureController.
type stillJob struct {
	id       string
	path     string
	session  *Session
	result   chan PhotoResult
	resolved bool
}

// StillCaptureController takes one photo at a time through the active
// session. Every accepted photo resolves exactly once, to success or failure.
type StillCaptureController struct {
	logger   *slog.Logger
	observer Observer

	mu      sync.Mutex
	size    Size
	flash   FlashMode
	session *Session
	job     *stillJob
}

// NewStillCaptureController creates an idle controller.
func NewStillCaptureController(logger *slog.Logger, observer Observer) *StillCaptureController {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &StillCaptureController{logger: logger, observer: observer, flash: FlashNone}
}

func (c *StillCaptureController) listenerName() string { return "still" }

// SetSize sets the photo resolution. A zero size lets the hardware choose.
func (c *StillCaptureController) SetSize(size Size) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size = size
}

// Size returns the configured photo resolution.
func (c *StillCaptureController) Size() Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// SetFlashMode sets the default flash mode for photos.
func (c *StillCaptureController) SetFlashMode(mode FlashMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flash = mode
}

// FlashMode returns the default flash mode for photos.
func (c *StillCaptureController) FlashMode() FlashMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flash
}

// Pending reports whether a photo is in flight.
func (c *StillCaptureController) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job != nil
}

// TakePhoto submits a still capture writing to path. It fails at once with
// ErrCaptureBusy if a photo is in flight and ErrSessionNotActive without an
// active session. The returned channel yields exactly one result.
func (c *StillCaptureController) TakePhoto(path string, orientation int, flash FlashMode) (<-chan PhotoResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.job != nil {
		return nil, ErrCaptureBusy.with(c.job.path, nil)
	}
	if c.session == nil {
		return nil, ErrSessionNotActive.with("no active session", nil)
	}
	if flash == "" {
		flash = c.flash
	}

	job := &stillJob{
		id:      uuid.NewString(),
		path:    path,
		session: c.session,
		result:  make(chan PhotoResult, 1),
	}
	req := CaptureRequest{
		Template:    TemplateStillCapture,
		Targets:     []Surface{StillSurface},
		Zoom:        1.0,
		Flash:       flash,
		Size:        c.size,
		Orientation: orientation,
		OutputPath:  path,
	}

	err := c.session.Capture(req, func(captureErr *Error) {
		c.complete(job, captureErr)
	})
	if err != nil {
		return nil, err
	}

	c.job = job
	c.logger.Info("Still capture submitted", "job_id", job.id, "path", path, "orientation", orientation, "flash", flash)
	return job.result, nil
}

// Cancel resolves a pending photo to failure. It reports whether one was
// pending.
func (c *StillCaptureController) Cancel(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil {
		return false
	}
	c.resolveLocked(c.job, ErrCaptureFailed.with(reason, nil))
	return true
}

// HandleSessionEvent implements Listener.
func (c *StillCaptureController) HandleSessionEvent(s *Session, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case EventActive:
		c.session = s
	case EventClosed, EventError:
		if c.session == s {
			c.session = nil
		}
		if c.job != nil && c.job.session == s {
			reason := "capture session closed"
			if ev.Err != nil {
				reason = ev.Err.Error()
			}
			c.resolveLocked(c.job, ErrCaptureFailed.with(reason, ev.Err))
		}
	}
	return nil
}

// complete runs on the session goroutine when the hardware reports back.
func (c *StillCaptureController) complete(job *stillJob, captureErr *Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if captureErr == nil {
		if _, err := os.Stat(job.path); err != nil {
			captureErr = ErrCaptureFailed.with("output file missing after capture", err)
		}
	}
	c.resolveLocked(job, captureErr)
}

// resolveLocked delivers the job's single result and frees the slot.
func (c *StillCaptureController) resolveLocked(job *stillJob, err *Error) {
	if job.resolved {
		return
	}
	job.resolved = true
	if c.job == job {
		c.job = nil
	}

	result := PhotoResult{JobID: job.id, Path: job.path}
	if err != nil {
		result.Err = err
		c.logger.Warn("Still capture failed", "job_id", job.id, "path", job.path, "error", err)
	} else {
		c.logger.Info("Still capture complete", "job_id", job.id, "path", job.path)
	}
	job.result <- result
	c.observer.PhotoResolved(job.session.Identity(), result)
}

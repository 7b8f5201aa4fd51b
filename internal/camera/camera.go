package camera

import (
	"context"
	"log/slog"
	"sync"

	"github.com/smazurov/camcore/internal/logging"
)

// Options wires a Camera to its platform collaborators.
type Options struct {
	Driver          Driver
	Characteristics CharacteristicsSource
	Permissions     PermissionSource
	Surfaces        SurfaceProvider
	Observer        Observer
}

// Camera is the explicit context for one camera user. It owns the device
// handle, the capture session and both controllers for the sensor chosen by
// Init. All caller operations are serialized.
type Camera struct {
	driver   Driver
	chars    CharacteristicsSource
	perms    PermissionSource
	surfaces SurfaceProvider
	observer Observer
	logger   *slog.Logger

	mu                sync.Mutex
	permissionGranted bool
	deviceOrientation int
	rt                *runtime
}

// runtime is everything created by Init and destroyed by Close.
type runtime struct {
	identity Identity
	chars    Characteristics
	preview  *PreviewController
	still    *StillCaptureController

	surface Surface
	texture int64

	device  *DeviceHandle
	session *Session
}

func (rt *runtime) started() bool { return rt.device != nil }

// Status is a point-in-time snapshot of a Camera.
type Status struct {
	Initialized          bool      `json:"initialized"`
	PermissionGranted    bool      `json:"permission_granted"`
	Sensor               Sensor    `json:"sensor,omitempty"`
	CameraID             string    `json:"camera_id,omitempty"`
	Started              bool      `json:"started"`
	DeviceState          string    `json:"device_state"`
	SessionID            string    `json:"session_id,omitempty"`
	SessionState         string    `json:"session_state"`
	Zoom                 float64   `json:"zoom"`
	MaxZoom              float64   `json:"max_zoom"`
	Flash                FlashMode `json:"flash"`
	FocusLocked          bool      `json:"focus_locked"`
	PreviewSize          Size      `json:"preview_size"`
	EffectivePreviewSize Size      `json:"effective_preview_size"`
	PhotoSize            Size      `json:"photo_size"`
	PhotoPending         bool      `json:"photo_pending"`
	Texture              int64     `json:"texture,omitempty"`
	DeviceOrientation    int       `json:"device_orientation"`
}

// New creates an uninitialized Camera.
func New(opts Options) *Camera {
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Camera{
		driver:   opts.Driver,
		chars:    opts.Characteristics,
		perms:    opts.Permissions,
		surfaces: opts.Surfaces,
		observer: observer,
		logger:   logging.GetLogger("camera"),
	}
}

// CheckPermissions returns the permissions still missing. An empty result
// confirms the grant that Init requires.
func (c *Camera) CheckPermissions() ([]string, error) {
	if c.perms == nil {
		c.setPermissionGranted(true)
		return []string{}, nil
	}
	missing, err := c.perms.CheckPermissions()
	if err != nil {
		return nil, NewError(CodePermissionCheckFailed, "", err.Error(), err)
	}
	c.setPermissionGranted(len(missing) == 0)
	if missing == nil {
		missing = []string{}
	}
	return missing, nil
}

// RequestPermissions asks the platform for permissions. The answer arrives
// later and is recorded for Init.
func (c *Camera) RequestPermissions() {
	if c.perms == nil {
		c.setPermissionGranted(true)
		return
	}
	c.perms.RequestPermissions(func(granted bool) {
		c.logger.Info("Permission request answered", "granted", granted)
		c.setPermissionGranted(granted)
	})
}

func (c *Camera) setPermissionGranted(granted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.permissionGranted = granted
}

// Init selects the camera for sensor and creates the controllers. Calling it
// again releases the previous runtime first.
func (c *Camera) Init(ctx context.Context, sensor Sensor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.permissionGranted {
		return ErrMissingPermission
	}
	id, chars, err := c.resolve(sensor)
	if err != nil {
		return err
	}
	if c.rt != nil {
		if err := c.releaseLocked(ctx); err != nil {
			c.logger.Warn("Previous camera released with error", "error", err)
		}
	}

	rt := &runtime{
		identity: id,
		chars:    chars,
		preview:  NewPreviewController(logging.GetLogger("preview"), c.observer),
		still:    NewStillCaptureController(logging.GetLogger("still"), c.observer),
	}
	rt.preview.Bind(id, chars)
	c.rt = rt

	c.logger.Info("Camera initialized", "camera", id.String(), "max_zoom", chars.MaxZoom, "sizes", len(chars.Sizes))
	return nil
}

// resolve looks up the camera and characteristics serving sensor.
func (c *Camera) resolve(sensor Sensor) (Identity, Characteristics, error) {
	id, err := c.chars.Choose(sensor)
	if err != nil {
		return Identity{}, Characteristics{}, ErrDeviceUnavailable.with(string(sensor), err)
	}
	chars, err := c.chars.Characteristics(id)
	if err != nil {
		return Identity{}, Characteristics{}, ErrDeviceUnavailable.with(id.String(), err)
	}
	return id, chars, nil
}

// SetSensor switches to the camera serving sensor. The preview and still
// controllers carry over; a running camera is torn down and rebuilt on the
// new device. Switching while a photo is pending is rejected.
func (c *Camera) SetSensor(ctx context.Context, sensor Sensor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rt := c.rt
	if rt == nil {
		return ErrNotInitialized
	}
	if rt.still.Pending() {
		return ErrCaptureBusy.with("switch rejected while a photo is pending", nil)
	}

	from := rt.identity
	id, chars, err := c.resolve(sensor)
	if err != nil {
		err = ErrSwitchFailed.with(string(sensor), err)
		c.observer.SensorSwitched(from, Identity{Sensor: sensor}, err)
		return err
	}

	wasStarted := rt.started()
	if wasStarted {
		if stopErr := c.stopLocked(ctx, "sensor switch"); stopErr != nil {
			err = ErrSwitchFailed.with("closing "+from.String(), stopErr)
			c.observer.SensorSwitched(from, id, err)
			return err
		}
	}

	rt.identity = id
	rt.chars = chars
	rt.preview.Bind(id, chars)

	if wasStarted {
		if startErr := c.startLocked(ctx); startErr != nil {
			err = ErrSwitchFailed.with("opening "+id.String(), startErr)
			c.observer.SensorSwitched(from, id, err)
			return err
		}
	}

	c.logger.Info("Sensor switched", "from", from.String(), "to", id.String(), "restarted", wasStarted)
	c.observer.SensorSwitched(from, id, nil)
	return nil
}

// PreviewTexture returns the display handle of the preview surface,
// creating the surface on first use.
func (c *Camera) PreviewTexture() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return 0, ErrNotInitialized
	}
	if err := c.ensureSurfaceLocked(); err != nil {
		return 0, err
	}
	return c.rt.texture, nil
}

// AvailableSizes lists the output sizes of the current camera.
func (c *Camera) AvailableSizes() ([]Size, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return nil, ErrNotInitialized
	}
	return append([]Size(nil), c.rt.chars.Sizes...), nil
}

// SetPreviewSize requests a preview resolution.
func (c *Camera) SetPreviewSize(size Size) error {
	if size.Width <= 0 || size.Height <= 0 {
		return NewError(CodeNoSizeSet, "width and height must be set", size.String(), nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return ErrNotInitialized
	}
	c.rt.preview.SetPreviewSize(size)
	return nil
}

// EffectivePreviewSize returns the supported size the preview actually uses.
func (c *Camera) EffectivePreviewSize() (Size, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return Size{}, ErrNotInitialized
	}
	return c.rt.preview.EffectiveSize(), nil
}

// SetPhotoSize sets the resolution of subsequent photos.
func (c *Camera) SetPhotoSize(size Size) error {
	if size.Width <= 0 || size.Height <= 0 {
		return NewError(CodeNoSizeSet, "width and height must be set", size.String(), nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return ErrNotInitialized
	}
	c.rt.still.SetSize(size)
	return nil
}

// Start opens the device and begins configuring the capture session. It
// does not wait for the session; use AwaitActive for that. Starting a
// running camera is a no-op.
func (c *Camera) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return ErrNotInitialized
	}
	if c.rt.started() {
		return nil
	}
	return c.startLocked(ctx)
}

func (c *Camera) startLocked(ctx context.Context) error {
	rt := c.rt
	if err := c.ensureSurfaceLocked(); err != nil {
		return err
	}
	rt.preview.SetPreviewTarget(rt.surface)

	device := NewDeviceHandle(c.driver, logging.GetLogger("device"))
	if err := device.Open(ctx, rt.identity); err != nil {
		return err
	}

	session := NewSession(device, []Listener{rt.preview, rt.still}, logging.GetLogger("session"), c.observer)
	if err := session.Configure([]Surface{rt.surface, StillSurface}); err != nil {
		if closeErr := device.Close(ctx); closeErr != nil {
			c.logger.Warn("Failed to release device after configure error", "error", closeErr)
		}
		return err
	}

	rt.device = device
	rt.session = session
	go c.watchSession(session)

	c.logger.Info("Camera started", "camera", rt.identity.String(), "session_id", session.ID())
	return nil
}

// watchSession releases the device when a session ends on its own, after a
// configure failure or a device fault.
func (c *Camera) watchSession(s *Session) {
	<-s.Done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil || c.rt.session != s {
		return
	}
	c.logger.Warn("Capture session ended, releasing device", "session_id", s.ID())
	device := c.rt.device
	c.rt.session = nil
	c.rt.device = nil
	if err := device.Close(context.Background()); err != nil {
		c.logger.Warn("Failed to release device", "error", err)
	}
}

// Stop cancels any pending photo, closes the session and releases the
// device. Stopping a stopped camera is a no-op.
func (c *Camera) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return ErrNotInitialized
	}
	return c.stopLocked(ctx, "camera stopped")
}

func (c *Camera) stopLocked(ctx context.Context, reason string) error {
	rt := c.rt
	rt.still.Cancel(reason)
	if !rt.started() {
		return nil
	}

	session := rt.session
	device := rt.device
	rt.session = nil
	rt.device = nil

	if session != nil {
		if err := session.Close(); err != nil {
			c.logger.Warn("Failed to close capture session", "error", err)
		}
	}
	err := device.Close(ctx)
	if session != nil {
		select {
		case <-session.Done():
		case <-ctx.Done():
			c.logger.Warn("Capture session did not finish closing", "session_id", session.ID(), "error", ctx.Err())
		}
	}

	c.logger.Info("Camera stopped", "camera", rt.identity.String(), "reason", reason)
	if err != nil {
		return ErrDeviceUnavailable.with("close failed", err)
	}
	return nil
}

// AwaitActive waits until the started session is Active, or reports why it
// never will be.
func (c *Camera) AwaitActive(ctx context.Context) error {
	c.mu.Lock()
	if c.rt == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	session := c.rt.session
	c.mu.Unlock()

	if session == nil {
		return ErrSessionNotActive.with("camera not started", nil)
	}
	return session.AwaitActive(ctx)
}

// TakePhoto captures a still to path. The returned channel yields exactly
// one result.
func (c *Camera) TakePhoto(path string) (<-chan PhotoResult, error) {
	if path == "" {
		return nil, NewError(CodePathNotSet, "a file path must be set", "", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return nil, ErrNotInitialized
	}
	orientation := JPEGOrientation(c.rt.chars.Orientation, c.deviceOrientation, c.rt.identity.Sensor)
	return c.rt.still.TakePhoto(path, orientation, "")
}

// SetDeviceOrientation records the device's physical rotation in degrees.
func (c *Camera) SetDeviceOrientation(degrees int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deviceOrientation = degrees
}

// JPEGOrientation returns the clockwise rotation a still needs to appear
// upright, given the sensor mounting angle and the device rotation. The
// front sensor is mirrored so the device rotation counts the other way.
func JPEGOrientation(sensorOrientation, deviceOrientation int, sensor Sensor) int {
	device := ((deviceOrientation%360+360)%360 + 45) / 90 * 90 % 360
	if sensor == SensorFront {
		device = -device
	}
	return ((sensorOrientation+device)%360 + 360) % 360
}

// SetFlashMode applies mode to both preview and photos.
func (c *Camera) SetFlashMode(mode FlashMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return ErrNotInitialized
	}
	c.rt.preview.SetFlashMode(mode)
	c.rt.still.SetFlashMode(mode)
	return nil
}

// HandleAutoFocus locks focus on the current preview frame.
func (c *Camera) HandleAutoFocus() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return ErrNotInitialized
	}
	return c.rt.preview.LockFocus()
}

// MaxZoom returns the current camera's maximum zoom ratio.
func (c *Camera) MaxZoom() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return 0, ErrNotInitialized
	}
	return c.rt.preview.MaxZoom(), nil
}

// SetZoom sets the preview zoom ratio.
func (c *Camera) SetZoom(ratio float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return ErrNotInitialized
	}
	return c.rt.preview.SetZoom(ratio)
}

// Status returns a snapshot of the camera.
func (c *Camera) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		PermissionGranted: c.permissionGranted,
		DeviceOrientation: c.deviceOrientation,
		DeviceState:       DeviceClosed.String(),
		SessionState:      SessionClosed.String(),
	}
	rt := c.rt
	if rt == nil {
		return st
	}

	spec := rt.preview.Spec()
	st.Initialized = true
	st.Sensor = rt.identity.Sensor
	st.CameraID = rt.identity.ID
	st.Started = rt.started()
	st.Zoom = spec.Zoom
	st.MaxZoom = rt.preview.MaxZoom()
	st.Flash = spec.Flash
	st.FocusLocked = spec.FocusLocked
	st.PreviewSize = spec.Size
	st.EffectivePreviewSize = rt.preview.EffectiveSize()
	st.PhotoSize = rt.still.Size()
	st.PhotoPending = rt.still.Pending()
	st.Texture = rt.texture
	if rt.device != nil {
		st.DeviceState = rt.device.State().String()
	}
	if rt.session != nil {
		st.SessionID = rt.session.ID()
		st.SessionState = rt.session.State().String()
	}
	return st
}

// Close detaches the camera: it stops it and releases the preview surface.
// The Camera may be initialized again afterwards.
func (c *Camera) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		return nil
	}
	err := c.releaseLocked(ctx)
	c.logger.Info("Camera detached")
	return err
}

func (c *Camera) releaseLocked(ctx context.Context) error {
	err := c.stopLocked(ctx, "camera released")
	if c.rt.surface != "" && c.surfaces != nil {
		c.surfaces.ReleaseSurface(c.rt.surface)
	}
	c.rt = nil
	return err
}

func (c *Camera) ensureSurfaceLocked() error {
	rt := c.rt
	if rt.surface != "" {
		return nil
	}
	if c.surfaces == nil {
		return ErrTextureNotFound.with("no surface provider", nil)
	}
	surface, texture, err := c.surfaces.CreateSurface()
	if err != nil {
		return ErrTextureNotFound.with("", err)
	}
	rt.surface = surface
	rt.texture = texture
	c.logger.Debug("Preview surface created", "surface", string(surface), "texture", texture)
	return nil
}

// Package dispatch maps named caller operations onto a camera.Camera. It is
// the transport-neutral command surface shared by the NATS command channel
// and the CLI: every call takes a method name and named arguments and
// returns a result value or a *camera.Error.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/smazurov/camcore/internal/camera"
	"github.com/smazurov/camcore/internal/logging"
	"github.com/smazurov/camcore/internal/metrics"
	"github.com/smazurov/camcore/internal/version"
)

// Method names.
const (
	MethodPlatformVersion         = "getPlatformVersion"
	MethodCheckPermissions        = "checkPermissions"
	MethodRequestPermissions      = "requestPermissions"
	MethodInit                    = "init"
	MethodSetSensor               = "setSensor"
	MethodPreviewTexture          = "previewTexture"
	MethodAvailableSizes          = "availableSizes"
	MethodSetPreviewSize          = "setPreviewSize"
	MethodGetEffectivePreviewSize = "getEffectivePreviewSize"
	MethodSetPhotoSize            = "setPhotoSize"
	MethodStart                   = "start"
	MethodStop                    = "stop"
	MethodTakePhoto               = "takePhoto"
	MethodSetFlashMode            = "setFlashMode"
	MethodHandleAutoFocus         = "handleAutoFocus"
	MethodGetMaxZoom              = "getMaxZoom"
	MethodSetZoom                 = "setZoom"
	MethodSetDeviceOrientation    = "setDeviceOrientation"
	MethodStatus                  = "status"
)

// Handler runs one method.
type Handler func(ctx context.Context, args Args) (any, error)

// Photo is the result of a successful takePhoto call.
type Photo struct {
	JobID string `json:"job_id"`
	Path  string `json:"path"`
}

// Options configures a Dispatcher.
type Options struct {
	// PhotoDir resolves relative takePhoto paths. Empty leaves them as given.
	PhotoDir string
}

// Dispatcher routes calls to a Camera.
type Dispatcher struct {
	camera   *camera.Camera
	photoDir string
	logger   *slog.Logger
	methods  map[string]Handler
}

// New creates a dispatcher for cam.
func New(cam *camera.Camera, opts Options) *Dispatcher {
	d := &Dispatcher{
		camera:   cam,
		photoDir: opts.PhotoDir,
		logger:   logging.GetLogger("dispatch"),
	}
	d.methods = map[string]Handler{
		MethodPlatformVersion:         d.platformVersion,
		MethodCheckPermissions:        d.checkPermissions,
		MethodRequestPermissions:      d.requestPermissions,
		MethodInit:                    d.init,
		MethodSetSensor:               d.setSensor,
		MethodPreviewTexture:          d.previewTexture,
		MethodAvailableSizes:          d.availableSizes,
		MethodSetPreviewSize:          d.setPreviewSize,
		MethodGetEffectivePreviewSize: d.effectivePreviewSize,
		// Misspelled name kept for existing callers.
		"getEffectivPreviewSize":   d.effectivePreviewSize,
		MethodSetPhotoSize:         d.setPhotoSize,
		MethodStart:                d.start,
		MethodStop:                 d.stop,
		MethodTakePhoto:            d.takePhoto,
		MethodSetFlashMode:         d.setFlashMode,
		MethodHandleAutoFocus:      d.handleAutoFocus,
		MethodGetMaxZoom:           d.maxZoom,
		MethodSetZoom:              d.setZoom,
		MethodSetDeviceOrientation: d.setDeviceOrientation,
		MethodStatus:               d.status,
	}
	return d
}

// Methods lists the supported method names in sorted order.
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs method with args. Unknown methods fail with NOT_IMPLEMENTED.
func (d *Dispatcher) Call(ctx context.Context, method string, args Args) (any, error) {
	handler, ok := d.methods[method]
	if !ok {
		err := camera.NewError(camera.CodeNotImplemented, "unknown method", method, nil)
		metrics.RecordCall("unknown", err.Code, 0)
		return nil, err
	}
	if args == nil {
		args = Args{}
	}

	start := time.Now()
	result, err := handler(ctx, args)
	elapsed := time.Since(start)

	code := ""
	if err != nil {
		code = camera.CodeOf(err)
		if code == "" {
			code = "INTERNAL"
		}
		d.logger.Debug("Call failed", "method", method, "code", code, "error", err, "duration", elapsed)
	} else {
		d.logger.Debug("Call completed", "method", method, "duration", elapsed)
	}
	metrics.RecordCall(method, code, elapsed.Seconds())
	return result, err
}

func (d *Dispatcher) platformVersion(context.Context, Args) (any, error) {
	return version.Platform(), nil
}

func (d *Dispatcher) checkPermissions(context.Context, Args) (any, error) {
	return d.camera.CheckPermissions()
}

func (d *Dispatcher) requestPermissions(context.Context, Args) (any, error) {
	d.camera.RequestPermissions()
	return nil, nil
}

func sensorArg(args Args) (camera.Sensor, error) {
	s, ok := args.String("sensor")
	if !ok {
		return "", camera.NewError(camera.CodeSensorError, "a sensor FRONT or BACK must be provided", "", nil)
	}
	return camera.ParseSensor(s)
}

func sizeArgs(args Args) (camera.Size, error) {
	w, okW := args.Int("width")
	h, okH := args.Int("height")
	if !okW || !okH {
		return camera.Size{}, camera.NewError(camera.CodeNoSizeSet, "width and height must be set", "", nil)
	}
	return camera.Size{Width: w, Height: h}, nil
}

func (d *Dispatcher) init(ctx context.Context, args Args) (any, error) {
	sensor, err := sensorArg(args)
	if err != nil {
		return nil, err
	}
	if err := d.camera.Init(ctx, sensor); err != nil {
		return nil, err
	}
	return true, nil
}

func (d *Dispatcher) setSensor(ctx context.Context, args Args) (any, error) {
	sensor, err := sensorArg(args)
	if err != nil {
		return nil, err
	}
	return nil, d.camera.SetSensor(ctx, sensor)
}

func (d *Dispatcher) previewTexture(context.Context, Args) (any, error) {
	return d.camera.PreviewTexture()
}

func (d *Dispatcher) availableSizes(context.Context, Args) (any, error) {
	return d.camera.AvailableSizes()
}

func (d *Dispatcher) setPreviewSize(_ context.Context, args Args) (any, error) {
	size, err := sizeArgs(args)
	if err != nil {
		return nil, err
	}
	return nil, d.camera.SetPreviewSize(size)
}

func (d *Dispatcher) effectivePreviewSize(context.Context, Args) (any, error) {
	return d.camera.EffectivePreviewSize()
}

func (d *Dispatcher) setPhotoSize(_ context.Context, args Args) (any, error) {
	size, err := sizeArgs(args)
	if err != nil {
		return nil, err
	}
	return nil, d.camera.SetPhotoSize(size)
}

func (d *Dispatcher) start(ctx context.Context, _ Args) (any, error) {
	if err := d.camera.Start(ctx); err != nil {
		return nil, err
	}
	return true, nil
}

func (d *Dispatcher) stop(ctx context.Context, _ Args) (any, error) {
	return nil, d.camera.Stop(ctx)
}

// takePhoto waits for the capture to resolve. If ctx ends first the call
// fails but the job stays pending until the hardware answers or the camera
// is stopped.
func (d *Dispatcher) takePhoto(ctx context.Context, args Args) (any, error) {
	path, ok := args.String("path")
	if !ok {
		return nil, camera.NewError(camera.CodePathNotSet, "a file path must be set", "", nil)
	}
	path = ResolvePath(d.photoDir, path)

	results, err := d.camera.TakePhoto(path)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return Photo{JobID: res.JobID, Path: res.Path}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for photo %s: %w", path, ctx.Err())
	}
}

// ResolvePath places a relative photo path under dir. Absolute paths and an
// empty dir leave path as given.
func ResolvePath(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func (d *Dispatcher) setFlashMode(_ context.Context, args Args) (any, error) {
	s, ok := args.String("mode")
	if !ok {
		return nil, camera.NewError(camera.CodeModeNotSet, "a mode must be set", "", nil)
	}
	mode, err := camera.ParseFlashMode(s)
	if err != nil {
		return nil, err
	}
	return nil, d.camera.SetFlashMode(mode)
}

func (d *Dispatcher) handleAutoFocus(context.Context, Args) (any, error) {
	return nil, d.camera.HandleAutoFocus()
}

func (d *Dispatcher) maxZoom(context.Context, Args) (any, error) {
	return d.camera.MaxZoom()
}

func (d *Dispatcher) setZoom(_ context.Context, args Args) (any, error) {
	zoom, ok := args.Float("zoom")
	if !ok {
		return nil, camera.NewError(camera.CodeZoomNotSet, "a float zoom must be set", "", nil)
	}
	return nil, d.camera.SetZoom(zoom)
}

func (d *Dispatcher) setDeviceOrientation(_ context.Context, args Args) (any, error) {
	degrees, ok := args.Int("orientation")
	if !ok {
		return nil, camera.NewError(camera.CodeSensorError, "an orientation in degrees must be provided", "", nil)
	}
	d.camera.SetDeviceOrientation(degrees)
	return nil, nil
}

func (d *Dispatcher) status(context.Context, Args) (any, error) {
	return d.camera.Status(), nil
}

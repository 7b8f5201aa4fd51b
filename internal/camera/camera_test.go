package camera_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/camcore/internal/camera"
	"github.com/smazurov/camcore/internal/sim"
)

func newCamera(t *testing.T, missing ...string) (*camera.Camera, *sim.Platform) {
	t.Helper()
	p := sim.NewPlatform(nil, missing...)
	cam := camera.New(p.CameraOptions(nil))
	t.Cleanup(func() {
		_ = cam.Close(context.Background())
		p.Close()
	})
	return cam, p
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// started brings cam up on sensor with an active session.
func started(t *testing.T, cam *camera.Camera, sensor camera.Sensor) {
	t.Helper()
	ctx := testContext(t)
	if _, err := cam.CheckPermissions(); err != nil {
		t.Fatalf("CheckPermissions() error = %v", err)
	}
	if err := cam.Init(ctx, sensor); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := cam.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := cam.AwaitActive(ctx); err != nil {
		t.Fatalf("AwaitActive() error = %v", err)
	}
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if got := camera.CodeOf(err); got != code {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

func result(t *testing.T, ch <-chan camera.PhotoResult) camera.PhotoResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("photo never resolved")
	}
	return camera.PhotoResult{}
}

func TestOperationsRequireInit(t *testing.T) {
	cam, _ := newCamera(t)
	ctx := testContext(t)

	checks := map[string]error{
		"SetSensor":       cam.SetSensor(ctx, camera.SensorFront),
		"SetPreviewSize":  cam.SetPreviewSize(camera.Size{Width: 640, Height: 480}),
		"SetPhotoSize":    cam.SetPhotoSize(camera.Size{Width: 640, Height: 480}),
		"Start":           cam.Start(ctx),
		"Stop":            cam.Stop(ctx),
		"SetFlashMode":    cam.SetFlashMode(camera.FlashOn),
		"HandleAutoFocus": cam.HandleAutoFocus(),
		"SetZoom":         cam.SetZoom(2.0),
	}
	for name, err := range checks {
		if camera.CodeOf(err) != camera.CodeNotInitialized {
			t.Errorf("%s error = %v, want %s", name, err, camera.CodeNotInitialized)
		}
	}
	_, err := cam.MaxZoom()
	wantCode(t, err, camera.CodeNotInitialized)
	_, err = cam.TakePhoto("/tmp/a.jpg")
	wantCode(t, err, camera.CodeNotInitialized)
}

func TestInitNeedsConfirmedPermissions(t *testing.T) {
	cam, p := newCamera(t, "android.permission.CAMERA")
	ctx := testContext(t)

	wantCode(t, cam.Init(ctx, camera.SensorBack), camera.CodeMissingPermission)

	missing, err := cam.CheckPermissions()
	if err != nil || len(missing) != 1 {
		t.Fatalf("CheckPermissions() = %v, %v, want one missing", missing, err)
	}
	wantCode(t, cam.Init(ctx, camera.SensorBack), camera.CodeMissingPermission)

	cam.RequestPermissions()
	p.Permissions.Grant()
	if err := cam.Init(ctx, camera.SensorBack); err != nil {
		t.Fatalf("Init() after grant error = %v", err)
	}
}

func TestPermissionCheckFailure(t *testing.T) {
	cam, p := newCamera(t)
	p.Permissions.SetCheckError(errors.New("package manager unavailable"))
	_, err := cam.CheckPermissions()
	wantCode(t, err, camera.CodePermissionCheckFailed)
}

func TestZoomThenPhoto(t *testing.T) {
	cam, p := newCamera(t)
	started(t, cam, camera.SensorBack)

	if err := cam.SetZoom(2.0); err != nil {
		t.Fatalf("SetZoom() error = %v", err)
	}
	last, ok := p.Driver.LastRepeating()
	if !ok || last.Request.Zoom != 2.0 {
		t.Fatalf("last preview request = %+v, want zoom 2.0", last)
	}

	path := filepath.Join(t.TempDir(), "a.jpg")
	results, err := cam.TakePhoto(path)
	if err != nil {
		t.Fatalf("TakePhoto() error = %v", err)
	}
	res := result(t, results)
	if res.Err != nil {
		t.Fatalf("photo failed: %v", res.Err)
	}
	if res.Path != path || res.JobID == "" {
		t.Errorf("result = %+v", res)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("photo file missing or empty: %v", err)
	}
	select {
	case extra := <-results:
		t.Errorf("second result delivered: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}

	captures := p.Driver.Captures()
	if len(captures) != 1 || captures[0].Request.Orientation != 90 {
		t.Errorf("captures = %+v, want one at orientation 90", captures)
	}
}

func TestZoomOutOfRangeKeepsSession(t *testing.T) {
	cam, p := newCamera(t)
	started(t, cam, camera.SensorBack)
	before := cam.Status()
	submitted := len(p.Driver.Repeating())

	for _, ratio := range []float64{10.0, 0.5, math.NaN(), math.Inf(1)} {
		wantCode(t, cam.SetZoom(ratio), camera.CodeZoomOutOfRange)
	}

	after := cam.Status()
	if after.SessionState != "active" || after.SessionID != before.SessionID || after.Zoom != before.Zoom {
		t.Errorf("status changed: before %+v after %+v", before, after)
	}
	if len(p.Driver.Repeating()) != submitted {
		t.Error("rejected zoom reached the hardware")
	}
}

func TestBackToBackPhotos(t *testing.T) {
	cam, p := newCamera(t)
	started(t, cam, camera.SensorBack)
	dir := t.TempDir()

	p.Driver.StallCapture(true)
	first, err := cam.TakePhoto(filepath.Join(dir, "1.jpg"))
	if err != nil {
		t.Fatalf("first TakePhoto() error = %v", err)
	}
	_, err = cam.TakePhoto(filepath.Join(dir, "2.jpg"))
	wantCode(t, err, camera.CodeCaptureBusy)
	if n := len(p.Driver.Captures()); n != 1 {
		t.Errorf("hardware saw %d captures, want 1", n)
	}

	p.Driver.StallCapture(false)
	p.Driver.ReleaseStalled()
	if res := result(t, first); res.Err != nil {
		t.Fatalf("first photo failed: %v", res.Err)
	}

	third, err := cam.TakePhoto(filepath.Join(dir, "3.jpg"))
	if err != nil {
		t.Fatalf("third TakePhoto() error = %v", err)
	}
	if res := result(t, third); res.Err != nil {
		t.Fatalf("third photo failed: %v", res.Err)
	}
}

func TestSwitchSensorMidPreview(t *testing.T) {
	cam, p := newCamera(t)
	started(t, cam, camera.SensorBack)
	ctx := testContext(t)

	if err := cam.SetZoom(1.5); err != nil {
		t.Fatalf("SetZoom() error = %v", err)
	}
	if err := cam.SetFlashMode(camera.FlashAuto); err != nil {
		t.Fatalf("SetFlashMode() error = %v", err)
	}
	oldSession := cam.Status().SessionID

	if err := cam.SetSensor(ctx, camera.SensorFront); err != nil {
		t.Fatalf("SetSensor() error = %v", err)
	}
	if err := cam.AwaitActive(ctx); err != nil {
		t.Fatalf("AwaitActive() after switch error = %v", err)
	}

	st := cam.Status()
	if st.Sensor != camera.SensorFront || st.SessionID == oldSession || st.SessionState != "active" {
		t.Fatalf("status after switch = %+v", st)
	}
	if st.MaxZoom != 2.0 {
		t.Errorf("MaxZoom = %v, want front sensor 2.0", st.MaxZoom)
	}

	last, ok := p.Driver.LastRepeating()
	if !ok {
		t.Fatal("no preview request after switch")
	}
	if last.Identity.Sensor != camera.SensorFront {
		t.Errorf("preview went to %v, want FRONT", last.Identity)
	}
	if last.Request.Zoom != 1.5 || last.Request.Flash != camera.FlashAuto {
		t.Errorf("staged spec not carried over: %+v", last.Request)
	}
	if len(last.Request.Targets) != 1 || last.Request.Targets[0] == "" {
		t.Errorf("preview target lost: %v", last.Request.Targets)
	}
	if last.Request.Size != (camera.Size{Width: 2592, Height: 1944}) {
		t.Errorf("Size = %v, want front sensor largest", last.Request.Size)
	}

	// Photos now use the front sensor's orientation.
	results, err := cam.TakePhoto(filepath.Join(t.TempDir(), "front.jpg"))
	if err != nil {
		t.Fatalf("TakePhoto() error = %v", err)
	}
	if res := result(t, results); res.Err != nil {
		t.Fatalf("photo failed: %v", res.Err)
	}
	captures := p.Driver.Captures()
	if got := captures[len(captures)-1].Request.Orientation; got != 270 {
		t.Errorf("front photo orientation = %d, want 270", got)
	}
}

func TestSwitchRejectedWhilePhotoPending(t *testing.T) {
	cam, p := newCamera(t)
	started(t, cam, camera.SensorBack)
	ctx := testContext(t)

	p.Driver.StallCapture(true)
	results, err := cam.TakePhoto(filepath.Join(t.TempDir(), "a.jpg"))
	if err != nil {
		t.Fatalf("TakePhoto() error = %v", err)
	}
	wantCode(t, cam.SetSensor(ctx, camera.SensorFront), camera.CodeCaptureBusy)
	if st := cam.Status(); st.Sensor != camera.SensorBack || st.SessionState != "active" {
		t.Errorf("rejected switch changed state: %+v", st)
	}

	p.Driver.StallCapture(false)
	p.Driver.ReleaseStalled()
	if res := result(t, results); res.Err != nil {
		t.Fatalf("photo failed: %v", res.Err)
	}
}

func TestSwitchFailureLeavesNoOpenDevice(t *testing.T) {
	cam, p := newCamera(t)
	started(t, cam, camera.SensorBack)
	ctx := testContext(t)

	p.Driver.FailOpen("1", errors.New("sensor busy"))
	wantCode(t, cam.SetSensor(ctx, camera.SensorFront), camera.CodeSwitchFailed)

	if id, open := p.Driver.OpenDevice(); open {
		t.Errorf("device %v left open after failed switch", id)
	}
	st := cam.Status()
	if st.Started || st.DeviceState != "closed" {
		t.Errorf("status after failed switch = %+v", st)
	}

	// The camera recovers once the hardware does.
	p.Driver.FailOpen("1", nil)
	if err := cam.Start(ctx); err != nil {
		t.Fatalf("Start() after failed switch error = %v", err)
	}
	if err := cam.AwaitActive(ctx); err != nil {
		t.Fatalf("AwaitActive() error = %v", err)
	}
}

func TestStopFailsPendingPhoto(t *testing.T) {
	cam, p := newCamera(t)
	started(t, cam, camera.SensorBack)
	ctx := testContext(t)

	p.Driver.StallCapture(true)
	results, err := cam.TakePhoto(filepath.Join(t.TempDir(), "a.jpg"))
	if err != nil {
		t.Fatalf("TakePhoto() error = %v", err)
	}
	if err := cam.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	wantCode(t, result(t, results).Err, camera.CodeCaptureFailed)

	if _, open := p.Driver.OpenDevice(); open {
		t.Error("device still open after Stop")
	}
	_, err = cam.TakePhoto(filepath.Join(t.TempDir(), "b.jpg"))
	wantCode(t, err, camera.CodeSessionNotActive)

	if err := cam.Stop(ctx); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestConfigureFailureReleasesDevice(t *testing.T) {
	cam, p := newCamera(t)
	ctx := testContext(t)
	if _, err := cam.CheckPermissions(); err != nil {
		t.Fatal(err)
	}
	if err := cam.Init(ctx, camera.SensorBack); err != nil {
		t.Fatal(err)
	}

	p.Driver.FailConfigure("stream combination unsupported")
	if err := cam.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	wantCode(t, cam.AwaitActive(ctx), camera.CodeSessionConfigurationFailed)

	deadline := time.After(5 * time.Second)
	for cam.Status().Started {
		select {
		case <-deadline:
			t.Fatal("device never released after configure failure")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if _, open := p.Driver.OpenDevice(); open {
		t.Error("hardware device still open")
	}
}

func TestDisconnectFailsPendingPhoto(t *testing.T) {
	cam, p := newCamera(t)
	started(t, cam, camera.SensorBack)

	p.Driver.StallCapture(true)
	results, err := cam.TakePhoto(filepath.Join(t.TempDir(), "a.jpg"))
	if err != nil {
		t.Fatalf("TakePhoto() error = %v", err)
	}
	if !p.Driver.Disconnect() {
		t.Fatal("Disconnect() found no open device")
	}
	wantCode(t, result(t, results).Err, camera.CodeCaptureFailed)
}

func TestOpenDeniedByHardware(t *testing.T) {
	cam, p := newCamera(t)
	ctx := testContext(t)
	if _, err := cam.CheckPermissions(); err != nil {
		t.Fatal(err)
	}
	if err := cam.Init(ctx, camera.SensorBack); err != nil {
		t.Fatal(err)
	}
	p.Driver.FailOpen("0", camera.ErrPermissionDenied)
	wantCode(t, cam.Start(ctx), camera.CodePermissionDenied)
	if cam.Status().Started {
		t.Error("camera reports started after a failed open")
	}
}

func TestPreviewSizeAndTexture(t *testing.T) {
	cam, p := newCamera(t)
	ctx := testContext(t)
	if _, err := cam.CheckPermissions(); err != nil {
		t.Fatal(err)
	}
	if err := cam.Init(ctx, camera.SensorBack); err != nil {
		t.Fatal(err)
	}

	texture, err := cam.PreviewTexture()
	if err != nil || texture == 0 {
		t.Fatalf("PreviewTexture() = %d, %v", texture, err)
	}
	again, _ := cam.PreviewTexture()
	if again != texture {
		t.Errorf("texture changed from %d to %d", texture, again)
	}

	if err := cam.SetPreviewSize(camera.Size{Width: 1300, Height: 700}); err != nil {
		t.Fatal(err)
	}
	wantCode(t, cam.SetPreviewSize(camera.Size{}), camera.CodeNoSizeSet)
	size, err := cam.EffectivePreviewSize()
	if err != nil || size != (camera.Size{Width: 1280, Height: 720}) {
		t.Errorf("EffectivePreviewSize() = %v, %v, want 1280x720", size, err)
	}

	if err := cam.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if live := p.Textures.Live(); live != 0 {
		t.Errorf("%d textures still live after Close", live)
	}
}

package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camcore/internal/camera"
	"github.com/smazurov/camcore/internal/dispatch"
	"github.com/smazurov/camcore/internal/events"
	"github.com/smazurov/camcore/internal/sim"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(ServerOptions{Port: RandomPort, Name: "test-server", Logger: testLogger()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(server.Stop)
	return server
}

func connectClient(t *testing.T, url string) *CommandClient {
	t.Helper()
	client := NewCommandClient(url, testLogger())
	if err := client.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

// fakeCaller records calls and answers from a table.
type fakeCaller struct {
	mu      sync.Mutex
	calls   []string
	args    []dispatch.Args
	results map[string]any
	errs    map[string]error
	block   chan struct{}
}

func (f *fakeCaller) Call(ctx context.Context, method string, args dispatch.Args) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.args = append(f.args, args)
	block := f.block
	f.mu.Unlock()

	if method == "slow" && block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[method]; err != nil {
		return nil, err
	}
	return f.results[method], nil
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(ServerOptions{Port: RandomPort, Name: "test-server", Logger: testLogger()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if !server.IsRunning() {
		t.Error("Server should be running after Start()")
	}
	if server.ClientURL() == "" {
		t.Error("ClientURL should not be empty")
	}

	server.Stop()
	if server.IsRunning() {
		t.Error("Server should not be running after Stop()")
	}
}

func TestClientNotConnected(t *testing.T) {
	client := NewCommandClient("nats://localhost:59999", testLogger())
	if err := client.Connect(); err == nil {
		t.Error("Connect should fail with non-existent server")
	}
	if _, err := client.Call(context.Background(), "start", nil); err == nil {
		t.Error("Call should fail when not connected")
	}
	if client.IsConnected() {
		t.Error("Client should not be connected")
	}
	client.Close()
}

func TestBridgeCommandRoundTrip(t *testing.T) {
	server := startServer(t)
	caller := &fakeCaller{
		results: map[string]any{"getEffectivePreviewSize": camera.Size{Width: 1280, Height: 720}},
		errs: map[string]error{
			"setZoom": camera.NewError(camera.CodeZoomOutOfRange, "zoom ratio out of range", "10.00 not in [1.00, 4.00]", nil),
		},
	}

	bridge := NewBridge(server.ClientURL(), caller, nil, BridgeOptions{Logger: testLogger()})
	if err := bridge.Start(); err != nil {
		t.Fatalf("Failed to start bridge: %v", err)
	}
	defer bridge.Stop()

	client := connectClient(t, server.ClientURL())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := client.Call(ctx, "getEffectivePreviewSize", nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	var size camera.Size
	if err := json.Unmarshal(raw, &size); err != nil {
		t.Fatalf("bad result %s: %v", raw, err)
	}
	if size.Width != 1280 || size.Height != 720 {
		t.Errorf("size = %v, want 1280x720", size)
	}

	_, err = client.Call(ctx, "setZoom", map[string]any{"zoom": 10.0})
	if camera.CodeOf(err) != camera.CodeZoomOutOfRange {
		t.Fatalf("err = %v, want %s", err, camera.CodeZoomOutOfRange)
	}
	var ce *camera.Error
	if e, ok := err.(*camera.Error); ok {
		ce = e
	}
	if ce == nil || ce.Details != "10.00 not in [1.00, 4.00]" {
		t.Errorf("details not carried: %+v", ce)
	}

	caller.mu.Lock()
	defer caller.mu.Unlock()
	if len(caller.args) != 2 || caller.args[1]["zoom"] != 10.0 {
		t.Errorf("args = %v", caller.args)
	}
}

func TestBridgeServesConcurrently(t *testing.T) {
	server := startServer(t)
	caller := &fakeCaller{block: make(chan struct{})}
	bridge := NewBridge(server.ClientURL(), caller, nil, BridgeOptions{Logger: testLogger()})
	if err := bridge.Start(); err != nil {
		t.Fatal(err)
	}
	defer bridge.Stop()

	client := connectClient(t, server.ClientURL())

	slowDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := client.Call(ctx, "slow", nil)
		slowDone <- err
	}()

	// A quick call is answered while the slow one is still blocked.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Call(ctx, "status", nil); err != nil {
		t.Fatalf("quick call blocked behind slow call: %v", err)
	}

	close(caller.block)
	if err := <-slowDone; err != nil {
		t.Errorf("slow call failed: %v", err)
	}
}

func TestBridgeForwardsEvents(t *testing.T) {
	server := startServer(t)
	bus := events.New()
	bridge := NewBridge(server.ClientURL(), &fakeCaller{}, bus, BridgeOptions{Logger: testLogger()})
	if err := bridge.Start(); err != nil {
		t.Fatal(err)
	}
	defer bridge.Stop()

	client := connectClient(t, server.ClientURL())
	received := make(chan EventMessage, 8)
	unsub, err := client.SubscribeEvents(func(ev EventMessage) { received <- ev })
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	// Give the subscription time to reach the server.
	time.Sleep(100 * time.Millisecond)

	bus.Publish(events.LogEntryEvent{Level: "info", Message: "not forwarded"})
	bus.Publish(events.PhotoCapturedEvent{JobID: "j1", Sensor: "BACK", Path: "/tmp/a.jpg"})

	select {
	case ev := <-received:
		if ev.Name != "photo.captured" {
			t.Fatalf("Name = %q, want photo.captured", ev.Name)
		}
		var photo events.PhotoCapturedEvent
		if err := json.Unmarshal(ev.Data, &photo); err != nil {
			t.Fatal(err)
		}
		if photo.JobID != "j1" || photo.Path != "/tmp/a.jpg" {
			t.Errorf("unexpected payload: %+v", photo)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not forwarded")
	}
}

func TestCommandChannelDrivesCamera(t *testing.T) {
	server := startServer(t)

	platform := sim.NewPlatform(nil)
	defer platform.Close()
	cam := camera.New(platform.CameraOptions(nil))
	defer cam.Close(context.Background())

	bridge := NewBridge(server.ClientURL(), dispatch.New(cam, dispatch.Options{}), nil, BridgeOptions{Logger: testLogger()})
	if err := bridge.Start(); err != nil {
		t.Fatal(err)
	}
	defer bridge.Stop()

	client := connectClient(t, server.ClientURL())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mustCall := func(method string, args map[string]any) json.RawMessage {
		t.Helper()
		raw, err := client.Call(ctx, method, args)
		if err != nil {
			t.Fatalf("%s failed: %v", method, err)
		}
		return raw
	}

	if _, err := client.Call(ctx, "init", map[string]any{"sensor": "BACK"}); camera.CodeOf(err) != camera.CodeMissingPermission {
		t.Errorf("init before permission check: err = %v", err)
	}
	mustCall("checkPermissions", nil)
	mustCall("init", map[string]any{"sensor": "BACK"})
	mustCall("start", nil)
	if err := cam.AwaitActive(ctx); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "a.jpg")
	raw := mustCall("takePhoto", map[string]any{"path": path})
	var photo dispatch.Photo
	if err := json.Unmarshal(raw, &photo); err != nil {
		t.Fatal(err)
	}
	if photo.Path != path {
		t.Errorf("path = %q, want %q", photo.Path, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("photo missing: %v", err)
	}

	if _, err := client.Call(ctx, "bogus", nil); camera.CodeOf(err) != camera.CodeNotImplemented {
		t.Errorf("bogus method: err = %v", err)
	}
}

func TestReplyMessage(t *testing.T) {
	ok := newReply(map[string]int{"width": 640}, nil)
	if !ok.OK || string(ok.Result) != `{"width":640}` || ok.Err() != nil {
		t.Errorf("unexpected success reply: %+v", ok)
	}

	empty := newReply(nil, nil)
	if !empty.OK || empty.Result != nil {
		t.Errorf("unexpected empty reply: %+v", empty)
	}

	cause := camera.NewError(camera.CodeDeviceUnavailable, "camera device unavailable", "", context.Canceled)
	failed := newReply(nil, cause)
	if failed.OK || failed.Error.Code != camera.CodeDeviceUnavailable || failed.Error.Details != context.Canceled.Error() {
		t.Errorf("unexpected failure reply: %+v", failed.Error)
	}

	plain := newReply(nil, context.DeadlineExceeded)
	if plain.Error.Code != "INTERNAL" {
		t.Errorf("plain error code = %q, want INTERNAL", plain.Error.Code)
	}
}

func TestMethodFromSubject(t *testing.T) {
	if got := methodFromSubject(SubjectRPC("takePhoto")); got != "takePhoto" {
		t.Errorf("methodFromSubject = %q", got)
	}
	if got := SubjectEvent(EventName(events.SensorSwitchedEvent{})); got != "camcore.events.sensor" {
		t.Errorf("SubjectEvent = %q", got)
	}
}

func TestTokenAuth(t *testing.T) {
	server := NewServer(ServerOptions{Port: RandomPort, Token: "s3cret", Logger: testLogger()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(server.Stop)

	anonymous := NewCommandClient(server.ClientURL(), testLogger())
	if err := anonymous.Connect(); err == nil {
		anonymous.Close()
		t.Fatal("Connect without a token should fail")
	}

	caller := &fakeCaller{results: map[string]any{"getMaxZoom": 4.0}}
	bridge := NewBridge(server.ClientURL(), caller, nil, BridgeOptions{Token: "s3cret", Logger: testLogger()})
	if err := bridge.Start(); err != nil {
		t.Fatalf("Bridge with token failed to start: %v", err)
	}
	t.Cleanup(bridge.Stop)

	client := NewCommandClient(server.ClientURL(), testLogger(), WithToken("s3cret"))
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect with token failed: %v", err)
	}
	t.Cleanup(client.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, err := client.Call(ctx, "getMaxZoom", nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	var maxZoom float64
	if err := json.Unmarshal(raw, &maxZoom); err != nil || maxZoom != 4.0 {
		t.Errorf("getMaxZoom = %s, want 4.0", raw)
	}
}

package led

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camcore/internal/events"
)

type setCall struct {
	led     string
	on      bool
	pattern Pattern
}

// mockController records Set calls.
type mockController struct {
	mu    sync.Mutex
	calls []setCall
}

func (m *mockController) Set(led string, on bool, pattern Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, setCall{led, on, pattern})
	return nil
}

func (m *mockController) Available() []string {
	return []string{IndicatorLED}
}

func (m *mockController) last() (setCall, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return setCall{}, 0
	}
	return m.calls[len(m.calls)-1], len(m.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// waitForLED polls until the last Set call matches want.
func waitForLED(t *testing.T, ctrl *mockController, want setCall) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if got, _ := ctrl.last(); got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, _ := ctrl.last()
	t.Fatalf("LED = %+v, want %+v", got, want)
}

func transition(bus *events.Bus, session, to string) {
	bus.Publish(events.SessionStateChangedEvent{SessionID: session, To: to, Timestamp: time.Now().Format(time.RFC3339)})
}

func TestIndicatorFollowsSession(t *testing.T) {
	ctrl := &mockController{}
	bus := events.New()
	ind := NewIndicator(ctrl, bus, testLogger())
	ind.Start()

	waitForLED(t, ctrl, setCall{IndicatorLED, false, ""})

	transition(bus, "s1", "configuring")
	waitForLED(t, ctrl, setCall{IndicatorLED, true, PatternBlink})

	transition(bus, "s1", "active")
	waitForLED(t, ctrl, setCall{IndicatorLED, true, PatternSolid})

	transition(bus, "s1", "closing")
	waitForLED(t, ctrl, setCall{IndicatorLED, true, PatternBlink})

	transition(bus, "s1", "closed")
	waitForLED(t, ctrl, setCall{IndicatorLED, false, ""})

	ind.Stop()
}

func TestIndicatorActiveWinsOverConfiguring(t *testing.T) {
	ctrl := &mockController{}
	bus := events.New()
	ind := NewIndicator(ctrl, bus, testLogger())
	ind.Start()
	defer ind.Stop()

	transition(bus, "old", "active")
	waitForLED(t, ctrl, setCall{IndicatorLED, true, PatternSolid})

	// A replacement session configuring alongside an active one keeps the LED solid.
	transition(bus, "new", "configuring")
	time.Sleep(50 * time.Millisecond)
	waitForLED(t, ctrl, setCall{IndicatorLED, true, PatternSolid})
}

func TestIndicatorSkipsRepeatedState(t *testing.T) {
	ctrl := &mockController{}
	bus := events.New()
	ind := NewIndicator(ctrl, bus, testLogger())
	ind.Start()
	defer ind.Stop()

	transition(bus, "s1", "active")
	waitForLED(t, ctrl, setCall{IndicatorLED, true, PatternSolid})
	_, before := ctrl.last()

	transition(bus, "s2", "active")
	time.Sleep(50 * time.Millisecond)
	if _, after := ctrl.last(); after != before {
		t.Errorf("Set called %d times, want %d", after, before)
	}
}

func TestIndicatorStopTurnsOff(t *testing.T) {
	ctrl := &mockController{}
	bus := events.New()
	ind := NewIndicator(ctrl, bus, testLogger())
	ind.Start()

	transition(bus, "s1", "active")
	waitForLED(t, ctrl, setCall{IndicatorLED, true, PatternSolid})

	ind.Stop()
	if got, _ := ctrl.last(); got.on {
		t.Errorf("LED still on after Stop: %+v", got)
	}
}

func TestSysfsController(t *testing.T) {
	root := t.TempDir()
	ledDir := filepath.Join(root, "usr_led")
	if err := os.MkdirAll(ledDir, 0o755); err != nil {
		t.Fatal(err)
	}
	ctrl := newSysfs(root, map[string]string{IndicatorLED: "usr_led", "missing": "gone_led"})

	read := func(name string) string {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(ledDir, name))
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	if err := ctrl.Set(IndicatorLED, true, PatternSolid); err != nil {
		t.Fatal(err)
	}
	if read("trigger") != "none" || read("brightness") != "1" {
		t.Errorf("solid: trigger=%q brightness=%q", read("trigger"), read("brightness"))
	}

	if err := ctrl.Set(IndicatorLED, true, PatternBlink); err != nil {
		t.Fatal(err)
	}
	if read("trigger") != "heartbeat" {
		t.Errorf("blink: trigger=%q", read("trigger"))
	}

	if err := ctrl.Set(IndicatorLED, false, PatternBlink); err != nil {
		t.Fatal(err)
	}
	if read("trigger") != "none" || read("brightness") != "0" {
		t.Errorf("off: trigger=%q brightness=%q", read("trigger"), read("brightness"))
	}

	if err := ctrl.Set("missing", true, PatternSolid); err == nil {
		t.Error("expected error for LED without sysfs directory")
	}
	if err := ctrl.Set("unknown", true, PatternSolid); err == nil {
		t.Error("expected error for unmapped LED")
	}
	if got := ctrl.Available(); len(got) != 2 || got[0] != IndicatorLED {
		t.Errorf("Available() = %v", got)
	}
}

func TestBoardIndicator(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"FriendlyElec NanoPC-T6", "usr_led"},
		{"Orange Pi 5 Plus", "blue_led"},
		{"Raspberry Pi 4 Model B Rev 1.4", "ACT"},
		{"unknown", ""},
	}
	for _, tt := range tests {
		if got := boardIndicator(tt.model); got != tt.want {
			t.Errorf("boardIndicator(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}

	// Without a configured name, unknown boards get the no-op controller.
	ctrl := New("", testLogger())
	if ctrl == nil {
		t.Fatal("New returned nil")
	}
	if err := ctrl.Set(IndicatorLED, false, ""); err != nil && len(ctrl.Available()) == 0 {
		t.Errorf("no-op controller returned error: %v", err)
	}
}

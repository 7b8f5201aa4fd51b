package systemd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNotifierStates(t *testing.T) {
	var sent []string
	n := NewNotifier(testLogger())
	n.notify = func(_ bool, state string) (bool, error) {
		sent = append(sent, state)
		return true, nil
	}

	n.Ready()
	n.Status("camera active")
	n.Stopping()

	want := []string{daemon.SdNotifyReady, "STATUS=camera active", daemon.SdNotifyStopping}
	if len(sent) != len(want) {
		t.Fatalf("sent = %v, want %v", sent, want)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Errorf("sent[%d] = %q, want %q", i, sent[i], want[i])
		}
	}
}

func TestNotifierErrorsAreNotFatal(t *testing.T) {
	n := NewNotifier(testLogger())
	n.notify = func(bool, string) (bool, error) {
		return false, errors.New("socket gone")
	}
	n.Ready()
}

func TestWatchdogDisabledReturns(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	t.Setenv("WATCHDOG_PID", "")

	done := make(chan struct{})
	go func() {
		NewNotifier(testLogger()).Watchdog(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watchdog did not return without WATCHDOG_USEC")
	}
}

func TestOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	n := NewNotifier(testLogger())
	sent, err := n.notify(false, daemon.SdNotifyReady)
	if err != nil || sent {
		t.Errorf("SdNotify outside systemd = (%v, %v), want (false, nil)", sent, err)
	}
}

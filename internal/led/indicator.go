package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/camcore/internal/events"
)

// Indicator lights an LED while the camera is capturing: solid when a
// session is active, blinking while one is being configured, off otherwise.
type Indicator struct {
	controller  Controller
	eventBus    *events.Bus
	unsubscribe func()
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]string // session ID -> state
	last     *ledState
}

type ledState struct {
	on      bool
	pattern Pattern
}

// NewIndicator creates an indicator driving IndicatorLED on controller.
func NewIndicator(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Indicator {
	return &Indicator{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
		sessions:   make(map[string]string),
	}
}

// Start turns the LED off and begins following session transitions.
func (i *Indicator) Start() {
	i.mu.Lock()
	i.applyLocked()
	i.mu.Unlock()

	i.unsubscribe = i.eventBus.Subscribe(func(e events.SessionStateChangedEvent) {
		i.handleEvent(e)
	})
	i.logger.Info("Camera indicator started")
}

// Stop unsubscribes and turns the LED off.
func (i *Indicator) Stop() {
	if i.unsubscribe != nil {
		i.unsubscribe()
	}
	i.mu.Lock()
	clear(i.sessions)
	i.applyLocked()
	i.mu.Unlock()
	i.logger.Info("Camera indicator stopped")
}

func (i *Indicator) handleEvent(e events.SessionStateChangedEvent) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if e.To == "closed" {
		delete(i.sessions, e.SessionID)
	} else {
		i.sessions[e.SessionID] = e.To
	}
	i.applyLocked()
}

// applyLocked must be called with mu held.
func (i *Indicator) applyLocked() {
	want := ledState{}
	for _, state := range i.sessions {
		switch state {
		case "active":
			want = ledState{on: true, pattern: PatternSolid}
		case "unconfigured", "configuring", "closing":
			if !want.on {
				want = ledState{on: true, pattern: PatternBlink}
			}
		}
		if want.pattern == PatternSolid {
			break
		}
	}

	if i.last != nil && *i.last == want {
		return
	}
	if err := i.controller.Set(IndicatorLED, want.on, want.pattern); err != nil {
		i.logger.Warn("Failed to set indicator LED", "error", err)
		return
	}
	i.last = &want
	i.logger.Debug("Indicator LED updated", "on", want.on, "pattern", want.pattern)
}

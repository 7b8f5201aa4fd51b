package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// UnitStatus is the state systemd reports for a unit.
type UnitStatus struct {
	Unit        string `json:"unit" example:"camcore.service" doc:"Unit name"`
	ActiveState string `json:"active_state" example:"active" doc:"systemd ActiveState"`
	SubState    string `json:"sub_state" example:"running" doc:"systemd SubState"`
	MainPID     uint32 `json:"main_pid,omitempty" doc:"Main process ID"`
}

// unitBus is the part of a D-Bus connection the manager uses.
type unitBus interface {
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]any, error)
	RestartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	Close()
}

// Manager queries and restarts camcore's own unit over D-Bus.
type Manager struct {
	bus  unitBus
	unit string
}

// NewManager connects to the system bus, or the user bus when user is set
// (units installed with systemctl --user).
func NewManager(ctx context.Context, unit string, user bool) (*Manager, error) {
	connect := dbus.NewSystemConnectionContext
	if user {
		connect = dbus.NewUserConnectionContext
	}
	conn, err := connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return &Manager{bus: conn, unit: unit}, nil
}

// Unit returns the managed unit name.
func (m *Manager) Unit() string {
	return m.unit
}

// Status reads the unit's active and sub state.
func (m *Manager) Status(ctx context.Context) (UnitStatus, error) {
	props, err := m.bus.GetUnitPropertiesContext(ctx, m.unit)
	if err != nil {
		return UnitStatus{}, fmt.Errorf("read %s: %w", m.unit, err)
	}
	st := UnitStatus{Unit: m.unit}
	st.ActiveState, _ = props["ActiveState"].(string)
	st.SubState, _ = props["SubState"].(string)
	st.MainPID, _ = props["MainPID"].(uint32)
	return st, nil
}

// Restart queues a restart of the unit and returns without waiting: when
// the unit is this process the reply has to go out before systemd stops it.
func (m *Manager) Restart(ctx context.Context) error {
	if _, err := m.bus.RestartUnitContext(ctx, m.unit, "replace", nil); err != nil {
		return fmt.Errorf("restart %s: %w", m.unit, err)
	}
	return nil
}

// Close closes the D-Bus connection.
func (m *Manager) Close() {
	if m.bus != nil {
		m.bus.Close()
	}
}

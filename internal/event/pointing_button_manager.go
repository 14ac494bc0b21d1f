package event

import "github.com/karabiner-grabberd/grabberd/internal/devid"

// PointingButtonManager is a multiset of held pointing-device buttons,
// the button-tracking analogue of ModifierFlagManager (spec.md §3
// "Queue", "pointing button manager").
type PointingButtonManager struct {
	active []activePointingButton
}

type activePointingButton struct {
	Button   UsagePair
	DeviceID devid.ID
	locked   bool
}

// NewPointingButtonManager returns an empty manager.
func NewPointingButtonManager() *PointingButtonManager {
	return &PointingButtonManager{}
}

// Increase records a pointing-button down event.
func (m *PointingButtonManager) Increase(button UsagePair, id devid.ID) {
	m.active = append(m.active, activePointingButton{Button: button, DeviceID: id})
}

// Decrease records a pointing-button up event.
func (m *PointingButtonManager) Decrease(button UsagePair, id devid.ID) {
	for i := len(m.active) - 1; i >= 0; i-- {
		a := m.active[i]
		if !a.locked && a.Button == button && a.DeviceID == id {
			m.active = append(m.active[:i], m.active[i+1:]...)
			return
		}
	}
}

// IncreaseLock records a held-down-via-lock button (used by
// mouse-key/manipulator emulation of a button held across manipulator
// chains).
func (m *PointingButtonManager) IncreaseLock(button UsagePair, id devid.ID) {
	m.active = append(m.active, activePointingButton{Button: button, DeviceID: id, locked: true})
}

// EraseAllActivePointingButtonsExceptLock clears non-locked holdings for
// a device, e.g. on device ungrab.
func (m *PointingButtonManager) EraseAllActivePointingButtonsExceptLock(id devid.ID) {
	out := m.active[:0]
	for _, a := range m.active {
		if a.DeviceID == id && !a.locked {
			continue
		}
		out = append(out, a)
	}
	m.active = out
}

// IsPressed reports whether the given button is currently held by any
// device.
func (m *PointingButtonManager) IsPressed(button UsagePair) bool {
	for _, a := range m.active {
		if a.Button == button {
			return true
		}
	}
	return false
}

// Empty reports whether no pointing buttons are held at all.
func (m *PointingButtonManager) Empty() bool {
	return len(m.active) == 0
}

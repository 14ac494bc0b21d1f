package event

import "github.com/karabiner-grabberd/grabberd/internal/devid"

// activeFlagKind discriminates the kinds of holding a modifier can be
// under (spec.md §3 "modifier flag manager"): a plain increase/decrease
// from a real or synthesized key event, a sticky increase/decrease that
// survives the releasing key-up, or an LED-lock variant that tracks
// caps-lock's latched hardware state.
type activeFlagKind int

const (
	flagIncrease activeFlagKind = iota
	flagDecrease
	flagIncreaseSticky
	flagDecreaseSticky
	flagIncreaseLEDLock
	flagDecreaseLEDLock
)

// activeModifierFlag is one multiset holding, keyed by (kind, flag,
// device id), mirroring the original source's
// `modifier_flag_manager::active_modifier_flag`.
type activeModifierFlag struct {
	Kind         activeFlagKind
	Flag         ModifierFlag
	DeviceID     devid.ID
}

// ModifierFlagManager is a multiset of active modifier holdings. It
// supports increase/decrease (from real key events), sticky
// increase/decrease (from sticky-modifier virtual events that outlive
// the key-up), and LED-lock increase/decrease (from caps-lock state
// changes). spec.md §3 "Queue" describes this as embedded in the queue.
type ModifierFlagManager struct {
	active []activeModifierFlag
}

// NewModifierFlagManager returns an empty manager.
func NewModifierFlagManager() *ModifierFlagManager {
	return &ModifierFlagManager{}
}

func (m *ModifierFlagManager) pushIncrease(kind activeFlagKind, flag ModifierFlag, id devid.ID) {
	m.active = append(m.active, activeModifierFlag{Kind: kind, Flag: flag, DeviceID: id})
}

// pushDecrease removes the most recently added matching increase-kind
// entry (last-in-first-out, matching a multiset decrement).
func (m *ModifierFlagManager) pushDecrease(increaseKind activeFlagKind, flag ModifierFlag, id devid.ID) {
	for i := len(m.active) - 1; i >= 0; i-- {
		a := m.active[i]
		if a.Kind == increaseKind && a.Flag == flag && a.DeviceID == id {
			m.active = append(m.active[:i], m.active[i+1:]...)
			return
		}
	}
}

// Increase records a modifier key-down from the given device.
func (m *ModifierFlagManager) Increase(flag ModifierFlag, id devid.ID) {
	m.pushIncrease(flagIncrease, flag, id)
}

// Decrease records a modifier key-up from the given device.
func (m *ModifierFlagManager) Decrease(flag ModifierFlag, id devid.ID) {
	m.pushDecrease(flagIncrease, flag, id)
}

// IncreaseSticky records a sticky-modifier activation.
func (m *ModifierFlagManager) IncreaseSticky(flag ModifierFlag, id devid.ID) {
	m.pushIncrease(flagIncreaseSticky, flag, id)
}

// DecreaseSticky clears a sticky-modifier activation.
func (m *ModifierFlagManager) DecreaseSticky(flag ModifierFlag, id devid.ID) {
	m.pushDecrease(flagIncreaseSticky, flag, id)
}

// StickySize reports how many sticky holdings of flag are active,
// across all devices, used to implement sticky-modifier "toggle" mode
// (original source: `sticky_size`).
func (m *ModifierFlagManager) StickySize(flag ModifierFlag) int {
	n := 0
	for _, a := range m.active {
		if a.Kind == flagIncreaseSticky && a.Flag == flag {
			n++
		}
	}
	return n
}

// IncreaseLEDLock records caps-lock's hardware LED turning on.
func (m *ModifierFlagManager) IncreaseLEDLock(flag ModifierFlag, id devid.ID) {
	m.pushIncrease(flagIncreaseLEDLock, flag, id)
}

// DecreaseLEDLock records caps-lock's hardware LED turning off.
func (m *ModifierFlagManager) DecreaseLEDLock(flag ModifierFlag, id devid.ID) {
	m.pushDecrease(flagIncreaseLEDLock, flag, id)
}

// EraseAllStickyModifierFlags clears every sticky holding. Invoked when
// a valid non-modifier key-down is pushed into the queue (spec.md §3
// invariant: "A validity=valid key_down of a non-modifier clears all
// sticky modifier flags.").
func (m *ModifierFlagManager) EraseAllStickyModifierFlags() {
	out := m.active[:0]
	for _, a := range m.active {
		if a.Kind != flagIncreaseSticky && a.Kind != flagDecreaseSticky {
			out = append(out, a)
		}
	}
	m.active = out
}

// EraseAllActiveModifierFlagsExceptLockAndSticky clears plain
// increase/decrease holdings for a device, leaving sticky and LED-lock
// holdings untouched. Used when a device is ungrabbed so its
// momentarily-held modifiers don't leak into the next grab.
func (m *ModifierFlagManager) EraseAllActiveModifierFlagsExceptLockAndSticky(id devid.ID) {
	out := m.active[:0]
	for _, a := range m.active {
		if a.DeviceID == id && a.Kind == flagIncrease {
			continue
		}
		out = append(out, a)
	}
	m.active = out
}

// EraseAllActiveModifierFlags clears every holding for a device,
// including sticky and LED-lock ones.
func (m *ModifierFlagManager) EraseAllActiveModifierFlags(id devid.ID) {
	out := m.active[:0]
	for _, a := range m.active {
		if a.DeviceID != id {
			out = append(out, a)
		}
	}
	m.active = out
}

// IsPressed reports whether flag is currently held by any device, via
// any mechanism (plain, sticky, or LED-lock).
func (m *ModifierFlagManager) IsPressed(flag ModifierFlag) bool {
	for _, a := range m.active {
		if a.Flag != flag {
			continue
		}
		switch a.Kind {
		case flagIncrease, flagIncreaseSticky, flagIncreaseLEDLock:
			return true
		}
	}
	return false
}

// Pressed returns the set of modifier flags currently held by any
// device.
func (m *ModifierFlagManager) Pressed() map[ModifierFlag]bool {
	out := map[ModifierFlag]bool{}
	for f := ModifierLeftControl; f <= ModifierCapsLock; f++ {
		if m.IsPressed(f) {
			out[f] = true
		}
	}
	return out
}

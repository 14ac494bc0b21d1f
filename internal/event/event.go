// Package event implements the canonical event model (spec.md C1): the
// tagged-union event type, event time stamps, queue entries, and the
// ordered queue itself with its embedded modifier/button/environment
// trackers.
package event

import "github.com/karabiner-grabberd/grabberd/internal/devid"

// UsagePair identifies a momentary switch (key, pointing button, or
// consumer control) by its HID usage page and usage, the way the
// original source's `key_code`/`consumer_key_code`/`pointing_button`
// union members do.
type UsagePair struct {
	UsagePage uint32
	Usage     uint32
}

// Kind discriminates the event union's variants (spec.md §3 "Event").
type Kind int

const (
	KindNone Kind = iota
	KindMomentarySwitch
	KindPointingMotion
	KindCapsLockStateChanged
	KindDeviceGrabbed
	KindDeviceUngrabbed
	KindDeviceKeysAndPointingButtonsAreReleased
	KindSetVariable
	KindShellCommand
	KindSelectInputSource
	KindMouseKey
	KindStopKeyboardRepeat
	KindFrontmostApplicationChanged
	KindInputSourceChanged
	KindSystemPreferencesChanged
	KindVirtualHIDDevicesStateChanged
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindMomentarySwitch:
		return "momentary_switch"
	case KindPointingMotion:
		return "pointing_motion"
	case KindCapsLockStateChanged:
		return "caps_lock_state_changed"
	case KindDeviceGrabbed:
		return "device_grabbed"
	case KindDeviceUngrabbed:
		return "device_ungrabbed"
	case KindDeviceKeysAndPointingButtonsAreReleased:
		return "device_keys_and_pointing_buttons_are_released"
	case KindSetVariable:
		return "set_variable"
	case KindShellCommand:
		return "shell_command"
	case KindSelectInputSource:
		return "select_input_source"
	case KindMouseKey:
		return "mouse_key"
	case KindStopKeyboardRepeat:
		return "stop_keyboard_repeat"
	case KindFrontmostApplicationChanged:
		return "frontmost_application_changed"
	case KindInputSourceChanged:
		return "input_source_changed"
	case KindSystemPreferencesChanged:
		return "system_preferences_changed"
	case KindVirtualHIDDevicesStateChanged:
		return "virtual_hid_devices_state_changed"
	default:
		return "unknown"
	}
}

// PointingMotion is the four signed-integer axis delta of a pointing
// report (spec.md §3).
type PointingMotion struct {
	DX, DY             int32
	VerticalWheel      int32
	HorizontalWheel    int32
}

// Add accumulates another motion into the receiver, used when coalescing
// same-tick pointing reports (spec.md §4.2, §4.8).
func (m *PointingMotion) Add(o PointingMotion) {
	m.DX += o.DX
	m.DY += o.DY
	m.VerticalWheel += o.VerticalWheel
	m.HorizontalWheel += o.HorizontalWheel
}

// IsZero reports whether the motion carries no axis movement at all.
func (m PointingMotion) IsZero() bool {
	return m.DX == 0 && m.DY == 0 && m.VerticalWheel == 0 && m.HorizontalWheel == 0
}

// SetVariable is a (name, value) pair that updates the manipulator
// environment's named-variable cache.
type SetVariable struct {
	Name  string
	Value int
}

// MouseKey carries a synthetic mouse-key virtual event's axis/speed
// parameters (modeled loosely; the exact shape is an external-rule
// concern, not specified further by spec.md).
type MouseKey struct {
	X, Y               int
	VerticalWheel      int
	HorizontalWheel    int
	SpeedMultiplier    float64
}

// Event is the tagged union over spec.md §3's variants. Only the field
// matching Kind is meaningful; the others are zero. Modeled as a plain
// struct rather than an interface hierarchy because the set of variants
// is closed and fixed (spec.md Non-goals: no pluggable event kinds).
type Event struct {
	Kind Kind

	MomentarySwitch UsagePair
	PointingMotion  PointingMotion
	BoolValue       bool
	DeviceProps     devid.Properties
	SetVariable     SetVariable
	StringValue     string
	MouseKey        MouseKey
}

// MomentarySwitchEvent builds a momentary-switch event.
func MomentarySwitchEvent(up UsagePair) Event {
	return Event{Kind: KindMomentarySwitch, MomentarySwitch: up}
}

// PointingMotionEvent builds a pointing-motion event.
func PointingMotionEvent(m PointingMotion) Event {
	return Event{Kind: KindPointingMotion, PointingMotion: m}
}

// CapsLockStateChangedEvent builds a caps-lock state event.
func CapsLockStateChangedEvent(on bool) Event {
	return Event{Kind: KindCapsLockStateChanged, BoolValue: on}
}

// DeviceGrabbedEvent builds a device-grabbed virtual event carrying the
// device's properties.
func DeviceGrabbedEvent(p devid.Properties) Event {
	return Event{Kind: KindDeviceGrabbed, DeviceProps: p}
}

// DeviceUngrabbedEvent builds a device-ungrabbed virtual event.
func DeviceUngrabbedEvent() Event {
	return Event{Kind: KindDeviceUngrabbed}
}

// KeysAndButtonsReleasedEvent builds the synthesized
// device_keys_and_pointing_buttons_are_released virtual event (spec.md §4.3).
func KeysAndButtonsReleasedEvent() Event {
	return Event{Kind: KindDeviceKeysAndPointingButtonsAreReleased}
}

// SetVariableEvent builds a set-variable virtual event.
func SetVariableEvent(name string, value int) Event {
	return Event{Kind: KindSetVariable, SetVariable: SetVariable{Name: name, Value: value}}
}

// ShellCommandEvent builds a shell-command virtual event.
func ShellCommandEvent(cmd string) Event {
	return Event{Kind: KindShellCommand, StringValue: cmd}
}

// IsMomentarySwitch reports whether the event is a momentary-switch
// event, and returns its usage pair.
func (e Event) IsMomentarySwitch() (UsagePair, bool) {
	if e.Kind == KindMomentarySwitch {
		return e.MomentarySwitch, true
	}
	return UsagePair{}, false
}

// Package virtualhid defines the virtual HID service client contract
// (spec.md C10, §6): the interface post-event-to-virtual-devices reports
// are posted through, plus an in-process Null implementation used by
// tests and by the daemon when no real virtual HID driver is installed.
package virtualhid

import "fmt"

// KeyboardReport is one outgoing USB HID keyboard report: a modifier
// byte plus up to six simultaneously pressed non-modifier key usages,
// mirroring the boot-protocol keyboard report shape spec.md §4.8 assumes.
type KeyboardReport struct {
	Modifiers byte
	Keys      [6]byte
}

// PointingReport is one outgoing pointing-device report.
type PointingReport struct {
	Buttons         byte
	X, Y            int8
	VerticalWheel   int8
	HorizontalWheel int8
}

// Client is the capability set a virtual HID service backend exposes
// (spec.md §6 "Virtual HID service client"). A real implementation talks
// to a platform driver (a kernel uhid device on Linux, a system
// extension on macOS); Null below satisfies the interface without one.
type Client interface {
	// Ready reports whether the service is connected and has a keyboard
	// (and, if needed, a pointing device) registered.
	Ready() bool

	// PostKeyboardReport posts one outgoing keyboard report.
	PostKeyboardReport(r KeyboardReport) error

	// PostPointingReport posts one outgoing pointing report.
	PostPointingReport(r PointingReport) error

	// ResetKeyboard releases every key the service currently believes
	// is held, the analogue of the original source's reset on grab-state
	// changes (spec.md §4.7.1's "synthesize device_keys_and_pointing_buttons_are_released").
	ResetKeyboard() error

	// Close tears down the connection to the service.
	Close() error

	// OnCapsLockStateChanged registers the callback invoked whenever the
	// host toggles the virtual keyboard's caps-lock LED (spec.md §8
	// scenario 1's "virtual HID caps-lock-state-changed"). Only the most
	// recently registered callback is kept, mirroring the
	// single-subscriber signal idiom the rest of spec.md §6's client
	// methods use.
	OnCapsLockStateChanged(cb func(on bool))
}

// Null is a Client that accepts every report and keeps the most recent
// one of each kind, with no backing driver. It is the default client
// when the daemon starts without virtual-HID support available, and the
// one used throughout the test suite.
type Null struct {
	ready bool

	lastKeyboard KeyboardReport
	lastPointing PointingReport
	closed       bool

	capsLockCallback func(on bool)
}

// NewNull returns a Null client already marked ready.
func NewNull() *Null {
	return &Null{ready: true}
}

func (n *Null) Ready() bool { return n.ready && !n.closed }

func (n *Null) PostKeyboardReport(r KeyboardReport) error {
	if n.closed {
		return fmt.Errorf("post keyboard report: client closed")
	}
	n.lastKeyboard = r
	return nil
}

func (n *Null) PostPointingReport(r PointingReport) error {
	if n.closed {
		return fmt.Errorf("post pointing report: client closed")
	}
	n.lastPointing = r
	return nil
}

func (n *Null) ResetKeyboard() error {
	n.lastKeyboard = KeyboardReport{}
	return nil
}

func (n *Null) Close() error {
	n.closed = true
	n.ready = false
	return nil
}

func (n *Null) OnCapsLockStateChanged(cb func(on bool)) {
	n.capsLockCallback = cb
}

// SimulateCapsLockStateChanged invokes the registered
// OnCapsLockStateChanged callback, standing in for a real virtual HID
// driver reporting the host's caps-lock LED state. Used by tests; the
// daemon itself never calls it, so on Null it never observes this signal.
func (n *Null) SimulateCapsLockStateChanged(on bool) {
	if n.capsLockCallback != nil {
		n.capsLockCallback(on)
	}
}

// LastKeyboardReport returns the most recently posted keyboard report,
// for tests asserting on post-event-to-virtual-devices output.
func (n *Null) LastKeyboardReport() KeyboardReport { return n.lastKeyboard }

// LastPointingReport returns the most recently posted pointing report.
func (n *Null) LastPointingReport() PointingReport { return n.lastPointing }

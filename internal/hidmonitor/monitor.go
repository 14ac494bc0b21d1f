// Package hidmonitor implements the HID input monitor external
// interface (spec.md §6): device arrival/termination detection, raw
// input translation into canonical events, and the seize/release
// primitive (Grab/Ungrab). The platform-independent façade lives
// here; concrete backends (evdev enumeration/grab, USB) are
// Linux-specific files gated by build tags, the same split
// HopIT-Hub-R1-Control uses between its OS-agnostic tray/server code
// and aoa/aoa.go's USB-specific device handling.
package hidmonitor

import (
	"fmt"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
)

// Callbacks is the set of notifications a backend delivers to the rest
// of the daemon. All are optional; a nil callback is simply skipped.
type Callbacks struct {
	// DeviceMatched fires when a new input device is observed, whether
	// or not it is a consuming device.
	DeviceMatched func(devid.ID, devid.Properties)

	// DeviceTerminated fires when a previously matched device
	// disappears.
	DeviceTerminated func(devid.ID)

	// Input fires for every translated input event read from a device,
	// in arrival order.
	Input func(id devid.ID, ev event.Event, et event.Type, ts event.TimeStamp)

	// DeviceBoundary fires when a device's seize state changes in a way
	// that could hide a physical key transition (e.g. a grab or a
	// backend restart), feeding internal/stuckdetect. The Linux evdev
	// backend never delivers it.
	DeviceBoundary func(devid.ID)
}

// Backend is the platform-specific half of the monitor: device
// discovery, raw event translation, and the seize/release ioctl or
// syscall a given OS exposes.
type Backend interface {
	// Start begins delivering callbacks; it returns once the backend's
	// background goroutines are running.
	Start(cb Callbacks) error

	// Stop tears down every background goroutine and releases any
	// grabbed devices.
	Stop() error

	// Grab seizes exclusive access to a device's event stream.
	Grab(id devid.ID) error

	// Ungrab releases a previously grabbed device.
	Ungrab(id devid.ID) error

	// SetCapsLockLED drives a device's physical caps-lock LED element
	// (spec.md §4.7.3's per-device "caps-lock LED state manager"). Only
	// meaningful for devices configuration has marked
	// manipulate_caps_lock_led; callers outside this package gate on
	// that flag before calling.
	SetCapsLockLED(id devid.ID, on bool) error
}

// Monitor is the OS-agnostic façade the grabber and dispatcher depend
// on; it owns no platform code itself.
type Monitor struct {
	backend Backend
}

// New wraps a concrete Backend.
func New(backend Backend) *Monitor {
	return &Monitor{backend: backend}
}

// Start begins monitoring with the given callbacks.
func (m *Monitor) Start(cb Callbacks) error {
	if err := m.backend.Start(cb); err != nil {
		return fmt.Errorf("start hid monitor: %w", err)
	}
	return nil
}

// Stop tears the monitor down.
func (m *Monitor) Stop() error {
	if err := m.backend.Stop(); err != nil {
		return fmt.Errorf("stop hid monitor: %w", err)
	}
	return nil
}

// Grab seizes a device.
func (m *Monitor) Grab(id devid.ID) error {
	if err := m.backend.Grab(id); err != nil {
		return fmt.Errorf("grab device %d: %w", id, err)
	}
	return nil
}

// Ungrab releases a device.
func (m *Monitor) Ungrab(id devid.ID) error {
	if err := m.backend.Ungrab(id); err != nil {
		return fmt.Errorf("ungrab device %d: %w", id, err)
	}
	return nil
}

// SetCapsLockLED drives a device's physical caps-lock LED element.
func (m *Monitor) SetCapsLockLED(id devid.ID, on bool) error {
	if err := m.backend.SetCapsLockLED(id, on); err != nil {
		return fmt.Errorf("set caps-lock LED on device %d: %w", id, err)
	}
	return nil
}

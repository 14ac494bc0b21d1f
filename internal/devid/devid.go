// Package devid mints process-unique device identities and carries the
// identifying properties the rest of the pipeline matches configuration
// against.
package devid

import "sync/atomic"

// ID is a process-unique integer minted when a physical HID device is
// first observed. The zero value is never minted and is used as a
// sentinel for "no device" (e.g. virtual events with no originating
// device).
type ID uint64

// Zero is the sentinel ID used for events with no originating device.
const Zero ID = 0

var counter uint64

// Next mints the next process-unique ID. Safe for concurrent use,
// though in practice only the dispatcher goroutine calls it.
func Next() ID {
	return ID(atomic.AddUint64(&counter, 1))
}

// Identifiers captures the fields configuration matches a device
// against: vendor/product id, device class flags, and an opaque address
// string that disambiguates two devices sharing a vendor/product id.
type Identifiers struct {
	VendorID         uint16 `json:"vendor_id"`
	ProductID        uint16 `json:"product_id"`
	IsKeyboard       bool   `json:"is_keyboard"`
	IsPointingDevice bool   `json:"is_pointing_device"`
	IsGamePad        bool   `json:"is_game_pad"`
	DeviceAddress    string `json:"device_address"`
}

// Properties is the full per-device descriptor persisted to
// device_details.json and cached in the manipulator environment for
// device-if/device-unless conditions.
type Properties struct {
	DeviceID       ID
	Identifiers    Identifiers
	Manufacturer   string
	Product        string
	IsBuiltInKeyboard bool
	IsAppleDevice  bool
}

// Matches reports whether the receiver's identifiers satisfy a
// configuration-side device selector. A zero VendorID or ProductID and an
// empty DeviceAddress on the selector are wildcards; the selector's
// class flags (IsKeyboard, IsPointingDevice, IsGamePad) are not compared.
func (p Properties) Matches(sel Identifiers) bool {
	if sel.VendorID != 0 && sel.VendorID != p.Identifiers.VendorID {
		return false
	}
	if sel.ProductID != 0 && sel.ProductID != p.Identifiers.ProductID {
		return false
	}
	if sel.DeviceAddress != "" && sel.DeviceAddress != p.Identifiers.DeviceAddress {
		return false
	}
	return true
}

// IsConsumingDevice reports whether this device produces events the
// core cares about at all (keyboard, pointing device or game pad). A
// device for which this is false is never seized (spec.md §4.7.1,
// grabbable policy step 2).
func (i Identifiers) IsConsumingDevice() bool {
	return i.IsKeyboard || i.IsPointingDevice || i.IsGamePad
}

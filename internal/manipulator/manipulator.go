// Package manipulator implements the manipulator contract and its
// variants (spec.md C5, §4.5). A manipulator is a single transformation
// unit with ordered conditions and a small state machine, applied by
// the enclosing manager (package manipulatormanager) to the front entry
// of an input queue.
package manipulator

import (
	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
)

// Manipulator is the polymorphic capability set spec.md §3/§4.5.1
// describes. Concrete variants (Basic, MouseBasic) implement it
// directly rather than through a deep inheritance hierarchy, per
// spec.md §9's "tagged variant... small closed interface" guidance.
type Manipulator interface {
	// Manipulate is invoked by the enclosing manager for the front
	// entry of its input queue. It may invalidate the entry and/or
	// push entries into outputQueue; see spec.md §4.5.1.
	Manipulate(frontEntry *event.Entry, inputQueue, outputQueue *event.Queue, now event.TimeStamp)

	// Active reports whether the manipulator holds internal timers or
	// ongoing state.
	Active() bool

	// Valid reports whether the manipulator is still eligible to run.
	// A manipulator with Valid()==false and Active()==false is eligible
	// for removal by the manager.
	Valid() bool

	// Invalidate marks the manipulator invalid; in-flight chains are
	// allowed to complete (Active() may remain true for a while after).
	Invalidate()

	// NeedsVirtualHIDPointing reports whether any of this manipulator's
	// outputs would produce pointing-device traffic.
	NeedsVirtualHIDPointing() bool

	// HandleDeviceUngrabbed lets a manipulator react to a device being
	// ungrabbed, e.g. to flush in-flight chains for that device.
	HandleDeviceUngrabbed(deviceID devid.ID, outputQueue *event.Queue, now event.TimeStamp)
}

// Flusher is implemented by manipulators that batch output within a
// single Manipulate drive pass and need an explicit end-of-pass flush
// (spec.md §4.6: "the connector drains the posted queue by calling the
// post-to-virtual-devices manipulator's flush operation").
type Flusher interface {
	Flush()
}

// TimerDriven is implemented by manipulators that hold deadline-based
// state (simultaneous window, to-if-held-down, to-delayed-action). The
// connector/manager drive these even when no new input has arrived, so
// that a purely time-based transition (a timeout firing) still
// produces output.
type TimerDriven interface {
	// CheckTimers fires any expired deadline, emitting into
	// outputQueue.
	CheckTimers(now event.TimeStamp, outputQueue *event.Queue)

	// NextDeadline returns the manipulator's next pending deadline, if
	// any, so the dispatcher knows when to wake up even with an empty
	// input queue.
	NextDeadline() (event.TimeStamp, bool)
}

// Package manipulatormanager implements the manipulator manager
// (spec.md C6, §4.5.3): an ordered list of manipulators driven against
// one input queue, forwarding whatever a manipulator leaves valid to
// the output queue unchanged.
package manipulatormanager

import (
	"sync"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
	"github.com/karabiner-grabberd/grabberd/internal/manipulator"
)

// Manager holds an ordered list of manipulators and drives them against
// an input queue. Grounded in HopIT-Hub-R1-Control's
// internal/device/manager.go, whose Manager owns a slice of tracked
// state and a mutex guarding all mutation; here the "tracked state" is
// the manipulator list itself.
type Manager struct {
	mu           sync.Mutex
	manipulators []manipulator.Manipulator
}

// New returns an empty manager.
func New() *Manager {
	return &Manager{}
}

// Append adds a manipulator to the end of the ordered list (spec.md
// §4.5.3: manipulators run in configuration order).
func (mgr *Manager) Append(m manipulator.Manipulator) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.manipulators = append(mgr.manipulators, m)
}

// Manipulate drains every entry at or before now from the front of
// inputQueue, running each through the manipulator list in order. A
// manipulator that leaves an entry valid does not consume it; once the
// full list has run, an entry still valid is forwarded to outputQueue
// unchanged (the "pass straight through" case for a pipeline stage with
// no matching manipulator). Manipulators past their useful life
// (Valid()==false and Active()==false) are pruned at the end of the
// pass (spec.md §4.5.3).
func (mgr *Manager) Manipulate(inputQueue, outputQueue *event.Queue, now event.TimeStamp) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	for !inputQueue.Empty() {
		front := inputQueue.GetFrontEvent()
		if front.Scheduled() > now {
			break
		}

		for _, m := range mgr.manipulators {
			m.Manipulate(&front, inputQueue, outputQueue, now)
		}

		if front.Validity == event.Valid {
			outputQueue.PushBack(front)
		}

		inputQueue.EraseFrontEvent()
	}

	mgr.checkTimersLocked(outputQueue, now)
	mgr.pruneLocked()
}

// CheckTimers drives every timer-bearing manipulator even when the
// input queue is empty, so a to-if-held-down or to-delayed-action
// deadline still fires without new input arriving (spec.md §4.5.2's
// timeouts are genuine wall-clock deadlines, not just event-arrival
// checks).
func (mgr *Manager) CheckTimers(outputQueue *event.Queue, now event.TimeStamp) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.checkTimersLocked(outputQueue, now)
	mgr.pruneLocked()
}

func (mgr *Manager) checkTimersLocked(outputQueue *event.Queue, now event.TimeStamp) {
	for _, m := range mgr.manipulators {
		if td, ok := m.(manipulator.TimerDriven); ok {
			td.CheckTimers(now, outputQueue)
		}
	}
}

func (mgr *Manager) pruneLocked() {
	out := mgr.manipulators[:0]
	for _, m := range mgr.manipulators {
		if !m.Valid() && !m.Active() {
			continue
		}
		out = append(out, m)
	}
	mgr.manipulators = out
}

// Flush calls Flush on every manipulator that implements
// manipulator.Flusher, once per drive pass (spec.md §4.6).
func (mgr *Manager) Flush() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for _, m := range mgr.manipulators {
		if f, ok := m.(manipulator.Flusher); ok {
			f.Flush()
		}
	}
}

// NextDeadline returns the earliest time stamp at which this manager
// needs to run again even absent new input: the scheduled time of the
// input queue's front entry, or the nearest manipulator timer deadline,
// whichever is sooner.
func (mgr *Manager) NextDeadline(inputQueue *event.Queue) (event.TimeStamp, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	have := false
	var d event.TimeStamp

	if !inputQueue.Empty() {
		d, have = inputQueue.GetFrontEvent().Scheduled(), true
	}

	for _, m := range mgr.manipulators {
		td, ok := m.(manipulator.TimerDriven)
		if !ok {
			continue
		}
		cand, ok := td.NextDeadline()
		if !ok {
			continue
		}
		if !have || cand < d {
			d, have = cand, true
		}
	}

	return d, have
}

// InvalidateManipulators marks every manipulator invalid, the response
// to a configuration reload (spec.md §4.5.3): in-flight chains are
// allowed to finish (Active() may remain true briefly), but no
// manipulator will engage again until the manager is repopulated.
func (mgr *Manager) InvalidateManipulators() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for _, m := range mgr.manipulators {
		m.Invalidate()
	}
}

// HandleDeviceUngrabbed forwards a device-ungrab notification to every
// manipulator so in-flight chains for that device flush cleanly (spec.md
// §4.5.1).
func (mgr *Manager) HandleDeviceUngrabbed(deviceID devid.ID, outputQueue *event.Queue, now event.TimeStamp) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for _, m := range mgr.manipulators {
		m.HandleDeviceUngrabbed(deviceID, outputQueue, now)
	}
}

// NeedsVirtualHIDPointing reports whether any manipulator currently
// tracked could produce pointing-device traffic, used by the connector
// to decide whether the virtual HID service needs a pointing device
// registered at all (spec.md §4.6).
func (mgr *Manager) NeedsVirtualHIDPointing() bool {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for _, m := range mgr.manipulators {
		if m.NeedsVirtualHIDPointing() {
			return true
		}
	}
	return false
}

// Len reports the number of manipulators currently tracked, for tests
// and diagnostics.
func (mgr *Manager) Len() int {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return len(mgr.manipulators)
}

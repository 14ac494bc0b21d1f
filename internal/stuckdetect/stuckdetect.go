// Package stuckdetect implements the per-device probable-stuck-events
// detector (spec.md C4, §4.4). spec.md's Design Notes flag this state
// table as behavior to "port verbatim" from the original source, but
// the basic_manipulator/probable_stuck_events_manager source itself was
// not present in the retrieval pack; this implementation is built
// directly from §4.4's prose and the worked scenario in §8.6, and the
// resulting state-table decision is recorded in DESIGN.md.
package stuckdetect

import "github.com/karabiner-grabberd/grabberd/internal/event"

// Source distinguishes who observed a switch's state: this process
// while it held the device seized, or a peer process while the device
// was merely being observed (spec.md §4.4).
type Source int

const (
	SourceSeized Source = iota
	SourceObserved
)

type switchState struct {
	held               bool
	source             Source
	stuck              bool
	seenDownSinceStuck bool
}

// Detector tracks probable-stuck switches for one device.
type Detector struct {
	states map[event.UsagePair]switchState
}

// New returns an empty detector.
func New() *Detector {
	return &Detector{states: map[event.UsagePair]switchState{}}
}

// Update records an observation of a momentary switch and reports
// whether the device should be stopped and restarted to re-sample its
// state (spec.md §4.4: "update(event, event_type, source) returns true
// when a re-grab is required"). Policy: re-grab only when a source
// transition would otherwise hide a state change, or when a stuck
// switch's full down-then-up cycle has just completed (the device is
// now safe to re-evaluate for grabbing).
func (d *Detector) Update(up event.UsagePair, et event.Type, source Source) (regrab bool) {
	st := d.states[up]

	switch et {
	case event.TypeKeyDown:
		if st.held && st.source != source {
			regrab = true
		}
		st.held = true
		st.source = source
		if st.stuck {
			st.seenDownSinceStuck = true
		}

	case event.TypeKeyUp:
		if st.held && st.source != source {
			regrab = true
		}
		if st.stuck && st.seenDownSinceStuck {
			st.stuck = false
			st.seenDownSinceStuck = false
			regrab = true
		}
		st.held = false
	}

	d.states[up] = st
	return regrab
}

// MarkDeviceBoundary is called when the device's seize/unseize state
// transitions in a way that might have hidden an event (HID monitor
// termination, process restart, re-match after disconnect). Any switch
// whose last observation was a key-down is now ambiguous: it may have
// been released while unobserved, so it is marked probably stuck
// (spec.md §8.6).
func (d *Detector) MarkDeviceBoundary() {
	for up, st := range d.states {
		if st.held {
			st.stuck = true
			st.seenDownSinceStuck = false
			d.states[up] = st
		}
	}
}

// FindProbableStuckEvent returns a switch currently believed to be
// stuck, if any.
func (d *Detector) FindProbableStuckEvent() (event.UsagePair, bool) {
	for up, st := range d.states {
		if st.stuck {
			return up, true
		}
	}
	return event.UsagePair{}, false
}

// HasProbableStuckEvent reports whether any switch is currently
// believed stuck, for the grabbable-policy fast path (spec.md §4.7.1
// step 5).
func (d *Detector) HasProbableStuckEvent() bool {
	_, ok := d.FindProbableStuckEvent()
	return ok
}

package event

import "github.com/karabiner-grabberd/grabberd/internal/devid"

// Queue is an ordered sequence of entries with insertion-time
// reordering, an embedded modifier-flag manager, pointing-button
// manager, manipulator environment, and a time-stamp-delay accumulator
// (spec.md §3 "Queue", §4.1).
type Queue struct {
	name            string
	entries         []Entry
	modifierFlags   *ModifierFlagManager
	pointingButtons *PointingButtonManager
	environment     *Environment
	timeStampDelay  TimeStamp
}

// New returns an empty, named queue. The name exists purely for
// diagnostics (log lines, the way the original source names each stage
// queue "merged_input_event_queue", "posted_event_queue", etc.).
func New(name string) *Queue {
	return &Queue{
		name:            name,
		modifierFlags:   NewModifierFlagManager(),
		pointingButtons: NewPointingButtonManager(),
		environment:     NewEnvironment(),
	}
}

// Name returns the queue's diagnostic name.
func (q *Queue) Name() string { return q.name }

// ModifierFlagManager exposes the embedded modifier-flag manager.
func (q *Queue) ModifierFlagManager() *ModifierFlagManager { return q.modifierFlags }

// PointingButtonManager exposes the embedded pointing-button manager.
func (q *Queue) PointingButtonManager() *PointingButtonManager { return q.pointingButtons }

// Environment exposes the embedded manipulator environment.
func (q *Queue) Environment() *Environment { return q.environment }

// PushBackEntry is the only mutation point described by spec.md §4.1:
// "push_back is the only mutation point; there is no out-of-band 'set
// modifier' API." It applies the queue's time-stamp-delay accumulator,
// inserts in sorted order via a single tail-bubble, and updates the
// modifier/button/environment trackers.
func (q *Queue) PushBackEntry(id devid.ID, ts EventTimeStamp, ev Event, et Type, origEv Event, state Origin, lazy bool, validity Validity) Entry {
	ts.TimeStamp += q.timeStampDelay

	entry := Entry{
		DeviceID:       id,
		EventTimeStamp: ts,
		Event:          ev,
		EventType:      et,
		OriginalEvent:  origEv,
		State:          state,
		Lazy:           lazy,
		Validity:       validity,
	}

	q.entries = append(q.entries, entry)
	q.bubbleFromTail()

	q.updateTrackers(entry)

	return entry
}

// PushBack re-inserts an already-built Entry, used when a manipulator
// forwards an entry unchanged into an output queue.
func (q *Queue) PushBack(e Entry) Entry {
	return q.PushBackEntry(e.DeviceID, e.EventTimeStamp, e.Event, e.EventType, e.OriginalEvent, e.State, e.Lazy, e.Validity)
}

// bubbleFromTail implements spec.md §4.1's "local bubble from the tail
// stopping when needs_swap is false".
func (q *Queue) bubbleFromTail() {
	for i := len(q.entries) - 1; i > 0; i-- {
		if needsSwap(q.entries[i-1], q.entries[i]) {
			q.entries[i-1], q.entries[i] = q.entries[i], q.entries[i-1]
		} else {
			break
		}
	}
}

// needsSwap implements spec.md §4.1's same-time modifier/non-modifier
// reordering rule: a modifier is ordered before a concurrent
// non-modifier key-down and after a concurrent non-modifier key-up.
// a and b are adjacent, with a currently preceding b.
func needsSwap(a, b Entry) bool {
	if a.Scheduled() != b.Scheduled() {
		return false
	}

	aMod := a.Event.IsModifier()
	bMod := b.Event.IsModifier()
	if aMod == bMod {
		return false
	}

	var modFirst bool
	var other Entry
	if aMod {
		modFirst, other = true, b
	} else {
		modFirst, other = false, a
	}

	switch other.EventType {
	case TypeKeyDown:
		// modifier must precede a concurrent non-modifier key-down.
		return !modFirst
	case TypeKeyUp:
		// modifier must follow a concurrent non-modifier key-up.
		return modFirst
	default:
		return false
	}
}

func (q *Queue) updateTrackers(entry Entry) {
	if up, ok := entry.Event.IsMomentarySwitch(); ok {
		if flag, ok := ModifierFlagForUsagePair(up); ok {
			if entry.EventType == TypeKeyDown {
				q.modifierFlags.Increase(flag, entry.DeviceID)
			} else if entry.EventType == TypeKeyUp {
				q.modifierFlags.Decrease(flag, entry.DeviceID)
			}
		} else {
			if entry.EventType == TypeKeyDown {
				q.pointingButtons.Increase(up, entry.DeviceID)
			} else if entry.EventType == TypeKeyUp {
				q.pointingButtons.Decrease(up, entry.DeviceID)
			}

			if entry.EventType == TypeKeyDown && entry.Validity == Valid {
				q.modifierFlags.EraseAllStickyModifierFlags()
			}
		}
	}

	switch entry.Event.Kind {
	case KindDeviceGrabbed:
		q.environment.InsertDeviceProperties(entry.DeviceID, entry.Event.DeviceProps)
	case KindDeviceUngrabbed:
		q.environment.EraseDeviceProperties(entry.DeviceID)
	case KindCapsLockStateChanged:
		flag := ModifierCapsLock
		if entry.Event.BoolValue {
			q.modifierFlags.IncreaseLEDLock(flag, entry.DeviceID)
		} else {
			q.modifierFlags.DecreaseLEDLock(flag, entry.DeviceID)
		}
	case KindFrontmostApplicationChanged, KindInputSourceChanged, KindSystemPreferencesChanged:
		// Carried via the Environment's own setters (see
		// SetFrontmostApplication etc.); the virtual event itself
		// is only a marker entry for downstream manipulators to observe.
	}

	if entry.EventType == TypeKeyDown && entry.Event.Kind == KindSetVariable {
		q.environment.SetVariable(entry.Event.SetVariable.Name, entry.Event.SetVariable.Value)
	}
}

// GetFrontEvent returns the first entry without removing it.
func (q *Queue) GetFrontEvent() Entry {
	return q.entries[0]
}

// EraseFrontEvent removes the first entry. When the queue becomes
// empty, the time-stamp-delay accumulator resets (spec.md §4.1).
func (q *Queue) EraseFrontEvent() {
	q.entries = q.entries[1:]
	if len(q.entries) == 0 {
		q.timeStampDelay = 0
	}
}

// Empty reports whether the queue holds no entries.
func (q *Queue) Empty() bool {
	return len(q.entries) == 0
}

// Len returns the number of entries currently queued.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Entries returns the queue's entries in order. The returned slice
// aliases internal storage and must not be mutated by callers.
func (q *Queue) Entries() []Entry {
	return q.entries
}

// Clear empties the queue and resets the time-stamp-delay accumulator
// (spec.md §8 "Clearing the queue resets the time-stamp delay
// accumulator.").
func (q *Queue) Clear() {
	q.entries = nil
	q.timeStampDelay = 0
}

// AddTimeStampDelay extends the time-stamp-delay accumulator so that
// subsequently pushed entries are shifted forward in time. Manipulators
// use this to keep their own emissions correctly ordered relative to
// not-yet-processed input (spec.md §4.5.1).
func (q *Queue) AddTimeStampDelay(d TimeStamp) {
	q.timeStampDelay += d
}

// TimeStampDelay returns the queue's current accumulator value.
func (q *Queue) TimeStampDelay() TimeStamp {
	return q.timeStampDelay
}

// SetEntryAt replaces the entry at index i, used by a manipulator
// manager to mark the front entry invalid after processing.
func (q *Queue) SetEntryAt(i int, e Entry) {
	q.entries[i] = e
}

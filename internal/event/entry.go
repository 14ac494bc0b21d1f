package event

import "github.com/karabiner-grabberd/grabberd/internal/devid"

// Type is the entry's key_down/key_up/single classification (spec.md
// §3 "Entry").
type Type int

const (
	TypeKeyDown Type = iota
	TypeKeyUp
	TypeSingle
)

func (t Type) String() string {
	switch t {
	case TypeKeyDown:
		return "key_down"
	case TypeKeyUp:
		return "key_up"
	case TypeSingle:
		return "single"
	default:
		return "unknown"
	}
}

// Origin is the entry's `state`: whether it came from real hardware or
// was synthesized by a manipulator (spec.md §3 "Entry").
type Origin int

const (
	OriginOriginal Origin = iota
	OriginVirtualEvent
)

// Validity marks whether an entry is still live or has been consumed by
// a manipulator (spec.md §4.5.1).
type Validity int

const (
	Valid Validity = iota
	Invalid
)

// Entry is one element of a pipeline queue (spec.md §3 "Entry").
type Entry struct {
	DeviceID       devid.ID
	EventTimeStamp EventTimeStamp
	Event          Event
	EventType      Type
	OriginalEvent  Event
	State          Origin
	Lazy           bool
	Validity       Validity
}

// NewEntry builds an Entry with OriginalEvent defaulted to Event and
// Validity defaulted to Valid, the common case for freshly observed
// hardware input.
func NewEntry(id devid.ID, ts EventTimeStamp, ev Event, et Type, state Origin) Entry {
	return Entry{
		DeviceID:       id,
		EventTimeStamp: ts,
		Event:          ev,
		EventType:      et,
		OriginalEvent:  ev,
		State:          state,
		Validity:       Valid,
	}
}

// Scheduled returns the entry's effective scheduling time.
func (e Entry) Scheduled() TimeStamp {
	return e.EventTimeStamp.Scheduled()
}

// Invalidate marks the entry consumed so later manipulators in the
// chain skip it (spec.md §4.5.1).
func (e *Entry) Invalidate() {
	e.Validity = Invalid
}

// Package pressedkeys implements the per-device pressed-keys tracker
// (spec.md C2) and the device-keys-released synthesis described in
// spec.md §4.3, grounded on
// original_source/src/share/pressed_keys_manager.hpp.
package pressedkeys

import "github.com/karabiner-grabberd/grabberd/internal/event"

// Tracker is a set of currently-held momentary-switch events for one
// device.
type Tracker struct {
	held map[event.UsagePair]struct{}
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{held: map[event.UsagePair]struct{}{}}
}

// Update applies a key_down/key_up observation and reports whether the
// held set became empty as a result (i.e. every previously-held switch
// has now been released). Non key_down/key_up event types are ignored.
func (t *Tracker) Update(up event.UsagePair, et event.Type) (becameEmpty bool) {
	switch et {
	case event.TypeKeyDown:
		t.held[up] = struct{}{}
		return false
	case event.TypeKeyUp:
		if len(t.held) == 0 {
			return false
		}
		delete(t.held, up)
		return len(t.held) == 0
	default:
		return false
	}
}

// Empty reports whether no switches are currently held.
func (t *Tracker) Empty() bool {
	return len(t.held) == 0
}

// Held returns the set of currently-held usage pairs. The returned
// slice is a fresh copy safe for the caller to retain.
func (t *Tracker) Held() []event.UsagePair {
	out := make([]event.UsagePair, 0, len(t.held))
	for up := range t.held {
		out = append(out, up)
	}
	return out
}

// Clear forgets every held switch without synthesizing a release event;
// used when a device is torn down so stale state can't leak into a
// future re-grab of the same device id.
func (t *Tracker) Clear() {
	t.held = map[event.UsagePair]struct{}{}
}

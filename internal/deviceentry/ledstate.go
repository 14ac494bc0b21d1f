package deviceentry

import "sync"

// LEDState is the per-device caps-lock LED state manager spec.md §3 and
// §4.7 list as one of C8's device-entry members: it remembers whether
// this device's manipulate_caps_lock_led flag is currently set and the
// last LED value actually pushed to the device, so the grabber only
// issues a hardware write when the flag is enabled and the state truly
// changed (spec.md §8 scenario 1).
type LEDState struct {
	mu sync.Mutex

	managed bool
	on      bool
	known   bool
}

// NewLEDState returns an LEDState with LED management disabled until
// SetManaged is told otherwise by a configuration (re)load.
func NewLEDState() *LEDState {
	return &LEDState{}
}

// SetManaged updates the device's manipulate_caps_lock_led policy
// (spec.md §4.7.2 "update each entry's caps-lock LED policy"). Turning
// management off drops the last-known state so re-enabling it always
// issues a fresh write rather than trusting stale state.
func (s *LEDState) SetManaged(managed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.managed == managed {
		return
	}
	s.managed = managed
	if !managed {
		s.known = false
	}
}

// Managed reports whether this device's caps-lock LED is under this
// daemon's control.
func (s *LEDState) Managed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.managed
}

// Apply records the caps-lock state observed from the virtual HID
// keyboard and reports whether it is both managed and new enough to
// require an actual hardware write (spec.md §8 scenario 1: "LED manager
// pushes the HID LED element to on").
func (s *LEDState) Apply(on bool) (write bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.managed {
		return false
	}
	if s.known && s.on == on {
		return false
	}
	s.on = on
	s.known = true
	return true
}

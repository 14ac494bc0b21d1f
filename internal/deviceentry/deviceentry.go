// Package deviceentry implements the per-device grabber-facing record
// (spec.md C8, §4.7.1-§4.7.2): identity, resolved properties, the
// grabbable-policy state machine, and the currently-in-effect grab
// decision.
package deviceentry

import (
	"sync"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
)

// GrabbablePolicy is a device's current eligibility for being seized
// (spec.md §4.7.1's four-state machine).
type GrabbablePolicy int

const (
	// PolicyNone: not yet evaluated.
	PolicyNone GrabbablePolicy = iota
	// PolicyGrabbable: eligible to be seized now.
	PolicyGrabbable
	// PolicyUngrabbableTemporarily: a transient condition blocks
	// grabbing (e.g. a probable stuck key); re-evaluated on the next
	// pass.
	PolicyUngrabbableTemporarily
	// PolicyUngrabbablePermanently: the device is not a consuming
	// device (keyboard, pointing device or game pad), so it is never
	// grabbed. Configuration disabling is tracked apart from the policy.
	PolicyUngrabbablePermanently
)

func (p GrabbablePolicy) String() string {
	switch p {
	case PolicyGrabbable:
		return "grabbable"
	case PolicyUngrabbableTemporarily:
		return "ungrabbable_temporarily"
	case PolicyUngrabbablePermanently:
		return "ungrabbable_permanently"
	default:
		return "none"
	}
}

// Entry is the grabber's per-device bookkeeping record.
type Entry struct {
	mu sync.RWMutex

	id         devid.ID
	properties devid.Properties

	policy           GrabbablePolicy
	grabbed          bool
	disabledByConfig bool

	led *LEDState
}

// New returns an Entry for a freshly matched device, policy
// unevaluated.
func New(id devid.ID, p devid.Properties) *Entry {
	return &Entry{id: id, properties: p, policy: PolicyNone, led: NewLEDState()}
}

// LEDState returns the device's caps-lock LED state manager (spec.md
// §4.7.3's "update each entry's caps-lock LED policy").
func (e *Entry) LEDState() *LEDState { return e.led }

func (e *Entry) ID() devid.ID { return e.id }

func (e *Entry) Properties() devid.Properties {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.properties
}

func (e *Entry) SetProperties(p devid.Properties) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.properties = p
}

func (e *Entry) Policy() GrabbablePolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

func (e *Entry) SetPolicy(p GrabbablePolicy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
}

func (e *Entry) Grabbed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.grabbed
}

func (e *Entry) SetGrabbed(g bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.grabbed = g
}

func (e *Entry) DisabledByConfig() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.disabledByConfig
}

func (e *Entry) SetDisabledByConfig(d bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disabledByConfig = d
}

// ShouldGrab reports whether this device should currently be seized:
// policy must allow it, configuration must not have disabled it, and
// the device must actually produce events the core cares about (spec.md
// §4.7.1 grabbable-policy step 2, "a device that is not a consuming
// device is never grabbed").
func (e *Entry) ShouldGrab() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.disabledByConfig {
		return false
	}
	if e.policy != PolicyGrabbable {
		return false
	}
	return e.properties.Identifiers.IsConsumingDevice()
}

package manipulator

import "github.com/karabiner-grabberd/grabberd/internal/event"

// ToEvent is one step of a manipulator's output chain (spec.md §4.5.2
// "to"/"to_if_alone"/"to_if_held_down"/"to_delayed_action"/
// "to_after_key_up"). Modifiers lists the accompanying modifier keys to
// synthesize around Event (e.g. a "to" of tab with Modifiers
// [left_shift] sends shift+tab).
type ToEvent struct {
	Event     event.Event
	Modifiers []event.ModifierFlag
	Lazy      bool
	Halt      bool
}

// ModifierEvent builds the momentary-switch event for a modifier flag,
// the inverse of event.ModifierFlagForUsagePair, for use when a to-event
// chain itself targets a modifier key (e.g. "to": left_shift).
func ModifierEvent(mod event.ModifierFlag) event.Event {
	up := event.UsagePair{UsagePage: event.UsagePageKeyboardOrKeypad}
	switch mod {
	case event.ModifierLeftControl:
		up.Usage = event.UsageLeftControl
	case event.ModifierLeftShift:
		up.Usage = event.UsageLeftShift
	case event.ModifierLeftOption:
		up.Usage = event.UsageLeftOption
	case event.ModifierLeftCommand:
		up.Usage = event.UsageLeftCommand
	case event.ModifierRightControl:
		up.Usage = event.UsageRightControl
	case event.ModifierRightShift:
		up.Usage = event.UsageRightShift
	case event.ModifierRightOption:
		up.Usage = event.UsageRightOption
	case event.ModifierRightCommand:
		up.Usage = event.UsageRightCommand
	case event.ModifierCapsLock:
		up.Usage = event.UsageCapsLock
	}
	return event.MomentarySwitchEvent(up)
}

// From describes the triggering momentary switch and the modifier
// constraint it must be observed under (spec.md §4.5.2 "from").
type From struct {
	Event event.Event

	// MandatoryModifiers must all be held for a match.
	MandatoryModifiers []event.ModifierFlag

	// OptionalModifiers may additionally be held without blocking a
	// match. Ignored when AnyOptionalModifier is set.
	OptionalModifiers []event.ModifierFlag

	// AnyOptionalModifier allows any combination of modifiers beyond
	// MandatoryModifiers (the "optional: any" configuration shape).
	AnyOptionalModifier bool

	// Simultaneous, when non-empty, replaces Event as the trigger: all
	// of these usage pairs must be pressed within
	// Parameters.SimultaneousThreshold of one another before the
	// manipulator engages (spec.md §4.5.2 "simultaneous").
	Simultaneous []event.UsagePair

	// SimultaneousOptions tunes how a pending Simultaneous group reacts
	// to an unrelated key in between (spec.md §4.5.2 "simultaneous
	// options").
	SimultaneousOptions SimultaneousOptions
}

// SimultaneousOptions is spec.md §4.5.2's "simultaneous options" bundle.
type SimultaneousOptions struct {
	// DetectKeyDownUninterruptedly, when true, keeps a pending
	// Simultaneous group alive across an intervening unrelated key-down
	// instead of canceling it outright; matching is then abandoned only
	// when the window expires or a pending member is released (spec.md
	// §4.5.2 edge case, §9).
	DetectKeyDownUninterruptedly bool
}

// modifiersSatisfy reports whether the currently pressed modifier set
// is compatible with this from-spec's mandatory/optional constraint.
func (f From) modifiersSatisfy(pressed map[event.ModifierFlag]bool) bool {
	for _, m := range f.MandatoryModifiers {
		if !pressed[m] {
			return false
		}
	}
	if f.AnyOptionalModifier {
		return true
	}
	allowed := make(map[event.ModifierFlag]bool, len(f.MandatoryModifiers)+len(f.OptionalModifiers))
	for _, m := range f.MandatoryModifiers {
		allowed[m] = true
	}
	for _, m := range f.OptionalModifiers {
		allowed[m] = true
	}
	for m, held := range pressed {
		if held && !allowed[m] {
			return false
		}
	}
	return true
}

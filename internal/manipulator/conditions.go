package manipulator

import (
	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
)

// Condition is one predicate a manipulator checks against the front
// entry's originating device and the input queue's manipulator
// environment before it is allowed to run (spec.md §4.5.1 "conditions").
type Condition interface {
	Matches(entry event.Entry, q *event.Queue) bool
}

// Conditions is an ordered, all-must-match list of Condition values,
// appended to a manipulator in configuration order.
type Conditions struct {
	list []Condition
}

// Append adds a condition to the end of the list (spec.md §4.5.1
// "push_back_condition").
func (c *Conditions) Append(cond Condition) {
	c.list = append(c.list, cond)
}

// AllMatch reports whether every condition matches. An empty list
// always matches.
func (c Conditions) AllMatch(entry event.Entry, q *event.Queue) bool {
	for _, cond := range c.list {
		if !cond.Matches(entry, q) {
			return false
		}
	}
	return true
}

// DeviceIf matches when the originating device's identifiers satisfy
// any one of the given selectors.
type DeviceIf struct {
	Identifiers []devid.Identifiers
}

func (c DeviceIf) Matches(entry event.Entry, q *event.Queue) bool {
	p, ok := q.Environment().DeviceProperties(entry.DeviceID)
	if !ok {
		return false
	}
	for _, sel := range c.Identifiers {
		if p.Matches(sel) {
			return true
		}
	}
	return false
}

// DeviceUnless is DeviceIf negated.
type DeviceUnless struct {
	Identifiers []devid.Identifiers
}

func (c DeviceUnless) Matches(entry event.Entry, q *event.Queue) bool {
	return !DeviceIf(c).Matches(entry, q)
}

// FrontmostApplicationIf matches when the cached frontmost application's
// bundle identifier appears in the list.
type FrontmostApplicationIf struct {
	BundleIdentifiers []string
}

func (c FrontmostApplicationIf) Matches(entry event.Entry, q *event.Queue) bool {
	cur := q.Environment().FrontmostApplication().BundleIdentifier
	for _, id := range c.BundleIdentifiers {
		if id == cur {
			return true
		}
	}
	return false
}

// FrontmostApplicationUnless is FrontmostApplicationIf negated.
type FrontmostApplicationUnless struct {
	BundleIdentifiers []string
}

func (c FrontmostApplicationUnless) Matches(entry event.Entry, q *event.Queue) bool {
	return !FrontmostApplicationIf(c).Matches(entry, q)
}

// InputSourceIf matches when the active input source's language code
// appears in the list.
type InputSourceIf struct {
	LanguageCodes []string
}

func (c InputSourceIf) Matches(entry event.Entry, q *event.Queue) bool {
	cur := q.Environment().InputSource().LanguageCode
	for _, lc := range c.LanguageCodes {
		if lc == cur {
			return true
		}
	}
	return false
}

// VariableIf matches when a named variable holds the given value. An
// unset variable reads as 0 (spec.md §3, Environment.Variable).
type VariableIf struct {
	Name  string
	Value int
}

func (c VariableIf) Matches(entry event.Entry, q *event.Queue) bool {
	return q.Environment().Variable(c.Name) == c.Value
}

// VariableUnless is VariableIf negated.
type VariableUnless struct {
	Name  string
	Value int
}

func (c VariableUnless) Matches(entry event.Entry, q *event.Queue) bool {
	return q.Environment().Variable(c.Name) != c.Value
}

package manipulator

import (
	"sync"
	"time"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
)

// Parameters holds the basic manipulator's per-instance timing
// thresholds (spec.md §4.5.2 "basic.simultaneous_threshold_milliseconds"
// and friends). Values are expressed in the event package's time-stamp
// unit so they can be compared against entry time stamps directly.
type Parameters struct {
	SimultaneousThreshold event.TimeStamp
	ToIfAloneTimeout      event.TimeStamp
	ToIfHeldDownThreshold event.TimeStamp
	ToDelayedActionDelay  event.TimeStamp
}

// DefaultParameters returns the thresholds spec.md §4.5.2 lists as the
// original source's defaults.
func DefaultParameters() Parameters {
	return Parameters{
		SimultaneousThreshold: event.Duration(50 * time.Millisecond),
		ToIfAloneTimeout:      event.Duration(1000 * time.Millisecond),
		ToIfHeldDownThreshold: event.Duration(500 * time.Millisecond),
		ToDelayedActionDelay:  event.Duration(500 * time.Millisecond),
	}
}

// BasicManipulator is the workhorse manipulator variant (spec.md
// §4.5.2): it engages on a matching from-event key-down, holds its
// output chain's last step pressed for the from-event's held duration,
// and releases it on the matching key-up, additionally firing
// to-if-alone, to-if-held-down, and to-delayed-action chains per the
// timing rules below.
//
// Grounded in spec.md §4.5.2's prose and the worked scenarios of §8: no
// basic_manipulator/basic.hpp source was present in the retrieval pack,
// so this state machine is built directly from the specification rather
// than ported from source (recorded in DESIGN.md).
type BasicManipulator struct {
	Conditions Conditions

	From From

	To                      []ToEvent
	ToIfAlone               []ToEvent
	ToIfHeldDown            []ToEvent
	ToDelayedActionInvoked  []ToEvent
	ToDelayedActionCanceled []ToEvent
	ToAfterKeyUp            []ToEvent

	Params Parameters

	mu      sync.Mutex
	valid   bool
	engaged bool

	deviceID           devid.ID
	keyDownAt          event.TimeStamp
	otherEventObserved bool
	heldDownFired      bool

	heldEvent     *event.Event
	heldModifiers []event.ModifierFlag

	// engagedKeys holds the full usage-pair set a Simultaneous engage
	// matched, so any one of them releasing can disengage. Left nil for
	// an ordinary single-key engage, where fromUp alone decides it.
	engagedKeys map[event.UsagePair]bool

	// pendingSimultaneous buffers the matched member key-downs of an
	// in-progress Simultaneous group, in arrival order, while waiting
	// for the rest of the set or the window's expiry (spec.md §4.5.2
	// "simultaneous").
	pendingSimultaneous []event.Entry
	pendingDeviceID     devid.ID

	delayedActionPending  bool
	delayedActionDeadline event.TimeStamp
	delayedActionDeviceID devid.ID
}

// NewBasicManipulator returns a manipulator ready to engage on from's
// trigger, emitting to on engage and releasing it on the matching
// key-up.
func NewBasicManipulator(from From, to []ToEvent) *BasicManipulator {
	return &BasicManipulator{
		valid:  true,
		From:   from,
		To:     to,
		Params: DefaultParameters(),
	}
}

func (m *BasicManipulator) Manipulate(frontEntry *event.Entry, inputQueue, outputQueue *event.Queue, now event.TimeStamp) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frontEntry.Validity == event.Invalid {
		return
	}
	// An invalidated manipulator never engages again, but one already
	// engaged still sees its own key-up so the in-flight chain completes.
	if !m.valid && !m.engaged {
		return
	}
	if !m.Conditions.AllMatch(*frontEntry, inputQueue) {
		return
	}

	up, ok := frontEntry.Event.IsMomentarySwitch()
	if !ok {
		if frontEntry.Event.Kind == event.KindDeviceUngrabbed && m.engaged && frontEntry.DeviceID == m.deviceID {
			m.emitRelease(outputQueue, frontEntry.Scheduled())
			m.engaged = false
		}
		return
	}

	fromUp, _ := m.From.Event.IsMomentarySwitch()

	switch {
	case !m.engaged && len(m.From.Simultaneous) > 0 && frontEntry.EventType == event.TypeKeyDown:
		m.handleSimultaneousKeyDown(frontEntry, inputQueue, outputQueue)

	case !m.engaged && len(m.pendingSimultaneous) > 0 && frontEntry.EventType == event.TypeKeyUp:
		m.handleSimultaneousKeyUp(frontEntry, up, outputQueue)

	case !m.engaged && len(m.From.Simultaneous) == 0 && frontEntry.EventType == event.TypeKeyDown && up == fromUp:
		pressed := inputQueue.ModifierFlagManager().Pressed()
		if fromFlag, ok := event.ModifierFlagForUsagePair(fromUp); ok {
			// The from-event's own key, if itself a modifier, was
			// already folded into the tracker by the push that put it
			// in the queue; it is not an "other" held modifier.
			delete(pressed, fromFlag)
		}
		if !m.From.modifiersSatisfy(pressed) {
			return
		}
		m.engage(frontEntry, outputQueue)

	case m.engaged && frontEntry.DeviceID == m.deviceID && frontEntry.EventType == event.TypeKeyUp && m.isEngagedTrigger(up, fromUp):
		m.disengage(frontEntry, outputQueue)

	case m.engaged && frontEntry.DeviceID == m.deviceID:
		m.observeOther(frontEntry, outputQueue)
	}
}

// isEngagedTrigger reports whether up is the key whose release should
// disengage the currently-engaged chain: any member of engagedKeys for a
// Simultaneous engage, or fromUp itself for an ordinary single-key one.
func (m *BasicManipulator) isEngagedTrigger(up, fromUp event.UsagePair) bool {
	if len(m.engagedKeys) > 0 {
		return m.engagedKeys[up]
	}
	return up == fromUp
}

// isSimultaneousMember reports whether up belongs to this manipulator's
// Simultaneous set.
func (m *BasicManipulator) isSimultaneousMember(up event.UsagePair) bool {
	for _, r := range m.From.Simultaneous {
		if r == up {
			return true
		}
	}
	return false
}

// handleSimultaneousKeyDown advances or resets a pending Simultaneous
// group on a new key-down (spec.md §4.5.2, the ENGAGED state's "on
// another matching key_down within simultaneous_threshold" transition,
// generalized to the pre-engage waiting state it implies).
func (m *BasicManipulator) handleSimultaneousKeyDown(frontEntry *event.Entry, inputQueue, outputQueue *event.Queue) {
	up, ok := frontEntry.Event.IsMomentarySwitch()
	if !ok {
		return
	}

	if !m.isSimultaneousMember(up) {
		if len(m.pendingSimultaneous) > 0 && !m.From.SimultaneousOptions.DetectKeyDownUninterruptedly {
			m.cancelPendingSimultaneous(outputQueue)
		}
		return
	}

	if len(m.pendingSimultaneous) > 0 && frontEntry.DeviceID != m.pendingDeviceID {
		m.cancelPendingSimultaneous(outputQueue)
	}
	if len(m.pendingSimultaneous) > 0 && frontEntry.Scheduled()-m.pendingSimultaneous[0].Scheduled() > m.Params.SimultaneousThreshold {
		m.cancelPendingSimultaneous(outputQueue)
	}

	for _, e := range m.pendingSimultaneous {
		if pu, _ := e.Event.IsMomentarySwitch(); pu == up {
			frontEntry.Invalidate() // auto-repeat of an already-pending key
			return
		}
	}

	m.pendingDeviceID = frontEntry.DeviceID
	m.pendingSimultaneous = append(m.pendingSimultaneous, *frontEntry)
	frontEntry.Invalidate()

	if len(m.pendingSimultaneous) < len(m.From.Simultaneous) {
		return
	}

	pressed := inputQueue.ModifierFlagManager().Pressed()
	if !m.From.modifiersSatisfy(pressed) {
		m.cancelPendingSimultaneous(outputQueue)
		return
	}

	m.engageSimultaneous(outputQueue)
}

// handleSimultaneousKeyUp cancels a pending Simultaneous group if the
// key being released is one of its buffered members: a key that goes up
// before the rest of the group completes can never finish it (spec.md
// §4.5.2 edge cases). The key-up entry itself is left untouched so it
// still reaches the output queue as a normal, unconsumed event.
func (m *BasicManipulator) handleSimultaneousKeyUp(frontEntry *event.Entry, up event.UsagePair, outputQueue *event.Queue) {
	for _, e := range m.pendingSimultaneous {
		if pu, _ := e.Event.IsMomentarySwitch(); pu == up {
			m.cancelPendingSimultaneous(outputQueue)
			return
		}
	}
}

// cancelPendingSimultaneous re-emits every buffered member key-down as
// itself, unconsumed, and clears the pending group.
func (m *BasicManipulator) cancelPendingSimultaneous(outputQueue *event.Queue) {
	for _, e := range m.pendingSimultaneous {
		outputQueue.PushBackEntry(e.DeviceID, e.EventTimeStamp, e.OriginalEvent, e.EventType, e.OriginalEvent, e.State, false, event.Valid)
	}
	m.pendingSimultaneous = nil
}

// engageSimultaneous is handleSimultaneousKeyDown's match-complete path:
// it mirrors engage but keys the held-duration clock off the first
// member pressed and remembers the whole set for isEngagedTrigger.
func (m *BasicManipulator) engageSimultaneous(outputQueue *event.Queue) {
	first := m.pendingSimultaneous[0]
	last := m.pendingSimultaneous[len(m.pendingSimultaneous)-1]

	members := make(map[event.UsagePair]bool, len(m.pendingSimultaneous))
	for _, e := range m.pendingSimultaneous {
		if pu, ok := e.Event.IsMomentarySwitch(); ok {
			members[pu] = true
		}
	}
	m.pendingSimultaneous = nil

	m.engaged = true
	m.engagedKeys = members
	m.deviceID = last.DeviceID
	m.keyDownAt = first.Scheduled()
	m.otherEventObserved = false
	m.heldDownFired = false

	m.emitPress(outputQueue, m.To, last.Scheduled())
}

func (m *BasicManipulator) engage(frontEntry *event.Entry, outputQueue *event.Queue) {
	frontEntry.Invalidate()

	m.engaged = true
	m.engagedKeys = nil
	m.deviceID = frontEntry.DeviceID
	m.keyDownAt = frontEntry.Scheduled()
	m.otherEventObserved = false
	m.heldDownFired = false

	m.emitPress(outputQueue, m.To, frontEntry.Scheduled())
}

func (m *BasicManipulator) disengage(frontEntry *event.Entry, outputQueue *event.Queue) {
	frontEntry.Invalidate()

	ts := frontEntry.Scheduled()
	m.emitRelease(outputQueue, ts)

	alone := !m.otherEventObserved
	withinTimeout := ts-m.keyDownAt <= m.Params.ToIfAloneTimeout
	if alone && withinTimeout && len(m.ToIfAlone) > 0 {
		m.emitTap(outputQueue, m.ToIfAlone, ts+1)
	}

	if len(m.ToAfterKeyUp) > 0 {
		m.emitTap(outputQueue, m.ToAfterKeyUp, ts+1)
	}

	if len(m.ToDelayedActionInvoked) > 0 || len(m.ToDelayedActionCanceled) > 0 {
		m.delayedActionPending = true
		m.delayedActionDeadline = ts + m.Params.ToDelayedActionDelay
		m.delayedActionDeviceID = m.deviceID
	}

	m.engaged = false
	m.engagedKeys = nil
}

// observeOther handles an unrelated switch event arriving while
// engaged: it cancels the pending to-if-alone chain, fires a pending
// to-delayed-action as canceled, and fires to-if-held-down once the
// threshold has already elapsed by the time this event arrived.
func (m *BasicManipulator) observeOther(frontEntry *event.Entry, outputQueue *event.Queue) {
	if frontEntry.EventType != event.TypeKeyDown {
		return
	}

	m.otherEventObserved = true

	if m.delayedActionPending {
		m.fireDelayedAction(outputQueue, frontEntry.Scheduled(), false)
	}

	if !m.heldDownFired && len(m.ToIfHeldDown) > 0 && frontEntry.Scheduled()-m.keyDownAt >= m.Params.ToIfHeldDownThreshold {
		m.heldDownFired = true
		m.emitTap(outputQueue, m.ToIfHeldDown, frontEntry.Scheduled())
	}
}

// CheckTimers fires a to-if-held-down or to-delayed-action chain whose
// deadline has elapsed with no new input event to trigger it (spec.md
// §4.5.2: these are genuine timeouts, not just event-arrival checks).
func (m *BasicManipulator) CheckTimers(now event.TimeStamp, outputQueue *event.Queue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pendingSimultaneous) > 0 && now-m.pendingSimultaneous[0].Scheduled() > m.Params.SimultaneousThreshold {
		m.cancelPendingSimultaneous(outputQueue)
	}

	if m.engaged && !m.heldDownFired && len(m.ToIfHeldDown) > 0 && now-m.keyDownAt >= m.Params.ToIfHeldDownThreshold {
		m.heldDownFired = true
		m.emitTap(outputQueue, m.ToIfHeldDown, now)
	}

	if m.delayedActionPending && now >= m.delayedActionDeadline {
		m.fireDelayedAction(outputQueue, now, true)
	}
}

func (m *BasicManipulator) NextDeadline() (event.TimeStamp, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	have := false
	var d event.TimeStamp

	if len(m.pendingSimultaneous) > 0 {
		cand := m.pendingSimultaneous[0].Scheduled() + m.Params.SimultaneousThreshold + 1
		if !have || cand < d {
			d, have = cand, true
		}
	}
	if m.engaged && !m.heldDownFired && len(m.ToIfHeldDown) > 0 {
		cand := m.keyDownAt + m.Params.ToIfHeldDownThreshold
		if !have || cand < d {
			d, have = cand, true
		}
	}
	if m.delayedActionPending {
		cand := m.delayedActionDeadline
		if !have || cand < d {
			d, have = cand, true
		}
	}
	return d, have
}

func (m *BasicManipulator) fireDelayedAction(outputQueue *event.Queue, ts event.TimeStamp, invoked bool) {
	m.delayedActionPending = false
	if invoked {
		m.emitTap(outputQueue, m.ToDelayedActionInvoked, ts)
	} else {
		m.emitTap(outputQueue, m.ToDelayedActionCanceled, ts)
	}
}

func (m *BasicManipulator) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engaged || m.delayedActionPending || len(m.pendingSimultaneous) > 0
}

func (m *BasicManipulator) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

func (m *BasicManipulator) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valid = false
}

func (m *BasicManipulator) NeedsVirtualHIDPointing() bool {
	for _, group := range [][]ToEvent{m.To, m.ToIfAlone, m.ToIfHeldDown, m.ToDelayedActionInvoked, m.ToDelayedActionCanceled, m.ToAfterKeyUp} {
		for _, to := range group {
			if to.Event.Kind == event.KindPointingMotion || to.Event.Kind == event.KindMouseKey {
				return true
			}
		}
	}
	return false
}

func (m *BasicManipulator) HandleDeviceUngrabbed(deviceID devid.ID, outputQueue *event.Queue, now event.TimeStamp) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engaged && m.deviceID == deviceID {
		m.emitRelease(outputQueue, now)
		m.engaged = false
	}
	if m.delayedActionPending && m.delayedActionDeviceID == deviceID {
		m.delayedActionPending = false
	}
	if len(m.pendingSimultaneous) > 0 && m.pendingDeviceID == deviceID {
		m.cancelPendingSimultaneous(outputQueue)
	}
}

// emitPress synthesizes the press side of a to-chain. Every step but
// the last (or the step marked Halt) is a full tap: pressed, then
// released immediately, including its accompanying modifiers. The last
// step is left pressed, mirroring the from-event's held duration, and
// released later by emitRelease.
func (m *BasicManipulator) emitPress(outputQueue *event.Queue, toEvents []ToEvent, baseTS event.TimeStamp) {
	ts := baseTS
	m.heldEvent = nil
	m.heldModifiers = nil

	for i, to := range toEvents {
		last := i == len(toEvents)-1 || to.Halt

		for _, mod := range to.Modifiers {
			ts++
			modEv := ModifierEvent(mod)
			outputQueue.PushBackEntry(m.deviceID, event.NewEventTimeStamp(ts), modEv, event.TypeKeyDown, modEv, event.OriginVirtualEvent, to.Lazy, event.Valid)
		}

		ts++
		outputQueue.PushBackEntry(m.deviceID, event.NewEventTimeStamp(ts), to.Event, event.TypeKeyDown, to.Event, event.OriginVirtualEvent, to.Lazy, event.Valid)

		if last {
			ev := to.Event
			m.heldEvent = &ev
			m.heldModifiers = append([]event.ModifierFlag(nil), to.Modifiers...)
			return
		}

		ts++
		outputQueue.PushBackEntry(m.deviceID, event.NewEventTimeStamp(ts), to.Event, event.TypeKeyUp, to.Event, event.OriginVirtualEvent, to.Lazy, event.Valid)
		for j := len(to.Modifiers) - 1; j >= 0; j-- {
			ts++
			modEv := ModifierEvent(to.Modifiers[j])
			outputQueue.PushBackEntry(m.deviceID, event.NewEventTimeStamp(ts), modEv, event.TypeKeyUp, modEv, event.OriginVirtualEvent, to.Lazy, event.Valid)
		}
	}
}

// emitRelease releases the to-chain's held final step, if any.
func (m *BasicManipulator) emitRelease(outputQueue *event.Queue, baseTS event.TimeStamp) {
	if m.heldEvent == nil {
		return
	}

	ts := baseTS
	outputQueue.PushBackEntry(m.deviceID, event.NewEventTimeStamp(ts), *m.heldEvent, event.TypeKeyUp, *m.heldEvent, event.OriginVirtualEvent, false, event.Valid)
	for j := len(m.heldModifiers) - 1; j >= 0; j-- {
		ts++
		modEv := ModifierEvent(m.heldModifiers[j])
		outputQueue.PushBackEntry(m.deviceID, event.NewEventTimeStamp(ts), modEv, event.TypeKeyUp, modEv, event.OriginVirtualEvent, false, event.Valid)
	}

	m.heldEvent = nil
	m.heldModifiers = nil
}

// emitTap synthesizes a full press-then-release chain for every step,
// used for to-if-alone/to-if-held-down/to-delayed-action/to-after-key-up
// chains, none of which track an ongoing physical key.
func (m *BasicManipulator) emitTap(outputQueue *event.Queue, toEvents []ToEvent, baseTS event.TimeStamp) {
	ts := baseTS
	for _, to := range toEvents {
		for _, mod := range to.Modifiers {
			ts++
			modEv := ModifierEvent(mod)
			outputQueue.PushBackEntry(m.deviceID, event.NewEventTimeStamp(ts), modEv, event.TypeKeyDown, modEv, event.OriginVirtualEvent, to.Lazy, event.Valid)
		}

		ts++
		outputQueue.PushBackEntry(m.deviceID, event.NewEventTimeStamp(ts), to.Event, event.TypeKeyDown, to.Event, event.OriginVirtualEvent, to.Lazy, event.Valid)
		ts++
		outputQueue.PushBackEntry(m.deviceID, event.NewEventTimeStamp(ts), to.Event, event.TypeKeyUp, to.Event, event.OriginVirtualEvent, to.Lazy, event.Valid)

		for j := len(to.Modifiers) - 1; j >= 0; j-- {
			ts++
			modEv := ModifierEvent(to.Modifiers[j])
			outputQueue.PushBackEntry(m.deviceID, event.NewEventTimeStamp(ts), modEv, event.TypeKeyUp, modEv, event.OriginVirtualEvent, to.Lazy, event.Valid)
		}

		if to.Halt {
			break
		}
	}
}

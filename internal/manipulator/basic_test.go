package manipulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
)

func f1() event.UsagePair { return event.UsagePair{UsagePage: 0x07, Usage: 0x3A} }
func missionControl() event.UsagePair { return event.UsagePair{UsagePage: 0x0C, Usage: 0x29} }
func f2() event.UsagePair   { return event.UsagePair{UsagePage: 0x07, Usage: 0x3B} }
func tabKey() event.UsagePair { return event.UsagePair{UsagePage: 0x07, Usage: 0x2B} }
func capsLock() event.UsagePair {
	return event.UsagePair{UsagePage: event.UsagePageKeyboardOrKeypad, Usage: event.UsageCapsLock}
}
func escape() event.UsagePair { return event.UsagePair{UsagePage: 0x07, Usage: 0x29} }

// feed pushes one entry into in, drives it through m, and erases it,
// mirroring one pass of the enclosing manager's drive loop.
func feed(m *BasicManipulator, in, out *event.Queue, dev devid.ID, ts event.TimeStamp, up event.UsagePair, et event.Type) event.Entry {
	ev := event.MomentarySwitchEvent(up)
	in.PushBackEntry(dev, event.NewEventTimeStamp(ts), ev, et, ev, event.OriginOriginal, false, event.Valid)
	front := in.GetFrontEvent()
	m.Manipulate(&front, in, out, ts)
	in.SetEntryAt(0, front)
	in.EraseFrontEvent()
	return front
}

func TestBasicManipulator_SimpleRemap(t *testing.T) {
	dev := devid.Next()
	in, out := event.New("in"), event.New("out")
	m := NewBasicManipulator(
		From{Event: event.MomentarySwitchEvent(f1())},
		[]ToEvent{{Event: event.MomentarySwitchEvent(missionControl())}},
	)

	feed(m, in, out, dev, 1000, f1(), event.TypeKeyDown)
	feed(m, in, out, dev, 2000, f1(), event.TypeKeyUp)

	require.Len(t, out.Entries(), 2)
	down, up := out.Entries()[0], out.Entries()[1]

	assert.Equal(t, event.TypeKeyDown, down.EventType)
	mcUp, ok := down.Event.IsMomentarySwitch()
	require.True(t, ok)
	assert.Equal(t, missionControl(), mcUp)
	assert.Equal(t, event.TimeStamp(1001), down.Scheduled())

	assert.Equal(t, event.TypeKeyUp, up.EventType)
	assert.Equal(t, event.TimeStamp(2000), up.Scheduled())
}

func TestBasicManipulator_ToModifierStaysHeldAcrossUnrelatedKey(t *testing.T) {
	dev := devid.Next()
	in, out := event.New("in"), event.New("out")
	m := NewBasicManipulator(
		From{Event: event.MomentarySwitchEvent(f2())},
		[]ToEvent{{Event: ModifierEvent(event.ModifierLeftShift)}},
	)

	feed(m, in, out, dev, 1000, f2(), event.TypeKeyDown)
	tabEntry := feed(m, in, out, dev, 1010, tabKey(), event.TypeKeyDown) // unrelated, passes through untouched
	feed(m, in, out, dev, 1020, f2(), event.TypeKeyUp)

	// The manipulator only emits for f2; the tab entry was left
	// untouched (still valid) for the connector to forward elsewhere.
	require.Len(t, out.Entries(), 2)

	down := out.Entries()[0]
	shiftUp, ok := down.Event.IsMomentarySwitch()
	require.True(t, ok)
	assert.Equal(t, event.ModifierLeftShift, mustFlag(shiftUp))
	assert.Equal(t, event.TypeKeyDown, down.EventType)

	up := out.Entries()[1]
	assert.Equal(t, event.TypeKeyUp, up.EventType)
	assert.Equal(t, event.TimeStamp(1020), up.Scheduled())

	assert.Equal(t, event.Valid, tabEntry.Validity)
}

func TestBasicManipulator_ToIfAloneFiresWhenReleasedQuicklyAlone(t *testing.T) {
	dev := devid.Next()
	in, out := event.New("in"), event.New("out")
	m := NewBasicManipulator(
		From{Event: event.MomentarySwitchEvent(capsLock())},
		[]ToEvent{{Event: ModifierEvent(event.ModifierLeftControl)}},
	)
	m.ToIfAlone = []ToEvent{{Event: event.MomentarySwitchEvent(escape())}}

	feed(m, in, out, dev, 1000, capsLock(), event.TypeKeyDown)
	feed(m, in, out, dev, 1020, capsLock(), event.TypeKeyUp)

	// left_control down, left_control up, escape down, escape up.
	require.Len(t, out.Entries(), 4)
	assert.Equal(t, event.TypeKeyDown, out.Entries()[0].EventType)
	assert.Equal(t, event.TypeKeyUp, out.Entries()[1].EventType)
	assert.Equal(t, event.TimeStamp(1020), out.Entries()[1].Scheduled())

	escUp, ok := out.Entries()[2].Event.IsMomentarySwitch()
	require.True(t, ok)
	assert.Equal(t, escape(), escUp)
	assert.Equal(t, event.TypeKeyDown, out.Entries()[2].EventType)
	assert.Equal(t, event.TypeKeyUp, out.Entries()[3].EventType)
}

func TestBasicManipulator_ToIfAloneSuppressedByInterveningKey(t *testing.T) {
	dev := devid.Next()
	in, out := event.New("in"), event.New("out")
	m := NewBasicManipulator(
		From{Event: event.MomentarySwitchEvent(capsLock())},
		[]ToEvent{{Event: ModifierEvent(event.ModifierLeftControl)}},
	)
	m.ToIfAlone = []ToEvent{{Event: event.MomentarySwitchEvent(escape())}}

	feed(m, in, out, dev, 2000, capsLock(), event.TypeKeyDown)
	feed(m, in, out, dev, 2010, tabKey(), event.TypeKeyDown)
	feed(m, in, out, dev, 2020, capsLock(), event.TypeKeyUp)

	// Only left_control down/up; no escape tap.
	require.Len(t, out.Entries(), 2)
	assert.Equal(t, event.TypeKeyDown, out.Entries()[0].EventType)
	assert.Equal(t, event.TypeKeyUp, out.Entries()[1].EventType)
}

func TestBasicManipulator_ToIfHeldDownFiresAfterThreshold(t *testing.T) {
	dev := devid.Next()
	in, out := event.New("in"), event.New("out")
	m := NewBasicManipulator(
		From{Event: event.MomentarySwitchEvent(capsLock())},
		[]ToEvent{{Event: ModifierEvent(event.ModifierLeftControl)}},
	)
	m.ToIfHeldDown = []ToEvent{{Event: event.MomentarySwitchEvent(escape())}}

	feed(m, in, out, dev, 0, capsLock(), event.TypeKeyDown)
	// An unrelated key arriving after the threshold elapsed should
	// trigger the held-down chain once.
	feed(m, in, out, dev, event.TimeStamp(600_000_000), tabKey(), event.TypeKeyDown)

	require.GreaterOrEqual(t, len(out.Entries()), 3)
	assert.True(t, m.heldDownFired)
}

func mustFlag(up event.UsagePair) event.ModifierFlag {
	f, _ := event.ModifierFlagForUsagePair(up)
	return f
}

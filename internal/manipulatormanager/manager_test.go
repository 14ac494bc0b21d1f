package manipulatormanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
	"github.com/karabiner-grabberd/grabberd/internal/manipulator"
)

func f1() event.UsagePair             { return event.UsagePair{UsagePage: 0x07, Usage: 0x3A} }
func missionControl() event.UsagePair { return event.UsagePair{UsagePage: 0x0C, Usage: 0x29} }
func tabKey() event.UsagePair         { return event.UsagePair{UsagePage: 0x07, Usage: 0x2B} }

func TestManager_RemapsMatchedAndPassesThroughUnmatched(t *testing.T) {
	dev := devid.Next()
	in, out := event.New("in"), event.New("out")

	mgr := New()
	mgr.Append(manipulator.NewBasicManipulator(
		manipulator.From{Event: event.MomentarySwitchEvent(f1())},
		[]manipulator.ToEvent{{Event: event.MomentarySwitchEvent(missionControl())}},
	))

	tabEv := event.MomentarySwitchEvent(tabKey())
	in.PushBackEntry(dev, event.NewEventTimeStamp(100), tabEv, event.TypeKeyDown, tabEv, event.OriginOriginal, false, event.Valid)
	f1Ev := event.MomentarySwitchEvent(f1())
	in.PushBackEntry(dev, event.NewEventTimeStamp(200), f1Ev, event.TypeKeyDown, f1Ev, event.OriginOriginal, false, event.Valid)
	in.PushBackEntry(dev, event.NewEventTimeStamp(300), f1Ev, event.TypeKeyUp, f1Ev, event.OriginOriginal, false, event.Valid)

	mgr.Manipulate(in, out, 1000)

	require.True(t, in.Empty())
	require.Len(t, out.Entries(), 3)

	tabUp, ok := out.Entries()[0].Event.IsMomentarySwitch()
	require.True(t, ok)
	assert.Equal(t, tabKey(), tabUp)

	mcUp, ok := out.Entries()[1].Event.IsMomentarySwitch()
	require.True(t, ok)
	assert.Equal(t, missionControl(), mcUp)
	assert.Equal(t, event.TypeKeyDown, out.Entries()[1].EventType)
	assert.Equal(t, event.TypeKeyUp, out.Entries()[2].EventType)
}

func TestManager_DoesNotDrainEntriesScheduledAfterNow(t *testing.T) {
	dev := devid.Next()
	in, out := event.New("in"), event.New("out")
	mgr := New()

	ev := event.MomentarySwitchEvent(tabKey())
	in.PushBackEntry(dev, event.NewEventTimeStamp(5000), ev, event.TypeKeyDown, ev, event.OriginOriginal, false, event.Valid)

	mgr.Manipulate(in, out, 100)

	assert.False(t, in.Empty())
	assert.Empty(t, out.Entries())
}

func TestManager_InvalidateManipulatorsPrunesOnceIdle(t *testing.T) {
	dev := devid.Next()
	in, out := event.New("in"), event.New("out")
	mgr := New()

	bm := manipulator.NewBasicManipulator(
		manipulator.From{Event: event.MomentarySwitchEvent(f1())},
		[]manipulator.ToEvent{{Event: event.MomentarySwitchEvent(missionControl())}},
	)
	mgr.Append(bm)
	require.Equal(t, 1, mgr.Len())

	mgr.InvalidateManipulators()

	f1Ev := event.MomentarySwitchEvent(f1())
	in.PushBackEntry(dev, event.NewEventTimeStamp(100), f1Ev, event.TypeKeyDown, f1Ev, event.OriginOriginal, false, event.Valid)
	mgr.Manipulate(in, out, 1000)

	// Invalidated and idle (never engaged): pruned.
	assert.Equal(t, 0, mgr.Len())
	// An invalidated manipulator does not engage, so the key passes
	// through untouched.
	require.Len(t, out.Entries(), 1)
	passthroughUp, ok := out.Entries()[0].Event.IsMomentarySwitch()
	require.True(t, ok)
	assert.Equal(t, f1(), passthroughUp)
}

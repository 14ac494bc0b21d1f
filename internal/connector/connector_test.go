package connector

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
func f2() event.UsagePair             { return event.UsagePair{UsagePage: 0x07, Usage: 0x3B} }
func playPause() event.UsagePair      { return event.UsagePair{UsagePage: 0x0C, Usage: 0xCD} }

func TestConnector_ChainsStagesInOrder(t *testing.T) {
	dev := devid.Next()
	c := New()

	c.Manager(StageSimpleModifications).Append(manipulator.NewBasicManipulator(
		manipulator.From{Event: event.MomentarySwitchEvent(f1())},
		[]manipulator.ToEvent{{Event: event.MomentarySwitchEvent(missionControl())}},
	))
	c.Manager(StageComplexModifications).Append(manipulator.NewBasicManipulator(
		manipulator.From{Event: event.MomentarySwitchEvent(missionControl())},
		[]manipulator.ToEvent{{Event: event.MomentarySwitchEvent(playPause())}},
	))

	ev := event.MomentarySwitchEvent(f1())
	c.InputQueue().PushBackEntry(dev, event.NewEventTimeStamp(100), ev, event.TypeKeyDown, ev, event.OriginOriginal, false, event.Valid)

	c.Manipulate(1_000_000_000)

	out := c.DrainFinalOutput()
	require.Len(t, out, 1)
	up, ok := out[0].Event.IsMomentarySwitch()
	require.True(t, ok)
	assert.Equal(t, playPause(), up)
}

func TestConnector_UnmatchedEntryReachesFinalOutputUnchanged(t *testing.T) {
	dev := devid.Next()
	c := New()

	ev := event.MomentarySwitchEvent(f2())
	c.InputQueue().PushBackEntry(dev, event.NewEventTimeStamp(100), ev, event.TypeKeyDown, ev, event.OriginOriginal, false, event.Valid)

	c.Manipulate(1_000_000_000)

	out := c.DrainFinalOutput()
	require.Len(t, out, 1)
	up, ok := out[0].Event.IsMomentarySwitch()
	require.True(t, ok)
	assert.Equal(t, f2(), up)
}

func TestConnector_MinInputEventTimeStampReflectsPendingTimer(t *testing.T) {
	dev := devid.Next()
	c := New()

	bm := manipulator.NewBasicManipulator(
		manipulator.From{Event: event.MomentarySwitchEvent(f1())},
		[]manipulator.ToEvent{{Event: event.MomentarySwitchEvent(missionControl())}},
	)
	bm.ToIfHeldDown = []manipulator.ToEvent{{Event: event.MomentarySwitchEvent(playPause())}}
	c.Manager(StageSimpleModifications).Append(bm)

	ev := event.MomentarySwitchEvent(f1())
	c.InputQueue().PushBackEntry(dev, event.NewEventTimeStamp(0), ev, event.TypeKeyDown, ev, event.OriginOriginal, false, event.Valid)
	// The engaged press is emitted at time stamp 1; driving to 1 lets it
	// drain through every later stage, leaving only the held-down timer.
	c.Manipulate(1)

	d, ok := c.MinInputEventTimeStamp()
	require.True(t, ok)
	assert.Equal(t, bm.Params.ToIfHeldDownThreshold, d)
}

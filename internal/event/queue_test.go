package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
)

func tab() UsagePair   { return UsagePair{UsagePageKeyboardOrKeypad, 0x2B} }
func shift() UsagePair { return UsagePair{UsagePageKeyboardOrKeypad, UsageLeftShift} }

func TestQueue_ReordersConcurrentModifierBeforeKeyDown(t *testing.T) {
	q := New("test")
	id := devid.Next()
	ts := NewEventTimeStamp(100)

	// Device delivers [tab, left_shift] in one HID report: non-modifier
	// arrives first in push order, but spec.md requires the modifier to
	// be ordered before a concurrent non-modifier key-down.
	q.PushBackEntry(id, ts, MomentarySwitchEvent(tab()), TypeKeyDown, MomentarySwitchEvent(tab()), OriginOriginal, false, Valid)
	q.PushBackEntry(id, ts, MomentarySwitchEvent(shift()), TypeKeyDown, MomentarySwitchEvent(shift()), OriginOriginal, false, Valid)

	require.Equal(t, 2, q.Len())
	assert.Equal(t, shift(), q.Entries()[0].Event.MomentarySwitch)
	assert.Equal(t, tab(), q.Entries()[1].Event.MomentarySwitch)
}

func TestQueue_ReordersConcurrentModifierAfterKeyUp(t *testing.T) {
	q := New("test")
	id := devid.Next()
	ts := NewEventTimeStamp(200)

	q.PushBackEntry(id, ts, MomentarySwitchEvent(shift()), TypeKeyUp, MomentarySwitchEvent(shift()), OriginOriginal, false, Valid)
	q.PushBackEntry(id, ts, MomentarySwitchEvent(tab()), TypeKeyUp, MomentarySwitchEvent(tab()), OriginOriginal, false, Valid)

	assert.Equal(t, tab(), q.Entries()[0].Event.MomentarySwitch)
	assert.Equal(t, shift(), q.Entries()[1].Event.MomentarySwitch)
}

func TestQueue_NoReorderAcrossDifferentTimeStamps(t *testing.T) {
	q := New("test")
	id := devid.Next()

	q.PushBackEntry(id, NewEventTimeStamp(100), MomentarySwitchEvent(tab()), TypeKeyDown, MomentarySwitchEvent(tab()), OriginOriginal, false, Valid)
	q.PushBackEntry(id, NewEventTimeStamp(200), MomentarySwitchEvent(shift()), TypeKeyDown, MomentarySwitchEvent(shift()), OriginOriginal, false, Valid)

	assert.Equal(t, tab(), q.Entries()[0].Event.MomentarySwitch)
	assert.Equal(t, shift(), q.Entries()[1].Event.MomentarySwitch)
}

func TestQueue_SwapIsIdempotentOnAlreadySortedQueue(t *testing.T) {
	q := New("test")
	id := devid.Next()
	ts := NewEventTimeStamp(300)

	q.PushBackEntry(id, ts, MomentarySwitchEvent(shift()), TypeKeyDown, MomentarySwitchEvent(shift()), OriginOriginal, false, Valid)
	q.PushBackEntry(id, ts, MomentarySwitchEvent(tab()), TypeKeyDown, MomentarySwitchEvent(tab()), OriginOriginal, false, Valid)
	before := append([]Entry(nil), q.Entries()...)

	q.bubbleFromTail()

	assert.Equal(t, before, q.Entries())
}

func TestQueue_ErasingFrontResetsTimeStampDelay(t *testing.T) {
	q := New("test")
	id := devid.Next()
	q.AddTimeStampDelay(50)
	q.PushBackEntry(id, NewEventTimeStamp(0), MomentarySwitchEvent(tab()), TypeKeyDown, MomentarySwitchEvent(tab()), OriginOriginal, false, Valid)

	require.Equal(t, TimeStamp(50), q.Entries()[0].EventTimeStamp.TimeStamp)

	q.EraseFrontEvent()
	assert.Equal(t, TimeStamp(0), q.TimeStampDelay())
}

func TestQueue_NonModifierKeyDownClearsStickyModifiers(t *testing.T) {
	q := New("test")
	id := devid.Next()

	q.ModifierFlagManager().IncreaseSticky(ModifierLeftShift, id)
	require.True(t, q.ModifierFlagManager().IsPressed(ModifierLeftShift))

	q.PushBackEntry(id, NewEventTimeStamp(0), MomentarySwitchEvent(tab()), TypeKeyDown, MomentarySwitchEvent(tab()), OriginOriginal, false, Valid)

	assert.False(t, q.ModifierFlagManager().IsPressed(ModifierLeftShift))
}

func TestQueue_DeviceUngrabbedClearsDeviceProperties(t *testing.T) {
	q := New("test")
	id := devid.Next()
	props := devid.Properties{DeviceID: id, Product: "Test Keyboard"}

	q.PushBackEntry(id, NewEventTimeStamp(0), DeviceGrabbedEvent(props), TypeSingle, DeviceGrabbedEvent(props), OriginVirtualEvent, false, Valid)
	_, ok := q.Environment().DeviceProperties(id)
	require.True(t, ok)

	q.PushBackEntry(id, NewEventTimeStamp(1), DeviceUngrabbedEvent(), TypeSingle, DeviceUngrabbedEvent(), OriginVirtualEvent, false, Valid)
	_, ok = q.Environment().DeviceProperties(id)
	assert.False(t, ok)
}

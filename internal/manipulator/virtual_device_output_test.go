package manipulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
	"github.com/karabiner-grabberd/grabberd/internal/virtualhid"
)

func leftShift() event.UsagePair {
	return event.UsagePair{UsagePage: event.UsagePageKeyboardOrKeypad, Usage: event.UsageLeftShift}
}

// feedSwitch drives one momentary-switch entry directly through v,
// mirroring the single manipulator the post-event-to-virtual-devices
// manager ever holds.
func feedSwitch(v *VirtualDeviceOutput, dev devid.ID, up event.UsagePair, et event.Type, lazy bool, ts event.TimeStamp) {
	ev := event.MomentarySwitchEvent(up)
	entry := event.NewEntry(dev, event.NewEventTimeStamp(ts), ev, et, event.OriginOriginal)
	entry.Lazy = lazy
	q := event.New("scratch")
	v.Manipulate(&entry, q, q, ts)
}

func TestVirtualDeviceOutput_RemappedModifierSetsModifierByteNotKeys(t *testing.T) {
	dev := devid.Next()
	vh := virtualhid.NewNull()
	v := NewVirtualDeviceOutput(vh, nil)

	feedSwitch(v, dev, leftShift(), event.TypeKeyDown, false, 1000)

	report := vh.LastKeyboardReport()
	assert.Equal(t, byte(1<<1), report.Modifiers, "left_shift is bit 1 of the modifier byte")
	assert.Equal(t, [6]byte{}, report.Keys, "a modifier must never land in the rolling key array")
}

func TestVirtualDeviceOutput_KeyUpReleasesOnlyThatKey(t *testing.T) {
	dev := devid.Next()
	vh := virtualhid.NewNull()
	v := NewVirtualDeviceOutput(vh, nil)

	a := event.UsagePair{UsagePage: event.UsagePageKeyboardOrKeypad, Usage: 0x04}
	b := event.UsagePair{UsagePage: event.UsagePageKeyboardOrKeypad, Usage: 0x05}

	feedSwitch(v, dev, a, event.TypeKeyDown, false, 1000)
	feedSwitch(v, dev, b, event.TypeKeyDown, false, 1001)
	feedSwitch(v, dev, a, event.TypeKeyUp, false, 1002)

	report := vh.LastKeyboardReport()
	assert.Equal(t, byte(0x05), report.Keys[0], "releasing a still leaves b held, not an all-zero report")
	assert.Equal(t, byte(0), report.Keys[1])
}

func TestVirtualDeviceOutput_LazyModifierDeferredUntilNonModifierFollows(t *testing.T) {
	dev := devid.Next()
	vh := virtualhid.NewNull()
	v := NewVirtualDeviceOutput(vh, nil)

	feedSwitch(v, dev, leftShift(), event.TypeKeyDown, true, 1000)
	require.Equal(t, byte(0), vh.LastKeyboardReport().Modifiers, "a lazy modifier press must not post until a non-modifier needs it")

	key := event.UsagePair{UsagePage: event.UsagePageKeyboardOrKeypad, Usage: 0x06}
	feedSwitch(v, dev, key, event.TypeKeyDown, false, 1010)

	report := vh.LastKeyboardReport()
	assert.Equal(t, byte(1<<1), report.Modifiers, "the deferred modifier must accompany the key that needed it")
	assert.Equal(t, byte(0x06), report.Keys[0])
}

func TestVirtualDeviceOutput_LazyModifierReleaseDeferredSymmetrically(t *testing.T) {
	dev := devid.Next()
	vh := virtualhid.NewNull()
	v := NewVirtualDeviceOutput(vh, nil)

	feedSwitch(v, dev, leftShift(), event.TypeKeyDown, false, 1000)
	require.Equal(t, byte(1<<1), vh.LastKeyboardReport().Modifiers)

	feedSwitch(v, dev, leftShift(), event.TypeKeyUp, true, 1010)
	assert.Equal(t, byte(1<<1), vh.LastKeyboardReport().Modifiers, "a lazy release must not drop the bit until a non-modifier arrives")

	key := event.UsagePair{UsagePage: event.UsagePageKeyboardOrKeypad, Usage: 0x07}
	feedSwitch(v, dev, key, event.TypeKeyDown, false, 1020)
	assert.Equal(t, byte(0), vh.LastKeyboardReport().Modifiers, "the deferred release must finally take effect")
}

func TestVirtualDeviceOutput_FlushCoalescesPointingMotion(t *testing.T) {
	dev := devid.Next()
	vh := virtualhid.NewNull()
	v := NewVirtualDeviceOutput(vh, nil)

	q := event.New("scratch")
	m1 := event.PointingMotionEvent(event.PointingMotion{DX: 5})
	m2 := event.PointingMotionEvent(event.PointingMotion{DX: 3, DY: 2})

	e1 := event.NewEntry(dev, event.NewEventTimeStamp(1000), m1, event.TypeSingle, event.OriginOriginal)
	e2 := event.NewEntry(dev, event.NewEventTimeStamp(1001), m2, event.TypeSingle, event.OriginOriginal)
	v.Manipulate(&e1, q, q, 1000)
	v.Manipulate(&e2, q, q, 1001)

	v.Flush()

	report := vh.LastPointingReport()
	assert.Equal(t, int8(8), report.X, "two motions in the same drive must coalesce into one report")
	assert.Equal(t, int8(2), report.Y)
}

func TestVirtualDeviceOutput_DeviceKeysAndPointingButtonsAreReleasedResetsReport(t *testing.T) {
	dev := devid.Next()
	vh := virtualhid.NewNull()
	v := NewVirtualDeviceOutput(vh, nil)

	key := event.UsagePair{UsagePage: event.UsagePageKeyboardOrKeypad, Usage: 0x04}
	feedSwitch(v, dev, key, event.TypeKeyDown, false, 1000)
	require.NotEqual(t, [6]byte{}, vh.LastKeyboardReport().Keys)

	q := event.New("scratch")
	ev := event.KeysAndButtonsReleasedEvent()
	entry := event.NewEntry(dev, event.NewEventTimeStamp(1010), ev, event.TypeSingle, event.OriginVirtualEvent)
	v.Manipulate(&entry, q, q, 1010)

	assert.Equal(t, virtualhid.KeyboardReport{}, vh.LastKeyboardReport())
}

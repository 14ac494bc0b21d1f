package hidvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karabiner-grabberd/grabberd/internal/event"
)

func TestConvert_MomentarySwitch(t *testing.T) {
	out := Convert([]RawValue{
		{UsagePage: 0x07, Usage: 0x04, IntegerValue: 1, TimeStamp: 10},
	}, false)

	require.Len(t, out, 1)
	assert.Equal(t, event.TypeKeyDown, out[0].EventType)
	up, ok := out[0].Event.IsMomentarySwitch()
	require.True(t, ok)
	assert.Equal(t, event.UsagePair{UsagePage: 0x07, Usage: 0x04}, up)
}

func TestConvert_KeyUpOnZeroValue(t *testing.T) {
	out := Convert([]RawValue{
		{UsagePage: 0x07, Usage: 0x04, IntegerValue: 0, TimeStamp: 10},
	}, false)

	require.Len(t, out, 1)
	assert.Equal(t, event.TypeKeyUp, out[0].EventType)
}

func TestConvert_CoalescesPointingAxesInOneRun(t *testing.T) {
	out := Convert([]RawValue{
		{UsagePage: UsagePageGenericDesktop, Usage: UsageX, IntegerValue: 5, TimeStamp: 1},
		{UsagePage: UsagePageGenericDesktop, Usage: UsageY, IntegerValue: -3, TimeStamp: 1},
		{UsagePage: UsagePageGenericDesktop, Usage: UsageWheel, IntegerValue: 1, TimeStamp: 1},
	}, false)

	require.Len(t, out, 1)
	assert.Equal(t, event.PointingMotion{DX: 5, DY: -3, VerticalWheel: 1}, out[0].Event.PointingMotion)
}

func TestConvert_RepeatedAxisFlushesAndStartsNewMotion(t *testing.T) {
	out := Convert([]RawValue{
		{UsagePage: UsagePageGenericDesktop, Usage: UsageX, IntegerValue: 5, TimeStamp: 1},
		{UsagePage: UsagePageGenericDesktop, Usage: UsageX, IntegerValue: 7, TimeStamp: 1},
	}, false)

	require.Len(t, out, 2)
	assert.Equal(t, int32(5), out[0].Event.PointingMotion.DX)
	assert.Equal(t, int32(7), out[1].Event.PointingMotion.DX)
}

func TestConvert_DifferentTimeStampFlushesMotion(t *testing.T) {
	out := Convert([]RawValue{
		{UsagePage: UsagePageGenericDesktop, Usage: UsageX, IntegerValue: 5, TimeStamp: 1},
		{UsagePage: UsagePageGenericDesktop, Usage: UsageY, IntegerValue: 2, TimeStamp: 2},
	}, false)

	require.Len(t, out, 2)
	assert.Equal(t, event.PointingMotion{DX: 5}, out[0].Event.PointingMotion)
	assert.Equal(t, event.PointingMotion{DY: 2}, out[1].Event.PointingMotion)
}

func TestConvert_IgnoredInputZeroesMotionAndSuppressesSwitches(t *testing.T) {
	out := Convert([]RawValue{
		{UsagePage: UsagePageGenericDesktop, Usage: UsageX, IntegerValue: 5, TimeStamp: 1},
		{UsagePage: 0x07, Usage: 0x04, IntegerValue: 1, TimeStamp: 1},
	}, true)

	require.Len(t, out, 1)
	assert.True(t, out[0].Event.PointingMotion.IsZero())
}

func TestConvert_CapsLockLED(t *testing.T) {
	out := Convert([]RawValue{
		{UsagePage: usagePageLEDs, Usage: usageCapsLockLED, IntegerValue: 1, TimeStamp: 1},
	}, false)

	require.Len(t, out, 1)
	assert.Equal(t, event.TypeSingle, out[0].EventType)
	assert.True(t, out[0].Event.BoolValue)
}

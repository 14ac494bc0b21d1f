// Package hidvalue converts raw HID input report values into canonical
// event.Event values (spec.md C3, §4.2).
package hidvalue

import "github.com/karabiner-grabberd/grabberd/internal/event"

// Usage page/usage constants for the axes this converter recognizes,
// drawn from the HID Generic Desktop and Consumer usage tables.
const (
	UsagePageGenericDesktop uint32 = 0x01
	UsagePageConsumer       uint32 = 0x0C

	UsageX              uint32 = 0x30
	UsageY              uint32 = 0x31
	UsageWheel          uint32 = 0x38 // vertical wheel
	UsageACPan          uint32 = 0x0238 // horizontal wheel (consumer page)
)

type axis int

const (
	axisNone axis = iota
	axisX
	axisY
	axisVerticalWheel
	axisHorizontalWheel
)

func classifyAxis(usagePage, usage uint32) axis {
	switch {
	case usagePage == UsagePageGenericDesktop && usage == UsageX:
		return axisX
	case usagePage == UsagePageGenericDesktop && usage == UsageY:
		return axisY
	case usagePage == UsagePageGenericDesktop && usage == UsageWheel:
		return axisVerticalWheel
	case usagePage == UsagePageConsumer && usage == UsageACPan:
		return axisHorizontalWheel
	default:
		return axisNone
	}
}

// RawValue is one HID report field: a (usage page, usage) pair with its
// integer value and the time stamp the report carrying it arrived at.
type RawValue struct {
	UsagePage    uint32
	Usage        uint32
	IntegerValue int64
	TimeStamp    event.TimeStamp
}

// Converted is one normalized event produced from a batch, paired with
// the time stamp it should be scheduled at.
type Converted struct {
	Event     event.Event
	EventType event.Type
	TimeStamp event.TimeStamp
}

// Convert normalizes a batch of raw HID values arriving in a single
// report (or back-to-back reports at the same logical instant) into
// canonical events, per spec.md §4.2:
//
//   - momentary switches become key_down/key_up events
//   - pointing axes coalesce into one pointing_motion event per
//     contiguous run sharing a time stamp; a repeated axis within the
//     run flushes the current motion and starts a new one
//   - the caps-lock LED value becomes a single caps_lock_state_changed
//     event
//
// If ignoreInput is true (the device is used only for wake/presence,
// spec.md §4.2), any coalesced motion is emitted with every axis
// zeroed, and momentary switches are suppressed.
func Convert(values []RawValue, ignoreInput bool) []Converted {
	var out []Converted

	var pendingMotion event.PointingMotion
	var pendingTimeStamp event.TimeStamp
	var pendingAxesSeen map[axis]bool
	havePending := false

	flush := func() {
		if !havePending {
			return
		}
		m := pendingMotion
		if ignoreInput {
			m = event.PointingMotion{}
		}
		out = append(out, Converted{
			Event:     event.PointingMotionEvent(m),
			EventType: event.TypeSingle,
			TimeStamp: pendingTimeStamp,
		})
		havePending = false
		pendingMotion = event.PointingMotion{}
		pendingAxesSeen = nil
	}

	for _, v := range values {
		if ax := classifyAxis(v.UsagePage, v.Usage); ax != axisNone {
			if havePending && v.TimeStamp != pendingTimeStamp {
				flush()
			}
			if !havePending {
				havePending = true
				pendingTimeStamp = v.TimeStamp
				pendingAxesSeen = map[axis]bool{}
			}
			if pendingAxesSeen[ax] {
				flush()
				havePending = true
				pendingTimeStamp = v.TimeStamp
				pendingAxesSeen = map[axis]bool{}
			}
			pendingAxesSeen[ax] = true

			delta := int32(v.IntegerValue)
			switch ax {
			case axisX:
				pendingMotion.DX += delta
			case axisY:
				pendingMotion.DY += delta
			case axisVerticalWheel:
				pendingMotion.VerticalWheel += delta
			case axisHorizontalWheel:
				pendingMotion.HorizontalWheel += delta
			}
			continue
		}

		// Non-axis value: flush any pending motion run first so ordering
		// within the batch is preserved.
		flush()

		if isCapsLockLED(v.UsagePage, v.Usage) {
			out = append(out, Converted{
				Event:     event.CapsLockStateChangedEvent(v.IntegerValue != 0),
				EventType: event.TypeSingle,
				TimeStamp: v.TimeStamp,
			})
			continue
		}

		if ignoreInput {
			continue
		}

		et := event.TypeKeyUp
		if v.IntegerValue != 0 {
			et = event.TypeKeyDown
		}
		up := event.UsagePair{UsagePage: v.UsagePage, Usage: v.Usage}
		out = append(out, Converted{
			Event:     event.MomentarySwitchEvent(up),
			EventType: et,
			TimeStamp: v.TimeStamp,
		})
	}

	flush()

	return out
}

// Caps-lock LED usage on the LED usage page (0x08), usage 0x02.
const (
	usagePageLEDs    uint32 = 0x08
	usageCapsLockLED uint32 = 0x02
)

func isCapsLockLED(usagePage, usage uint32) bool {
	return usagePage == usagePageLEDs && usage == usageCapsLockLED
}

package manipulator

import (
	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
)

// MouseBasicManipulator rescales and/or inverts a pointing device's
// motion axes (spec.md §4.5.2 "mouse basic manipulator"). Unlike
// BasicManipulator it has no held state: every pointing_motion entry is
// transformed and forwarded in place.
type MouseBasicManipulator struct {
	Conditions Conditions

	XScale              float64
	YScale              float64
	VerticalWheelScale  float64
	HorizontalWheelScale float64

	valid bool
}

// NewMouseBasicManipulator returns a manipulator with unit scale on
// every axis; set the *Scale fields to -1 to invert an axis, or to any
// other factor to rescale it.
func NewMouseBasicManipulator() *MouseBasicManipulator {
	return &MouseBasicManipulator{
		valid:                true,
		XScale:               1,
		YScale:               1,
		VerticalWheelScale:   1,
		HorizontalWheelScale: 1,
	}
}

func (m *MouseBasicManipulator) Manipulate(frontEntry *event.Entry, inputQueue, outputQueue *event.Queue, now event.TimeStamp) {
	if !m.valid || frontEntry.Validity == event.Invalid {
		return
	}
	if frontEntry.Event.Kind != event.KindPointingMotion {
		return
	}
	if !m.Conditions.AllMatch(*frontEntry, inputQueue) {
		return
	}

	in := frontEntry.Event.PointingMotion
	scaled := event.PointingMotion{
		DX:              int32(float64(in.DX) * m.XScale),
		DY:              int32(float64(in.DY) * m.YScale),
		VerticalWheel:   int32(float64(in.VerticalWheel) * m.VerticalWheelScale),
		HorizontalWheel: int32(float64(in.HorizontalWheel) * m.HorizontalWheelScale),
	}

	frontEntry.Invalidate()
	ev := event.PointingMotionEvent(scaled)
	outputQueue.PushBackEntry(frontEntry.DeviceID, frontEntry.EventTimeStamp, ev, event.TypeSingle, ev, event.OriginVirtualEvent, false, event.Valid)
}

func (m *MouseBasicManipulator) Active() bool { return false }
func (m *MouseBasicManipulator) Valid() bool  { return m.valid }
func (m *MouseBasicManipulator) Invalidate()  { m.valid = false }

func (m *MouseBasicManipulator) NeedsVirtualHIDPointing() bool { return true }

func (m *MouseBasicManipulator) HandleDeviceUngrabbed(deviceID devid.ID, outputQueue *event.Queue, now event.TimeStamp) {
}

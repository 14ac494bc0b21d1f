package manipulator

import (
	"fmt"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
	"github.com/karabiner-grabberd/grabberd/internal/virtualhid"
)

// VirtualDeviceOutput is the post-event-to-virtual-devices manipulator
// (spec.md §4.8, part of C7's last stage). cmd/karabiner-grabberd
// installs one into the connector's post-event-to-virtual-devices
// manager; unlike
// Basic/MouseBasic it never forwards entries into an output queue — it
// consumes everything it understands and turns it directly into HID
// reports against a virtual HID client, keeping the rolling modifier
// byte and pressed-keys array a stateless per-entry conversion cannot.
type VirtualDeviceOutput struct {
	vh      virtualhid.Client
	onError func(error)

	modifiers byte
	keys      []byte

	lazyPress   byte
	lazyRelease byte

	motion     event.PointingMotion
	haveMotion bool
}

// NewVirtualDeviceOutput returns a manipulator posting reports to vh.
// onError, if non-nil, is called with any error a post to vh returns;
// it may be nil, in which case failures are dropped silently the way
// Null's callers already tolerate.
func NewVirtualDeviceOutput(vh virtualhid.Client, onError func(error)) *VirtualDeviceOutput {
	return &VirtualDeviceOutput{vh: vh, onError: onError}
}

func (v *VirtualDeviceOutput) Manipulate(frontEntry *event.Entry, inputQueue, outputQueue *event.Queue, now event.TimeStamp) {
	switch frontEntry.Event.Kind {
	case event.KindMomentarySwitch:
		v.keyboard(*frontEntry)
	case event.KindPointingMotion:
		v.motion.Add(frontEntry.Event.PointingMotion)
		v.haveMotion = true
	case event.KindDeviceKeysAndPointingButtonsAreReleased:
		v.reset()
		if err := v.vh.ResetKeyboard(); err != nil {
			v.reportError(fmt.Errorf("reset keyboard: %w", err))
		}
	case event.KindSetVariable:
		// Already applied to the queue's environment when it was pushed
		// (event.Queue.PushBackEntry); nothing further to post.
	default:
		return // not this stage's concern; leave it valid for the output queue
	}
	frontEntry.Invalidate()
}

// keyboard folds one momentary-switch entry into the rolling keyboard
// report state and posts the result, unless it is a lazy modifier event
// (spec.md §4.8: "a lazy modifier press is deferred until a
// non-modifier requires it; a lazy release is deferred symmetrically").
func (v *VirtualDeviceOutput) keyboard(e event.Entry) {
	up, ok := e.Event.IsMomentarySwitch()
	if !ok || up.UsagePage != event.UsagePageKeyboardOrKeypad {
		return
	}

	if flag, isModifier := event.ModifierFlagForUsagePair(up); isModifier {
		bit, ok := modifierBit(flag)
		if !ok {
			return // fn/caps-lock: not part of the boot-report modifier byte
		}
		if e.Lazy {
			switch e.EventType {
			case event.TypeKeyDown:
				v.lazyPress |= bit
			case event.TypeKeyUp:
				v.lazyRelease |= bit
			}
			return
		}
		v.flushLazy()
		switch e.EventType {
		case event.TypeKeyDown:
			v.modifiers |= bit
		case event.TypeKeyUp:
			v.modifiers &^= bit
		}
		v.post()
		return
	}

	v.flushLazy()
	switch e.EventType {
	case event.TypeKeyDown:
		v.pressKey(byte(up.Usage))
	case event.TypeKeyUp:
		v.releaseKey(byte(up.Usage))
	}
	v.post()
}

// flushLazy materializes any modifier press/release a prior lazy
// momentary switch deferred, now that a non-lazy event requires it.
func (v *VirtualDeviceOutput) flushLazy() {
	if v.lazyPress == 0 && v.lazyRelease == 0 {
		return
	}
	v.modifiers |= v.lazyPress
	v.modifiers &^= v.lazyRelease
	v.lazyPress = 0
	v.lazyRelease = 0
}

// pressKey adds a non-modifier usage to the rolling pressed-keys array,
// ignoring duplicates and silently dropping past the boot-report's
// six-key capacity (the same rollover behavior a real keyboard exhibits).
func (v *VirtualDeviceOutput) pressKey(usage byte) {
	for _, k := range v.keys {
		if k == usage {
			return
		}
	}
	if len(v.keys) >= 6 {
		return
	}
	v.keys = append(v.keys, usage)
}

func (v *VirtualDeviceOutput) releaseKey(usage byte) {
	for i, k := range v.keys {
		if k == usage {
			v.keys = append(v.keys[:i], v.keys[i+1:]...)
			return
		}
	}
}

func (v *VirtualDeviceOutput) post() {
	if !v.vh.Ready() {
		return
	}
	report := virtualhid.KeyboardReport{Modifiers: v.modifiers}
	copy(report.Keys[:], v.keys)
	if err := v.vh.PostKeyboardReport(report); err != nil {
		v.reportError(fmt.Errorf("post keyboard report: %w", err))
	}
}

func (v *VirtualDeviceOutput) reset() {
	v.modifiers = 0
	v.keys = nil
	v.lazyPress = 0
	v.lazyRelease = 0
	v.motion = event.PointingMotion{}
	v.haveMotion = false
}

func (v *VirtualDeviceOutput) reportError(err error) {
	if v.onError != nil {
		v.onError(err)
	}
}

// Flush emits one coalesced pointing report for every pointing-motion
// entry accumulated since the last flush (spec.md §4.8: "coalesce
// pointing motion entries... so as to emit one report per tick"). The
// connector calls this once per Manipulate(now) drive, after every
// stage has run (spec.md §4.6).
func (v *VirtualDeviceOutput) Flush() {
	if !v.haveMotion {
		return
	}
	m := v.motion
	v.motion = event.PointingMotion{}
	v.haveMotion = false

	if !v.vh.Ready() {
		return
	}
	report := virtualhid.PointingReport{
		X:               clampInt8(m.DX),
		Y:               clampInt8(m.DY),
		VerticalWheel:   clampInt8(m.VerticalWheel),
		HorizontalWheel: clampInt8(m.HorizontalWheel),
	}
	if err := v.vh.PostPointingReport(report); err != nil {
		v.reportError(fmt.Errorf("post pointing report: %w", err))
	}
}

func modifierBit(flag event.ModifierFlag) (byte, bool) {
	if flag < event.ModifierLeftControl || flag > event.ModifierRightCommand {
		return 0, false
	}
	return 1 << uint(flag-event.ModifierLeftControl), true
}

func clampInt8(v int32) int8 {
	switch {
	case v > 127:
		return 127
	case v < -128:
		return -128
	default:
		return int8(v)
	}
}

// Active reports false: this manipulator holds rolling report state,
// not an in-flight chain a configuration reload needs to let finish.
func (v *VirtualDeviceOutput) Active() bool { return false }

// Valid always reports true: this is permanent pipeline infrastructure,
// not a configuration-driven rule, so it is never pruned and never
// invalidated by a configuration reload (spec.md §4.5.3's
// invalidate_manipulators is about user-configured rules).
func (v *VirtualDeviceOutput) Valid() bool { return true }

func (v *VirtualDeviceOutput) Invalidate() {}

// NeedsVirtualHIDPointing reports false: this manipulator only forwards
// pointing motion that already exists; it never synthesizes any.
func (v *VirtualDeviceOutput) NeedsVirtualHIDPointing() bool { return false }

func (v *VirtualDeviceOutput) HandleDeviceUngrabbed(deviceID devid.ID, outputQueue *event.Queue, now event.TimeStamp) {
	// The rolling report state is a single shared boot-protocol report,
	// not keyed per device; an ungrabbed device's held keys are released
	// through its own key_up entries or the synthesized
	// device_keys_and_pointing_buttons_are_released event, both handled
	// by Manipulate above.
}

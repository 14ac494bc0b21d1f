// Package connector implements the manipulator managers connector
// (spec.md C7, §4.6): the fixed four-stage pipeline that chains
// simple-modifications, complex-modifications, fn-function-keys, and
// post-event-to-virtual-devices managers end to end.
package connector

import (
	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
	"github.com/karabiner-grabberd/grabberd/internal/manipulatormanager"
)

// Stage names the four fixed pipeline stages (spec.md §4.6). The order
// is not configurable: it mirrors the original source's fixed
// simple/complex/fn/post-event arrangement.
type Stage int

const (
	StageSimpleModifications Stage = iota
	StageComplexModifications
	StageFnFunctionKeys
	StagePostEventToVirtualDevices
	stageCount
)

func (s Stage) String() string {
	switch s {
	case StageSimpleModifications:
		return "simple_modifications"
	case StageComplexModifications:
		return "complex_modifications"
	case StageFnFunctionKeys:
		return "fn_function_keys"
	case StagePostEventToVirtualDevices:
		return "post_event_to_virtual_devices"
	default:
		return "unknown"
	}
}

// Connector owns the five queues the four stages sit between (input,
// three intermediate, and the final output queue) and one manager per
// stage.
type Connector struct {
	queues   [stageCount + 1]*event.Queue
	managers [stageCount]*manipulatormanager.Manager
}

// New returns an empty four-stage connector.
func New() *Connector {
	c := &Connector{}
	for i := range c.queues {
		c.queues[i] = event.New(queueName(i))
	}
	for i := range c.managers {
		c.managers[i] = manipulatormanager.New()
	}
	return c
}

func queueName(i int) string {
	if i == int(stageCount) {
		return "post_event_to_virtual_devices.output"
	}
	return Stage(i).String() + ".input"
}

// InputQueue is where newly observed/normalized entries are pushed.
func (c *Connector) InputQueue() *event.Queue { return c.queues[StageSimpleModifications] }

// OutputQueue is the final queue, holding whatever the last stage's
// manipulators did not consume.
func (c *Connector) OutputQueue() *event.Queue { return c.queues[stageCount] }

// Manager returns the manipulator manager for one stage.
func (c *Connector) Manager(s Stage) *manipulatormanager.Manager { return c.managers[s] }

// Manipulate drives every stage once, in order, each consuming its
// input queue's due entries and producing into the next stage's queue
// (spec.md §4.6: "manipulate(now)").
func (c *Connector) Manipulate(now event.TimeStamp) {
	for i := 0; i < int(stageCount); i++ {
		c.managers[i].Manipulate(c.queues[i], c.queues[i+1], now)
	}
	c.managers[StagePostEventToVirtualDevices].Flush()
}

// MinInputEventTimeStamp returns the earliest time stamp at which any
// stage needs to run again even absent new hardware input — the
// dispatcher's wake-up signal for in-flight manipulator timers (spec.md
// §4.6).
func (c *Connector) MinInputEventTimeStamp() (event.TimeStamp, bool) {
	have := false
	var d event.TimeStamp
	for i := 0; i < int(stageCount); i++ {
		cand, ok := c.managers[i].NextDeadline(c.queues[i])
		if !ok {
			continue
		}
		if !have || cand < d {
			d, have = cand, true
		}
	}
	return d, have
}

// NeedsVirtualHIDPointing reports whether any stage's manipulators could
// produce pointing-device traffic.
func (c *Connector) NeedsVirtualHIDPointing() bool {
	for i := range c.managers {
		if c.managers[i].NeedsVirtualHIDPointing() {
			return true
		}
	}
	return false
}

// HandleDeviceUngrabbed forwards a device-ungrab notification to every
// stage so in-flight chains for that device flush cleanly before the
// device's state is forgotten.
func (c *Connector) HandleDeviceUngrabbed(deviceID devid.ID, now event.TimeStamp) {
	for i := 0; i < int(stageCount); i++ {
		c.managers[i].HandleDeviceUngrabbed(deviceID, c.queues[i+1], now)
	}
}

// InvalidateManipulators invalidates every manipulator in every stage, the
// response to a configuration reload (spec.md §4.5.3, §4.6).
func (c *Connector) InvalidateManipulators() {
	for i := range c.managers {
		c.managers[i].InvalidateManipulators()
	}
}

// DrainFinalOutput removes and returns every entry currently queued in
// the final output queue: the entries no stage consumed.
func (c *Connector) DrainFinalOutput() []event.Entry {
	out := append([]event.Entry(nil), c.OutputQueue().Entries()...)
	c.OutputQueue().Clear()
	return out
}

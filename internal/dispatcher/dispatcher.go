// Package dispatcher is the daemon's single-writer run loop: the
// original source serializes every queue mutation onto one asio
// strand, and the idiomatic Go substitute is one goroutine draining a
// job channel, the same shape as HopIT-Hub-R1-Control's
// internal/device.Manager.Run select loop (poll ticker, wake ticker,
// ctx.Done()) generalized to a job queue plus a single dynamic timer
// standing in for the manipulator pipeline's next scheduled deadline.
package dispatcher

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/karabiner-grabberd/grabberd/internal/connector"
	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
	"github.com/karabiner-grabberd/grabberd/internal/killer"
)

var logger = log.New(os.Stderr, "[dispatcher] ", log.LstdFlags)

const idleWait = time.Second

// Dispatcher owns the connector pipeline and is the only goroutine
// that ever drives it: every external caller (the hidmonitor reader
// goroutines, the power monitor, the grabber) reaches the pipeline only
// through Enqueue. The virtual HID client itself is owned by the
// post-event-to-virtual-devices manipulator the caller installs into
// conn's last stage (spec.md §4.8); Dispatcher only needs to know when
// to drive the pipeline forward.
type Dispatcher struct {
	conn   *connector.Connector
	jobs   chan func()
	killer *killer.Killer
}

// New returns a Dispatcher. Run must be started in its own goroutine
// before any Enqueue call can make progress.
func New(conn *connector.Connector, k *killer.Killer) *Dispatcher {
	return &Dispatcher{
		conn:   conn,
		jobs:   make(chan func(), 256),
		killer: k,
	}
}

// Enqueue schedules fn to run on the dispatcher goroutine. Safe to call
// from any goroutine; drops fn silently once the dispatcher is killed.
func (d *Dispatcher) Enqueue(fn func()) {
	select {
	case d.jobs <- fn:
	case <-d.killer.Done():
	}
}

// PostInput is the hidmonitor.Callbacks.Input target: it enqueues
// pushing one observed entry into the pipeline's input queue and
// pumping the pipeline forward.
func (d *Dispatcher) PostInput(id devid.ID, ev event.Event, et event.Type, ts event.TimeStamp) {
	d.Enqueue(func() {
		d.conn.InputQueue().PushBackEntry(id, event.NewEventTimeStamp(ts), ev, et, ev, event.OriginOriginal, false, event.Valid)
		d.pump()
	})
}

// PostDeviceUngrabbed enqueues a device-ungrabbed notification to every
// pipeline stage, so manipulators release chains engaged by that device.
// It does not push a device_keys_and_pointing_buttons_are_released entry.
func (d *Dispatcher) PostDeviceUngrabbed(id devid.ID) {
	d.Enqueue(func() {
		d.conn.HandleDeviceUngrabbed(id, event.Now())
		d.pump()
	})
}

// Run drains jobs and fires the pipeline's own pending timers until ctx
// is cancelled or the killer fires.
func (d *Dispatcher) Run(ctx context.Context) {
	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		d.rearm(timer)

		select {
		case <-ctx.Done():
			return
		case <-d.killer.Done():
			return
		case fn := <-d.jobs:
			fn()
		case <-timer.C:
			d.pump()
		}
	}
}

// rearm points timer at the pipeline's next pending manipulator
// deadline (simultaneous window, to-if-held-down threshold, delayed
// action, or a queued entry's time stamp), or idleWait if nothing is
// pending.
func (d *Dispatcher) rearm(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}

	wait := idleWait
	if deadline, ok := d.conn.MinInputEventTimeStamp(); ok {
		if remaining := time.Duration(deadline - event.Now()); remaining > 0 {
			wait = remaining
		} else {
			wait = 0
		}
	}
	timer.Reset(wait)
}

// pump drives the pipeline once. The post-event-to-virtual-devices
// manipulator installed in conn's last stage consumes everything it
// understands directly against the virtual HID client (spec.md §4.8);
// anything still reaching the final queue is a kind no stage claimed,
// which is logged rather than silently dropped.
func (d *Dispatcher) pump() {
	now := event.Now()
	d.conn.Manipulate(now)

	for _, e := range d.conn.DrainFinalOutput() {
		logger.Printf("entry reached final queue unconsumed: kind=%s", e.Event.Kind)
	}
}

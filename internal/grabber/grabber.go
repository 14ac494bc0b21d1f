// Package grabber implements the device grabber (spec.md C9, §4.7): it
// tracks one deviceentry.Entry and one stuckdetect.Detector per matched
// device, evaluates the grabbable-policy state machine on every
// observed switch event and configuration reload, and notifies its
// owner when a device transitions into or out of the grabbed state.
package grabber

import (
	"log"
	"os"
	"sync"

	"github.com/karabiner-grabberd/grabberd/internal/config"
	"github.com/karabiner-grabberd/grabberd/internal/deviceentry"
	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
	"github.com/karabiner-grabberd/grabberd/internal/state"
	"github.com/karabiner-grabberd/grabberd/internal/stuckdetect"
)

var logger = log.New(os.Stderr, "[grabber] ", log.LstdFlags)

// Grabber owns the grabbable-policy state machine across every
// currently matched device (spec.md §4.7.1). Shaped after
// HopIT-Hub-R1-Control's internal/device.Manager: a mutex-guarded map
// of tracked state plus constructor-injected callbacks for the rest of
// the daemon to react to grab/ungrab transitions.
type Grabber struct {
	mu sync.Mutex

	entries   map[devid.ID]*deviceentry.Entry
	detectors map[devid.ID]*stuckdetect.Detector

	cfg   *config.Store
	store *state.Store

	onGrabbed   func(devid.ID, devid.Properties)
	onUngrabbed func(devid.ID)
	onNotify    func(devid.ID, string)
	setLED      func(devid.ID, bool) error
}

// New returns a Grabber with no devices tracked yet. onGrabbed and
// onUngrabbed are called under the Grabber's lock released, so they may
// safely call back into the Grabber. onNotify, if non-nil, receives a
// short user-visible string on any policy transition worth surfacing
// (spec.md §4.7.1, §7 "user-visible notification"). setLED, if non-nil,
// is the per-device caps-lock LED state manager's write path (spec.md
// §4.7.3, C8) — typically hidmonitor.Monitor.SetCapsLockLED.
func New(cfg *config.Store, store *state.Store, onGrabbed func(devid.ID, devid.Properties), onUngrabbed func(devid.ID), onNotify func(devid.ID, string), setLED func(devid.ID, bool) error) *Grabber {
	return &Grabber{
		entries:     map[devid.ID]*deviceentry.Entry{},
		detectors:   map[devid.ID]*stuckdetect.Detector{},
		cfg:         cfg,
		store:       store,
		onGrabbed:   onGrabbed,
		onUngrabbed: onUngrabbed,
		onNotify:    onNotify,
		setLED:      setLED,
	}
}

// DeviceMatched registers a newly observed device and runs the policy
// evaluation that may immediately grab it.
func (g *Grabber) DeviceMatched(id devid.ID, p devid.Properties) {
	g.mu.Lock()
	g.entries[id] = deviceentry.New(id, p)
	g.detectors[id] = stuckdetect.New()
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.SetDeviceMatched(id, p); err != nil {
			logger.Printf("persist matched device %d: %v", id, err)
		}
	}

	g.EvaluateGrab(id)
}

// DeviceTerminated forgets a device, ungrabbing it first if it was
// currently grabbed.
func (g *Grabber) DeviceTerminated(id devid.ID) {
	g.mu.Lock()
	entry, ok := g.entries[id]
	if ok {
		delete(g.entries, id)
		delete(g.detectors, id)
	}
	g.mu.Unlock()

	if !ok {
		return
	}
	if entry.Grabbed() && g.onUngrabbed != nil {
		g.onUngrabbed(id)
	}
	if g.store != nil {
		if err := g.store.SetDeviceTerminated(id); err != nil {
			logger.Printf("persist terminated device %d: %v", id, err)
		}
	}
}

// HandleObservedSwitch feeds one momentary-switch observation into the
// device's stuck-event detector. A detector-requested re-grab
// re-evaluates the device's policy immediately (spec.md §4.4, §4.7.1).
func (g *Grabber) HandleObservedSwitch(id devid.ID, up event.UsagePair, et event.Type, source stuckdetect.Source) {
	g.mu.Lock()
	d, ok := g.detectors[id]
	g.mu.Unlock()
	if !ok {
		return
	}

	if d.Update(up, et, source) {
		g.EvaluateGrab(id)
	}
}

// HandleDeviceBoundary marks every currently held switch on a device as
// probably stuck (a seize/reconnect boundary occurred) and re-evaluates
// its policy (spec.md §4.4, §8.6).
func (g *Grabber) HandleDeviceBoundary(id devid.ID) {
	g.mu.Lock()
	d, ok := g.detectors[id]
	g.mu.Unlock()
	if !ok {
		return
	}
	d.MarkDeviceBoundary()
	g.EvaluateGrab(id)
}

// EvaluateGrab recomputes a device's grabbable policy and, if its grab
// decision changed, calls the grabbed/ungrabbed callback and persists
// the new status.
func (g *Grabber) EvaluateGrab(id devid.ID) {
	g.mu.Lock()
	entry, ok := g.entries[id]
	detector := g.detectors[id]
	g.mu.Unlock()
	if !ok {
		return
	}

	props := entry.Properties()
	cfg := g.cfg.Current()

	policy := deviceentry.PolicyGrabbable
	switch {
	case !props.Identifiers.IsConsumingDevice():
		policy = deviceentry.PolicyUngrabbablePermanently
	case detector != nil && detector.HasProbableStuckEvent():
		policy = deviceentry.PolicyUngrabbableTemporarily
	}

	entry.SetPolicy(policy)
	entry.SetDisabledByConfig(cfg.Disabled(props))
	entry.LEDState().SetManaged(cfg.ManipulateCapsLockLED(props))

	want := entry.ShouldGrab()
	was := entry.Grabbed()
	if want == was {
		return
	}

	entry.SetGrabbed(want)

	if g.store != nil {
		if err := g.store.SetGrabStatus(id, statusFor(want, policy)); err != nil {
			logger.Printf("persist grab status for device %d: %v", id, err)
		}
	}

	if want {
		logger.Printf("device %d grabbed", id)
		if g.onGrabbed != nil {
			g.onGrabbed(id, props)
		}
	} else {
		logger.Printf("device %d ungrabbed (%s)", id, policy)
		if g.onUngrabbed != nil {
			g.onUngrabbed(id)
		}
		if g.onNotify != nil && policy == deviceentry.PolicyUngrabbableTemporarily {
			g.onNotify(id, "a key may be stuck; device temporarily released")
		}
	}
}

// HandleCapsLockStateChanged pushes the virtual HID keyboard's caps-lock
// LED state to every grabbed device whose manipulate_caps_lock_led flag
// is set (spec.md §8 scenario 1: "LED manager pushes the HID LED
// element to on"). Devices without the flag, or whose state already
// matches, are left untouched.
func (g *Grabber) HandleCapsLockStateChanged(on bool) {
	g.mu.Lock()
	entries := make([]*deviceentry.Entry, 0, len(g.entries))
	for _, e := range g.entries {
		entries = append(entries, e)
	}
	g.mu.Unlock()

	for _, e := range entries {
		if !e.Grabbed() {
			continue
		}
		if !e.LEDState().Apply(on) {
			continue
		}
		if g.setLED == nil {
			continue
		}
		if err := g.setLED(e.ID(), on); err != nil {
			logger.Printf("set caps-lock LED for device %d: %v", e.ID(), err)
		}
	}
}

// HandleConfigurationReload re-evaluates every tracked device against
// the current configuration snapshot (spec.md §7's "Configuration
// malformed" path leaves the prior snapshot in place, so this simply
// re-reads config.Store.Current()).
func (g *Grabber) HandleConfigurationReload() {
	g.mu.Lock()
	ids := make([]devid.ID, 0, len(g.entries))
	for id := range g.entries {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	for _, id := range ids {
		g.EvaluateGrab(id)
	}
}

// HandleSystemWillSleep ungrabs every device ahead of system sleep, the
// daemon's response to the power-management monitor's
// system_will_sleep notification (spec.md §6). Unlike EvaluateGrab this
// does not recompute policy from the device's own signals: sleep must
// force an ungrab regardless of what the next policy evaluation would
// otherwise decide, so the grab decision is flipped directly and policy
// is left marked ungrabbable_temporarily until power-on clears it.
func (g *Grabber) HandleSystemWillSleep() {
	g.mu.Lock()
	var toUngrab []devid.ID
	for id, e := range g.entries {
		e.SetPolicy(deviceentry.PolicyUngrabbableTemporarily)
		if e.Grabbed() {
			e.SetGrabbed(false)
			toUngrab = append(toUngrab, id)
		}
	}
	g.mu.Unlock()

	for _, id := range toUngrab {
		logger.Printf("device %d ungrabbed (system_will_sleep)", id)
		if g.onUngrabbed != nil {
			g.onUngrabbed(id)
		}
		if g.store != nil {
			if err := g.store.SetGrabStatus(id, state.GrabStatusUngrabbedTemporary); err != nil {
				logger.Printf("persist grab status for device %d: %v", id, err)
			}
		}
	}
}

// HandleSystemHasPoweredOn clears every device's policy so the next
// EvaluateGrab pass starts fresh, the daemon's response to
// system_has_powered_on (spec.md §6).
func (g *Grabber) HandleSystemHasPoweredOn() {
	g.mu.Lock()
	ids := make([]devid.ID, 0, len(g.entries))
	for id, e := range g.entries {
		e.SetPolicy(deviceentry.PolicyNone)
		ids = append(ids, id)
	}
	g.mu.Unlock()

	for _, id := range ids {
		g.EvaluateGrab(id)
	}
}

func statusFor(grabbed bool, policy deviceentry.GrabbablePolicy) state.GrabStatus {
	if grabbed {
		return state.GrabStatusGrabbed
	}
	switch policy {
	case deviceentry.PolicyUngrabbableTemporarily:
		return state.GrabStatusUngrabbedTemporary
	case deviceentry.PolicyUngrabbablePermanently:
		return state.GrabStatusUngrabbedPermanent
	default:
		return state.GrabStatusNone
	}
}

// Entry returns the tracked entry for id, for tests and diagnostics.
func (g *Grabber) Entry(id devid.ID) (*deviceentry.Entry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[id]
	return e, ok
}

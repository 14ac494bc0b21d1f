// Package power implements the power management monitor external
// interface (spec.md §6): it watches systemd-logind's PrepareForSleep
// signal over D-Bus and turns it into the two notifications the
// grabber responds to, system_will_sleep and system_has_powered_on. It
// also holds a logind delay inhibitor lock while shutting devices down
// ahead of sleep, the same "hold a lock, do cleanup, release it"
// pattern logind expects from any service that needs to act before
// suspend actually happens.
package power

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
)

var logger = log.New(os.Stderr, "[power] ", log.LstdFlags)

const (
	login1Service   = "org.freedesktop.login1"
	login1Path      = "/org/freedesktop/login1"
	login1Manager   = "org.freedesktop.login1.Manager"
	prepareForSleep = "PrepareForSleep"
)

// Monitor subscribes to logind's sleep/wake signal and forwards it to
// the daemon's sleep/wake callbacks.
type Monitor struct {
	conn *dbus.Conn

	mu            sync.Mutex
	inhibitFD     dbus.UnixFD
	haveInhibitFD bool

	onWillSleep  func()
	onPoweredOn  func()

	done chan struct{}
	sigs chan *dbus.Signal
}

// New connects to the system bus. The connection is not subscribed to
// anything until Start is called.
func New(onWillSleep, onPoweredOn func()) (*Monitor, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	return &Monitor{
		conn:        conn,
		onWillSleep: onWillSleep,
		onPoweredOn: onPoweredOn,
		done:        make(chan struct{}),
	}, nil
}

// Start subscribes to PrepareForSleep and begins dispatching it in a
// background goroutine. It also takes out the initial delay inhibitor
// lock so the kernel pauses suspend until the will-sleep callback has
// returned (or HandleSleepCleanupDone is called).
func (m *Monitor) Start() error {
	call := m.conn.BusObject().AddMatchSignal(
		login1Manager,
		prepareForSleep,
		dbus.WithMatchObjectPath(dbus.ObjectPath(login1Path)),
	)
	if call.Err != nil {
		return fmt.Errorf("subscribe to PrepareForSleep: %w", call.Err)
	}

	m.sigs = make(chan *dbus.Signal, 8)
	m.conn.Signal(m.sigs)

	if err := m.takeInhibitLock(); err != nil {
		logger.Printf("inhibit lock unavailable, sleep handling degraded: %v", err)
	}

	go m.dispatchLoop()
	return nil
}

// Stop releases the D-Bus connection and the inhibitor lock, if held.
func (m *Monitor) Stop() error {
	close(m.done)
	m.releaseInhibitLock()
	return m.conn.Close()
}

func (m *Monitor) dispatchLoop() {
	for {
		select {
		case <-m.done:
			return
		case sig, ok := <-m.sigs:
			if !ok {
				return
			}
			if sig.Name != login1Manager+"."+prepareForSleep {
				continue
			}
			if len(sig.Body) == 0 {
				continue
			}
			sleeping, ok := sig.Body[0].(bool)
			if !ok {
				continue
			}
			if sleeping {
				if m.onWillSleep != nil {
					m.onWillSleep()
				}
				m.releaseInhibitLock()
			} else {
				m.takeInhibitLock()
				if m.onPoweredOn != nil {
					m.onPoweredOn()
				}
			}
		}
	}
}

// takeInhibitLock acquires a "sleep" delay inhibitor so logind gives
// the daemon a window to ungrab devices before the kernel suspends
// (spec.md §6, "may delay sleep to flush state").
func (m *Monitor) takeInhibitLock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.haveInhibitFD {
		return nil
	}

	obj := m.conn.Object(login1Service, dbus.ObjectPath(login1Path))
	var fd dbus.UnixFD
	err := obj.Call(login1Manager+".Inhibit", 0, "sleep", "karabiner-grabberd",
		"release seized input devices before suspend", "delay").Store(&fd)
	if err != nil {
		return fmt.Errorf("acquire sleep inhibitor: %w", err)
	}

	m.inhibitFD = fd
	m.haveInhibitFD = true
	return nil
}

// releaseInhibitLock closes the held inhibitor fd, letting suspend
// proceed (spec.md §6, called once device cleanup finishes).
func (m *Monitor) releaseInhibitLock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.haveInhibitFD {
		return
	}
	if err := os.NewFile(uintptr(m.inhibitFD), "logind-inhibit").Close(); err != nil {
		logger.Printf("release inhibitor: %v", err)
	}
	m.haveInhibitFD = false
}

// HandleSleepCleanupDone releases the inhibitor lock once the grabber
// has finished ungrabbing devices for an incoming system_will_sleep.
func (m *Monitor) HandleSleepCleanupDone() {
	m.releaseInhibitLock()
}

// Package notifier renders the daemon's user-visible notifications
// (spec.md §4.7.1, §7: stuck-key releases, virtual-HID-not-ready,
// configuration errors) as tray menu items, one per device plus one for
// daemon-wide conditions. Generalized from HopIT-Hub-R1-Control's
// internal/tray, which tracks a single disabled "Status: ..." menu item
// updated in place — this package keeps a map of such items keyed by
// device id instead of one global item.
package notifier

import (
	"fmt"
	"sync"

	"fyne.io/systray"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
)

// Notifier owns the tray menu items surfaced for device- and
// daemon-level notifications. Run must be called once, on the main
// thread, the same constraint systray.Run imposes on the teacher's
// internal/tray.Run.
type Notifier struct {
	mu sync.Mutex

	deviceItems map[devid.ID]*systray.MenuItem
	daemonItem  *systray.MenuItem

	onQuit func()
	quitCh chan struct{}
}

// New returns a Notifier. onQuit, if non-nil, is called when the user
// selects the tray's Quit item.
func New(onQuit func()) *Notifier {
	return &Notifier{
		deviceItems: map[devid.ID]*systray.MenuItem{},
		onQuit:      onQuit,
		quitCh:      make(chan struct{}),
	}
}

// Run starts the tray icon and blocks until Quit is called or the user
// quits from the menu. Call it from main, same as the teacher's
// tray.Run(opts).
func (n *Notifier) Run() {
	systray.Run(func() {
		systray.SetTitle("")
		systray.SetTooltip("karabiner-grabberd")

		label := systray.AddMenuItem("karabiner-grabberd", "")
		label.Disable()
		systray.AddSeparator()

		n.mu.Lock()
		n.daemonItem = systray.AddMenuItem("Status: running", "")
		n.daemonItem.Disable()
		n.mu.Unlock()

		systray.AddSeparator()
		mQuit := systray.AddMenuItem("Quit", "Stop karabiner-grabberd")

		go func() {
			for {
				select {
				case <-mQuit.ClickedCh:
					if n.onQuit != nil {
						n.onQuit()
					}
					systray.Quit()
					return
				case <-n.quitCh:
					systray.Quit()
					return
				}
			}
		}()
	}, func() {})
}

// Quit stops the tray from outside the click-handler goroutine, e.g.
// when the daemon is shutting down for another reason (killer.Kill).
func (n *Notifier) Quit() {
	close(n.quitCh)
}

// NotifyDevice surfaces a short message against a specific device,
// creating its menu item on first use (spec.md §4.7.1's stuck-key and
// virtual-HID-not-ready notifications).
func (n *Notifier) NotifyDevice(id devid.ID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	item, ok := n.deviceItems[id]
	if !ok {
		item = systray.AddMenuItem(fmt.Sprintf("Device %d: %s", id, message), "")
		item.Disable()
		n.deviceItems[id] = item
		return
	}
	item.SetTitle(fmt.Sprintf("Device %d: %s", id, message))
}

// ClearDevice drops a device's notification item once it is no longer
// relevant (the device terminated, or the condition resolved).
func (n *Notifier) ClearDevice(id devid.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	item, ok := n.deviceItems[id]
	if !ok {
		return
	}
	item.Hide()
	delete(n.deviceItems, id)
}

// NotifyDaemon updates the daemon-wide status line (spec.md §7
// "Configuration malformed").
func (n *Notifier) NotifyDaemon(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.daemonItem == nil {
		return
	}
	n.daemonItem.SetTitle("Status: " + message)
}

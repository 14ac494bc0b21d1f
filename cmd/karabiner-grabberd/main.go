// karabiner-grabberd watches keyboards and pointing devices, decides per
// device whether it should be grabbed, remaps their input through a
// four-stage manipulator pipeline, and posts the result to a virtual
// HID device — a background daemon with a tray icon for status and
// stuck-key notifications rather than a settings window. Grab decisions
// are logged and persisted; this entrypoint does not call the HID
// monitor's Grab or Ungrab, so devices are not seized exclusively.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/karabiner-grabberd/grabberd/internal/config"
	"github.com/karabiner-grabberd/grabberd/internal/connector"
	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/dispatcher"
	"github.com/karabiner-grabberd/grabberd/internal/event"
	"github.com/karabiner-grabberd/grabberd/internal/grabber"
	"github.com/karabiner-grabberd/grabberd/internal/hidmonitor"
	"github.com/karabiner-grabberd/grabberd/internal/killer"
	"github.com/karabiner-grabberd/grabberd/internal/manipulator"
	"github.com/karabiner-grabberd/grabberd/internal/notifier"
	"github.com/karabiner-grabberd/grabberd/internal/power"
	"github.com/karabiner-grabberd/grabberd/internal/state"
	"github.com/karabiner-grabberd/grabberd/internal/virtualhid"
)

var version = "dev"

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("[grabberd] configuration schema: %v", err)
	}
	if path := configPath(); path != "" {
		if err := cfg.Load(path); err != nil {
			log.Printf("[grabberd] configuration malformed, running with prior/default snapshot: %v", err)
		}
	}

	stateDir, err := stateDirectory()
	if err != nil {
		log.Fatalf("[grabberd] state directory: %v", err)
	}
	store := state.New(stateDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k := killer.New()
	vh := virtualhid.NewNull()
	conn := connector.New()
	conn.Manager(connector.StagePostEventToVirtualDevices).Append(
		manipulator.NewVirtualDeviceOutput(vh, func(err error) {
			log.Printf("[grabberd] post to virtual HID: %v", err)
		}),
	)
	disp := dispatcher.New(conn, k)

	note := notifier.New(func() {
		k.Kill(nil)
	})

	monitor := hidmonitor.New(hidmonitor.NewLinuxBackend())

	g := grabber.New(cfg, store,
		func(id devid.ID, _ devid.Properties) {
			log.Printf("[grabberd] grabbed device %d", id)
			note.ClearDevice(id)
		},
		func(id devid.ID) {
			log.Printf("[grabberd] ungrabbed device %d", id)
			disp.PostDeviceUngrabbed(id)
		},
		func(id devid.ID, message string) {
			note.NotifyDevice(id, message)
		},
		monitor.SetCapsLockLED,
	)

	virtualKeyboardID := devid.Next()
	vh.OnCapsLockStateChanged(func(on bool) {
		g.HandleCapsLockStateChanged(on)
		disp.PostInput(virtualKeyboardID, event.CapsLockStateChangedEvent(on), event.TypeSingle, event.Now())
	})

	pm, err := power.New(
		func() { g.HandleSystemWillSleep() },
		func() { g.HandleSystemHasPoweredOn() },
	)
	if err != nil {
		log.Printf("[grabberd] power monitor unavailable: %v", err)
	}

	go disp.Run(ctx)

	if err := monitor.Start(hidmonitor.Callbacks{
		DeviceMatched:    g.DeviceMatched,
		DeviceTerminated: g.DeviceTerminated,
		Input:            disp.PostInput,
		DeviceBoundary:   g.HandleDeviceBoundary,
	}); err != nil {
		log.Printf("[grabberd] hid monitor: %v", err)
	}

	if pm != nil {
		if err := pm.Start(); err != nil {
			log.Printf("[grabberd] power monitor start: %v", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sig:
			k.Kill(nil)
		case <-k.Done():
		}
	}()

	log.Printf("[grabberd] ready (version %s)", version)

	go func() {
		<-k.Done()
		note.Quit()
	}()

	note.Run()

	cancel()
	monitor.Stop()
	if pm != nil {
		pm.Stop()
	}
	log.Printf("[grabberd] stopped")
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "karabiner-grabberd", "core_configuration.json")
}

func stateDirectory() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "karabiner-grabberd", "state")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

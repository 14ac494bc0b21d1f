//go:build linux

package hidmonitor

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/fsnotify/fsnotify"
	"github.com/google/gousb"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
)

var logger = log.New(os.Stderr, "[hidmonitor] ", log.LstdFlags)

const inputDir = "/dev/input"

// evdevBackend is the Linux Backend: fsnotify watches /dev/input for
// device arrival/termination (the concrete enumeration mechanism
// spec.md §6 calls for), each matched device gets its own reader
// goroutine translating raw input_event reports into canonical events,
// and EVIOCGRAB implements seize/release. gousb enriches a device's
// descriptor with its manufacturer string when it also exposes a USB
// interface, the same OpenDevices-by-vendor/product idiom
// HopIT-Hub-R1-Control's aoa.Open uses.
type evdevBackend struct {
	mu      sync.Mutex
	cb      Callbacks
	watcher *fsnotify.Watcher
	usbCtx  *gousb.Context
	devices map[string]*trackedDevice
	wg      sync.WaitGroup
	closed  bool
}

type trackedDevice struct {
	id   devid.ID
	file *os.File
	stop chan struct{}
}

// NewLinuxBackend returns the evdev/USB Backend for Linux targets.
func NewLinuxBackend() Backend {
	return &evdevBackend{devices: map[string]*trackedDevice{}}
}

func (b *evdevBackend) Start(cb Callbacks) error {
	b.mu.Lock()
	b.cb = cb
	b.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(inputDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", inputDir, err)
	}
	b.watcher = watcher
	b.usbCtx = gousb.NewContext()

	existing, err := filepath.Glob(filepath.Join(inputDir, "event*"))
	if err != nil {
		return fmt.Errorf("glob %s: %w", inputDir, err)
	}
	for _, path := range existing {
		b.addDevice(path)
	}

	b.wg.Add(1)
	go b.watchLoop()

	return nil
}

func (b *evdevBackend) Stop() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	paths := make([]string, 0, len(b.devices))
	for p := range b.devices {
		paths = append(paths, p)
	}
	b.mu.Unlock()

	for _, p := range paths {
		b.removeDevice(p)
	}

	if b.watcher != nil {
		b.watcher.Close()
	}
	if b.usbCtx != nil {
		b.usbCtx.Close()
	}
	b.wg.Wait()
	return nil
}

func (b *evdevBackend) watchLoop() {
	defer b.wg.Done()
	for {
		select {
		case ev, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if !strings.Contains(ev.Name, "event") {
				continue
			}
			switch {
			case ev.Op&fsnotify.Create != 0:
				b.addDevice(ev.Name)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				b.removeDevice(ev.Name)
			}
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			logger.Printf("watch error: %v", err)
		}
	}
}

func (b *evdevBackend) addDevice(path string) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		f, err = os.OpenFile(path, os.O_RDONLY, 0)
	}
	if err != nil {
		logger.Printf("open %s: %v", path, err)
		return
	}

	ids, name, err := propertiesFromDevice(f)
	if err != nil {
		logger.Printf("probe %s: %v", path, err)
		f.Close()
		return
	}

	manufacturer, isApple := b.enrichViaUSB(ids)

	id := devid.Next()
	props := devid.Properties{
		DeviceID:      id,
		Identifiers:   ids,
		Manufacturer:  manufacturer,
		Product:       name,
		IsAppleDevice: isApple,
	}

	td := &trackedDevice{id: id, file: f, stop: make(chan struct{})}

	b.mu.Lock()
	b.devices[path] = td
	cb := b.cb
	b.mu.Unlock()

	if cb.DeviceMatched != nil {
		cb.DeviceMatched(id, props)
	}

	b.wg.Add(1)
	go b.readLoop(path, td)
}

func (b *evdevBackend) removeDevice(path string) {
	b.mu.Lock()
	td, ok := b.devices[path]
	if ok {
		delete(b.devices, path)
	}
	cb := b.cb
	b.mu.Unlock()
	if !ok {
		return
	}

	close(td.stop)
	td.file.Close()

	if cb.DeviceTerminated != nil {
		cb.DeviceTerminated(td.id)
	}
}

func (b *evdevBackend) readLoop(path string, td *trackedDevice) {
	defer b.wg.Done()

	for {
		select {
		case <-td.stop:
			return
		default:
		}

		raw, err := readRawEvent(td.file)
		if err != nil {
			b.removeDevice(path)
			return
		}

		t, ok := translateEvent(raw, func() int64 { return int64(event.Now()) })
		if !ok {
			continue
		}

		b.mu.Lock()
		cb := b.cb
		b.mu.Unlock()
		if cb.Input == nil {
			continue
		}

		switch t.kind {
		case translatedKey:
			et := event.TypeKeyUp
			if t.keyType == translatedKeyDown {
				et = event.TypeKeyDown
			}
			ev := event.MomentarySwitchEvent(event.UsagePair{UsagePage: t.usagePage, Usage: t.usage})
			cb.Input(td.id, ev, et, event.TimeStamp(t.now))

		case translatedMotion:
			motion := event.PointingMotion{}
			switch t.axis {
			case relX:
				motion.DX = t.delta
			case relY:
				motion.DY = t.delta
			case relWheel:
				motion.VerticalWheel = t.delta
			case relHWheel:
				motion.HorizontalWheel = t.delta
			}
			ev := event.PointingMotionEvent(motion)
			cb.Input(td.id, ev, event.TypeSingle, event.TimeStamp(t.now))
		}
	}
}

func (b *evdevBackend) Grab(id devid.ID) error {
	td := b.findByID(id)
	if td == nil {
		return fmt.Errorf("device %d not tracked", id)
	}
	arg := int32(1)
	return ioctl(td.file.Fd(), eviocgrab, unsafe.Pointer(&arg))
}

func (b *evdevBackend) Ungrab(id devid.ID) error {
	td := b.findByID(id)
	if td == nil {
		return fmt.Errorf("device %d not tracked", id)
	}
	arg := int32(0)
	return ioctl(td.file.Fd(), eviocgrab, unsafe.Pointer(&arg))
}

// SetCapsLockLED writes an EV_LED/LED_CAPSL output report followed by a
// SYN_REPORT directly to the device's own file descriptor — the evdev
// analogue of the USB LED output report spec.md §4.7.3 describes, using
// the same td.file handle addDevice already opened O_RDWR for.
func (b *evdevBackend) SetCapsLockLED(id devid.ID, on bool) error {
	td := b.findByID(id)
	if td == nil {
		return fmt.Errorf("device %d not tracked", id)
	}
	if err := writeLEDEvent(td.file, ledCapsL, on); err != nil {
		return fmt.Errorf("write LED_CAPSL: %w", err)
	}
	return nil
}

func (b *evdevBackend) findByID(id devid.ID) *trackedDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, td := range b.devices {
		if td.id == id {
			return td
		}
	}
	return nil
}

// enrichViaUSB looks up a matching USB device by vendor/product id to
// recover its manufacturer string and detect an Apple vendor id,
// mirroring aoa.Open's OpenDevices-by-descriptor-predicate idiom. A
// device with no matching USB interface (e.g. a Bluetooth HID device)
// simply gets no enrichment.
func (b *evdevBackend) enrichViaUSB(ids devid.Identifiers) (manufacturer string, isApple bool) {
	if b.usbCtx == nil || ids.VendorID == 0 {
		return "", false
	}

	const appleVendorID = 0x05ac

	devs, _ := b.usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(ids.VendorID) && desc.Product == gousb.ID(ids.ProductID)
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()

	if len(devs) == 0 {
		return "", ids.VendorID == appleVendorID
	}

	m, _ := devs[0].Manufacturer()
	return m, ids.VendorID == appleVendorID
}

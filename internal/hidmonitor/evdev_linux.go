//go:build linux

package hidmonitor

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
)

// Linux evdev ioctl request codes. golang.org/x/sys/unix does not export
// these (they are input.h macros, not syscall numbers), so they are
// derived the same way andrieee44-mylib/linux/input/uapi.go derives
// them: _IOR/_IOW('E', nr, size).
const (
	evBitsPerLong = 64

	ioctlRead  = 2
	ioctlWrite = 1

	evioctlMagic = 'E'
)

func iocSize(size uintptr) uintptr { return size }

func ior(nr uintptr, size uintptr) uintptr {
	return (ioctlRead << 30) | (evioctlMagic << 8) | nr | (iocSize(size) << 16)
}

func iow(nr uintptr, size uintptr) uintptr {
	return (ioctlWrite << 30) | (evioctlMagic << 8) | nr | (iocSize(size) << 16)
}

// evNameLen bounds how much of a device's name ioctl we read.
const evNameLen = 256

func eviocgname(length uintptr) uintptr { return ior(0x06, length) }

var eviocgid = ior(0x02, unsafe.Sizeof(inputID{}))

func eviocgbit(evType uintptr, length uintptr) uintptr {
	return ior(0x20+evType, length)
}

// eviocgrab is _IOW('E', 0x90, sizeof(int)): a non-zero argument grabs
// the device exclusively, zero releases it (spec.md §4.7, the OS
// primitive behind "seize").
var eviocgrab = iow(0x90, unsafe.Sizeof(int32(0)))

type inputID struct {
	BusType uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// inputEvent mirrors struct input_event on 64-bit Linux (struct timeval
// is two longs, 16 bytes on amd64/arm64).
type inputEvent struct {
	Sec, Usec int64
	Type      uint16
	Code      uint16
	Value     int32
}

const inputEventSize = 24

const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02
	evLED = 0x11

	relX      = 0x00
	relY      = 0x01
	relHWheel = 0x06
	relWheel  = 0x08

	keyStateUp     = 0
	keyStateDown   = 1
	keyStateRepeat = 2

	synReport = 0x00
	ledCapsL  = 0x01
)

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func readDeviceID(f *os.File) (inputID, error) {
	var id inputID
	if err := ioctl(f.Fd(), eviocgid, unsafe.Pointer(&id)); err != nil {
		return inputID{}, fmt.Errorf("EVIOCGID: %w", err)
	}
	return id, nil
}

func readDeviceName(f *os.File) (string, error) {
	buf := make([]byte, evNameLen)
	if err := ioctl(f.Fd(), eviocgname(evNameLen), unsafe.Pointer(&buf[0])); err != nil {
		return "", fmt.Errorf("EVIOCGNAME: %w", err)
	}
	return unix.ByteSliceToString(buf), nil
}

// hasEventBit reports whether evType's capability bitmap has bit set.
func hasEventBit(f *os.File, evType uintptr, bit uint, words int) (bool, error) {
	buf := make([]byte, words*8)
	if err := ioctl(f.Fd(), eviocgbit(evType, uintptr(len(buf))), unsafe.Pointer(&buf[0])); err != nil {
		return false, fmt.Errorf("EVIOCGBIT(%d): %w", evType, err)
	}
	byteIdx := bit / 8
	if int(byteIdx) >= len(buf) {
		return false, nil
	}
	return buf[byteIdx]&(1<<(bit%8)) != 0, nil
}

// classifyDevice inspects a device's key/relative-axis capability
// bitmaps to decide whether it is a keyboard and/or pointing device
// (spec.md §3 Identifiers.is_keyboard/is_pointing_device).
func classifyDevice(f *os.File) (isKeyboard, isPointing bool) {
	// KEY_A (30) present with a broad keymap is the simplest keyboard
	// signal; a handful of probes stand in for a full 512-bit scan.
	keyA, _ := hasEventBit(f, evKey, 30, 96)
	keyZ, _ := hasEventBit(f, evKey, 44, 96)
	isKeyboard = keyA && keyZ

	relXBit, _ := hasEventBit(f, evRel, relX, 1)
	relYBit, _ := hasEventBit(f, evRel, relY, 1)
	isPointing = relXBit && relYBit

	return isKeyboard, isPointing
}

func translateEvent(raw inputEvent, ts eventTimestampFunc) (translated, bool) {
	switch raw.Type {
	case evKey:
		if raw.Value == keyStateRepeat {
			return translated{}, false
		}
		et := translatedKeyUp
		if raw.Value == keyStateDown {
			et = translatedKeyDown
		}
		return translated{
			usagePage: 0x07,
			usage:     uint32(raw.Code),
			kind:      translatedKey,
			keyType:   et,
			now:       ts(),
		}, true

	case evRel:
		switch raw.Code {
		case relX, relY, relWheel, relHWheel:
			return translated{
				kind:  translatedMotion,
				axis:  raw.Code,
				delta: raw.Value,
				now:   ts(),
			}, true
		}
	case evSyn:
	}
	return translated{}, false
}

type translatedKind int

const (
	translatedKey translatedKind = iota
	translatedMotion
)

type translatedKeyType int

const (
	translatedKeyDown translatedKeyType = iota
	translatedKeyUp
)

type translated struct {
	kind      translatedKind
	usagePage uint32
	usage     uint32
	keyType   translatedKeyType
	axis      uint16
	delta     int32
	now       int64
}

type eventTimestampFunc func() int64

func readRawEvent(f *os.File) (inputEvent, error) {
	buf := make([]byte, inputEventSize)
	if _, err := f.Read(buf); err != nil {
		return inputEvent{}, err
	}
	var ev inputEvent
	ev.Sec = int64(binary.LittleEndian.Uint64(buf[0:8]))
	ev.Usec = int64(binary.LittleEndian.Uint64(buf[8:16]))
	ev.Type = binary.LittleEndian.Uint16(buf[16:18])
	ev.Code = binary.LittleEndian.Uint16(buf[18:20])
	ev.Value = int32(binary.LittleEndian.Uint32(buf[20:24]))
	return ev, nil
}

// writeRawEvent serializes ev in the same wire layout readRawEvent
// parses, then writes it to f.
func writeRawEvent(f *os.File, ev inputEvent) error {
	buf := make([]byte, inputEventSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(ev.Sec))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(ev.Usec))
	binary.LittleEndian.PutUint16(buf[16:18], ev.Type)
	binary.LittleEndian.PutUint16(buf[18:20], ev.Code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(ev.Value))
	_, err := f.Write(buf)
	return err
}

// writeLEDEvent drives one LED element's state, followed by the
// SYN_REPORT that makes it take effect (the same framing the kernel
// uses for LED output reports: EVIOCSFF is not needed for a simple
// on/off LED, a plain EV_LED write suffices).
func writeLEDEvent(f *os.File, code uint16, on bool) error {
	value := int32(0)
	if on {
		value = 1
	}
	if err := writeRawEvent(f, inputEvent{Type: evLED, Code: code, Value: value}); err != nil {
		return err
	}
	return writeRawEvent(f, inputEvent{Type: evSyn, Code: synReport, Value: 0})
}

func propertiesFromDevice(f *os.File) (devid.Identifiers, string, error) {
	id, err := readDeviceID(f)
	if err != nil {
		return devid.Identifiers{}, "", err
	}
	name, err := readDeviceName(f)
	if err != nil {
		return devid.Identifiers{}, "", err
	}
	isKeyboard, isPointing := classifyDevice(f)

	return devid.Identifiers{
		VendorID:         id.Vendor,
		ProductID:        id.Product,
		IsKeyboard:       isKeyboard,
		IsPointingDevice: isPointing,
	}, name, nil
}

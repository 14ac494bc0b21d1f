package grabber

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karabiner-grabberd/grabberd/internal/config"
	"github.com/karabiner-grabberd/grabberd/internal/devid"
	"github.com/karabiner-grabberd/grabberd/internal/event"
	"github.com/karabiner-grabberd/grabberd/internal/stuckdetect"
)

func keyA() event.UsagePair { return event.UsagePair{UsagePage: 0x07, Usage: 0x04} }

type recorder struct {
	grabbed   []devid.ID
	ungrabbed []devid.ID
	ledCalls  []ledCall
}

type ledCall struct {
	id devid.ID
	on bool
}

func (r *recorder) onGrabbed(id devid.ID, _ devid.Properties) { r.grabbed = append(r.grabbed, id) }
func (r *recorder) onUngrabbed(id devid.ID)                   { r.ungrabbed = append(r.ungrabbed, id) }
func (r *recorder) setLED(id devid.ID, on bool) error {
	r.ledCalls = append(r.ledCalls, ledCall{id: id, on: on})
	return nil
}

func newTestGrabber(t *testing.T) (*Grabber, *recorder) {
	t.Helper()
	cfg, err := config.New()
	require.NoError(t, err)
	r := &recorder{}
	return New(cfg, nil, r.onGrabbed, r.onUngrabbed, nil, r.setLED), r
}

func TestGrabber_MatchedConsumingDeviceGetsGrabbedImmediately(t *testing.T) {
	g, r := newTestGrabber(t)
	id := devid.Next()

	g.DeviceMatched(id, devid.Properties{Identifiers: devid.Identifiers{IsKeyboard: true}})

	assert.Equal(t, []devid.ID{id}, r.grabbed)
	entry, ok := g.Entry(id)
	require.True(t, ok)
	assert.True(t, entry.Grabbed())
}

func TestGrabber_NonConsumingDeviceNeverGrabbed(t *testing.T) {
	g, r := newTestGrabber(t)
	id := devid.Next()

	g.DeviceMatched(id, devid.Properties{})

	assert.Empty(t, r.grabbed)
	entry, ok := g.Entry(id)
	require.True(t, ok)
	assert.False(t, entry.Grabbed())
}

func TestGrabber_DeviceBoundaryDuringHeldKeyUngrabsUntilCycleCompletes(t *testing.T) {
	g, r := newTestGrabber(t)
	id := devid.Next()
	g.DeviceMatched(id, devid.Properties{Identifiers: devid.Identifiers{IsKeyboard: true}})
	require.Equal(t, []devid.ID{id}, r.grabbed)

	g.HandleObservedSwitch(id, keyA(), event.TypeKeyDown, stuckdetect.SourceSeized)
	g.HandleDeviceBoundary(id)

	assert.Equal(t, []devid.ID{id}, r.ungrabbed, "boundary during held key must ungrab")

	g.HandleObservedSwitch(id, keyA(), event.TypeKeyDown, stuckdetect.SourceObserved)
	g.HandleObservedSwitch(id, keyA(), event.TypeKeyUp, stuckdetect.SourceObserved)

	assert.Equal(t, []devid.ID{id, id}, r.grabbed, "full cycle after boundary re-grabs")
}

func TestGrabber_DeviceTerminatedUngrabsAndForgets(t *testing.T) {
	g, r := newTestGrabber(t)
	id := devid.Next()
	g.DeviceMatched(id, devid.Properties{Identifiers: devid.Identifiers{IsKeyboard: true}})

	g.DeviceTerminated(id)

	assert.Equal(t, []devid.ID{id}, r.ungrabbed)
	_, ok := g.Entry(id)
	assert.False(t, ok)
}

func loadConfigWithCapsLockLED(t *testing.T, cfg *config.Store, enabled bool) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "core_configuration.json")
	body := `{"devices":[{"identifiers":{},"manipulate_caps_lock_led":` + boolJSON(enabled) + `}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	require.NoError(t, cfg.Load(path))
}

func boolJSON(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func TestGrabber_CapsLockStateChangedDrivesLEDOnManagedGrabbedDevice(t *testing.T) {
	cfg, err := config.New()
	require.NoError(t, err)
	loadConfigWithCapsLockLED(t, cfg, true)

	r := &recorder{}
	g := New(cfg, nil, r.onGrabbed, r.onUngrabbed, nil, r.setLED)

	id := devid.Next()
	g.DeviceMatched(id, devid.Properties{Identifiers: devid.Identifiers{IsKeyboard: true}})
	require.Equal(t, []devid.ID{id}, r.grabbed)

	g.HandleCapsLockStateChanged(true)

	require.Equal(t, []ledCall{{id: id, on: true}}, r.ledCalls)

	// A repeat of the same state must not re-issue the hardware write.
	g.HandleCapsLockStateChanged(true)
	assert.Len(t, r.ledCalls, 1, "unchanged state must not be re-pushed")

	g.HandleCapsLockStateChanged(false)
	assert.Equal(t, []ledCall{{id: id, on: true}, {id: id, on: false}}, r.ledCalls)
}

func TestGrabber_CapsLockStateChangedSkipsDevicesWithoutManipulateCapsLockLED(t *testing.T) {
	g, r := newTestGrabber(t)
	id := devid.Next()
	g.DeviceMatched(id, devid.Properties{Identifiers: devid.Identifiers{IsKeyboard: true}})
	require.Equal(t, []devid.ID{id}, r.grabbed)

	g.HandleCapsLockStateChanged(true)

	assert.Empty(t, r.ledCalls, "a device whose config never set manipulate_caps_lock_led must not be driven")
}

func TestGrabber_SystemWillSleepUngrabsGrabbedDevices(t *testing.T) {
	g, r := newTestGrabber(t)
	id := devid.Next()
	g.DeviceMatched(id, devid.Properties{Identifiers: devid.Identifiers{IsKeyboard: true}})
	require.Equal(t, []devid.ID{id}, r.grabbed)

	g.HandleSystemWillSleep()
	assert.Equal(t, []devid.ID{id}, r.ungrabbed)

	g.HandleSystemHasPoweredOn()
	assert.Equal(t, []devid.ID{id, id}, r.grabbed)
}

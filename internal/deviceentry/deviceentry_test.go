package deviceentry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
)

func TestEntry_ShouldGrabRequiresConsumingDeviceAndPolicy(t *testing.T) {
	e := New(devid.Next(), devid.Properties{Identifiers: devid.Identifiers{IsKeyboard: true}})
	assert.False(t, e.ShouldGrab(), "unevaluated policy must not grab")

	e.SetPolicy(PolicyGrabbable)
	assert.True(t, e.ShouldGrab())

	e.SetDisabledByConfig(true)
	assert.False(t, e.ShouldGrab())
	e.SetDisabledByConfig(false)

	nonConsuming := New(devid.Next(), devid.Properties{})
	nonConsuming.SetPolicy(PolicyGrabbable)
	assert.False(t, nonConsuming.ShouldGrab())
}

func TestEntry_PolicyUngrabbableBlocksGrab(t *testing.T) {
	e := New(devid.Next(), devid.Properties{Identifiers: devid.Identifiers{IsPointingDevice: true}})
	e.SetPolicy(PolicyUngrabbableTemporarily)
	assert.False(t, e.ShouldGrab())
	assert.Equal(t, "ungrabbable_temporarily", e.Policy().String())
}

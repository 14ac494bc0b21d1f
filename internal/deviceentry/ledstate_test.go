package deviceentry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLEDState_ApplyRequiresManagedAndOnlyWritesOnChange(t *testing.T) {
	s := NewLEDState()

	assert.False(t, s.Apply(true), "unmanaged state must never request a write")

	s.SetManaged(true)
	assert.True(t, s.Apply(true), "first observation under management must write")
	assert.False(t, s.Apply(true), "repeating the same state must not write again")
	assert.True(t, s.Apply(false), "a real state change must write")
}

func TestLEDState_DisablingManagementForgetsLastKnownState(t *testing.T) {
	s := NewLEDState()
	s.SetManaged(true)
	assert.True(t, s.Apply(true))

	s.SetManaged(false)
	s.SetManaged(true)

	assert.True(t, s.Apply(true), "re-enabling management must write even if the state looks unchanged")
}

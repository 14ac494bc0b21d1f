package stuckdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karabiner-grabberd/grabberd/internal/event"
)

func keyA() event.UsagePair { return event.UsagePair{UsagePage: 0x07, Usage: 0x04} }

func TestDetector_BoundaryDuringHeldKeyMarksStuck(t *testing.T) {
	d := New()
	d.Update(keyA(), event.TypeKeyDown, SourceSeized)

	require.False(t, d.HasProbableStuckEvent())

	d.MarkDeviceBoundary()

	stuck, ok := d.FindProbableStuckEvent()
	require.True(t, ok)
	assert.Equal(t, keyA(), stuck)
}

func TestDetector_FullPressReleaseCycleClears(t *testing.T) {
	d := New()
	d.Update(keyA(), event.TypeKeyDown, SourceSeized)
	d.MarkDeviceBoundary()
	require.True(t, d.HasProbableStuckEvent())

	// A lone key-up (no intervening down) must not clear it.
	d.Update(keyA(), event.TypeKeyUp, SourceSeized)
	assert.True(t, d.HasProbableStuckEvent())

	d.Update(keyA(), event.TypeKeyDown, SourceSeized)
	regrab := d.Update(keyA(), event.TypeKeyUp, SourceSeized)

	assert.True(t, regrab)
	assert.False(t, d.HasProbableStuckEvent())
}

func TestDetector_NoBoundaryNoStuck(t *testing.T) {
	d := New()
	d.Update(keyA(), event.TypeKeyDown, SourceSeized)
	d.Update(keyA(), event.TypeKeyUp, SourceSeized)
	assert.False(t, d.HasProbableStuckEvent())
}

func TestDetector_SourceTransitionOnHeldKeyTriggersRegrab(t *testing.T) {
	d := New()
	d.Update(keyA(), event.TypeKeyDown, SourceSeized)
	regrab := d.Update(keyA(), event.TypeKeyUp, SourceObserved)
	assert.True(t, regrab)
}

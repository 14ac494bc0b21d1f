package virtualhid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNull_SimulateCapsLockStateChangedInvokesRegisteredCallback(t *testing.T) {
	n := NewNull()

	var got []bool
	n.OnCapsLockStateChanged(func(on bool) {
		got = append(got, on)
	})

	n.SimulateCapsLockStateChanged(true)
	n.SimulateCapsLockStateChanged(false)

	assert.Equal(t, []bool{true, false}, got)
}

func TestNull_SimulateCapsLockStateChangedWithNoCallbackIsANoop(t *testing.T) {
	n := NewNull()
	assert.NotPanics(t, func() { n.SimulateCapsLockStateChanged(true) })
}

// Package killer implements the fatal-condition signal the spec's
// Design Notes describe as a "components-manager killer": a one-shot
// channel whose sender is handed to any component that may detect a
// condition the whole daemon cannot recover from (e.g. the HID backend
// reporting it is no longer permitted to open any device at all).
package killer

import "sync"

// Killer is a one-shot broadcast: Kill may be called any number of
// times and from any goroutine, but the Done channel closes exactly
// once, on the first call.
type Killer struct {
	once sync.Once
	done chan struct{}
	err  error
	mu   sync.Mutex
}

// New returns a Killer that has not fired.
func New() *Killer {
	return &Killer{done: make(chan struct{})}
}

// Kill fires the killer, recording reason as the cause of death. Only
// the first call's reason is kept.
func (k *Killer) Kill(reason error) {
	k.once.Do(func() {
		k.mu.Lock()
		k.err = reason
		k.mu.Unlock()
		close(k.done)
	})
}

// Done returns a channel that closes when Kill is first called, for use
// in a select alongside a dispatcher's other cases.
func (k *Killer) Done() <-chan struct{} {
	return k.done
}

// Err returns the reason passed to the first Kill call, or nil if the
// killer has not fired.
func (k *Killer) Err() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.err
}

// Killed reports whether Kill has fired, without blocking.
func (k *Killer) Killed() bool {
	select {
	case <-k.done:
		return true
	default:
		return false
	}
}

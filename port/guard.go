package port

import "sync/atomic"

// Guard is a single-flight flag. It is not a lock: a second acquirer does not
// wait, it fails immediately.
type Guard struct {
	busy atomic.Bool
}

// TryAcquire takes the guard. It returns false if the guard is already held.
func (g *Guard) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release frees the guard.
func (g *Guard) Release() {
	g.busy.Store(false)
}

// Busy reports whether the guard is held.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}

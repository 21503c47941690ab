package chat

import "sync/atomic"

// Gate admits one send at a time. The zero value is idle.
type Gate struct {
	busy atomic.Bool
}

// TryAcquire moves Idle to Busy. It reports false, changing nothing, when already busy.
func (g *Gate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release returns the gate to Idle.
func (g *Gate) Release() {
	g.busy.Store(false)
}

// Busy reports whether a send is in flight.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}

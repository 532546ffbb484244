// Package mailbox provides a two-cell non-blocking exchange which moves the
// most recent value from a single producer to a single consumer. It is not a
// queue: intermediate values may be overwritten before the consumer sees
// them, only the last completed write is guaranteed visible to the next read.
package mailbox

import "sync/atomic"

type cell[T any] struct {
	busy atomic.Bool
	data T
	// producer and consumer touch different cells most of the time,
	// keep them off the same cache line
	_ [40]byte
}

// Exchange passes values between exactly one writing and one reading
// goroutine. Neither side ever waits on the other beyond the window of a
// single in-place copy: the writer fills the cell the reader is not holding,
// the reader visits the cell written last. Concurrent calls to Write or
// concurrent calls to Read are a usage error.
//
// Both cells hold zero values until seeded with Write, so the owner is
// expected to write twice at construction to make the first Read defined.
type Exchange[T any] struct {
	cells       [2]cell[T]
	lastWritten atomic.Int32
}

// Write fills the spare cell in place via fn and publishes it as the most
// recent value. It never allocates.
func (e *Exchange[T]) Write(fn func(*T)) {
	i := 1 - e.lastWritten.Load()
	c := &e.cells[i]
	for !c.busy.CompareAndSwap(false, true) {
	}
	fn(&c.data)
	c.busy.Store(false)
	e.lastWritten.Store(i)
}

// Read visits the most recently published cell via fn. If nothing was
// written since the previous call it revisits the same cell, so fn must
// tolerate seeing a value twice.
func (e *Exchange[T]) Read(fn func(*T)) {
	c := &e.cells[e.lastWritten.Load()]
	for !c.busy.CompareAndSwap(false, true) {
	}
	fn(&c.data)
	c.busy.Store(false)
}

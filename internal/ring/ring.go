// Package ring implements a fixed-capacity, power-of-two-sized single
// producer / single consumer queue of events.UiEvent. It never allocates
// after construction and never blocks: the producer drops on a full ring,
// since these events are advisory UI notifications, never a delivery
// guarantee.
//
// Memory ordering follows the classic SPSC bip-buffer pattern: the producer
// publishes with a release store on tail, the consumer observes it with an
// acquire load; symmetrically for head.
package ring

import (
	"sync/atomic"

	"ninjamplugin/internal/events"
)

// Ring is a bounded SPSC queue of events.UiEvent. The zero value is not
// usable; construct with New.
type Ring struct {
	buf  []events.UiEvent
	mask uint64

	// head is advanced only by the consumer; tail only by the producer.
	// Each is read by the other side to compute fullness/emptiness.
	head atomic.Uint64
	tail atomic.Uint64
}

// New creates a Ring whose capacity is rounded up to the next power of two
// (minimum 8).
func New(capacity int) *Ring {
	if capacity < 8 {
		capacity = 8
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring{
		buf:  make([]events.UiEvent, size),
		mask: uint64(size - 1),
	}
}

// TryPush attempts to enqueue ev. Returns false if the ring is full; the
// caller (always the worker thread) treats that as an advisory drop.
func (r *Ring) TryPush(ev events.UiEvent) bool {
	tail := r.tail.Load()
	head := r.head.Load() // acquire: consumer's most recent progress
	if tail-head >= uint64(len(r.buf)) {
		return false // full
	}
	r.buf[tail&r.mask] = ev
	r.tail.Store(tail + 1) // release: publish the new element
	return true
}

// Drain repeatedly pops events in FIFO order and invokes visitor on each,
// until the ring is empty. Safe to call only from the single consumer.
func (r *Ring) Drain(visitor func(events.UiEvent)) {
	head := r.head.Load()
	for {
		tail := r.tail.Load() // acquire: producer's most recent publish
		if head == tail {
			break
		}
		visitor(r.buf[head&r.mask])
		head++
		r.head.Store(head) // release: free the slot for the producer
	}
}

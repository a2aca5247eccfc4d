// Package rtring provides a lock-free single-producer, single-consumer ring
// of fixed-size values.
//
// It is the side channel between the PortAudio callback (producer) and a
// control goroutine (consumer). The producer side never blocks and never
// allocates: when the ring is full the value is dropped and counted.
//
// Memory ordering: Go's sync/atomic provides sequential consistency.
// The producer stores head after writing the slot; the consumer loads head
// before reading the slot, so it always sees a fully written value.
//
// Thread assignment:
//   - TryPush: producer (audio callback) only
//   - TryPop, Drain: consumer goroutine only
//   - Len, Cap, Dropped: any goroutine
package rtring

import "sync/atomic"

// Ring is a bounded SPSC queue. The zero value is not usable; use New.
type Ring[T any] struct {
	// Separate cache lines to prevent false sharing between producer and consumer.
	head  atomic.Uint64
	_pad1 [56]byte
	tail  atomic.Uint64
	_pad2 [56]byte

	dropped atomic.Uint64

	slots []T
	mask  uint64
}

// New creates a ring with capacity rounded up to the next power of two.
func New[T any](minSize int) *Ring[T] {
	size := 1
	for size < minSize {
		size <<= 1
	}
	return &Ring[T]{
		slots: make([]T, size),
		mask:  uint64(size - 1),
	}
}

// TryPush appends v. It returns false, and counts a drop, when the ring is
// full.
func (r *Ring[T]) TryPush(v T) bool {
	h := r.head.Load()
	t := r.tail.Load()
	if h-t == uint64(len(r.slots)) {
		r.dropped.Add(1)
		return false
	}
	r.slots[h&r.mask] = v
	r.head.Store(h + 1)
	return true
}

// TryPop removes the oldest value. ok is false when the ring is empty.
func (r *Ring[T]) TryPop() (v T, ok bool) {
	t := r.tail.Load()
	h := r.head.Load()
	if h == t {
		return v, false
	}
	v = r.slots[t&r.mask]
	r.tail.Store(t + 1)
	return v, true
}

// Drain pops every value currently queued and passes it to fn, oldest
// first. It returns the number of values handled.
func (r *Ring[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, ok := r.TryPop()
		if !ok {
			return n
		}
		fn(v)
		n++
	}
}

// Len returns the number of queued values.
func (r *Ring[T]) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.slots)
}

// Dropped returns how many pushes were rejected because the ring was full.
func (r *Ring[T]) Dropped() uint64 {
	return r.dropped.Load()
}

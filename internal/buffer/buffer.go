// Package buffer provides an insertion-ordered sample buffer that can either
// grow without bound or keep only the newest N entries.
package buffer

// Unbounded is the capacity value for a buffer that never evicts.
const Unbounded = 0

// Buffer holds values in insertion order. A bounded buffer is a ring: once
// full, each Append overwrites the oldest value.
//
// Buffer is not safe for concurrent use.
type Buffer[T any] struct {
	capacity int
	items    []T
	head     int // index of the oldest item when bounded and full
}

// New returns a buffer holding at most capacity items, or an unbounded buffer
// when capacity <= 0.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 0 {
		capacity = Unbounded
	}
	b := &Buffer[T]{capacity: capacity}
	if capacity > 0 {
		b.items = make([]T, 0, capacity)
	}
	return b
}

// Append adds v as the newest item, evicting the oldest one if the buffer is
// bounded and full.
func (b *Buffer[T]) Append(v T) {
	if b.capacity == Unbounded || len(b.items) < b.capacity {
		b.items = append(b.items, v)
		return
	}
	b.items[b.head] = v
	b.head = (b.head + 1) % b.capacity
}

// Len returns the number of items held.
func (b *Buffer[T]) Len() int { return len(b.items) }

// Cap returns the configured capacity (Unbounded for unbounded buffers).
func (b *Buffer[T]) Cap() int { return b.capacity }

// Snapshot returns a copy of all items, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	return b.Tail(len(b.items))
}

// Tail returns a copy of the newest n items, oldest first. It returns fewer
// than n when the buffer holds fewer.
func (b *Buffer[T]) Tail(n int) []T {
	size := len(b.items)
	if n > size {
		n = size
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	start := size - n // logical index of the first item returned
	for i := range out {
		out[i] = b.items[(b.head+start+i)%size]
	}
	return out
}

// Reset drops all items and keeps the capacity.
func (b *Buffer[T]) Reset() {
	clear(b.items)
	b.items = b.items[:0]
	b.head = 0
}

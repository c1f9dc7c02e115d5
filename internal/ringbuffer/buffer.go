package ringbuffer

import "sync"

// DefaultCapacity is the server-side history window per session.
const DefaultCapacity = 1000

// Buffer is a bounded ring of T.
type Buffer[T any] struct {
	mu    sync.RWMutex
	data  []T
	head  int // index of the oldest element
	size  int
	total uint64
}

// New creates a Buffer holding at most capacity elements. A non-positive
// capacity falls back to DefaultCapacity.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer[T]{data: make([]T, capacity)}
}

// Append adds v as the newest element, evicting the oldest when full.
func (b *Buffer[T]) Append(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	if b.size < len(b.data) {
		b.data[(b.head+b.size)%len(b.data)] = v
		b.size++
		return
	}
	// Full: overwrite the oldest slot and advance head in the same step.
	b.data[b.head] = v
	b.head = (b.head + 1) % len(b.data)
}

// Snapshot returns a copy of the contents, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tailLocked(b.size)
}

// Tail returns a copy of the newest n elements, oldest first. n is clamped
// to Len().
func (b *Buffer[T]) Tail(n int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n > b.size {
		n = b.size
	}
	return b.tailLocked(n)
}

func (b *Buffer[T]) tailLocked(n int) []T {
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	start := b.head + b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.data[(start+i)%len(b.data)]
	}
	return out
}

// Clear empties the buffer. Total() is not reset.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	var zero T
	for i := range b.data {
		b.data[i] = zero
	}
	b.head = 0
	b.size = 0
}

// Len returns the number of elements currently held.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.data) }

// Total returns the number of values ever appended.
func (b *Buffer[T]) Total() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

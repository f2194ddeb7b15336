// Package ringbuf provides a fixed-capacity ring buffer used for the
// aggregator's candle window and the liquidation history.
package ringbuf

// Buffer is a fixed-size circular buffer. Appending beyond capacity
// overwrites the oldest element; no resizing.
type Buffer[T any] struct {
	data     []T
	capacity int
	index    int // next write position
	size     int
}

// New creates a buffer with the given fixed capacity
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// Append adds an element, dropping the oldest when full
func (b *Buffer[T]) Append(item T) {
	b.data[b.index] = item
	b.index = (b.index + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Latest returns up to n most recent elements in insertion order
// (oldest of the n first)
func (b *Buffer[T]) Latest(n int) []T {
	if b.size == 0 || n <= 0 {
		return nil
	}
	count := n
	if count > b.size {
		count = b.size
	}
	result := make([]T, count)
	start := (b.index - count + b.capacity) % b.capacity
	for i := 0; i < count; i++ {
		result[i] = b.data[(start+i)%b.capacity]
	}
	return result
}

// All returns every element in insertion order, oldest first
func (b *Buffer[T]) All() []T {
	return b.Latest(b.size)
}

// Len returns the current number of elements
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the fixed capacity
func (b *Buffer[T]) Cap() int {
	return b.capacity
}

// Clear resets the buffer without releasing storage
func (b *Buffer[T]) Clear() {
	b.index = 0
	b.size = 0
}

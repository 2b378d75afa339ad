// Package ringchan provides a bounded channel with overwrite-oldest
// semantics, used to stream advertisement events to slow consumers without
// ever blocking the dispatch path.
package ringchan

// RingChannel wraps a buffered channel so producers never block: when the
// buffer is full, the oldest element is discarded to make room.
//
// Writers use Send or TrySend. Readers range over C() until it is closed.
type RingChannel[T any] struct {
	ch chan T
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel. Consumers can range over
// this until it is closed.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts an item, discarding the oldest element when the buffer is
// full. It never blocks indefinitely.
func (rc *RingChannel[T]) Send(v T) {
	select {
	case rc.ch <- v:
	default:
		select {
		case <-rc.ch: // drop oldest
		default:
		}
		rc.ch <- v
	}
}

// TrySend attempts to insert without blocking or dropping.
// Returns false if the buffer is full.
func (rc *RingChannel[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the channel capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the underlying channel. Send panics after Close.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}

// Package mailbox provides a bounded, drop-oldest inbox for single-consumer
// dispatch loops.
//
// Producers (bus subscription callbacks) call Put from any goroutine; one
// consumer drains items in arrival order. When the mailbox is full the
// oldest item is discarded, which matches a best-effort at-most-once bus:
// a dropped request is indistinguishable from one the bus never delivered.
package mailbox

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Mailbox is a fixed-capacity FIFO with drop-oldest overflow.
type Mailbox[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
	size  int

	ready   chan struct{}
	closed  bool
	dropped atomic.Uint64
}

// New creates a mailbox holding up to capacity items.
func New[T any](capacity int) (*Mailbox[T], error) {
	if capacity <= 0 {
		return nil, errors.New("mailbox: capacity must be positive")
	}
	return &Mailbox[T]{
		items: make([]T, capacity),
		ready: make(chan struct{}, 1),
	}, nil
}

// Put appends an item, discarding the oldest entry when full. It reports
// whether an item was discarded. Put on a closed mailbox is a no-op.
func (m *Mailbox[T]) Put(item T) (overflowed bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}

	if m.size == len(m.items) {
		// Overwrite the slot at head and advance: oldest item lost.
		m.head = (m.head + 1) % len(m.items)
		m.size--
		overflowed = true
		m.dropped.Add(1)
	}

	tail := (m.head + m.size) % len(m.items)
	m.items[tail] = item
	m.size++
	m.mu.Unlock()

	m.signal()
	return overflowed
}

// Take removes and returns the oldest item. The second result is false
// when the mailbox is empty.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if m.size == 0 {
		return zero, false
	}

	item := m.items[m.head]
	m.items[m.head] = zero // release for GC
	m.head = (m.head + 1) % len(m.items)
	m.size--
	return item, true
}

// Ready returns a channel that receives a signal whenever items may be
// available. The consumer must drain with Take until empty after each
// signal; signals are coalesced, not counted.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.ready
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Dropped returns the total number of items discarded by overflow.
func (m *Mailbox[T]) Dropped() uint64 {
	return m.dropped.Load()
}

// Close rejects further Puts. Queued items remain readable via Take.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *Mailbox[T]) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

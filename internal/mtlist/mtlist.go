package mtlist

import "sync"

// List is an unbounded multi-producer/multi-consumer FIFO list. One List
// instance backs every cross-thread handoff in the nexus: session management
// packet queues, background work submission queues, and background response
// queues. A zero List is not usable; create instances with New.
type List[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

// New creates an empty list.
func New[T any]() *List[T] {
	l := &List[T]{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Push appends item to the tail of the list and wakes one blocked waiter.
// Pushing to a closed list is allowed; the item stays queued and is visible
// to TryPop only.
func (l *List[T]) Push(item T) {
	l.mu.Lock()
	l.items = append(l.items, item)
	l.mu.Unlock()
	l.cond.Signal()
}

// TryPop removes and returns the head of the list without blocking.
// It returns ok=false if the list is empty. TryPop keeps working after
// Close so callers can inspect leftover items.
func (l *List[T]) TryPop() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		var zero T
		return zero, false
	}
	return l.popLocked(), true
}

// PopWait blocks until an item is available or the list is closed.
// Once the list is closed PopWait returns ok=false immediately, even if
// items remain queued; this is the cooperative shutdown path for the
// background workers, which must not dequeue new work after the kill
// switch is raised.
func (l *List[T]) PopWait() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		if l.closed {
			var zero T
			return zero, false
		}
		if len(l.items) > 0 {
			return l.popLocked(), true
		}
		l.cond.Wait()
	}
}

// popLocked removes and returns the head. Caller holds l.mu and has
// verified the list is non-empty.
func (l *List[T]) popLocked() T {
	item := l.items[0]
	var zero T
	l.items[0] = zero // release the reference
	l.items = l.items[1:]
	if len(l.items) == 0 {
		l.items = nil
	}
	return item
}

// Len returns the number of queued items.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Close marks the list closed and wakes every blocked PopWait caller.
// Close is idempotent.
func (l *List[T]) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (l *List[T]) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

package queue

import (
	"code.hybscloud.com/iox"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Pop and TryPop once the queue is closed and drained
var ErrClosed = errors.New("queue closed")

// node represents a single element in the queue
type node[T interface{}] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// LockFreeMPSC is an unbounded multi-producer single-consumer queue.
// Producers append to a linked list with atomic operations and never take a lock.
// Consumers are serialized by an internal mutex, which is also used to park a
// blocking Pop until a producer signals new data.
type LockFreeMPSC[T interface{}] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	closed atomic.Bool
	length atomic.Int64

	// Condition variable for efficient waiting
	mu   sync.Mutex
	cond *sync.Cond
}

// NewLockFreeMPSC creates a new multi-producer single-consumer queue
func NewLockFreeMPSC[T interface{}]() *LockFreeMPSC[T] {
	// Create a sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	q := &LockFreeMPSC[T]{}
	q.cond = sync.NewCond(&q.mu)

	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	return q
}

// Push adds an item to the queue.
// Returns true if the item was added, or false if the queue is closed or value is nil.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *LockFreeMPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	// adaptive backoff between failed appends, spins first and yields later
	var bo iox.Backoff

	for {
		tailNode := q.tail.Load()

		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				/*
				 Successfully appended, now try to update tail
				 Note: CAS may fail if another producer helps update tail,
				 but that's okay - tail will still be updated eventually
				*/
				q.tail.CompareAndSwap(tailNode, newNode)
				q.length.Add(1)

				// the lock makes sure a consumer between its empty check and Wait does not miss the signal
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
				return true
			}
		} else {
			// help update the tail pointer if another producer has already appended a node
			q.tail.CompareAndSwap(tailNode, next)
		}

		bo.Wait()
	}
}

// pop removes the head item, the caller must hold q.mu
func (q *LockFreeMPSC[T]) pop() (*T, bool) {
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return nil, false
	}

	value := next.value

	// move head pointer (free up memory)
	q.head.Store(next)
	next.value = nil
	q.length.Add(-1)

	return value, true
}

// TryPop removes and returns the oldest item without blocking.
// It returns iox.ErrWouldBlock if the queue is empty and ErrClosed if the
// queue is empty and closed.
func (q *LockFreeMPSC[T]) TryPop() (*T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if value, ok := q.pop(); ok {
		return value, nil
	}
	if q.closed.Load() {
		return nil, ErrClosed
	}
	return nil, iox.ErrWouldBlock
}

// Pop removes and returns the oldest item, blocking until one is available.
// Items pushed before Close are still delivered, afterwards ErrClosed is returned.
func (q *LockFreeMPSC[T]) Pop() (*T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if value, ok := q.pop(); ok {
			return value, nil
		}
		if q.closed.Load() {
			return nil, ErrClosed
		}
		q.cond.Wait()
	}
}

// Close closes the queue, preventing further writes.
// Any items already in the queue will still be delivered to the consumer.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)

	// wake up every consumer that is waiting
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

// IsClosed returns true if the queue is closed.
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns an approximate count of the number of items in the queue.
func (q *LockFreeMPSC[T]) Len() int {
	return int(q.length.Load())
}

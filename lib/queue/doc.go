// Package queue provides a lock-free Multi-Producer Single-Consumer (MPSC) queue.
//
// The connection uses it as its event queue: the reader goroutine pushes
// events and errors of unchecked requests, the owning goroutine pushes locally
// re-injected errors, and the display pops them with TryPop (poll) or Pop (wait).
//
// Features and Guarantees:
//
//   - Lock-Free writes: producers append with atomic operations and back off
//     adaptively (iox.Backoff) under contention
//   - Unbounded Size: the queue can grow to any size as needed, limited only by available memory
//   - Small Footprint: minimal memory overhead per item (two pointers per item)
//   - Serialized Consumers: TryPop and Pop may be called from several goroutines,
//     but only one of them removes an item at a time
//   - FIFO per producer: items of one producer are delivered in push order. Under
//     concurrent Push() operations, the order between producers is determined by
//     which producer completes its append first.
package queue

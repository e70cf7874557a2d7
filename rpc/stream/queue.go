package stream

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/jrcall/jrcall/rpc/jsonrpc"
)

// outputNode is a single element of the output queue
type outputNode struct {
	value *jsonrpc.Output
	next  atomic.Pointer[outputNode]
}

// OutputQueue is a lock-free multi-producer single-consumer queue for
// result lines. All workers push completed outputs concurrently; the one
// writer goroutine consumes them through Recv, which keeps the output
// stream free of interleaved lines without a lock on the hot path.
type OutputQueue struct {
	head     atomic.Pointer[outputNode]
	tail     atomic.Pointer[outputNode]
	out      chan *jsonrpc.Output
	consumer sync.WaitGroup
	closed   atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
}

// NewOutputQueue creates the queue and starts its consumer goroutine
func NewOutputQueue() *OutputQueue {
	sentinel := &outputNode{}

	q := &OutputQueue{
		out: make(chan *jsonrpc.Output),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// Push adds an output to the queue.
// Returns false if the queue is already closed.
//
// Thread-safety: safe for concurrent use by any number of workers.
func (q *OutputQueue) Push(value *jsonrpc.Output) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &outputNode{value: value}

	var backoff uint8

	for {
		tailNode := q.tail.Load()

		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// CAS on tail may fail if another producer helped, the
				// tail still converges
				q.tail.CompareAndSwap(tailNode, newNode)

				// The lock pins the consumer outside its double-check /
				// Wait window, so the signal cannot be lost
				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// help a stalled producer move the tail forward
			q.tail.CompareAndSwap(tailNode, next)
		}

		// Exponential backoff under contention: spin first, then yield
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// consume moves items from the linked list to the output channel
func (q *OutputQueue) consume() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}

			hasItems = true
			value := next.value
			q.head.Store(next)
			q.out <- value
			next.value = nil
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			head := q.head.Load()
			if head.next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the consumer side of the queue. The channel is closed
// after Close once every queued item has been delivered.
func (q *OutputQueue) Recv() <-chan *jsonrpc.Output {
	return q.out
}

// Close prevents further writes; queued items are still delivered
func (q *OutputQueue) Close() {
	q.mu.Lock()
	q.closed.Store(true)
	q.cond.Signal()
	q.mu.Unlock()
}

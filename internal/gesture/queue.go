package gesture

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQueueClosed is returned by Get once the queue is closed and drained.
var ErrQueueClosed = errors.New("queue closed")

// Result is one published item: a (key, sequence) pair or the empty marker.
type Result struct {
	Key      int
	Sequence Sequence
	ok       bool
}

// NewResult returns a non-empty result.
func NewResult(key int, seq Sequence) Result {
	return Result{Key: key, Sequence: seq, ok: true}
}

// EmptyResult returns the "no gesture this poll" marker.
func EmptyResult() Result {
	return Result{}
}

// Empty reports whether r is the empty marker.
func (r Result) Empty() bool {
	return !r.ok
}

func (r Result) String() string {
	if r.Empty() {
		return "none"
	}
	return fmt.Sprintf("(%d, %s)", r.Key, r.Sequence)
}

// Queue is an unbounded FIFO of results. Put never blocks; any number of
// goroutines may call Get.
type Queue struct {
	mu     sync.Mutex
	items  []Result
	ready  chan struct{}
	done   chan struct{}
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Put appends r. Results put after Close are discarded.
func (q *Queue) Put(r Result) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, r)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// TryGet removes and returns the oldest result without blocking.
func (q *Queue) TryGet() (Result, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Result{}, false
	}
	r := q.items[0]
	q.items[0] = Result{}
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return r, true
}

// Get blocks until a result is available, ctx is done or the queue is
// closed and drained.
func (q *Queue) Get(ctx context.Context) (Result, error) {
	for {
		if r, ok := q.TryGet(); ok {
			return r, nil
		}
		select {
		case <-q.done:
			if r, ok := q.TryGet(); ok {
				return r, nil
			}
			return Result{}, ErrQueueClosed
		default:
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-q.done:
		case <-q.ready:
		}
	}
}

// Len returns the number of queued results.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting results and wakes blocked readers once drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

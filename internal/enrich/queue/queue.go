package queue

import (
	"context"
	"sync"
)

// Queue is a FIFO multi-producer/multi-consumer queue with an outstanding-work
// counter. Every pushed item counts as outstanding until Done is called for it,
// so a worker that re-enqueues a fallback before calling Done keeps the queue
// open for its peers.
type Queue struct {
	mu          sync.Mutex
	items       []WorkItem
	head        int
	outstanding int
	// changed is closed and replaced on every push or Done.
	changed chan struct{}
}

func New() *Queue {
	return &Queue{changed: make(chan struct{})}
}

// Push appends item and counts it as outstanding.
func (q *Queue) Push(item WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	q.outstanding++
	q.notifyLocked()
}

// TryPop removes the oldest item without blocking. An empty queue is a benign
// ok=false, even if a peer is about to re-enqueue.
func (q *Queue) TryPop() (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Pop blocks until an item is available, the queue closes (no outstanding
// work), or ctx is done. closed=true means all work is accounted for.
func (q *Queue) Pop(ctx context.Context) (item WorkItem, closed bool, err error) {
	for {
		q.mu.Lock()
		if it, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return it, false, nil
		}
		if q.outstanding == 0 {
			q.mu.Unlock()
			return WorkItem{}, true, nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return WorkItem{}, false, ctx.Err()
		}
	}
}

// Done marks one popped item as fully processed.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.outstanding == 0 {
		panic("queue: Done called more times than Push")
	}
	q.outstanding--
	q.notifyLocked()
}

// Wait blocks until every pushed item has been marked Done.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.outstanding == 0 {
			q.mu.Unlock()
			return nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Len is the number of queued (not yet popped) items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Outstanding is the number of pushed items not yet marked Done.
func (q *Queue) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding
}

func (q *Queue) popLocked() (WorkItem, bool) {
	if q.head >= len(q.items) {
		return WorkItem{}, false
	}
	it := q.items[q.head]
	q.items[q.head] = WorkItem{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return it, true
}

func (q *Queue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

package workerpool

import (
	"sync"
	"time"
)

// Queue is a FIFO shared by producers and workers. All access goes through its
// mutex. With maxDepth zero it is unbounded and Enqueue never fails.
type Queue struct {
	mu       sync.Mutex
	items    []Job
	maxDepth int
	closed   bool
	ready    chan struct{}
	done     chan struct{}
}

func NewQueue(maxDepth int) *Queue {
	return &Queue{
		maxDepth: maxDepth,
		ready:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Enqueue appends job to the tail. It only fails when a depth limit is configured
// and reached.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if q.maxDepth > 0 && len(q.items) >= q.maxDepth {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.items = append(q.items, job)
	q.mu.Unlock()

	q.notify()
	return nil
}

// Dequeue returns the head job, waiting up to poll for one to arrive. The boolean
// is false when the wait expired, or immediately when the queue is closed and empty.
func (q *Queue) Dequeue(poll time.Duration) (Job, bool) {
	timer := time.NewTimer(poll)
	defer timer.Stop()

	for {
		if job, ok := q.pop(); ok {
			return job, true
		}
		if q.isClosed() {
			return Job{}, false
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-timer.C:
			return q.pop()
		}
	}
}

func (q *Queue) pop() (Job, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return Job{}, false
	}
	job := q.items[0]
	q.items[0] = Job{}
	q.items = q.items[1:]
	remaining := len(q.items)
	q.mu.Unlock()

	// pass the wakeup on so another idle worker picks up the rest
	if remaining > 0 {
		q.notify()
	}
	return job, true
}

func (q *Queue) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Close wakes every idle consumer. Jobs already queued can still be dequeued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

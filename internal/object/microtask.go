// Package object implements SharedObject: an in-worker projection over a
// BufferStruct that batches local writes, reconciles peer writes under the
// buffer's lock, and drives a perpetual notify/wait loop that propagates
// updates with eventually-consistent semantics.
package object

import "sync"

// Scheduler runs tasks one at a time, in submission order, standing in for
// a worker's microtask queue. A single Scheduler is shared by every
// SharedObject belonging to one worker, so that all synchronous setters
// following one user operation coalesce onto the same run of the queue —
// the ordering property the mutation cycle depends on.
type Scheduler interface {
	Schedule(task func())
}

// Queue is the default Scheduler: one goroutine draining a channel of
// tasks, buffered to 64 entries, in FIFO order.
type Queue struct {
	tasks     chan func()
	closeOnce sync.Once
}

// NewQueue starts a Queue's draining goroutine and returns it.
func NewQueue() *Queue {
	q := &Queue{tasks: make(chan func(), 64)}
	go q.run()
	return q
}

func (q *Queue) run() {
	for task := range q.tasks {
		task()
	}
}

// Schedule enqueues task. It blocks the caller while the channel's 64-task
// buffer is full.
func (q *Queue) Schedule(task func()) {
	q.tasks <- task
}

// Close stops the draining goroutine once pending tasks finish. Idempotent:
// a Router may reach the same Queue's teardown through both a handleClose
// and an outer Destroy/cleanup path.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.tasks) })
}

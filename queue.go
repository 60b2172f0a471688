// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import (
	"sync"

	"github.com/eapache/queue"
)

// taskQueue is an unbounded multi-producer queue of closures. Producers
// never block; a producer may hold the exclusion token that the draining
// consumer needs, so the queue grows instead. Delivery is FIFO.
//
// The session uses one as its cross-runtime job channel (many producers,
// one consumer: the driver goroutine); ThreadPool uses one as its task
// inbox (many producers, worker consumers).
type taskQueue struct {
	mu     sync.Mutex
	buf    *queue.Queue
	wakeCh chan struct{}
	closed bool
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		buf:    queue.New(),
		wakeCh: make(chan struct{}, 1),
	}
}

// push enqueues fn and signals the wake channel. Returns ErrClosed after
// close; a dropped closure is never executed.
func (q *taskQueue) push(fn func()) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.buf.Add(fn)
	q.mu.Unlock()
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

// pop dequeues the oldest closure. Non-blocking.
func (q *taskQueue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buf.Length() == 0 {
		return nil, false
	}
	return q.buf.Remove().(func()), true
}

// wake signals whenever a push may have made pop succeed. Capacity 1:
// consumers must re-poll pop after each receive.
func (q *taskQueue) wake() <-chan struct{} {
	return q.wakeCh
}

// close rejects further pushes. Closures still queued are dropped by
// whichever consumer stops polling.
func (q *taskQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Package queue implements the outbound side of the gateway: one FIFO
// dispatch queue per destination, drained under a per-minute admission
// window, plus the manager owning the queue set and the executor translating
// released actions into platform calls.
package queue

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"gateway/internal/models"
)

// ActionExecutor consumes one released action. Implementations never return
// an error; outbound delivery is best-effort and failures are swallowed.
type ActionExecutor interface {
	Execute(req *models.ActionRequest)
}

// Queue buffers pending actions for one destination and releases at most
// capacity of them per window, one per tick, in enqueue order.
type Queue struct {
	chatID   int64
	capacity int
	window   time.Duration
	tick     time.Duration
	exec     ActionExecutor
	logger   *zap.Logger

	mu          sync.Mutex
	pending     []*models.ActionRequest
	windowStart time.Time
	released    int
	draining    bool

	stop chan struct{}
	done chan struct{}
}

func newQueue(chatID int64, capacity int, tick, window time.Duration, exec ActionExecutor, logger *zap.Logger) *Queue {
	q := &Queue{
		chatID:      chatID,
		capacity:    capacity,
		window:      window,
		tick:        tick,
		exec:        exec,
		logger:      logger,
		windowStart: time.Now(),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	ticker := time.NewTicker(q.tick)
	defer ticker.Stop()
	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			q.tryDrain()
		}
	}
}

// tryDrain performs one Idle->Draining transition. When the current window is
// exhausted it returns immediately and the next tick retries; there is no
// in-place wait. The released action is executed synchronously with respect
// to this queue, which preserves per-destination ordering.
func (q *Queue) tryDrain() {
	q.mu.Lock()
	if q.draining || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	now := time.Now()
	if now.Sub(q.windowStart) >= q.window {
		q.windowStart = now
		q.released = 0
	}
	if q.released >= q.capacity {
		q.mu.Unlock()
		return
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	q.released++
	q.draining = true
	q.mu.Unlock()

	q.exec.Execute(req)

	q.mu.Lock()
	q.draining = false
	q.mu.Unlock()
}

// Enqueue appends req to the pending buffer.
func (q *Queue) Enqueue(req *models.ActionRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, req)
}

// Len returns the number of pending actions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// close stops the drain loop. Pending actions are left in place; the manager
// only closes queues after they report empty.
func (q *Queue) close() {
	close(q.stop)
	<-q.done
}

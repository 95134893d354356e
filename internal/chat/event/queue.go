package event

import (
	"context"
	"sync"
	"time"
)

const flushTick = 5 * time.Millisecond

// Queue - delivers events to the consumer channel in the order they were pushed.
// Push never blocks, so network loops are not slowed down by a slow consumer.
type Queue struct {
	out    chan<- Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}

	mu       sync.Mutex
	pending  []Event
	inflight bool
}

// NewQueue - starts delivery into out. Nil out makes queue discard all events.
func NewQueue(out chan<- Event) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		out:    out,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
	if out == nil {
		close(q.done)
		return q
	}
	go q.pump()
	return q
}

// Push - enqueues event.
func (q *Queue) Push(e Event) {
	if q == nil || e == nil || q.out == nil || q.ctx.Err() != nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, e)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len - number of events waiting for delivery.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.inflight {
		n++
	}
	return n
}

// Flush - waits until all pushed events are delivered, queue is closed or ctx is done.
func (q *Queue) Flush(ctx context.Context) error {
	ticker := time.NewTicker(flushTick)
	defer ticker.Stop()
	for q.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// Close - stops delivery, undelivered events are dropped. Safe to call multiple times.
func (q *Queue) Close() {
	q.cancel()
	<-q.done
}

func (q *Queue) pop() Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	e := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.inflight = true
	return e
}

func (q *Queue) delivered() {
	q.mu.Lock()
	q.inflight = false
	q.mu.Unlock()
}

func (q *Queue) pump() {
	defer close(q.done)
	for {
		e := q.pop()
		if e == nil {
			select {
			case <-q.wake:
				continue
			case <-q.ctx.Done():
				return
			}
		}
		select {
		case q.out <- e:
			q.delivered()
		case <-q.ctx.Done():
			return
		}
	}
}

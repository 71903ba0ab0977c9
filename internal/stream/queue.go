// Package stream
package stream

import (
	"context"
	"sync/atomic"

	"github.com/pairs-sentinel/internal/tick"
)

// Queue is the bounded buffer between the stream client (sole producer) and
// the ingestion worker (sole consumer). The producer never blocks: when the
// queue is full the offered tick is dropped and counted (drop-newest, so ticks
// already accepted keep their order). This lossy backpressure policy is
// deliberate: a real-time tick stream favors recency over completeness when
// the consumer cannot keep up.
type Queue struct {
	ch      chan tick.Tick
	dropped atomic.Int64
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Queue{ch: make(chan tick.Tick, capacity)}
}

// Offer enqueues t without blocking. Returns false if the queue was full and
// the tick was dropped.
func (q *Queue) Offer(t tick.Tick) bool {
	select {
	case q.ch <- t:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Dequeue blocks until a tick is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (tick.Tick, bool) {
	select {
	case t := <-q.ch:
		return t, true
	case <-ctx.Done():
		return tick.Tick{}, false
	}
}

// TryDequeue drains one tick without blocking, for shutdown flushing.
func (q *Queue) TryDequeue() (tick.Tick, bool) {
	select {
	case t := <-q.ch:
		return t, true
	default:
		return tick.Tick{}, false
	}
}

func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) Cap() int { return cap(q.ch) }

// Dropped returns the number of ticks dropped on offer since startup.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

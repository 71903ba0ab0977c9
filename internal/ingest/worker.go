package ingest

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/pairs-sentinel/internal/db"
	"github.com/pairs-sentinel/internal/metrics"
	"github.com/pairs-sentinel/internal/stream"
	"github.com/pairs-sentinel/internal/tick"
)

// Worker drains the tick queue on its own goroutine, decoupled from the
// network loop: storage I/O must never block decode. It is the sole writer to
// the tick store and the sole mutator of the recent window. A failed write is
// logged and the tick skipped; no retry loop may stall draining.
type Worker struct {
	queue   *stream.Queue
	storage db.Storage
	window  *RecentWindow

	writeTimeout time.Duration

	stored  atomic.Int64
	deduped atomic.Int64
	failed  atomic.Int64
	done    chan struct{}
}

func NewWorker(queue *stream.Queue, storage db.Storage, window *RecentWindow) *Worker {
	return &Worker{
		queue:        queue,
		storage:      storage,
		window:       window,
		writeTimeout: 5 * time.Second,
		done:         make(chan struct{}),
	}
}

// Start runs the drain loop until ctx is canceled. On shutdown the worker
// flushes whatever is already queued, bounded by the grace period of the
// caller's context, then exits.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		log.Println("Ingest | Worker started")
		for {
			t, ok := w.queue.Dequeue(ctx)
			if !ok {
				w.flush()
				log.Printf("Ingest | Worker stopped (stored=%d deduped=%d failed=%d)",
					w.stored.Load(), w.deduped.Load(), w.failed.Load())
				return
			}
			w.process(t)
		}
	}()
}

// Done is closed once the drain loop has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Stored returns the number of ticks written to the store.
func (w *Worker) Stored() int64 { return w.stored.Load() }

// Deduplicated returns the number of duplicate ticks skipped.
func (w *Worker) Deduplicated() int64 { return w.deduped.Load() }

// Failed returns the number of skipped writes.
func (w *Worker) Failed() int64 { return w.failed.Load() }

func (w *Worker) process(t tick.Tick) {
	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()

	inserted, err := w.storage.SaveTick(ctx, t)
	if err != nil {
		// Mid-run storage failures degrade to logged skips, never a crash.
		w.failed.Add(1)
		metrics.StoreWriteFailures.Inc()
		log.Printf("Ingest | Failed to save tick for %s at %s: %v", t.Symbol, t.EventTime, err)
		return
	}
	if !inserted {
		// Duplicate delivery: the window must not double-count either.
		w.deduped.Add(1)
		return
	}
	w.stored.Add(1)
	metrics.TicksStored.WithLabelValues(t.Symbol).Inc()
	w.window.Push(t)
}

// flush drains ticks already buffered at shutdown without blocking.
func (w *Worker) flush() {
	for {
		t, ok := w.queue.TryDequeue()
		if !ok {
			return
		}
		w.process(t)
	}
}

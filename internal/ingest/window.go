// Package ingest
package ingest

import (
	"sync"
	"time"

	"github.com/pairs-sentinel/internal/tick"
)

// RecentWindow keeps the last N ticks per symbol in fixed-capacity ring
// buffers, bypassing storage for low-latency reads. The ingestion worker is
// the only writer; any number of readers may query concurrently.
type RecentWindow struct {
	mu       sync.RWMutex
	capacity int
	rings    map[string]*ring
}

type ring struct {
	buf   []tick.Tick
	head  int // next write position
	count int
}

func NewRecentWindow(capacity int) *RecentWindow {
	if capacity <= 0 {
		capacity = 10000
	}
	return &RecentWindow{
		capacity: capacity,
		rings:    make(map[string]*ring),
	}
}

// Push appends a tick for its symbol, evicting the oldest once full.
func (w *RecentWindow) Push(t tick.Tick) {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := w.rings[t.Symbol]
	if r == nil {
		r = &ring{buf: make([]tick.Tick, w.capacity)}
		w.rings[t.Symbol] = r
	}
	r.buf[r.head] = t
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Ticks returns the buffered ticks for symbol in arrival order.
func (w *RecentWindow) Ticks(symbol string) []tick.Tick {
	w.mu.RLock()
	defer w.mu.RUnlock()

	r := w.rings[symbol]
	if r == nil {
		return nil
	}
	out := make([]tick.Tick, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// TicksInRange returns buffered ticks with event time in [start, end),
// in arrival order.
func (w *RecentWindow) TicksInRange(symbol string, start, end time.Time) []tick.Tick {
	all := w.Ticks(symbol)
	var out []tick.Tick
	for _, t := range all {
		if !t.EventTime.Before(start) && t.EventTime.Before(end) {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of buffered ticks for symbol.
func (w *RecentWindow) Len(symbol string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if r := w.rings[symbol]; r != nil {
		return r.count
	}
	return 0
}

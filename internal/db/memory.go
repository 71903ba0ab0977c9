package db

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/pairs-sentinel/internal/tick"
)

// MemoryStorage is an in-memory Storage used by tests and standalone runs.
// It honors the same idempotency and ordering contracts as the postgres store.
type MemoryStorage struct {
	mu sync.RWMutex

	// Ticks by symbol in insertion order
	ticks map[string][]tick.Tick

	// Dedup set keyed by symbol|trade_id
	seen map[string]map[int64]bool
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		ticks: make(map[string][]tick.Tick),
		seen:  make(map[string]map[int64]bool),
	}
}

// GetDB returns nil for in-memory storage (no SQL database)
func (m *MemoryStorage) GetDB() *sql.DB { return nil }

func (m *MemoryStorage) InitSchema(ctx context.Context) error { return nil }

func (m *MemoryStorage) SaveTick(ctx context.Context, t tick.Tick) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(t), nil
}

func (m *MemoryStorage) SaveTicks(ctx context.Context, ticks []tick.Tick) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range ticks {
		if err := ticks[i].Validate(); err != nil {
			return err
		}
		m.saveLocked(ticks[i])
	}
	return nil
}

// saveLocked appends the tick unless its (symbol, trade_id) was already seen.
// Ticks without a trade id are never deduplicated, matching the partial
// unique index on the postgres store.
func (m *MemoryStorage) saveLocked(t tick.Tick) bool {
	if m.seen[t.Symbol] == nil {
		m.seen[t.Symbol] = make(map[int64]bool)
	}
	if t.TradeID != 0 {
		if m.seen[t.Symbol][t.TradeID] {
			return false
		}
		m.seen[t.Symbol][t.TradeID] = true
	}
	t.EventTime = t.EventTime.UTC()
	m.ticks[t.Symbol] = append(m.ticks[t.Symbol], t)
	return true
}

func (m *MemoryStorage) GetTicks(ctx context.Context, symbol string, start, end time.Time) ([]tick.Tick, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []tick.Tick
	for _, t := range m.ticks[symbol] {
		if !t.EventTime.Before(start) && t.EventTime.Before(end) {
			out = append(out, t)
		}
	}
	// Stable sort keeps insertion order for equal event times.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EventTime.Before(out[j].EventTime)
	})
	return out, nil
}

func (m *MemoryStorage) TickCount(ctx context.Context, symbol string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ticks[symbol]), nil
}

func (m *MemoryStorage) DeleteTicks(ctx context.Context, symbol string, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.ticks[symbol][:0]
	for _, t := range m.ticks[symbol] {
		if !t.EventTime.Before(before) {
			kept = append(kept, t)
		}
	}
	m.ticks[symbol] = kept
	return nil
}

// Package db
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pairs-sentinel/internal/tick"
)

// Storage is the interface for the append-only tick store.
//
// Durability contract: once SaveTick returns nil the tick survives a process
// restart. Appends are idempotent keyed by (symbol, trade_id), so duplicate
// delivery after a reconnect never double-counts. Reads never block the single
// writer and vice versa.
type Storage interface {
	GetDB() *sql.DB
	InitSchema(ctx context.Context) error
	// SaveTick appends one tick, reporting whether it was newly stored.
	// false means a duplicate (symbol, trade_id) was already present; the
	// caller must not count or cache the tick again.
	SaveTick(ctx context.Context, t tick.Tick) (bool, error)
	SaveTicks(ctx context.Context, ticks []tick.Tick) error
	// GetTicks returns ticks for symbol with event_time in [start, end),
	// sorted by event_time ascending. Ticks sharing an event_time come back
	// in insertion order.
	GetTicks(ctx context.Context, symbol string, start, end time.Time) ([]tick.Tick, error)
	TickCount(ctx context.Context, symbol string) (int, error)
	DeleteTicks(ctx context.Context, symbol string, before time.Time) error
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/pairs-sentinel/internal/tick"
)

// Transaction context key
type txKey struct{}

// WithTransaction adds a transaction to the context
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTransaction retrieves a transaction from context, or returns nil if not present
func GetTransaction(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

type Postgres struct {
	db *sql.DB
}

func NewPostgres(database *sql.DB) (*Postgres, error) {
	if database == nil {
		return nil, fmt.Errorf("nil database handle")
	}
	return &Postgres{db: database}, nil
}

func (p *Postgres) GetDB() *sql.DB {
	return p.db
}

// executeWithTransaction executes a function with proper transaction management.
// If a transaction exists in context, it uses that. Otherwise, it creates a new one.
func (p *Postgres) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if tx := GetTransaction(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}

	return nil
}

// queryWithTransaction executes a query using transaction from context if available
func (p *Postgres) queryWithTransaction(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	return p.db.QueryContext(ctx, query, args...)
}

// InitSchema creates the raw_ticks table and its indexes. Failure here is the
// only storage error class allowed to abort startup.
func (p *Postgres) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS raw_ticks (
			id BIGSERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			event_time BIGINT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			trade_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_ticks_symbol_event_time ON raw_ticks (symbol, event_time)`,
		// Partial: ticks without a trade id cannot be deduplicated and are
		// always stored.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_raw_ticks_symbol_trade_id ON raw_ticks (symbol, trade_id) WHERE trade_id <> 0`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// SaveTick appends a single tick. Duplicate (symbol, trade_id) pairs are
// ignored so at-least-once delivery never double-counts; the bool reports
// whether a row was actually inserted.
func (p *Postgres) SaveTick(ctx context.Context, t tick.Tick) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, fmt.Errorf("invalid tick for %s at %s: %w", t.Symbol, t.EventTime, err)
	}

	var inserted bool
	err := p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO raw_ticks (symbol, event_time, price, quantity, trade_id)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (symbol, trade_id) WHERE trade_id <> 0 DO NOTHING`,
			t.Symbol, t.EventTime.UnixMilli(), t.Price, t.Quantity, t.TradeID)
		if err != nil {
			return fmt.Errorf("failed to save tick for %s at %s: %w", t.Symbol, t.EventTime, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read insert result: %w", err)
		}
		inserted = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (p *Postgres) SaveTicks(ctx context.Context, ticks []tick.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	for i, t := range ticks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("invalid tick at index %d for %s at %s: %w", i, t.Symbol, t.EventTime, err)
		}
	}

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO raw_ticks (symbol, event_time, price, quantity, trade_id)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (symbol, trade_id) WHERE trade_id <> 0 DO NOTHING`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert statement: %w", err)
		}
		defer stmt.Close()

		for i, t := range ticks {
			if _, err := stmt.ExecContext(ctx, t.Symbol, t.EventTime.UnixMilli(), t.Price, t.Quantity, t.TradeID); err != nil {
				return fmt.Errorf("failed to save tick at index %d (%s at %s): %w", i, t.Symbol, t.EventTime, err)
			}
		}
		return nil
	})
}

// GetTicks returns ticks in [start, end) sorted by event_time ascending. The
// serial id breaks ties between ticks sharing an event_time, so retrieval
// order is deterministic per run.
func (p *Postgres) GetTicks(ctx context.Context, symbol string, start, end time.Time) ([]tick.Tick, error) {
	rows, err := p.queryWithTransaction(ctx, `
		SELECT symbol, event_time, price, quantity, trade_id
		FROM raw_ticks
		WHERE symbol=$1 AND event_time >= $2 AND event_time < $3
		ORDER BY event_time ASC, id ASC`,
		symbol, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks: %w", err)
	}
	if rows == nil {
		return nil, nil
	}
	defer rows.Close()

	var ticks []tick.Tick
	for rows.Next() {
		var t tick.Tick
		var eventMs int64
		if err := rows.Scan(&t.Symbol, &eventMs, &t.Price, &t.Quantity, &t.TradeID); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		t.EventTime = time.UnixMilli(eventMs).UTC()
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

func (p *Postgres) TickCount(ctx context.Context, symbol string) (int, error) {
	row := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_ticks WHERE symbol=$1`, symbol)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ticks: %w", err)
	}
	return n, nil
}

func (p *Postgres) DeleteTicks(ctx context.Context, symbol string, before time.Time) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM raw_ticks WHERE symbol=$1 AND event_time < $2`, symbol, before.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to delete ticks: %w", err)
		}
		return nil
	})
}

// Package tick
package tick

import (
	"errors"
	"time"
)

// Tick is a single trade event for one symbol. Ticks are immutable once
// stored. Event times carry millisecond precision and are NOT guaranteed to
// arrive in order; only retrieval from storage is sorted.
type Tick struct {
	Symbol    string    `json:"symbol"`
	EventTime time.Time `json:"event_time"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	TradeID   int64     `json:"trade_id"`
}

// Validate checks if a tick has valid data
func (t *Tick) Validate() error {
	if t.Symbol == "" {
		return errors.New("tick symbol cannot be empty")
	}
	if t.EventTime.IsZero() {
		return errors.New("tick event time is zero")
	}
	if t.Price <= 0 {
		return errors.New("tick price must be positive")
	}
	if t.Quantity < 0 {
		return errors.New("tick quantity cannot be negative")
	}
	return nil
}

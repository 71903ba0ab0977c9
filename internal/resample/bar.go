// Package resample
package resample

import (
	"errors"
	"time"
)

// Bar is an OHLCV aggregate over one time bucket. Bars are derived: a bucket
// is either absent or fully derived from its underlying ticks at computation
// time, never independently mutated.
type Bar struct {
	Symbol      string    `json:"symbol"`
	Timeframe   string    `json:"timeframe"`
	BucketStart time.Time `json:"bucket_start"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	TradeCount  int       `json:"trade_count"`
}

// Validate checks if a bar has valid data
func (b *Bar) Validate() error {
	if b.BucketStart.IsZero() {
		return errors.New("bar bucket start is zero")
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return errors.New("bar prices must be positive")
	}
	if b.High < b.Low {
		return errors.New("bar high cannot be less than low")
	}
	if b.Open < b.Low || b.Open > b.High {
		return errors.New("bar open price must be between high and low")
	}
	if b.Close < b.Low || b.Close > b.High {
		return errors.New("bar close price must be between high and low")
	}
	if b.Volume < 0 {
		return errors.New("bar volume cannot be negative")
	}
	if b.TradeCount <= 0 {
		return errors.New("bar trade count must be positive")
	}
	if b.Symbol == "" {
		return errors.New("bar symbol cannot be empty")
	}
	if b.Timeframe == "" {
		return errors.New("bar timeframe cannot be empty")
	}
	return nil
}

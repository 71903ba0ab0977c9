package resample

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pairs-sentinel/internal/db"
	"github.com/pairs-sentinel/internal/ingest"
	"github.com/pairs-sentinel/internal/tick"
	"github.com/pairs-sentinel/internal/timeframe"
)

// ResampleTicks aggregates a tick slice into OHLCV bars for the given
// timeframe. Buckets are left-closed/right-open with
// bucket_start = floor(event_time / duration) * duration. Within a bucket the
// earliest tick opens and the latest closes; ticks sharing an event time keep
// their input order, so two calls over the same slice are bit-identical.
// Empty buckets are omitted, not forward-filled.
func ResampleTicks(ticks []tick.Tick, tf string) ([]Bar, error) {
	dur, err := timeframe.ParseTimeframe(tf)
	if err != nil {
		return nil, err
	}
	if len(ticks) == 0 {
		return nil, nil
	}

	// Stable sort: arrival order breaks event-time ties.
	sorted := make([]tick.Tick, len(ticks))
	copy(sorted, ticks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EventTime.Before(sorted[j].EventTime)
	})

	symbol := sorted[0].Symbol
	bars := make(map[time.Time]*Bar)
	for i, t := range sorted {
		if t.Symbol != symbol {
			return nil, fmt.Errorf("tick at index %d has different symbol: %s, expected: %s", i, t.Symbol, symbol)
		}

		bucket := timeframe.Bucket(t.EventTime, dur)
		b := bars[bucket]
		if b == nil {
			bars[bucket] = &Bar{
				Symbol:      symbol,
				Timeframe:   tf,
				BucketStart: bucket,
				Open:        t.Price,
				High:        t.Price,
				Low:         t.Price,
				Close:       t.Price,
				Volume:      t.Quantity,
				TradeCount:  1,
			}
			continue
		}
		if t.Price > b.High {
			b.High = t.Price
		}
		if t.Price < b.Low {
			b.Low = t.Price
		}
		b.Close = t.Price
		b.Volume += t.Quantity
		b.TradeCount++
	}

	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BucketStart.Before(out[j].BucketStart)
	})
	return out, nil
}

// VWAP returns the volume weighted average price over a tick slice, falling
// back to the plain mean when total volume is zero.
func VWAP(ticks []tick.Tick) float64 {
	if len(ticks) == 0 {
		return 0
	}
	var pv, vol float64
	for _, t := range ticks {
		pv += t.Price * t.Quantity
		vol += t.Quantity
	}
	if vol == 0 {
		var sum float64
		for _, t := range ticks {
			sum += t.Price
		}
		return sum / float64(len(ticks))
	}
	return pv / vol
}

// Resampler produces bars from the tick store or the recent window. It is a
// read-only consumer: it never mutates tick or bar state.
type Resampler struct {
	storage db.Storage
	window  *ingest.RecentWindow
}

func NewResampler(storage db.Storage, window *ingest.RecentWindow) *Resampler {
	return &Resampler{storage: storage, window: window}
}

// Resample reads [start, end) from the tick store and aggregates to tf.
func (r *Resampler) Resample(ctx context.Context, symbol, tf string, start, end time.Time) ([]Bar, error) {
	if !timeframe.IsValidTimeframe(tf) {
		return nil, timeframe.ErrInvalidTimeframe{Timeframe: tf}
	}
	ticks, err := r.storage.GetTicks(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticks for %s: %w", symbol, err)
	}
	return ResampleTicks(ticks, tf)
}

// ResampleRecent aggregates the in-memory recent window, bypassing storage.
// Useful for the low-latency evaluation path.
func (r *Resampler) ResampleRecent(symbol, tf string) ([]Bar, error) {
	if r.window == nil {
		return nil, fmt.Errorf("no recent window configured")
	}
	return ResampleTicks(r.window.Ticks(symbol), tf)
}

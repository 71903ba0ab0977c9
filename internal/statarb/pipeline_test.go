package statarb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairs-sentinel/internal/resample"
	"github.com/pairs-sentinel/internal/tick"
)

// Two ticks per leg across two one-second buckets: each leg yields one bar per
// bucket, and two aligned points are far below the rolling window, so the
// engine reports insufficient data rather than fabricating statistics.
func TestTwoTickScenario(t *testing.T) {
	t0 := time.UnixMilli(1700000000000).UTC()
	t1 := t0.Add(time.Second)

	btcTicks := []tick.Tick{
		{Symbol: "BTCUSDT", EventTime: t0, Price: 100, Quantity: 1, TradeID: 1},
		{Symbol: "BTCUSDT", EventTime: t1, Price: 102, Quantity: 1, TradeID: 2},
	}
	ethTicks := []tick.Tick{
		{Symbol: "ETHUSDT", EventTime: t0, Price: 50, Quantity: 2, TradeID: 1},
		{Symbol: "ETHUSDT", EventTime: t1, Price: 49, Quantity: 1, TradeID: 2},
	}

	btcBars, err := resample.ResampleTicks(btcTicks, "1s")
	require.NoError(t, err)
	ethBars, err := resample.ResampleTicks(ethTicks, "1s")
	require.NoError(t, err)

	require.Len(t, btcBars, 2)
	require.Len(t, ethBars, 2)

	// Single-tick buckets have open == close.
	assert.Equal(t, t0, btcBars[0].BucketStart)
	assert.Equal(t, 100.0, btcBars[0].Open)
	assert.Equal(t, 100.0, btcBars[0].Close)
	assert.Equal(t, t0, ethBars[0].BucketStart)
	assert.Equal(t, 50.0, ethBars[0].Open)
	assert.Equal(t, 50.0, ethBars[0].Close)

	engine := NewEngine(EngineConfig{PairID: "BTCUSDT-ETHUSDT", Timeframe: "1s"})
	snap := engine.Evaluate(btcBars, ethBars, t1)
	assert.False(t, snap.Valid)
	assert.Equal(t, 2, snap.AlignedPoints)
	assert.Nil(t, snap.ZScore)
	assert.Nil(t, snap.ADFPValue)
}

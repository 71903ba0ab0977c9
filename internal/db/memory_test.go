package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairs-sentinel/internal/tick"
)

func mkTick(symbol string, at time.Time, price, qty float64, tradeID int64) tick.Tick {
	return tick.Tick{Symbol: symbol, EventTime: at, Price: price, Quantity: qty, TradeID: tradeID}
}

func TestMemoryStorage_IdempotentAppend(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.UnixMilli(1700000000000).UTC()

	tk := mkTick("BTCUSDT", base, 50000, 0.1, 42)
	inserted, err := m.SaveTick(ctx, tk)
	require.NoError(t, err)
	assert.True(t, inserted)
	// Duplicate delivery after a reconnect must not double-count.
	inserted, err = m.SaveTick(ctx, tk)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := m.GetTicks(ctx, "BTCUSDT", base.Add(-time.Second), base.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	n, err := m.TickCount(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStorage_SortedRetrievalOfOutOfOrderInserts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.UnixMilli(1700000000000).UTC()

	// Insertion order is deliberately out of event-time order.
	require.NoError(t, m.SaveTicks(ctx, []tick.Tick{
		mkTick("BTCUSDT", base.Add(2*time.Second), 101, 1, 3),
		mkTick("BTCUSDT", base, 100, 1, 1),
		mkTick("BTCUSDT", base.Add(time.Second), 102, 1, 2),
	}))

	got, err := m.GetTicks(ctx, "BTCUSDT", base, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].TradeID, got[1].TradeID, got[2].TradeID})
}

func TestMemoryStorage_EqualEventTimesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	at := time.UnixMilli(1700000000500).UTC()

	_, err := m.SaveTick(ctx, mkTick("ETHUSDT", at, 2000, 1, 10))
	require.NoError(t, err)
	_, err = m.SaveTick(ctx, mkTick("ETHUSDT", at, 2001, 1, 11))
	require.NoError(t, err)

	got, err := m.GetTicks(ctx, "ETHUSDT", at, at.Add(time.Millisecond))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(10), got[0].TradeID)
	assert.Equal(t, int64(11), got[1].TradeID)
}

func TestMemoryStorage_RangeIsEndExclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.UnixMilli(1700000000000).UTC()

	_, err := m.SaveTick(ctx, mkTick("BTCUSDT", base, 100, 1, 1))
	require.NoError(t, err)
	_, err = m.SaveTick(ctx, mkTick("BTCUSDT", base.Add(time.Second), 101, 1, 2))
	require.NoError(t, err)

	got, err := m.GetTicks(ctx, "BTCUSDT", base, base.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].TradeID)
}

func TestMemoryStorage_DeleteTicks(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.UnixMilli(1700000000000).UTC()

	_, err := m.SaveTick(ctx, mkTick("BTCUSDT", base, 100, 1, 1))
	require.NoError(t, err)
	_, err = m.SaveTick(ctx, mkTick("BTCUSDT", base.Add(time.Hour), 101, 1, 2))
	require.NoError(t, err)

	require.NoError(t, m.DeleteTicks(ctx, "BTCUSDT", base.Add(time.Minute)))

	n, err := m.TickCount(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStorage_RejectsInvalidTick(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.SaveTick(ctx, tick.Tick{Symbol: "BTCUSDT", EventTime: time.Now(), Price: -1, Quantity: 1})
	assert.Error(t, err)
}

func TestMemoryStorage_ZeroTradeIDNeverDeduped(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.UnixMilli(1700000000000).UTC()

	// Feeds without trade ids cannot be deduplicated; every tick is kept.
	inserted, err := m.SaveTick(ctx, mkTick("BTCUSDT", base, 100, 1, 0))
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = m.SaveTick(ctx, mkTick("BTCUSDT", base.Add(time.Second), 101, 1, 0))
	require.NoError(t, err)
	assert.True(t, inserted)

	n, err := m.TickCount(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

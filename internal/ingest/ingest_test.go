package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairs-sentinel/internal/db"
	"github.com/pairs-sentinel/internal/stream"
	"github.com/pairs-sentinel/internal/tick"
)

func mkTick(symbol string, at time.Time, price float64, tradeID int64) tick.Tick {
	return tick.Tick{Symbol: symbol, EventTime: at, Price: price, Quantity: 1, TradeID: tradeID}
}

func TestRecentWindow_EvictsOldestWhenFull(t *testing.T) {
	w := NewRecentWindow(3)
	base := time.UnixMilli(1700000000000).UTC()

	for i := int64(0); i < int64(5); i++ {
		w.Push(mkTick("BTCUSDT", base.Add(time.Duration(i)*time.Second), 100+float64(i), i))
	}

	got := w.Ticks("BTCUSDT")
	require.Len(t, got, 3)
	assert.Equal(t, int64(2), got[0].TradeID)
	assert.Equal(t, int64(4), got[2].TradeID)
	assert.Equal(t, 3, w.Len("BTCUSDT"))
}

func TestRecentWindow_TicksInRange(t *testing.T) {
	w := NewRecentWindow(10)
	base := time.UnixMilli(1700000000000).UTC()

	for i := int64(0); i < int64(5); i++ {
		w.Push(mkTick("ETHUSDT", base.Add(time.Duration(i)*time.Second), 2000, i))
	}

	got := w.TicksInRange("ETHUSDT", base.Add(time.Second), base.Add(3*time.Second))
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].TradeID)
	assert.Equal(t, int64(2), got[1].TradeID)
}

func TestRecentWindow_SymbolsAreIndependent(t *testing.T) {
	w := NewRecentWindow(4)
	base := time.UnixMilli(1700000000000).UTC()

	w.Push(mkTick("BTCUSDT", base, 100, 1))
	w.Push(mkTick("ETHUSDT", base, 2000, 2))

	assert.Len(t, w.Ticks("BTCUSDT"), 1)
	assert.Len(t, w.Ticks("ETHUSDT"), 1)
	assert.Nil(t, w.Ticks("DOGEUSDT"))
}

func TestWorker_DrainsQueueIntoStoreAndWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := stream.NewQueue(32)
	storage := db.NewMemory()
	window := NewRecentWindow(100)
	worker := NewWorker(q, storage, window)

	base := time.UnixMilli(1700000000000).UTC()
	for i := int64(0); i < int64(5); i++ {
		q.Offer(mkTick("BTCUSDT", base.Add(time.Duration(i)*time.Millisecond), 100, i+1))
	}
	// Duplicate delivery: must not double-count.
	q.Offer(mkTick("BTCUSDT", base, 100, 1))

	worker.Start(ctx)

	assert.Eventually(t, func() bool {
		return worker.Stored() == 5 && worker.Deduplicated() == 1
	}, 2*time.Second, 10*time.Millisecond)

	n, err := storage.TickCount(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	// The duplicate must not reach the recent window either.
	assert.Equal(t, 5, window.Len("BTCUSDT"))

	cancel()
	select {
	case <-worker.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorker_FlushesQueuedTicksOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	q := stream.NewQueue(32)
	storage := db.NewMemory()
	window := NewRecentWindow(100)
	worker := NewWorker(q, storage, window)

	base := time.UnixMilli(1700000000000).UTC()
	for i := int64(0); i < int64(10); i++ {
		q.Offer(mkTick("ETHUSDT", base.Add(time.Duration(i)*time.Millisecond), 2000, i+1))
	}

	// Cancel before starting: the drain loop sees a canceled context and
	// must still flush what is already buffered before exiting.
	cancel()
	worker.Start(ctx)

	select {
	case <-worker.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}

	n, err := storage.TickCount(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 10, window.Len("ETHUSDT"))
}

func TestWorker_SkipsInvalidTickAndKeepsDraining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := stream.NewQueue(8)
	storage := db.NewMemory()
	window := NewRecentWindow(10)
	worker := NewWorker(q, storage, window)

	base := time.UnixMilli(1700000000000).UTC()
	q.Offer(tick.Tick{Symbol: "BTCUSDT", EventTime: base, Price: -1, Quantity: 1, TradeID: 1})
	q.Offer(mkTick("BTCUSDT", base.Add(time.Millisecond), 100, 2))

	worker.Start(ctx)

	assert.Eventually(t, func() bool {
		return worker.Stored() == 1 && worker.Failed() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, window.Len("BTCUSDT"))
}

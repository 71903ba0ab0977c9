package statarb

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pairs-sentinel/internal/alert"
	"github.com/pairs-sentinel/internal/resample"
	"github.com/pairs-sentinel/internal/timeframe"
)

// EvaluatorConfig drives the periodic evaluation cycle for one pair.
type EvaluatorConfig struct {
	SymbolY  string
	SymbolX  string
	Interval time.Duration // default 2s, matching the refresh cadence
	Lookback time.Duration // how far back bars are resampled each cycle
}

// Evaluator runs the engine plus alert evaluation on a periodic cycle. Cycles
// for a pair never overlap: if an evaluation is still running when the next
// tick fires, the new cycle is skipped (no pipelining), which keeps snapshot
// ordering monotonic.
type Evaluator struct {
	cfg       EvaluatorConfig
	resampler *resample.Resampler
	engine    *Engine
	alerts    *alert.Manager

	busy sync.Mutex

	mu        sync.RWMutex
	latest    Snapshot
	hasLatest bool
}

func NewEvaluator(cfg EvaluatorConfig, r *resample.Resampler, e *Engine, a *alert.Manager) (*Evaluator, error) {
	if cfg.SymbolY == "" || cfg.SymbolX == "" {
		return nil, fmt.Errorf("evaluator needs both pair legs")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Lookback <= 0 {
		// Enough buckets for warmup plus slack at the configured timeframe.
		dur := timeframe.GetTimeframeDuration(e.cfg.Timeframe)
		if dur == 0 {
			return nil, timeframe.ErrInvalidTimeframe{Timeframe: e.cfg.Timeframe}
		}
		cfg.Lookback = dur * time.Duration(10*e.cfg.Window)
	}
	return &Evaluator{cfg: cfg, resampler: r, engine: e, alerts: a}, nil
}

// Start runs the evaluation loop until ctx is canceled.
func (ev *Evaluator) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(ev.cfg.Interval)
		defer ticker.Stop()
		log.Printf("Evaluator | Started for %s/%s every %v", ev.cfg.SymbolY, ev.cfg.SymbolX, ev.cfg.Interval)
		for {
			select {
			case <-ctx.Done():
				log.Println("Evaluator | Stopped")
				return
			case <-ticker.C:
				if _, _, err := ev.EvaluateOnce(ctx); err != nil {
					log.Printf("Evaluator | Cycle failed: %v", err)
				}
			}
		}
	}()
}

// EvaluateOnce runs a single cycle: resample both legs, compute the snapshot
// and evaluate alerts. Safe to call from pollers; a cycle already in flight
// makes this call return the previous snapshot untouched.
func (ev *Evaluator) EvaluateOnce(ctx context.Context) (Snapshot, []alert.Event, error) {
	if !ev.busy.TryLock() {
		snap, _ := ev.Latest()
		return snap, nil, nil
	}
	defer ev.busy.Unlock()

	end := time.Now().UTC()
	start := end.Add(-ev.cfg.Lookback)

	barsY, err := ev.resampler.Resample(ctx, ev.cfg.SymbolY, ev.engine.cfg.Timeframe, start, end)
	if err != nil {
		return Snapshot{}, nil, fmt.Errorf("failed to resample %s: %w", ev.cfg.SymbolY, err)
	}
	barsX, err := ev.resampler.Resample(ctx, ev.cfg.SymbolX, ev.engine.cfg.Timeframe, start, end)
	if err != nil {
		return Snapshot{}, nil, fmt.Errorf("failed to resample %s: %w", ev.cfg.SymbolX, err)
	}

	snap := ev.engine.Evaluate(barsY, barsX, end)

	ev.mu.Lock()
	ev.latest = snap
	ev.hasLatest = true
	ev.mu.Unlock()

	events := ev.alerts.Evaluate(ev.metricSet(snap, barsY, barsX))
	return snap, events, nil
}

// Latest returns the most recent snapshot, if any cycle has completed.
func (ev *Evaluator) Latest() (Snapshot, bool) {
	ev.mu.RLock()
	defer ev.mu.RUnlock()
	return ev.latest, ev.hasLatest
}

// metricSet flattens the snapshot and latest bars into the metric map the
// alert manager evaluates. Absent statistics stay absent.
func (ev *Evaluator) metricSet(snap Snapshot, barsY, barsX []resample.Bar) map[string]float64 {
	ms := make(map[string]float64)
	if snap.Valid {
		ms["spread"] = snap.SpreadValue
		ms["hedge_ratio"] = snap.HedgeRatio
	}
	if snap.ZScore != nil {
		ms["zscore"] = *snap.ZScore
	}
	if snap.Correlation != nil {
		ms["correlation"] = *snap.Correlation
	}
	if snap.ADFPValue != nil {
		ms["adf_pvalue"] = *snap.ADFPValue
	}
	if len(barsY) > 0 {
		last := barsY[len(barsY)-1]
		ms["price_"+ev.cfg.SymbolY] = last.Close
		ms["volume_"+ev.cfg.SymbolY] = last.Volume
	}
	if len(barsX) > 0 {
		last := barsX[len(barsX)-1]
		ms["price_"+ev.cfg.SymbolX] = last.Close
		ms["volume_"+ev.cfg.SymbolX] = last.Volume
	}
	return ms
}

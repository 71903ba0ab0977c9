package statarb

import (
	"math"
	"time"

	"github.com/pairs-sentinel/internal/resample"
)

// EngineConfig holds the statistical parameters for one pair.
type EngineConfig struct {
	PairID            string
	Timeframe         string
	Window            int     // rolling window for z-score, default 20
	CorrelationWindow int     // rolling window for correlation, defaults to Window
	ADFLags           int     // 0 selects the auto rule
	StationaryPValue  float64 // default 0.05
}

// Snapshot bundles one evaluation cycle's outputs. Derived and ephemeral:
// recomputed per cycle, never persisted. Fields are independently nullable so
// a degenerate ADF fit cannot block the other statistics; absent values stay
// absent rather than leaking zeros downstream.
type Snapshot struct {
	PairID        string    `json:"pair_id"`
	Timeframe     string    `json:"timeframe"`
	AsOf          time.Time `json:"as_of"`
	Valid         bool      `json:"valid"`
	AlignedPoints int       `json:"aligned_points"`

	HedgeRatio float64 `json:"hedge_ratio"`
	Intercept  float64 `json:"intercept"`
	RSquared   float64 `json:"r_squared"`

	SpreadValue float64 `json:"spread_value"`
	SpreadMean  float64 `json:"spread_mean"`
	SpreadStd   float64 `json:"spread_stddev"`

	ZScore       *float64 `json:"zscore,omitempty"`
	ADFStatistic *float64 `json:"adf_statistic,omitempty"`
	ADFPValue    *float64 `json:"adf_pvalue,omitempty"`
	Stationary   bool     `json:"stationary"`
	Correlation  *float64 `json:"rolling_correlation,omitempty"`
}

// Engine computes pair statistics over aligned bar series. Read-only
// consumer: it only produces ephemeral snapshots.
type Engine struct {
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = 20
	}
	if cfg.CorrelationWindow <= 0 {
		cfg.CorrelationWindow = cfg.Window
	}
	if cfg.StationaryPValue <= 0 {
		cfg.StationaryPValue = DefaultStationaryPValue
	}
	return &Engine{cfg: cfg}
}

// Evaluate aligns the two legs and computes hedge ratio, spread, rolling
// z-score, ADF stationarity and rolling correlation for one cycle. Fewer
// than Window+1 aligned points (or a degenerate X leg) yields an invalid
// snapshot, not an error: data insufficiency is a result, not a failure.
func (e *Engine) Evaluate(barsY, barsX []resample.Bar, asOf time.Time) Snapshot {
	snap := Snapshot{
		PairID:    e.cfg.PairID,
		Timeframe: e.cfg.Timeframe,
		AsOf:      asOf,
	}

	points := AlignPairs(barsY, barsX)
	snap.AlignedPoints = len(points)
	if len(points) < e.cfg.Window+1 {
		return snap
	}

	ys, xs := closes(points)

	hr, err := ComputeHedgeRatio(ys, xs)
	if err != nil {
		// Degenerate X: nothing downstream is computable.
		return snap
	}
	snap.Valid = true
	snap.HedgeRatio = hr.Beta
	snap.Intercept = hr.Alpha
	snap.RSquared = hr.RSquared

	spread := Spread(ys, xs, hr.Beta)
	snap.SpreadValue = spread[len(spread)-1]

	tail := spread
	if len(tail) > e.cfg.Window {
		tail = spread[len(spread)-e.cfg.Window:]
	}
	snap.SpreadMean = mean(tail)
	snap.SpreadStd = sampleStd(tail)

	if zs := RollingZScore(spread, e.cfg.Window); len(zs) > 0 {
		if z := zs[len(zs)-1]; !math.IsNaN(z) {
			snap.ZScore = &z
		}
	}

	// Partial failure here must not block the other statistics; a failed
	// fit just leaves the ADF fields absent.
	if adf, err := ADFTest(spread, e.cfg.ADFLags, e.cfg.StationaryPValue); err == nil {
		snap.ADFStatistic = &adf.Statistic
		snap.ADFPValue = &adf.PValue
		snap.Stationary = adf.Stationary
	}

	if cs := RollingCorrelation(ys, xs, e.cfg.CorrelationWindow); len(cs) > 0 {
		if c := cs[len(cs)-1]; !math.IsNaN(c) {
			snap.Correlation = &c
		}
	}

	return snap
}

package statarb

import (
	"time"

	"github.com/pairs-sentinel/internal/resample"
)

// PairPoint is one aligned observation of both legs' closes.
type PairPoint struct {
	BucketStart time.Time
	Y           float64
	X           float64
}

// AlignPairs inner-joins two bar sequences on bucket start time, dropping
// buckets missing on either side. Output is ascending in time.
func AlignPairs(barsY, barsX []resample.Bar) []PairPoint {
	if len(barsY) == 0 || len(barsX) == 0 {
		return nil
	}

	xByBucket := make(map[int64]float64, len(barsX))
	for _, b := range barsX {
		xByBucket[b.BucketStart.UnixMilli()] = b.Close
	}

	var out []PairPoint
	for _, b := range barsY {
		if xc, ok := xByBucket[b.BucketStart.UnixMilli()]; ok {
			out = append(out, PairPoint{BucketStart: b.BucketStart, Y: b.Close, X: xc})
		}
	}
	return out
}

func closes(points []PairPoint) (ys, xs []float64) {
	ys = make([]float64, len(points))
	xs = make([]float64, len(points))
	for i, p := range points {
		ys[i] = p.Y
		xs[i] = p.X
	}
	return ys, xs
}

// Package statarb
package statarb

import (
	"math"
)

// zeroVarianceEps is the threshold below which a standard deviation is
// treated as zero and the dependent statistic reported as undefined.
const zeroVarianceEps = 1e-12

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd returns the sample standard deviation (N-1 denominator).
func sampleStd(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return math.NaN()
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// RollingZScore computes the z-score of each point against the trailing
// window ending at that point. The first window-1 entries are NaN; entries
// whose window stddev is (near) zero are NaN as well, never Inf.
func RollingZScore(series []float64, window int) []float64 {
	if window < 2 || len(series) == 0 {
		return nil
	}
	out := make([]float64, len(series))
	for i := range series {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		win := series[i-window+1 : i+1]
		sd := sampleStd(win)
		if math.IsNaN(sd) || sd < zeroVarianceEps {
			out[i] = math.NaN()
			continue
		}
		out[i] = (series[i] - mean(win)) / sd
	}
	return out
}

// RollingCorrelation computes the Pearson correlation of a and b over the
// trailing window ending at each point. NaN during warmup or when either
// window is constant.
func RollingCorrelation(a, b []float64, window int) []float64 {
	if window < 2 || len(a) != len(b) || len(a) == 0 {
		return nil
	}
	out := make([]float64, len(a))
	for i := range a {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = pearson(a[i-window+1:i+1], b[i-window+1:i+1])
	}
	return out
}

func pearson(a, b []float64) float64 {
	n := len(a)
	ma, mb := mean(a), mean(b)
	var cov, va, vb float64
	for i := 0; i < n; i++ {
		da := a[i] - ma
		db := b[i] - mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va < zeroVarianceEps || vb < zeroVarianceEps {
		return math.NaN()
	}
	return cov / math.Sqrt(va*vb)
}

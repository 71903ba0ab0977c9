package statarb

import (
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientData signals too few (or degenerate) points for a statistic.
// It is a typed result variant, not a pipeline failure: callers branch on it.
var ErrInsufficientData = errors.New("insufficient data")

// HedgeRatio is the OLS fit of Y on X with intercept.
type HedgeRatio struct {
	Alpha    float64 // intercept
	Beta     float64 // hedge ratio
	RSquared float64
}

// ComputeHedgeRatio fits y = alpha + beta*x by ordinary least squares.
// Returns ErrInsufficientData for fewer than two points or zero-variance X.
func ComputeHedgeRatio(y, x []float64) (*HedgeRatio, error) {
	if len(y) != len(x) {
		return nil, fmt.Errorf("series length mismatch: %d vs %d", len(y), len(x))
	}
	n := len(y)
	if n < 2 {
		return nil, ErrInsufficientData
	}

	mx, my := mean(x), mean(y)
	var sxx, sxy, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx < zeroVarianceEps {
		return nil, ErrInsufficientData
	}

	beta := sxy / sxx
	alpha := my - beta*mx

	r2 := 0.0
	if syy > zeroVarianceEps {
		r2 = (sxy * sxy) / (sxx * syy)
	}

	return &HedgeRatio{Alpha: alpha, Beta: beta, RSquared: r2}, nil
}

// Spread computes spread_i = y_i - beta*x_i. The intercept is excluded by
// the standard pairs-trading spread convention.
func Spread(y, x []float64, beta float64) []float64 {
	if len(y) != len(x) {
		return nil
	}
	out := make([]float64, len(y))
	for i := range y {
		out[i] = y[i] - beta*x[i]
	}
	return out
}

// olsFit solves the multiple regression y = X*b without intercept, returning
// the coefficients and their standard errors. X is row-major with one row per
// observation. Normal equations are solved by Gaussian elimination with
// partial pivoting; the problem sizes here (ADF lag order + 1) are tiny.
func olsFit(y []float64, x [][]float64) (coef, stderr []float64, err error) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, nil, ErrInsufficientData
	}
	k := len(x[0])
	if k == 0 || n <= k {
		return nil, nil, ErrInsufficientData
	}

	// xtx = X'X, xty = X'y
	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	xty := make([]float64, k)
	for r := 0; r < n; r++ {
		row := x[r]
		for i := 0; i < k; i++ {
			xty[i] += row[i] * y[r]
			for j := 0; j < k; j++ {
				xtx[i][j] += row[i] * row[j]
			}
		}
	}

	inv, err := invertMatrix(xtx)
	if err != nil {
		return nil, nil, err
	}

	coef = make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			coef[i] += inv[i][j] * xty[j]
		}
	}

	// Residual variance with n-k degrees of freedom.
	var rss float64
	for r := 0; r < n; r++ {
		fitted := 0.0
		for i := 0; i < k; i++ {
			fitted += x[r][i] * coef[i]
		}
		resid := y[r] - fitted
		rss += resid * resid
	}
	s2 := rss / float64(n-k)

	stderr = make([]float64, k)
	for i := 0; i < k; i++ {
		v := s2 * inv[i][i]
		if v < 0 {
			v = 0
		}
		stderr[i] = math.Sqrt(v)
	}
	return coef, stderr, nil
}

// invertMatrix inverts a square matrix by Gauss-Jordan elimination with
// partial pivoting. A (near-)singular matrix returns ErrInsufficientData,
// since it means the regressors are degenerate.
func invertMatrix(m [][]float64) ([][]float64, error) {
	k := len(m)
	aug := make([][]float64, k)
	for i := 0; i < k; i++ {
		aug[i] = make([]float64, 2*k)
		copy(aug[i], m[i])
		aug[i][k+i] = 1
	}

	for col := 0; col < k; col++ {
		pivot := col
		for r := col + 1; r < k; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-14 {
			return nil, ErrInsufficientData
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pv := aug[col][col]
		for j := 0; j < 2*k; j++ {
			aug[col][j] /= pv
		}
		for r := 0; r < k; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < 2*k; j++ {
				aug[r][j] -= factor * aug[col][j]
			}
		}
	}

	inv := make([][]float64, k)
	for i := 0; i < k; i++ {
		inv[i] = aug[i][k:]
	}
	return inv, nil
}

package statarb

import (
	"math"
)

// DefaultStationaryPValue classifies a spread as mean-reverting when the ADF
// p-value falls below it. A design constant, configurable per engine.
const DefaultStationaryPValue = 0.05

// ADFResult holds the augmented Dickey-Fuller test output.
type ADFResult struct {
	Statistic  float64
	PValue     float64
	Lags       int
	Stationary bool
}

// adfAutoLags is the fixed rule lag = floor(12*(n/100)^0.25), minimum 1.
func adfAutoLags(n int) int {
	lag := int(math.Floor(12 * math.Pow(float64(n)/100, 0.25)))
	if lag < 1 {
		lag = 1
	}
	return lag
}

// dfQuantiles maps asymptotic quantiles of the Dickey-Fuller tau distribution
// (no-constant variant, matching the regression below) to cumulative
// probabilities. The p-value is linearly interpolated between entries and
// clamped to [0.001, 0.999]. A simplified approximation of the exact
// reference distribution; adequate for threshold classification.
var dfQuantiles = []struct {
	stat float64
	p    float64
}{
	{-2.58, 0.010},
	{-2.23, 0.025},
	{-1.95, 0.050},
	{-1.62, 0.100},
	{-0.49, 0.500},
	{0.89, 0.900},
	{1.28, 0.950},
	{1.62, 0.975},
	{2.00, 0.990},
}

func dfPValue(stat float64) float64 {
	first := dfQuantiles[0]
	if stat <= first.stat {
		return 0.001
	}
	last := dfQuantiles[len(dfQuantiles)-1]
	if stat >= last.stat {
		return 0.999
	}
	for i := 1; i < len(dfQuantiles); i++ {
		lo, hi := dfQuantiles[i-1], dfQuantiles[i]
		if stat <= hi.stat {
			frac := (stat - lo.stat) / (hi.stat - lo.stat)
			return lo.p + frac*(hi.p-lo.p)
		}
	}
	return 0.999
}

// ADFTest fits the augmented regression
//
//	dS_t = gamma*S_{t-1} + sum_k delta_k*dS_{t-k} + e_t
//
// and reports statistic = gamma_hat / SE(gamma_hat) with an approximate
// p-value. lags <= 0 selects the fixed auto rule. Series shorter than 10
// points, or degenerate regressors, return ErrInsufficientData.
func ADFTest(series []float64, lags int, stationaryPValue float64) (*ADFResult, error) {
	n := len(series)
	if n < 10 {
		return nil, ErrInsufficientData
	}
	if lags <= 0 {
		lags = adfAutoLags(n)
	}
	if stationaryPValue <= 0 {
		stationaryPValue = DefaultStationaryPValue
	}

	// First differences: diff[i] = series[i+1] - series[i]
	diffs := make([]float64, n-1)
	for i := range diffs {
		diffs[i] = series[i+1] - series[i]
	}

	// One row per usable observation: t runs over diffs[lags:].
	nobs := len(diffs) - lags
	k := lags + 1
	if nobs <= k {
		return nil, ErrInsufficientData
	}

	y := make([]float64, nobs)
	x := make([][]float64, nobs)
	for r := 0; r < nobs; r++ {
		t := r + lags
		y[r] = diffs[t]
		row := make([]float64, k)
		row[0] = series[t] // S_{t-1} relative to dS_t
		for j := 1; j <= lags; j++ {
			row[j] = diffs[t-j]
		}
		x[r] = row
	}

	coef, stderr, err := olsFit(y, x)
	if err != nil {
		return nil, err
	}
	if stderr[0] < zeroVarianceEps {
		return nil, ErrInsufficientData
	}

	stat := coef[0] / stderr[0]
	p := dfPValue(stat)

	return &ADFResult{
		Statistic:  stat,
		PValue:     p,
		Lags:       lags,
		Stationary: p < stationaryPValue,
	}, nil
}

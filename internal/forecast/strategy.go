// Package forecast produces per-tool monthly visit forecasts. The seasonal
// primary strategy is tried first; any unavailability or fitting error fails
// over to a deterministic linear trend, and each output point records which
// strategy produced it.
package forecast

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"atlaslens/internal/config"
	"atlaslens/internal/mlkit"
)

// Strategy is one forecasting method. Available is a cheap admission check;
// Forecast may still fail, in which case the engine falls back.
type Strategy interface {
	Name() string
	Available(series []float64) bool
	Forecast(series []float64, horizon int) (pred, lower, upper []float64, err error)
}

// MethodPrimary and MethodFallback are the method tags recorded on points.
const (
	MethodPrimary  = "primary"
	MethodFallback = "linear_fallback"
)

// seasonalStrategy wraps the Holt-Winters model behind the Strategy contract.
type seasonalStrategy struct {
	policy config.Policy
}

func (s *seasonalStrategy) Name() string { return MethodPrimary }

func (s *seasonalStrategy) Available(series []float64) bool {
	return len(series) >= s.policy.ForecastMinPoints && mlkit.Sum(series) > 0
}

func (s *seasonalStrategy) Forecast(series []float64, horizon int) ([]float64, []float64, []float64, error) {
	hw := mlkit.NewHoltWinters(12)
	pred, sigma, err := hw.Forecast(series, horizon)
	if err != nil {
		return nil, nil, nil, err
	}
	if sigma < s.policy.ForecastMinSigma {
		sigma = s.policy.ForecastMinSigma
	}

	// Guardrail: a seasonal fit can collapse toward zero right after an
	// active month. Floor at half the recent mean when recent actuals are
	// positive.
	if len(series) >= s.policy.ForecastRecentMonths {
		recent := mlkit.Mean(series[len(series)-s.policy.ForecastRecentMonths:])
		if recent > 0 {
			floor := recent * s.policy.ForecastGuardFactor
			for i, p := range pred {
				if p < floor {
					pred[i] = floor
				}
			}
		}
	}

	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	for i, p := range pred {
		lower[i] = p - s.policy.ForecastInterval*sigma
		upper[i] = p + s.policy.ForecastInterval*sigma
	}
	return pred, lower, upper, nil
}

// linearStrategy is the deterministic fallback: an OLS trend over the month
// index with a residual-spread interval.
type linearStrategy struct {
	policy config.Policy
}

func (s *linearStrategy) Name() string { return MethodFallback }

func (s *linearStrategy) Available([]float64) bool { return true }

func (s *linearStrategy) Forecast(series []float64, horizon int) ([]float64, []float64, []float64, error) {
	if horizon <= 0 {
		return nil, nil, nil, fmt.Errorf("forecast: non-positive horizon %d", horizon)
	}

	var slope, intercept float64
	if len(series) >= 2 {
		xs := make([]float64, len(series))
		for i := range xs {
			xs[i] = float64(i)
		}
		intercept, slope = stat.LinearRegression(xs, series, nil, false)
	} else if len(series) == 1 {
		intercept = series[0]
	}

	residuals := make([]float64, len(series))
	for i, y := range series {
		residuals[i] = y - (slope*float64(i) + intercept)
	}
	sigma := mlkit.PopStd(residuals)
	if sigma < s.policy.ForecastMinSigma {
		sigma = s.policy.ForecastMinSigma
	}

	pred := make([]float64, horizon)
	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		x := float64(len(series) + h)
		pred[h] = slope*x + intercept
		lower[h] = pred[h] - s.policy.ForecastInterval*sigma
		upper[h] = pred[h] + s.policy.ForecastInterval*sigma
	}
	return pred, lower, upper, nil
}

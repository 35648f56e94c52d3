package mlkit

import (
	"fmt"
	"math"
)

// HoltWinters is additive triple exponential smoothing with a fixed seasonal
// period. Smoothing factors are conventional defaults; the model is only used
// through the forecast strategy interface, which falls back to a linear trend
// whenever fitting fails.
type HoltWinters struct {
	Period int
	Alpha  float64
	Beta   float64
	Gamma  float64
}

// NewHoltWinters returns a model with a 12-step season and default factors.
func NewHoltWinters(period int) *HoltWinters {
	return &HoltWinters{Period: period, Alpha: 0.3, Beta: 0.05, Gamma: 0.2}
}

// Forecast fits on series and returns horizon point forecasts plus the
// population standard deviation of the one-step-ahead residuals.
func (hw *HoltWinters) Forecast(series []float64, horizon int) ([]float64, float64, error) {
	p := hw.Period
	if len(series) < p {
		return nil, 0, fmt.Errorf("holtwinters: need at least %d points, have %d", p, len(series))
	}

	// Initial state from the first season.
	level := Mean(series[:p])
	seasonal := make([]float64, p)
	for i := 0; i < p; i++ {
		seasonal[i] = series[i] - level
	}
	trend := 0.0
	if len(series) >= 2*p {
		trend = (Mean(series[p:2*p]) - level) / float64(p)
	} else if len(series) > p {
		trend = (series[len(series)-1] - series[0]) / float64(len(series)-1)
	}

	residuals := make([]float64, 0, len(series)-p)
	for t := p; t < len(series); t++ {
		idx := t % p
		fitted := level + trend + seasonal[idx]
		residuals = append(residuals, series[t]-fitted)

		prevLevel := level
		level = hw.Alpha*(series[t]-seasonal[idx]) + (1-hw.Alpha)*(level+trend)
		trend = hw.Beta*(level-prevLevel) + (1-hw.Beta)*trend
		seasonal[idx] = hw.Gamma*(series[t]-level) + (1-hw.Gamma)*seasonal[idx]
	}

	if math.IsNaN(level) || math.IsInf(level, 0) || math.IsNaN(trend) || math.IsInf(trend, 0) {
		return nil, 0, fmt.Errorf("holtwinters: smoothing diverged")
	}

	forecast := make([]float64, horizon)
	for h := 1; h <= horizon; h++ {
		idx := (len(series) + h - 1) % p
		forecast[h-1] = level + float64(h)*trend + seasonal[idx]
		if math.IsNaN(forecast[h-1]) || math.IsInf(forecast[h-1], 0) {
			return nil, 0, fmt.Errorf("holtwinters: non-finite forecast")
		}
	}
	return forecast, PopStd(residuals), nil
}

package forecast

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"atlaslens/internal/config"
	"atlaslens/internal/loader"
)

// Point is one forecast output row. Predicted and both bounds are floored at
// zero; Method records the strategy that produced the value.
type Point struct {
	Month     string `json:"month"`
	Tool      string `json:"tool"`
	Predicted int    `json:"predicted"`
	Lower     int    `json:"lower"`
	Upper     int    `json:"upper"`
	Method    string `json:"method"`
}

// Engine runs the ranked strategies per tool. Strategies are chosen once at
// construction; the per-tool admission check picks between them at run time.
type Engine struct {
	primary  Strategy
	fallback Strategy
	workers  int
	logger   *slog.Logger
}

// NewEngine builds an engine with the seasonal primary and linear fallback.
func NewEngine(policy config.Policy, workers int, logger *slog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		primary:  &seasonalStrategy{policy: policy},
		fallback: &linearStrategy{policy: policy},
		workers:  workers,
		logger:   logger,
	}
}

// Generate forecasts every tool in the pivot over the horizon. Tools run
// concurrently under the configured worker bound; output ordering is
// (month, tool) regardless of completion order.
func (e *Engine) Generate(ctx context.Context, pivot *loader.MonthlyPivot, horizon int) []Point {
	if pivot.Empty() || horizon <= 0 {
		return []Point{}
	}

	future := pivot.FutureMonths(horizon)

	var mu sync.Mutex
	points := make([]Point, 0, horizon*len(pivot.Tools))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, tool := range pivot.Tools {
		g.Go(func() error {
			series := pivot.Series(tool)
			pred, lower, upper, method := e.forecastSeries(tool, series, horizon)

			toolPoints := make([]Point, 0, horizon)
			for i, month := range future {
				toolPoints = append(toolPoints, Point{
					Month:     loader.MonthLabel(month),
					Tool:      tool,
					Predicted: clampRound(pred[i]),
					Lower:     clampRound(lower[i]),
					Upper:     clampRound(upper[i]),
					Method:    method,
				})
			}
			mu.Lock()
			points = append(points, toolPoints...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(points, func(i, j int) bool {
		if points[i].Month != points[j].Month {
			return points[i].Month < points[j].Month
		}
		return points[i].Tool < points[j].Tool
	})
	return points
}

func (e *Engine) forecastSeries(tool string, series []float64, horizon int) (pred, lower, upper []float64, method string) {
	if e.primary.Available(series) {
		pred, lower, upper, err := e.primary.Forecast(series, horizon)
		if err == nil {
			return pred, lower, upper, e.primary.Name()
		}
		e.logger.Warn("Primary forecast failed, using fallback",
			slog.String("tool", tool), slog.Any("error", err))
	}

	pred, lower, upper, err := e.fallback.Forecast(series, horizon)
	if err != nil {
		// The fallback only errors on a non-positive horizon, which the
		// caller guards against; emit flat zeros rather than dropping a tool.
		pred = make([]float64, horizon)
		lower = make([]float64, horizon)
		upper = make([]float64, horizon)
	}
	return pred, lower, upper, e.fallback.Name()
}

func clampRound(v float64) int {
	if v < 0 {
		return 0
	}
	return int(math.Round(v))
}

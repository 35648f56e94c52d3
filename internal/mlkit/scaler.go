package mlkit

// StandardScaler centers each column to zero mean and unit variance.
// Constant columns are left centered but unscaled.
type StandardScaler struct {
	Means []float64
	Stds  []float64
}

// FitScaler computes per-column means and population standard deviations.
func FitScaler(x [][]float64) *StandardScaler {
	if len(x) == 0 {
		return &StandardScaler{}
	}
	cols := len(x[0])
	s := &StandardScaler{
		Means: make([]float64, cols),
		Stds:  make([]float64, cols),
	}
	col := make([]float64, len(x))
	for j := 0; j < cols; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		s.Means[j] = Mean(col)
		s.Stds[j] = PopStd(col)
		if s.Stds[j] == 0 {
			s.Stds[j] = 1
		}
	}
	return s
}

// Transform returns a scaled copy of x.
func (s *StandardScaler) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Means[j]) / s.Stds[j]
		}
		out[i] = scaled
	}
	return out
}

// FitTransform fits the scaler and scales x in one step.
func FitTransform(x [][]float64) ([][]float64, *StandardScaler) {
	s := FitScaler(x)
	return s.Transform(x), s
}

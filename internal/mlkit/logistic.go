package mlkit

import (
	"fmt"
	"math"
)

// Logistic is a binary logistic-regression classifier trained by full-batch
// gradient descent. Inputs are expected to be standardized; with balanced
// class weights each class contributes equally to the loss.
type Logistic struct {
	Weights []float64
	Bias    float64

	epochs       int
	learningRate float64
	balanced     bool
}

// NewLogistic returns a classifier with balanced class weighting.
func NewLogistic() *Logistic {
	return &Logistic{epochs: 500, learningRate: 0.1, balanced: true}
}

// Fit trains on standardized features x and binary labels y.
func (l *Logistic) Fit(x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("logistic: mismatched input sizes %d/%d", len(x), len(y))
	}

	n := float64(len(y))
	var positives float64
	for _, label := range y {
		positives += float64(label)
	}
	if positives == 0 || positives == n {
		return fmt.Errorf("logistic: single-class input")
	}

	wPos, wNeg := 1.0, 1.0
	if l.balanced {
		wPos = n / (2 * positives)
		wNeg = n / (2 * (n - positives))
	}

	dims := len(x[0])
	l.Weights = make([]float64, dims)
	l.Bias = 0

	grad := make([]float64, dims)
	for epoch := 0; epoch < l.epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64

		for i, row := range x {
			p := l.predictRow(row)
			weight := wNeg
			if y[i] == 1 {
				weight = wPos
			}
			delta := weight * (p - float64(y[i]))
			for j, v := range row {
				grad[j] += delta * v
			}
			gradBias += delta
		}

		step := l.learningRate / n
		for j := range l.Weights {
			l.Weights[j] -= step * grad[j]
		}
		l.Bias -= step * gradBias
	}
	return nil
}

// PredictProba returns the positive-class probability per row.
func (l *Logistic) PredictProba(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = l.predictRow(row)
	}
	return out
}

func (l *Logistic) predictRow(row []float64) float64 {
	z := l.Bias
	for j, v := range row {
		z += l.Weights[j] * v
	}
	return 1 / (1 + math.Exp(-z))
}

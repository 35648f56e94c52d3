package mlkit

import "sort"

// ClassificationMetrics holds threshold-based and ranking metrics for a
// binary classifier evaluated on held-out data.
type ClassificationMetrics struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	ROCAUC    float64
}

// EvaluateBinary computes metrics from probabilities, a decision cutoff, and
// true labels. Precision/recall/F1 return 0 when undefined.
func EvaluateBinary(probs []float64, labels []int, cutoff float64) ClassificationMetrics {
	var tp, fp, tn, fn float64
	for i, p := range probs {
		predicted := 0
		if p >= cutoff {
			predicted = 1
		}
		switch {
		case predicted == 1 && labels[i] == 1:
			tp++
		case predicted == 1 && labels[i] == 0:
			fp++
		case predicted == 0 && labels[i] == 0:
			tn++
		default:
			fn++
		}
	}

	m := ClassificationMetrics{}
	total := tp + fp + tn + fn
	if total > 0 {
		m.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.ROCAUC = ROCAUC(probs, labels)
	return m
}

// ROCAUC computes the area under the ROC curve via the rank-sum identity,
// with average ranks for tied scores. Returns 0 when either class is absent.
func ROCAUC(probs []float64, labels []int) float64 {
	n := len(probs)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[idx[j]] == probs[idx[i]] {
			j++
		}
		// Average rank over the tie group, ranks are 1-based.
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	var posRankSum, nPos float64
	for i, label := range labels {
		if label == 1 {
			posRankSum += ranks[i]
			nPos++
		}
	}
	nNeg := float64(n) - nPos
	if nPos == 0 || nNeg == 0 {
		return 0
	}
	return (posRankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}

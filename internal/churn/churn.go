// Package churn estimates the probability that a visitor returns within the
// configured window, from signals available in the first few events of a
// session plus whole-session attributes.
package churn

import (
	"fmt"
	"sort"
	"time"

	"atlaslens/internal/config"
	"atlaslens/internal/loader"
	"atlaslens/internal/mlkit"
	"atlaslens/internal/sessions"
)

// FeatureWeight is one model coefficient with its column name.
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Bucket is one probability decile compared against the observed return rate.
type Bucket struct {
	Range        string  `json:"range"`
	Sessions     int     `json:"sessions"`
	PredictedAvg float64 `json:"predicted_avg"`
	ObservedRate float64 `json:"observed_rate"`
}

// Result is the return-probability artifact payload.
type Result struct {
	SessionsUsed int             `json:"sessions_used"`
	PositiveRate float64         `json:"positive_rate"`
	Accuracy     float64         `json:"accuracy"`
	Precision    float64         `json:"precision"`
	Recall       float64         `json:"recall"`
	F1           float64         `json:"f1"`
	ROCAUC       float64         `json:"roc_auc"`
	TopFeatures  []FeatureWeight `json:"top_features"`
	Calibration  []Bucket        `json:"calibration"`
	Note         string          `json:"note,omitempty"`
}

var featureNames = []string{
	"early_click", "early_error", "early_hover", "early_keyboard", "early_pageView",
	"early_unique_paths", "early_events",
	"events", "duration_min", "unique_tools", "start_hour_utc", "is_weekend",
}

type example struct {
	features []float64
	label    int
}

// Model trains and evaluates the return classifier over the session table.
func Model(events []loader.CanonicalEvent, table []sessions.FeatureVector, policy config.Policy) Result {
	dataset := buildDataset(events, table, policy.ChurnEarlyEvents, policy.ChurnReturnWindowDays)
	if len(dataset) == 0 {
		return Result{Note: "insufficient class diversity for churn model"}
	}

	x := make([][]float64, len(dataset))
	y := make([]int, len(dataset))
	var positives int
	for i, ex := range dataset {
		x[i] = ex.features
		y[i] = ex.label
		positives += ex.label
	}
	if positives == 0 || positives == len(dataset) {
		return Result{
			SessionsUsed: len(dataset),
			Note:         "insufficient class diversity for churn model",
		}
	}

	trainIdx, testIdx := mlkit.StratifiedSplit(y, policy.ChurnTestFraction, policy.Seed)
	xTrainRaw, yTrain := selectRows(x, y, trainIdx)
	xTestRaw, yTest := selectRows(x, y, testIdx)

	// Scaling parameters come from the training split only.
	scaler := mlkit.FitScaler(xTrainRaw)
	xTrain := scaler.Transform(xTrainRaw)
	xTest := scaler.Transform(xTestRaw)

	model := mlkit.NewLogistic()
	if err := model.Fit(xTrain, yTrain); err != nil {
		return Result{
			SessionsUsed: len(dataset),
			Note:         "insufficient class diversity for churn model",
		}
	}

	metrics := mlkit.EvaluateBinary(model.PredictProba(xTest), yTest, policy.ChurnProbabilityCut)
	allProbs := model.PredictProba(scaler.Transform(x))

	return Result{
		SessionsUsed: len(dataset),
		PositiveRate: mlkit.Round3(float64(positives) / float64(len(dataset))),
		Accuracy:     mlkit.Round3(metrics.Accuracy),
		Precision:    mlkit.Round3(metrics.Precision),
		Recall:       mlkit.Round3(metrics.Recall),
		F1:           mlkit.Round3(metrics.F1),
		ROCAUC:       mlkit.Round3(metrics.ROCAUC),
		TopFeatures:  topWeights(model.Weights, 6),
		Calibration:  calibrate(allProbs, y, policy.ChurnBuckets),
	}
}

// buildDataset labels each session by whether the same visitor started a new
// session within the return window. Sessions without a stable visitor ID are
// excluded since they cannot be linked across visits.
func buildDataset(events []loader.CanonicalEvent, table []sessions.FeatureVector, earlyEvents, windowDays int) []example {
	early := earlyFeatures(events, earlyEvents)

	linked := make([]*sessions.FeatureVector, 0, len(table))
	for i := range table {
		if table[i].AnonID != "" {
			linked = append(linked, &table[i])
		}
	}
	sort.SliceStable(linked, func(i, j int) bool {
		if linked[i].AnonID != linked[j].AnonID {
			return linked[i].AnonID < linked[j].AnonID
		}
		return linked[i].FirstSeen.Before(linked[j].FirstSeen)
	})

	window := time.Duration(windowDays) * 24 * time.Hour
	out := make([]example, 0, len(linked))
	for i, v := range linked {
		label := 0
		if i+1 < len(linked) && linked[i+1].AnonID == v.AnonID {
			if linked[i+1].FirstSeen.Sub(v.FirstSeen) <= window {
				label = 1
			}
		}

		ef := early[v.SessionID]
		row := make([]float64, 0, len(featureNames))
		for _, t := range sessions.TrackedEventTypes {
			row = append(row, float64(ef.typeCounts[t]))
		}
		row = append(row,
			float64(ef.uniquePaths),
			float64(ef.events),
			float64(v.Events),
			v.DurationMin,
			float64(v.UniqueTools),
			float64(v.StartHourUTC),
			boolFeature(v.IsWeekend),
		)
		out = append(out, example{features: row, label: label})
	}
	return out
}

type earlySignal struct {
	typeCounts  map[string]int
	uniquePaths int
	events      int
}

// earlyFeatures summarizes the first few events of every session.
func earlyFeatures(events []loader.CanonicalEvent, limit int) map[string]earlySignal {
	out := make(map[string]earlySignal)
	start := 0
	for i := 1; i <= len(events); i++ {
		if i == len(events) || events[i].SessionID != events[start].SessionID {
			head := events[start:i]
			if len(head) > limit {
				head = head[:limit]
			}
			sig := earlySignal{typeCounts: make(map[string]int), events: len(head)}
			paths := make(map[string]bool)
			for _, ev := range head {
				sig.typeCounts[ev.EventType]++
				paths[ev.Path] = true
			}
			sig.uniquePaths = len(paths)
			out[events[start].SessionID] = sig
			start = i
		}
	}
	return out
}

func selectRows(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = x[j]
		ys[i] = y[j]
	}
	return xs, ys
}

// topWeights returns the largest and smallest coefficients by value,
// regardless of sign.
func topWeights(weights []float64, perEnd int) []FeatureWeight {
	all := make([]FeatureWeight, len(weights))
	for i, w := range weights {
		all[i] = FeatureWeight{Feature: featureNames[i], Weight: mlkit.Round4(w)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Weight > all[j].Weight })

	head := perEnd
	if head > len(all) {
		head = len(all)
	}
	tailStart := len(all) - perEnd
	if tailStart < head {
		tailStart = head
	}

	out := make([]FeatureWeight, 0, 2*perEnd)
	out = append(out, all[:head]...)
	out = append(out, all[tailStart:]...)
	return out
}

// calibrate bins the full dataset's predictions into equal-width probability
// buckets and compares the mean prediction against the observed return rate.
func calibrate(probs []float64, labels []int, buckets int) []Bucket {
	type acc struct {
		n        int
		sumProb  float64
		sumLabel int
	}
	bins := make([]acc, buckets)
	for i, p := range probs {
		b := int(p * float64(buckets))
		if b >= buckets {
			b = buckets - 1
		}
		bins[b].n++
		bins[b].sumProb += p
		bins[b].sumLabel += labels[i]
	}

	out := make([]Bucket, 0, buckets)
	for b, bin := range bins {
		if bin.n == 0 {
			continue
		}
		lo := float64(b) / float64(buckets)
		hi := float64(b+1) / float64(buckets)
		out = append(out, Bucket{
			Range:        rangeLabel(lo, hi),
			Sessions:     bin.n,
			PredictedAvg: mlkit.Round3(bin.sumProb / float64(bin.n)),
			ObservedRate: mlkit.Round3(float64(bin.sumLabel) / float64(bin.n)),
		})
	}
	return out
}

func rangeLabel(lo, hi float64) string {
	return fmt.Sprintf("%.1f-%.1f", lo, hi)
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

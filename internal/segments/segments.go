// Package segments clusters sessions into named behavioral groups.
package segments

import (
	"fmt"
	"math"
	"sort"

	"atlaslens/internal/config"
	"atlaslens/internal/mlkit"
	"atlaslens/internal/sessions"
)

// Segment is one cluster with descriptive statistics and a readable name.
type Segment struct {
	ClusterID      int     `json:"cluster_id"`
	Name           string  `json:"name"`
	Size           int     `json:"size"`
	Pct            float64 `json:"pct"`
	AvgEvents      float64 `json:"avg_events"`
	AvgDepth       float64 `json:"avg_depth"`
	AvgDurationMin float64 `json:"avg_duration_min"`
	AvgUniqueTools float64 `json:"avg_unique_tools"`
	BounceRate     float64 `json:"bounce_rate"`
	ClickRate      float64 `json:"click_rate"`
	ErrorRate      float64 `json:"error_rate"`
	PeakHourUTC    int     `json:"peak_hour_utc"`
	TopTool        string  `json:"top_tool"`
}

// Result is the segmentation artifact payload.
type Result struct {
	SessionsUsed int       `json:"sessions_used"`
	Segments     []Segment `json:"segments"`
	Note         string    `json:"note,omitempty"`
}

// featureRow builds the fixed-order numeric vector clustering runs on.
func featureRow(v *sessions.FeatureVector) []float64 {
	return []float64{
		float64(v.Events),
		v.DurationMin,
		float64(v.UniquePaths),
		float64(v.UniqueTools),
		boolFeature(v.IsBounce),
		float64(v.EventTypeCount(sessions.EventClick)),
		float64(v.EventTypeCount(sessions.EventError)),
		float64(v.EventTypeCount(sessions.EventKeyboard)),
		float64(v.EventTypeCount(sessions.EventHover)),
		float64(v.EventTypeCount(sessions.EventPageView)),
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Cluster groups the session table. Too few sessions yields an empty result
// with an explanatory note instead of a degenerate clustering.
func Cluster(table []sessions.FeatureVector, policy config.Policy) Result {
	if len(table) < policy.SegmentMinSessions {
		return Result{
			SessionsUsed: len(table),
			Segments:     []Segment{},
			Note:         "insufficient sessions for clustering",
		}
	}

	x := make([][]float64, len(table))
	for i := range table {
		x[i] = featureRow(&table[i])
	}
	clipOutliers(x, policy.SegmentClipQuantile)

	scaled, _ := mlkit.FitTransform(x)
	km, err := mlkit.KMeans(scaled, policy.SegmentClusters, policy.SegmentRestarts, policy.Seed)
	if err != nil {
		return Result{
			SessionsUsed: len(table),
			Segments:     []Segment{},
			Note:         "insufficient sessions for clustering",
		}
	}

	segs := describe(table, km.Labels, policy.SegmentClusters)
	nameSegments(segs)
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Size > segs[j].Size })

	return Result{SessionsUsed: len(table), Segments: segs}
}

// clipOutliers caps every column at its upper quantile so a handful of
// marathon sessions cannot dominate the distance metric.
func clipOutliers(x [][]float64, quantile float64) {
	if len(x) == 0 {
		return
	}
	cols := len(x[0])
	for c := 0; c < cols; c++ {
		col := make([]float64, len(x))
		for r := range x {
			col[r] = x[r][c]
		}
		upper := math.Max(mlkit.Quantile(quantile, col), 1)
		for r := range x {
			if x[r][c] > upper {
				x[r][c] = upper
			}
		}
	}
}

func describe(table []sessions.FeatureVector, labels []int, k int) []Segment {
	segs := make([]Segment, 0, k)
	total := float64(len(table))

	for cluster := 0; cluster < k; cluster++ {
		var members []*sessions.FeatureVector
		for i := range table {
			if labels[i] == cluster {
				members = append(members, &table[i])
			}
		}
		if len(members) == 0 {
			continue
		}

		n := float64(len(members))
		var events, depth, tools, bounce, clickFrac, errorFrac float64
		durations := make([]float64, 0, len(members))
		hours := make([]int, 0, len(members))
		toolVotes := make(map[string]int)

		for _, m := range members {
			events += float64(m.Events)
			depth += float64(m.UniquePaths)
			tools += float64(m.UniqueTools)
			durations = append(durations, math.Min(m.DurationMin, 120))
			hours = append(hours, m.StartHourUTC)
			if m.IsBounce {
				bounce++
			}
			// Click and error rates are mean per-session event fractions, not
			// the share of sessions containing the event type.
			total := math.Max(float64(m.Events), 1)
			clickFrac += float64(m.EventTypeCount(sessions.EventClick)) / total
			errorFrac += float64(m.EventTypeCount(sessions.EventError)) / total
			if m.TopTool != "" {
				toolVotes[m.TopTool]++
			}
		}

		segs = append(segs, Segment{
			ClusterID:      cluster,
			Size:           len(members),
			Pct:            mlkit.Round2(n / total * 100),
			AvgEvents:      mlkit.Round2(events / n),
			AvgDepth:       mlkit.Round2(depth / n),
			AvgDurationMin: mlkit.Round2(mlkit.Median(durations)),
			AvgUniqueTools: mlkit.Round2(tools / n),
			BounceRate:     mlkit.Round3(bounce / n),
			ClickRate:      mlkit.Round3(clickFrac / n),
			ErrorRate:      mlkit.Round3(errorFrac / n),
			PeakHourUTC:    mlkit.ModeInt(hours),
			TopTool:        modalTool(toolVotes),
		})
	}
	return segs
}

func modalTool(votes map[string]int) string {
	best, bestCount := "", -1
	keys := make([]string, 0, len(votes))
	for k := range votes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if votes[k] > bestCount {
			best, bestCount = k, votes[k]
		}
	}
	return best
}

// nameSegments assigns readable names from the first matching rule, then
// disambiguates duplicates with an incrementing suffix in cluster order.
func nameSegments(segs []Segment) {
	ordered := make([]*Segment, len(segs))
	for i := range segs {
		ordered[i] = &segs[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ClusterID < ordered[j].ClusterID })

	counts := make(map[string]int)
	for _, s := range ordered {
		base := segmentName(s)
		counts[base]++
		if counts[base] > 1 {
			s.Name = fmt.Sprintf("%s %d", base, counts[base])
			continue
		}
		s.Name = base
	}
}

func segmentName(s *Segment) string {
	switch {
	case s.BounceRate >= 0.9:
		return "Single-Page Visits"
	case s.AvgEvents <= 2:
		return "Quick Explorers"
	case s.AvgEvents >= 15:
		return "Power Researchers"
	case s.AvgUniqueTools >= 1.8:
		return "Cross-Tool Users"
	case s.ErrorRate >= 0.30:
		return "Error-Heavy Sessions"
	default:
		return "Regular Researchers"
	}
}

// Package journeys derives tool-to-tool movement from session event order:
// a transition matrix with row-normalized probabilities, the most common full
// paths, and per-tool recommendations ranked by lift.
package journeys

import (
	"sort"
	"strings"

	"atlaslens/internal/config"
	"atlaslens/internal/loader"
	"atlaslens/internal/mlkit"
)

// Recommendation bases.
const (
	BasisLift               = "lift"
	BasisConfidenceFallback = "confidence_fallback"
)

// Edge is one directed transition with its row-conditional probability.
type Edge struct {
	FromTool    string  `json:"from_tool"`
	ToTool      string  `json:"to_tool"`
	Count       int     `json:"count"`
	Probability float64 `json:"probability"`
}

// PathCount is a full session path with its frequency.
type PathCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// TransitionResult is the transition-matrix artifact payload.
type TransitionResult struct {
	SessionsWithSequences int         `json:"sessions_with_sequences"`
	Edges                 []Edge      `json:"edges"`
	TopPaths              []PathCount `json:"top_paths"`
}

// Recommendation is one "users of X also use Y" suggestion.
type Recommendation struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Support    float64 `json:"support"`
	Confidence float64 `json:"confidence"`
	Lift       float64 `json:"lift"`
	CoSessions int     `json:"co_sessions"`
	Basis      string  `json:"basis"`
}

// BuildSequences extracts each session's tool path in event order. Events
// without a recognized tool are skipped and immediate repeats collapse, so a
// sequence records movement, not dwell.
func BuildSequences(events []loader.CanonicalEvent) [][]string {
	var out [][]string
	start := 0
	for i := 1; i <= len(events); i++ {
		if i == len(events) || events[i].SessionID != events[start].SessionID {
			var seq []string
			for _, ev := range events[start:i] {
				if ev.Tool == "" {
					continue
				}
				if len(seq) > 0 && seq[len(seq)-1] == ev.Tool {
					continue
				}
				seq = append(seq, ev.Tool)
			}
			if len(seq) > 0 {
				out = append(out, seq)
			}
			start = i
		}
	}
	return out
}

// TransitionMatrix counts adjacent pairs across all sequences and normalizes
// per origin tool.
func TransitionMatrix(sequences [][]string, topPaths int) TransitionResult {
	counts := make(map[[2]string]int)
	rowTotals := make(map[string]int)
	paths := make(map[string]int)
	withTransitions := 0

	for _, seq := range sequences {
		if len(seq) >= 2 {
			withTransitions++
			paths[strings.Join(seq, " -> ")]++
		}
		for i := 1; i < len(seq); i++ {
			counts[[2]string{seq[i-1], seq[i]}]++
			rowTotals[seq[i-1]]++
		}
	}

	edges := make([]Edge, 0, len(counts))
	for pair, count := range counts {
		edges = append(edges, Edge{
			FromTool:    pair[0],
			ToTool:      pair[1],
			Count:       count,
			Probability: mlkit.Round3(float64(count) / float64(rowTotals[pair[0]])),
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Count != edges[j].Count {
			return edges[i].Count > edges[j].Count
		}
		if edges[i].FromTool != edges[j].FromTool {
			return edges[i].FromTool < edges[j].FromTool
		}
		return edges[i].ToTool < edges[j].ToTool
	})

	return TransitionResult{
		SessionsWithSequences: withTransitions,
		Edges:                 edges,
		TopPaths:              rankPaths(paths, topPaths),
	}
}

func rankPaths(paths map[string]int, limit int) []PathCount {
	out := make([]PathCount, 0, len(paths))
	for p, c := range paths {
		out = append(out, PathCount{Path: p, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Recommend scores every ordered tool pair by session co-occurrence. Each
// source tool gets its top lift-ranked targets; sources with nothing above
// the lift bar fall back to a smaller confidence-ranked list so popular tools
// still produce suggestions.
func Recommend(sequences [][]string, policy config.Policy) []Recommendation {
	n := len(sequences)
	if n == 0 {
		return []Recommendation{}
	}

	toolSessions := make(map[string]int)
	pairSessions := make(map[[2]string]int)
	for _, seq := range sequences {
		set := make(map[string]bool)
		for _, tool := range seq {
			set[tool] = true
		}
		tools := make([]string, 0, len(set))
		for tool := range set {
			tools = append(tools, tool)
			toolSessions[tool]++
		}
		sort.Strings(tools)
		for i, a := range tools {
			for j, b := range tools {
				if i != j {
					pairSessions[[2]string{a, b}]++
				}
			}
		}
	}

	bySource := make(map[string][]Recommendation)
	for pair, co := range pairSessions {
		if co < policy.RecommendMinCoSessions {
			continue
		}
		source, target := pair[0], pair[1]
		support := float64(co) / float64(n)
		confidence := float64(co) / float64(toolSessions[source])
		targetRate := float64(toolSessions[target]) / float64(n)
		lift := confidence / targetRate
		bySource[source] = append(bySource[source], Recommendation{
			Source:     source,
			Target:     target,
			Support:    mlkit.Round3(support),
			Confidence: mlkit.Round3(confidence),
			Lift:       mlkit.Round3(lift),
			CoSessions: co,
		})
	}

	var out []Recommendation
	sources := make([]string, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	for _, source := range sources {
		cands := bySource[source]

		var primary []Recommendation
		for _, r := range cands {
			if r.Lift > policy.RecommendMinLift && r.Confidence >= policy.RecommendMinConfidence {
				r.Basis = BasisLift
				primary = append(primary, r)
			}
		}
		if len(primary) > 0 {
			sort.SliceStable(primary, func(i, j int) bool {
				if primary[i].Lift != primary[j].Lift {
					return primary[i].Lift > primary[j].Lift
				}
				if primary[i].Confidence != primary[j].Confidence {
					return primary[i].Confidence > primary[j].Confidence
				}
				return primary[i].Target < primary[j].Target
			})
			if len(primary) > policy.RecommendPrimaryTopK {
				primary = primary[:policy.RecommendPrimaryTopK]
			}
			out = append(out, primary...)
			continue
		}

		var fallback []Recommendation
		for _, r := range cands {
			if r.Confidence >= policy.RecommendFallbackMinConf {
				r.Basis = BasisConfidenceFallback
				fallback = append(fallback, r)
			}
		}
		sort.SliceStable(fallback, func(i, j int) bool {
			if fallback[i].Confidence != fallback[j].Confidence {
				return fallback[i].Confidence > fallback[j].Confidence
			}
			if fallback[i].Support != fallback[j].Support {
				return fallback[i].Support > fallback[j].Support
			}
			return fallback[i].Target < fallback[j].Target
		})
		if len(fallback) > policy.RecommendFallbackTopK {
			fallback = fallback[:policy.RecommendFallbackTopK]
		}
		out = append(out, fallback...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].Lift != out[j].Lift {
			return out[i].Lift > out[j].Lift
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Package errcluster groups client error reports into named themes by
// clustering TF-IDF vectors of the cleaned error text.
package errcluster

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"atlaslens/internal/config"
	"atlaslens/internal/loader"
	"atlaslens/internal/mlkit"
	"atlaslens/internal/sessions"
)

// Cluster is one error theme with representative terms and a sample message.
type Cluster struct {
	Label    string   `json:"label"`
	Count    int      `json:"count"`
	Pct      float64  `json:"pct"`
	TopTerms []string `json:"top_terms"`
	Sample   string   `json:"sample"`
}

// Result is the error-cluster artifact payload.
type Result struct {
	RowsUsed int       `json:"rows_used"`
	Clusters []Cluster `json:"clusters"`
	Note     string    `json:"note,omitempty"`
}

var (
	urlRe        = regexp.MustCompile(`https?://\S+`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9_ ]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

type errorDoc struct {
	text   string
	sample string
}

// Group clusters error events. Fewer rows than the configured minimum yields
// an empty result with a note, since TF-IDF over a handful of messages only
// produces noise.
func Group(events []loader.CanonicalEvent, policy config.Policy) Result {
	docs := collect(events, policy.ErrSampleMaxLen)
	if len(docs) < policy.ErrClusterMinRows {
		return Result{RowsUsed: len(docs), Clusters: []Cluster{}, Note: "not enough error text rows"}
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.text
	}

	vec := &mlkit.TfidfVectorizer{MaxFeatures: policy.TfidfMaxFeatures, MinDocFreq: policy.TfidfMinDocFreq}
	matrix, terms := vec.FitTransform(texts)

	k := clusterCount(len(docs), policy)
	km, err := mlkit.KMeans(matrix, k, policy.ErrClusterRestarts, policy.Seed)
	if err != nil {
		return Result{RowsUsed: len(docs), Clusters: []Cluster{}, Note: "not enough error text rows"}
	}

	clusters := summarize(docs, km, terms, k)
	clusters = mergeByLabel(clusters, len(docs))
	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].Count != clusters[j].Count {
			return clusters[i].Count > clusters[j].Count
		}
		return clusters[i].Label < clusters[j].Label
	})
	return Result{RowsUsed: len(docs), Clusters: clusters}
}

// clusterCount scales k with volume between the configured bounds.
func clusterCount(n int, policy config.Policy) int {
	k := int(math.Round(math.Sqrt(float64(n) / float64(policy.ErrClusterRowsPerUnit))))
	if k < policy.ErrClusterMinK {
		k = policy.ErrClusterMinK
	}
	if k > policy.ErrClusterMaxK {
		k = policy.ErrClusterMaxK
	}
	return k
}

// collect selects error-bearing events and builds their cleaned text plus a
// human-readable sample.
func collect(events []loader.CanonicalEvent, sampleMaxLen int) []errorDoc {
	var docs []errorDoc
	for i := range events {
		ev := &events[i]
		if ev.EventType != sessions.EventError && ev.Message == "" {
			continue
		}
		text := cleanText(strings.Join([]string{
			ev.Message, ev.ReasonMessage, ev.ReasonStack, ev.Path, ev.ErrorPath,
		}, " "))
		if text == "" {
			continue
		}

		sample := ev.ReasonMessage
		if sample == "" {
			sample = ev.Message
		}
		if sample == "" {
			sample = text
		}
		if len(sample) > sampleMaxLen {
			sample = sample[:sampleMaxLen]
		}
		docs = append(docs, errorDoc{text: text, sample: sample})
	}
	return docs
}

func cleanText(raw string) string {
	s := strings.ToLower(raw)
	s = urlRe.ReplaceAllString(s, " ")
	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func summarize(docs []errorDoc, km *mlkit.KMeansResult, terms []string, k int) []Cluster {
	out := make([]Cluster, 0, k)
	for cluster := 0; cluster < k; cluster++ {
		var members []int
		for i, label := range km.Labels {
			if label == cluster {
				members = append(members, i)
			}
		}
		if len(members) == 0 {
			continue
		}

		topTerms := centroidTerms(km.Centroids[cluster], terms, 8)
		out = append(out, Cluster{
			Label:    themeLabel(topTerms, docs[members[0]].text),
			Count:    len(members),
			TopTerms: topTerms,
			Sample:   docs[members[0]].sample,
		})
	}
	return out
}

func centroidTerms(centroid []float64, terms []string, limit int) []string {
	idx := make([]int, len(centroid))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if centroid[idx[a]] != centroid[idx[b]] {
			return centroid[idx[a]] > centroid[idx[b]]
		}
		return terms[idx[a]] < terms[idx[b]]
	})

	out := make([]string, 0, limit)
	for _, i := range idx {
		if centroid[i] <= 0 || len(out) == limit {
			break
		}
		out = append(out, terms[i])
	}
	return out
}

// themeLabel assigns a readable name from the first matching keyword rule.
func themeLabel(topTerms []string, sampleText string) string {
	blob := strings.Join(topTerms, " ") + " " + sampleText

	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(blob, s) {
				return true
			}
		}
		return false
	}

	switch {
	case has("localhost", "127 0 0 1", "127.0.0.1"):
		return "Dev localhost (noise)"
	case has("svg") && has("tag not"):
		return "Malformed SVG icon"
	case has("error retrieving icon") && has("404"):
		return "KG Explorer icon 404"
	case has("error retrieving icon"):
		return "KG Explorer icon network error"
	case has("chart", "visualizer", "pop ", "bar graph"):
		return "HRA Pop Visualizer crash"
	case has("unknown error"):
		return "HTTP network failure"
	case has("404") && has("http failure"):
		return "404 Not Found"
	default:
		return "Misc error"
	}
}

// mergeByLabel folds clusters that mapped to the same theme and recomputes
// percentages against the total.
func mergeByLabel(clusters []Cluster, total int) []Cluster {
	merged := make(map[string]*Cluster)
	var order []string
	for _, c := range clusters {
		if m := merged[c.Label]; m != nil {
			m.Count += c.Count
			continue
		}
		copied := c
		merged[c.Label] = &copied
		order = append(order, c.Label)
	}

	out := make([]Cluster, 0, len(order))
	for _, label := range order {
		c := merged[label]
		c.Pct = mlkit.Round2(float64(c.Count) / float64(total) * 100)
		out = append(out, *c)
	}
	return out
}

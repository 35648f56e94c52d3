// Package botscore trains a request-level traffic classifier on the labeled
// log sample, then scores the tracked-interaction requests to surface
// sessions whose traffic looks automated despite a human label.
package botscore

import (
	"math"
	"math/rand"
	"regexp"
	"sort"

	"atlaslens/internal/config"
	"atlaslens/internal/loader"
	"atlaslens/internal/mlkit"
	"atlaslens/internal/sessions"
)

// User-agent hint patterns. The coarse bot keyword list is deliberately not a
// feature: the traffic label itself is derived from it, and training on it
// would let the model memorize the labeling rule.
var (
	headlessRe = regexp.MustCompile(`headless|selenium|playwright`)
	scriptRe   = regexp.MustCompile(`python|curl|wget|httpclient`)
)

var featureNames = []string{
	"sc_status", "sc_bytes", "cs_bytes", "time_taken", "ttfb",
	"uri_len", "has_query", "ua_len", "referer_len", "hour_utc",
	"ua_headless_hint", "ua_script_hint",
}

// FeatureImportance is one named importance from the trained forest.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// SessionScore is one tracked session ranked by its mean bot probability.
type SessionScore struct {
	SessionID    string  `json:"session_id"`
	MeanBotScore float64 `json:"mean_bot_score"`
	MaxBotScore  float64 `json:"max_bot_score"`
	Requests     int     `json:"requests"`
	Country      string  `json:"country,omitempty"`
	TopTool      string  `json:"top_tool,omitempty"`
	Events       int     `json:"events,omitempty"`
}

// Result is the bot-score artifact payload.
type Result struct {
	RowsTrain      int                 `json:"rows_train"`
	RowsTest       int                 `json:"rows_test"`
	PositiveRate   float64             `json:"positive_rate"`
	Accuracy       float64             `json:"accuracy"`
	Precision      float64             `json:"precision"`
	Recall         float64             `json:"recall"`
	F1             float64             `json:"f1"`
	ROCAUC         float64             `json:"roc_auc"`
	TopFeatures    []FeatureImportance `json:"top_features"`
	TopSessions    []SessionScore      `json:"top_sessions"`
	SessionsScored int                 `json:"sessions_scored"`
	Note           string              `json:"note,omitempty"`
}

func featureRow(r *loader.RequestRow) []float64 {
	return []float64{
		r.Status, r.ScBytes, r.CsBytes, r.TimeTaken, r.TTFB,
		r.URILen, r.HasQuery, r.UALen, r.RefererLen, r.HourUTC,
		boolFeature(headlessRe.MatchString(r.UALower)),
		boolFeature(scriptRe.MatchString(r.UALower)),
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Score trains on the labeled sample and scores the tracked rows. A sample
// containing only one traffic class yields an empty result with a note.
func Score(training, tracked []loader.RequestRow, table []sessions.FeatureVector, policy config.Policy) Result {
	x, y := buildTrainingSet(training, policy)
	if len(x) == 0 {
		return Result{Note: "insufficient class diversity for bot classifier"}
	}

	trainIdx, testIdx := mlkit.StratifiedSplit(y, policy.BotTestFraction, policy.Seed)
	xTrain, yTrain := selectRows(x, y, trainIdx)
	xTest, yTest := selectRows(x, y, testIdx)

	forest, err := mlkit.TrainForest(xTrain, yTrain, mlkit.ForestConfig{
		Trees:    policy.BotTrees,
		MaxDepth: policy.BotMaxDepth,
		MinLeaf:  policy.BotMinLeaf,
		Seed:     policy.Seed,
	})
	if err != nil {
		return Result{Note: "insufficient class diversity for bot classifier"}
	}

	metrics := mlkit.EvaluateBinary(forest.PredictProba(xTest), yTest, policy.BotProbabilityCut)

	var positives int
	for _, label := range y {
		positives += label
	}

	scores, scored := scoreSessions(forest, tracked, table, policy)
	return Result{
		RowsTrain:      len(trainIdx),
		RowsTest:       len(testIdx),
		PositiveRate:   mlkit.Round3(float64(positives) / float64(len(y))),
		Accuracy:       mlkit.Round3(metrics.Accuracy),
		Precision:      mlkit.Round3(metrics.Precision),
		Recall:         mlkit.Round3(metrics.Recall),
		F1:             mlkit.Round3(metrics.F1),
		ROCAUC:         mlkit.Round3(metrics.ROCAUC),
		TopFeatures:    topImportances(forest, policy.BotImportanceTopK),
		TopSessions:    scores,
		SessionsScored: scored,
	}
}

// buildTrainingSet labels rows and applies the per-class cap with a seeded
// subsample so the majority class cannot overwhelm training cost.
func buildTrainingSet(training []loader.RequestRow, policy config.Policy) ([][]float64, []int) {
	var pos, neg []int
	for i := range training {
		if training[i].TrafficType != "Likely Human" {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	if len(pos) == 0 || len(neg) == 0 {
		return nil, nil
	}

	rng := rand.New(rand.NewSource(policy.Seed))
	pos = mlkit.Subsample(pos, policy.BotClassCap, rng)
	neg = mlkit.Subsample(neg, policy.BotClassCap, rng)

	x := make([][]float64, 0, len(pos)+len(neg))
	y := make([]int, 0, len(pos)+len(neg))
	for _, i := range neg {
		x = append(x, featureRow(&training[i]))
		y = append(y, 0)
	}
	for _, i := range pos {
		x = append(x, featureRow(&training[i]))
		y = append(y, 1)
	}
	return x, y
}

// scoreSessions aggregates per-request probabilities to session level and
// joins the top sessions against the behavioral table for context.
func scoreSessions(forest *mlkit.RandomForest, tracked []loader.RequestRow, table []sessions.FeatureVector, policy config.Policy) ([]SessionScore, int) {
	if len(tracked) == 0 {
		return []SessionScore{}, 0
	}

	x := make([][]float64, len(tracked))
	for i := range tracked {
		x[i] = featureRow(&tracked[i])
	}
	probs := forest.PredictProba(x)

	type agg struct {
		sum, max float64
		n        int
	}
	bySession := make(map[string]*agg)
	for i := range tracked {
		a := bySession[tracked[i].SessionID]
		if a == nil {
			a = &agg{}
			bySession[tracked[i].SessionID] = a
		}
		a.sum += probs[i]
		a.max = math.Max(a.max, probs[i])
		a.n++
	}

	context := make(map[string]*sessions.FeatureVector, len(table))
	for i := range table {
		context[table[i].SessionID] = &table[i]
	}

	scores := make([]SessionScore, 0, len(bySession))
	for id, a := range bySession {
		s := SessionScore{
			SessionID:    id,
			MeanBotScore: mlkit.Round3(a.sum / float64(a.n)),
			MaxBotScore:  mlkit.Round3(a.max),
			Requests:     a.n,
		}
		if v := context[id]; v != nil {
			s.Country = v.Country
			s.TopTool = v.TopTool
			s.Events = v.Events
		}
		scores = append(scores, s)
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].MeanBotScore != scores[j].MeanBotScore {
			return scores[i].MeanBotScore > scores[j].MeanBotScore
		}
		return scores[i].SessionID < scores[j].SessionID
	})
	total := len(scores)
	if len(scores) > policy.BotTopSessions {
		scores = scores[:policy.BotTopSessions]
	}
	return scores, total
}

func topImportances(forest *mlkit.RandomForest, limit int) []FeatureImportance {
	raw := forest.FeatureImportances()
	out := make([]FeatureImportance, len(raw))
	for i, v := range raw {
		out[i] = FeatureImportance{Feature: featureNames[i], Importance: mlkit.Round4(v)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	if len(out) > limit {
		out = out[:limit]
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

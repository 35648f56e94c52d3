// Package geo flags countries whose traffic shape looks anomalous: bot-heavy
// mixes, implausible request-per-session ratios, or measurement artifacts.
package geo

import (
	"math"
	"sort"

	"github.com/pariz/gountries"

	"atlaslens/internal/config"
	"atlaslens/internal/loader"
	"atlaslens/internal/mlkit"
	"atlaslens/internal/sessions"
)

// Detection methods recorded on the artifact.
const (
	MethodIsolationForest = "isolation_forest"
	MethodZScoreFallback  = "zscore_fallback"
)

// CountryScore is one flagged country with the ratios behind the flag.
type CountryScore struct {
	Country            string  `json:"country"`
	CountryName        string  `json:"country_name"`
	Score              float64 `json:"score"`
	LikelyArtifact     bool    `json:"likely_artifact"`
	TotalRequests      int64   `json:"total_requests"`
	BotRatio           float64 `json:"bot_ratio"`
	AIRatio            float64 `json:"ai_ratio"`
	HumanShare         float64 `json:"human_share"`
	UAPer1kRequests    float64 `json:"ua_per_1k_requests"`
	RequestsPerSession float64 `json:"requests_per_session"`
	SessionCount       int     `json:"session_count"`
	AvgSessionDepth    float64 `json:"avg_session_depth"`
}

// Result is the suspicious-countries artifact payload.
type Result struct {
	Method              string         `json:"method"`
	CountriesAnalyzed   int            `json:"countries_analyzed"`
	SuspiciousCountries []CountryScore `json:"suspicious_countries"`
	Note                string         `json:"note,omitempty"`
}

type countryRow struct {
	agg loader.CountryAggregate

	botRatio           float64
	aiRatio            float64
	humanShare         float64
	uaPer1k            float64
	requestsPerSession float64
	sessionCount       int
	avgSessionDepth    float64

	score    float64
	anomaly  bool
	artifact bool
}

// Detect scores every country and returns the suspicious subset. With enough
// countries an isolation forest does the scoring; small tables fall back to a
// mean absolute z-score.
func Detect(aggregates []loader.CountryAggregate, table []sessions.FeatureVector, policy config.Policy) Result {
	rows := buildRows(aggregates, table)
	if len(rows) == 0 {
		return Result{Method: MethodZScoreFallback, SuspiciousCountries: []CountryScore{}, Note: "no per-country traffic"}
	}

	x := make([][]float64, len(rows))
	for i := range rows {
		x[i] = featureRow(&rows[i])
	}

	method := MethodZScoreFallback
	if len(rows) >= policy.GeoMinCountries {
		method = MethodIsolationForest
		forest := mlkit.TrainIsolationForest(x, 200, min(256, len(x)), policy.Seed)
		scores := forest.Scores(x)
		threshold := mlkit.Quantile(1-policy.GeoContamination, scores)
		for i := range rows {
			rows[i].score = scores[i]
			rows[i].anomaly = scores[i] >= threshold
		}
	} else {
		scores := meanAbsZScores(x)
		threshold := mlkit.Quantile(policy.GeoZScoreQuantile, scores)
		for i := range rows {
			rows[i].score = scores[i]
			rows[i].anomaly = scores[i] >= threshold
		}
	}

	flagged := applyFilters(rows, policy)
	return Result{
		Method:              method,
		CountriesAnalyzed:   len(rows),
		SuspiciousCountries: describe(flagged, policy.GeoTopCountries),
	}
}

func buildRows(aggregates []loader.CountryAggregate, table []sessions.FeatureVector) []countryRow {
	type sessionStats struct {
		count int
		depth float64
	}
	byCountry := make(map[string]*sessionStats)
	for i := range table {
		if table[i].Country == "" {
			continue
		}
		s := byCountry[table[i].Country]
		if s == nil {
			s = &sessionStats{}
			byCountry[table[i].Country] = s
		}
		s.count++
		s.depth += float64(table[i].Events)
	}

	rows := make([]countryRow, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg.TotalRequests == 0 {
			continue
		}
		total := float64(agg.TotalRequests)
		row := countryRow{
			agg:        agg,
			botRatio:   float64(agg.BotRequests+agg.AIBotRequests) / total,
			aiRatio:    float64(agg.AIBotRequests) / total,
			humanShare: float64(agg.HumanRequests) / total,
			uaPer1k:    float64(agg.UACardinality) / total * 1000,
		}
		if s := byCountry[agg.Country]; s != nil {
			row.sessionCount = s.count
			row.avgSessionDepth = s.depth / float64(s.count)
		}
		row.requestsPerSession = total / math.Max(float64(row.sessionCount), 1)
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].agg.Country < rows[j].agg.Country })
	return rows
}

// featureRow builds the fixed-order detector input; heavy-tailed columns get
// a log1p transform.
func featureRow(r *countryRow) []float64 {
	return []float64{
		r.botRatio,
		r.aiRatio,
		r.humanShare,
		math.Log1p(r.requestsPerSession),
		math.Log1p(r.uaPer1k),
		math.Log1p(float64(r.sessionCount)),
		r.avgSessionDepth,
		r.agg.AvgTimeTaken,
		math.Log1p(r.agg.AvgScBytes),
	}
}

// meanAbsZScores is the small-table fallback score: the mean absolute z-score
// across feature columns.
func meanAbsZScores(x [][]float64) []float64 {
	n, cols := len(x), len(x[0])
	scores := make([]float64, n)
	col := make([]float64, n)
	for c := 0; c < cols; c++ {
		for r := range x {
			col[r] = x[r][c]
		}
		mean := mlkit.Mean(col)
		std := mlkit.PopStd(col)
		if std == 0 {
			continue
		}
		for r := range x {
			scores[r] += math.Abs((x[r][c] - mean) / std)
		}
	}
	for r := range scores {
		scores[r] /= float64(cols)
	}
	return scores
}

// applyFilters narrows anomalies to actionable ones: keep the high-signal
// subset when it exists, always keep measurement artifacts, and drop
// top-volume countries that are merely popular.
func applyFilters(rows []countryRow, policy config.Policy) []countryRow {
	botRatios := make([]float64, len(rows))
	reqPerSess := make([]float64, len(rows))
	depths := make([]float64, len(rows))
	volumes := make([]float64, len(rows))
	for i := range rows {
		botRatios[i] = rows[i].botRatio
		reqPerSess[i] = rows[i].requestsPerSession
		depths[i] = rows[i].avgSessionDepth
		volumes[i] = float64(rows[i].agg.TotalRequests)
	}
	botQ := mlkit.Quantile(policy.GeoFocusQuantile, botRatios)
	reqQ := mlkit.Quantile(policy.GeoFocusQuantile, reqPerSess)
	depthQ := mlkit.Quantile(policy.GeoFocusQuantile, depths)
	volumeCap := mlkit.Quantile(policy.GeoVolumeCapQuantile, volumes)

	var candidates []countryRow
	for _, row := range rows {
		if !row.anomaly {
			continue
		}
		row.artifact = row.botRatio >= policy.GeoArtifactBotRatio ||
			(int64(row.sessionCount) < policy.GeoArtifactMaxSessions && row.agg.TotalRequests > policy.GeoArtifactMinRequests)
		candidates = append(candidates, row)
	}

	var focused []countryRow
	for _, row := range candidates {
		if row.botRatio >= botQ || row.requestsPerSession >= reqQ || row.avgSessionDepth >= depthQ {
			focused = append(focused, row)
		}
	}
	if len(focused) > 0 {
		candidates = focused
	}

	var kept []countryRow
	for _, row := range candidates {
		if float64(row.agg.TotalRequests) > volumeCap && !row.artifact {
			continue
		}
		kept = append(kept, row)
	}
	return kept
}

func describe(rows []countryRow, limit int) []CountryScore {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].artifact != rows[j].artifact {
			return rows[i].artifact
		}
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].agg.Country < rows[j].agg.Country
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}

	query := gountries.New()
	out := make([]CountryScore, 0, len(rows))
	for _, row := range rows {
		name := row.agg.Country
		if country, err := query.FindCountryByAlpha(row.agg.Country); err == nil {
			name = country.Name.Common
		}
		out = append(out, CountryScore{
			Country:            row.agg.Country,
			CountryName:        name,
			Score:              mlkit.Round3(row.score),
			LikelyArtifact:     row.artifact,
			TotalRequests:      row.agg.TotalRequests,
			BotRatio:           mlkit.Round3(row.botRatio),
			AIRatio:            mlkit.Round3(row.aiRatio),
			HumanShare:         mlkit.Round3(row.humanShare),
			UAPer1kRequests:    mlkit.Round2(row.uaPer1k),
			RequestsPerSession: mlkit.Round2(row.requestsPerSession),
			SessionCount:       row.sessionCount,
			AvgSessionDepth:    mlkit.Round2(row.avgSessionDepth),
		})
	}
	return out
}

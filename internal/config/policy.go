package config

// Policy collects the tuned numeric thresholds used across the analytical
// components. These are policy decisions, not derived truths: several of them
// (the percentile clips, the contamination rate, the artifact heuristic) were
// calibrated empirically against production traffic and are preserved as-is.
// Components receive the relevant values explicitly so tests can override
// them without touching globals.
type Policy struct {
	// Random seed shared by every stochastic model for reproducible runs.
	Seed int64

	// Spike / changepoint detection.
	SpikeLowBaseline       float64 // below this, a surge is a new baseline, not a spike
	SpikeJumpMinCurrent    float64 // minimum current value for a new_baseline_jump
	SpikeMoMPct            float64 // month-over-month fractional growth for mom_spike
	SpikeMoMMinCurrent     float64 // minimum current value for a mom_spike
	LevelShiftMinMagnitude float64 // relative mean shift for a level_shift
	LevelShiftMinMean      float64 // either side's mean must reach this

	// Forecasting.
	ForecastMinPoints    int     // history required for the primary strategy
	ForecastInterval     float64 // z multiplier for the fallback interval
	ForecastMinSigma     float64 // floor on residual sigma, avoids zero-width intervals
	ForecastRecentMonths int     // trailing window for the collapse guardrail
	ForecastGuardFactor  float64 // floor = factor * recent mean

	// Segmentation.
	SegmentMinSessions  int
	SegmentClusters     int
	SegmentRestarts     int
	SegmentClipQuantile float64

	// Churn / return prediction.
	ChurnReturnWindowDays int
	ChurnEarlyEvents      int
	ChurnTestFraction     float64
	ChurnProbabilityCut   float64
	ChurnBuckets          int

	// Cross-tool recommendations.
	RecommendMinLift         float64
	RecommendMinConfidence   float64
	RecommendFallbackMinConf float64
	RecommendMinCoSessions   int
	RecommendPrimaryTopK     int
	RecommendFallbackTopK    int

	// Association mining.
	AssocMinSupport float64
	AssocMinLift    float64
	AssocTopRules   int

	// Bot classifier.
	BotSamplePermille int
	BotClassCap       int
	BotTrees          int
	BotMaxDepth       int
	BotMinLeaf        int
	BotTestFraction   float64
	BotProbabilityCut float64
	BotTopSessions    int
	BotImportanceTopK int

	// Error clustering.
	ErrClusterMinRows     int
	ErrClusterRowsPerUnit float64 // k = round(sqrt(rows / unit)), clamped below
	ErrClusterMinK        int
	ErrClusterMaxK        int
	ErrClusterRestarts    int
	TfidfMaxFeatures      int
	TfidfMinDocFreq       int
	ErrSampleMaxLen       int

	// Geo anomaly detection.
	GeoMinCountries        int
	GeoContamination       float64
	GeoZScoreQuantile      float64
	GeoFocusQuantile       float64
	GeoVolumeCapQuantile   float64
	GeoArtifactBotRatio    float64
	GeoArtifactMaxSessions int64
	GeoArtifactMinRequests int64
	GeoTopCountries        int
}

// DefaultPolicy returns the production threshold set.
func DefaultPolicy() Policy {
	return Policy{
		Seed: 42,

		SpikeLowBaseline:       20,
		SpikeJumpMinCurrent:    100,
		SpikeMoMPct:            1.5,
		SpikeMoMMinCurrent:     50,
		LevelShiftMinMagnitude: 0.4,
		LevelShiftMinMean:      20,

		ForecastMinPoints:    12,
		ForecastInterval:     1.64,
		ForecastMinSigma:     1.0,
		ForecastRecentMonths: 3,
		ForecastGuardFactor:  0.5,

		SegmentMinSessions:  20,
		SegmentClusters:     4,
		SegmentRestarts:     20,
		SegmentClipQuantile: 0.995,

		ChurnReturnWindowDays: 30,
		ChurnEarlyEvents:      3,
		ChurnTestFraction:     0.25,
		ChurnProbabilityCut:   0.5,
		ChurnBuckets:          10,

		RecommendMinLift:         1.0,
		RecommendMinConfidence:   0.02,
		RecommendFallbackMinConf: 0.01,
		RecommendMinCoSessions:   3,
		RecommendPrimaryTopK:     3,
		RecommendFallbackTopK:    2,

		AssocMinSupport: 0.02,
		AssocMinLift:    1.1,
		AssocTopRules:   60,

		BotSamplePermille: 10,
		BotClassCap:       60000,
		BotTrees:          250,
		BotMaxDepth:       18,
		BotMinLeaf:        2,
		BotTestFraction:   0.25,
		BotProbabilityCut: 0.5,
		BotTopSessions:    80,
		BotImportanceTopK: 20,

		ErrClusterMinRows:     200,
		ErrClusterRowsPerUnit: 500,
		ErrClusterMinK:        4,
		ErrClusterMaxK:        8,
		ErrClusterRestarts:    20,
		TfidfMaxFeatures:      2500,
		TfidfMinDocFreq:       5,
		ErrSampleMaxLen:       220,

		GeoMinCountries:        20,
		GeoContamination:       0.12,
		GeoZScoreQuantile:      0.88,
		GeoFocusQuantile:       0.90,
		GeoVolumeCapQuantile:   0.95,
		GeoArtifactBotRatio:    0.7,
		GeoArtifactMaxSessions: 25,
		GeoArtifactMinRequests: 250,
		GeoTopCountries:        25,
	}
}

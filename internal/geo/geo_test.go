package geo_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlaslens/internal/config"
	"atlaslens/internal/geo"
	"atlaslens/internal/loader"
	"atlaslens/internal/sessions"
)

func normalCountry(code string, requests int64) loader.CountryAggregate {
	return loader.CountryAggregate{
		Country:       code,
		TotalRequests: requests,
		HumanRequests: requests * 9 / 10,
		BotRequests:   requests / 10,
		UACardinality: requests / 50,
		AvgTimeTaken:  0.2,
		AvgScBytes:    5000,
	}
}

func sessionsFor(code string, n int) []sessions.FeatureVector {
	out := make([]sessions.FeatureVector, n)
	for i := range out {
		out[i] = sessions.FeatureVector{
			SessionID:   fmt.Sprintf("sess-%s-%04d", code, i),
			Country:     code,
			UniquePaths: 3,
			Events:      5,
		}
	}
	return out
}

func TestDetectZScoreFallbackFlagsBotHeavyCountry(t *testing.T) {
	codes := []string{"US", "DE", "FR", "GB", "JP", "BR", "IN", "CA"}
	var aggs []loader.CountryAggregate
	var table []sessions.FeatureVector
	for _, code := range codes {
		aggs = append(aggs, normalCountry(code, 1000))
		table = append(table, sessionsFor(code, 50)...)
	}
	// One country is nearly all bot traffic with a handful of sessions.
	aggs = append(aggs, loader.CountryAggregate{
		Country:       "SG",
		TotalRequests: 2000,
		HumanRequests: 100,
		BotRequests:   1900,
		UACardinality: 900,
		AvgTimeTaken:  0.05,
		AvgScBytes:    300,
	})
	table = append(table, sessionsFor("SG", 2)...)

	result := geo.Detect(aggs, table, config.DefaultPolicy())
	assert.Equal(t, geo.MethodZScoreFallback, result.Method)
	assert.Equal(t, 9, result.CountriesAnalyzed)

	require.NotEmpty(t, result.SuspiciousCountries)
	top := result.SuspiciousCountries[0]
	assert.Equal(t, "SG", top.Country)
	assert.Equal(t, "Singapore", top.CountryName)
	assert.True(t, top.LikelyArtifact)
	assert.InDelta(t, 0.95, top.BotRatio, 1e-3)
	// Session depth is the mean per-session event count.
	assert.InDelta(t, 5.0, top.AvgSessionDepth, 1e-9)
}

func TestDetectUsesIsolationForestWithEnoughCountries(t *testing.T) {
	var aggs []loader.CountryAggregate
	var table []sessions.FeatureVector
	for i := 0; i < 25; i++ {
		code := fmt.Sprintf("C%d", i)
		aggs = append(aggs, normalCountry(code, 1000+int64(i)*10))
		table = append(table, sessionsFor(code, 40)...)
	}

	result := geo.Detect(aggs, table, config.DefaultPolicy())
	assert.Equal(t, geo.MethodIsolationForest, result.Method)
	assert.Equal(t, 25, result.CountriesAnalyzed)
	assert.LessOrEqual(t, len(result.SuspiciousCountries), config.DefaultPolicy().GeoTopCountries)
}

func TestDetectEmptyInput(t *testing.T) {
	result := geo.Detect(nil, nil, config.DefaultPolicy())
	assert.Empty(t, result.SuspiciousCountries)
	assert.NotEmpty(t, result.Note)
}

func TestDetectDeterministic(t *testing.T) {
	var aggs []loader.CountryAggregate
	for i := 0; i < 30; i++ {
		aggs = append(aggs, normalCountry(fmt.Sprintf("C%d", i), 500+int64(i*i)*7))
	}

	a := geo.Detect(aggs, nil, config.DefaultPolicy())
	b := geo.Detect(aggs, nil, config.DefaultPolicy())
	assert.Equal(t, a, b)
}

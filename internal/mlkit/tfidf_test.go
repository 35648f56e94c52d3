package mlkit_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlaslens/internal/mlkit"
)

func TestTfidfMinDocFreqFiltersRareTerms(t *testing.T) {
	docs := []string{
		"network failure timeout",
		"network failure retry",
		"network failure crash",
		"singular appearance",
	}

	v := &mlkit.TfidfVectorizer{MaxFeatures: 100, MinDocFreq: 3}
	matrix, terms := v.FitTransform(docs)
	require.Len(t, matrix, 4)

	assert.Contains(t, terms, "network")
	assert.Contains(t, terms, "failure")
	assert.NotContains(t, terms, "timeout")
	assert.NotContains(t, terms, "singular")
}

func TestTfidfDropsStopWords(t *testing.T) {
	docs := []string{
		"the error is in the chart",
		"the error is in the graph",
	}

	v := &mlkit.TfidfVectorizer{MaxFeatures: 100, MinDocFreq: 2}
	_, terms := v.FitTransform(docs)
	assert.NotContains(t, terms, "the")
	assert.NotContains(t, terms, "is")
	assert.Contains(t, terms, "error")
}

func TestTfidfRowsAreL2Normalized(t *testing.T) {
	docs := []string{
		"alpha beta gamma",
		"alpha beta delta",
	}

	v := &mlkit.TfidfVectorizer{MaxFeatures: 100, MinDocFreq: 1}
	matrix, _ := v.FitTransform(docs)
	for _, row := range matrix {
		var norm float64
		for _, val := range row {
			norm += val * val
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
	}
}

func TestTfidfEmitsBigrams(t *testing.T) {
	docs := []string{
		"icon retrieval failed",
		"icon retrieval failed",
	}

	v := &mlkit.TfidfVectorizer{MaxFeatures: 100, MinDocFreq: 2}
	_, terms := v.FitTransform(docs)
	assert.Contains(t, terms, "icon retrieval")
}

func TestTfidfMaxFeaturesCap(t *testing.T) {
	docs := []string{
		"one two three four five",
		"one two three four five",
	}

	v := &mlkit.TfidfVectorizer{MaxFeatures: 3, MinDocFreq: 1}
	_, terms := v.FitTransform(docs)
	assert.Len(t, terms, 3)
}

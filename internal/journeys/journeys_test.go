package journeys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlaslens/internal/config"
	"atlaslens/internal/journeys"
	"atlaslens/internal/loader"
	"atlaslens/internal/testsupport"
)

func TestBuildSequencesCollapsesRepeats(t *testing.T) {
	events := []loader.CanonicalEvent{
		testsupport.EventAt("sess-0001", loader.ToolEUI, "click", 0),
		testsupport.EventAt("sess-0001", loader.ToolEUI, "click", 1),
		testsupport.EventAt("sess-0001", loader.ToolRUI, "click", 2),
		testsupport.EventAt("sess-0001", loader.ToolRUI, "click", 3),
		testsupport.EventAt("sess-0001", loader.ToolEUI, "click", 4),
	}

	sequences := journeys.BuildSequences(events)
	require.Len(t, sequences, 1)
	assert.Equal(t, []string{loader.ToolEUI, loader.ToolRUI, loader.ToolEUI}, sequences[0])
}

func TestBuildSequencesSkipsUnattributedEvents(t *testing.T) {
	events := []loader.CanonicalEvent{
		testsupport.EventAt("sess-0001", loader.ToolEUI, "click", 0),
		testsupport.EventAt("sess-0001", "", "click", 1),
		testsupport.EventAt("sess-0001", loader.ToolRUI, "click", 2),
	}

	sequences := journeys.BuildSequences(events)
	require.Len(t, sequences, 1)
	assert.Equal(t, []string{loader.ToolEUI, loader.ToolRUI}, sequences[0])
}

func TestTransitionMatrixRowProbabilitiesSumToOne(t *testing.T) {
	sequences := [][]string{
		{loader.ToolEUI, loader.ToolRUI},
		{loader.ToolEUI, loader.ToolCDE},
		{loader.ToolEUI, loader.ToolRUI},
		{loader.ToolRUI, loader.ToolEUI},
	}

	result := journeys.TransitionMatrix(sequences, 25)
	assert.Equal(t, 4, result.SessionsWithSequences)

	rowSums := make(map[string]float64)
	for _, edge := range result.Edges {
		rowSums[edge.FromTool] += edge.Probability
	}
	for from, sum := range rowSums {
		assert.InDelta(t, 1.0, sum, 0.01, "row %s", from)
	}
}

func TestTransitionMatrixTopPaths(t *testing.T) {
	sequences := [][]string{
		{loader.ToolEUI, loader.ToolRUI},
		{loader.ToolEUI, loader.ToolRUI},
		{loader.ToolCDE},
	}

	result := journeys.TransitionMatrix(sequences, 25)
	require.NotEmpty(t, result.TopPaths)
	assert.Equal(t, "EUI -> RUI", result.TopPaths[0].Path)
	assert.Equal(t, 2, result.TopPaths[0].Count)
	// Single-tool sessions contribute no path.
	assert.Equal(t, 2, result.SessionsWithSequences)
}

func TestRecommendLiftBasis(t *testing.T) {
	// EUI and RUI co-occur in a focused minority of sessions, far above the
	// rate RUI appears overall, so EUI -> RUI carries lift > 1.
	var sequences [][]string
	for i := 0; i < 10; i++ {
		sequences = append(sequences, []string{loader.ToolEUI, loader.ToolRUI})
	}
	for i := 0; i < 30; i++ {
		sequences = append(sequences, []string{loader.ToolCDE})
	}

	recs := journeys.Recommend(sequences, config.DefaultPolicy())
	require.NotEmpty(t, recs)

	var found *journeys.Recommendation
	for i := range recs {
		if recs[i].Source == loader.ToolEUI && recs[i].Target == loader.ToolRUI {
			found = &recs[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, journeys.BasisLift, found.Basis)
	assert.InDelta(t, 0.25, found.Support, 1e-9)
	assert.InDelta(t, 1.0, found.Confidence, 1e-9)
	assert.InDelta(t, 4.0, found.Lift, 1e-9)
	assert.Equal(t, 10, found.CoSessions)
}

func TestRecommendConfidenceFallback(t *testing.T) {
	// Both tools appear in every session: lift is exactly 1, so the primary
	// filter rejects everything and the fallback path engages.
	var sequences [][]string
	for i := 0; i < 10; i++ {
		sequences = append(sequences, []string{loader.ToolEUI, loader.ToolRUI})
	}

	recs := journeys.Recommend(sequences, config.DefaultPolicy())
	require.NotEmpty(t, recs)
	for _, r := range recs {
		assert.Equal(t, journeys.BasisConfidenceFallback, r.Basis)
	}
}

func TestRecommendMinCoSessions(t *testing.T) {
	sequences := [][]string{
		{loader.ToolEUI, loader.ToolRUI},
		{loader.ToolEUI, loader.ToolRUI},
	}
	recs := journeys.Recommend(sequences, config.DefaultPolicy())
	assert.Empty(t, recs)
}

func TestRecommendDeterministicOrder(t *testing.T) {
	var sequences [][]string
	for i := 0; i < 12; i++ {
		sequences = append(sequences, []string{loader.ToolEUI, loader.ToolRUI})
		sequences = append(sequences, []string{loader.ToolCDE, loader.ToolKGExplorer})
		sequences = append(sequences, []string{loader.ToolEUI, loader.ToolCDE})
	}

	a := journeys.Recommend(sequences, config.DefaultPolicy())
	b := journeys.Recommend(sequences, config.DefaultPolicy())
	assert.Equal(t, a, b)
}

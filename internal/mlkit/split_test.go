package mlkit_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlaslens/internal/mlkit"
)

func TestStratifiedSplitKeepsClassShares(t *testing.T) {
	labels := make([]int, 100)
	for i := 80; i < 100; i++ {
		labels[i] = 1
	}

	train, test := mlkit.StratifiedSplit(labels, 0.25, 42)
	assert.Len(t, train, 75)
	assert.Len(t, test, 25)

	var testPos int
	for _, i := range test {
		testPos += labels[i]
	}
	assert.Equal(t, 5, testPos)

	// No index appears twice.
	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		require.False(t, seen[i])
		seen[i] = true
	}
	assert.Len(t, seen, 100)
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	labels := []int{0, 0, 0, 0, 1, 1, 1, 1}
	train1, test1 := mlkit.StratifiedSplit(labels, 0.25, 42)
	train2, test2 := mlkit.StratifiedSplit(labels, 0.25, 42)
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)
}

func TestSubsample(t *testing.T) {
	idx := []int{1, 2, 3, 4, 5}
	rng := rand.New(rand.NewSource(42))

	small := mlkit.Subsample(idx, 3, rng)
	assert.Len(t, small, 3)

	full := mlkit.Subsample(idx, 10, rng)
	assert.Equal(t, idx, full)
}

package mlkit

import (
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indexes into train and test sets, keeping
// each label's share of the test set proportional to its share of the data.
func StratifiedSplit(labels []int, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	byLabel := make(map[int][]int)
	for i, y := range labels {
		byLabel[y] = append(byLabel[y], i)
	}
	classes := make([]int, 0, len(byLabel))
	for y := range byLabel {
		classes = append(classes, y)
	}
	sort.Ints(classes)

	for _, y := range classes {
		idx := byLabel[y]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(math.Round(float64(len(idx)) * testFraction))
		if nTest < 1 && len(idx) > 1 {
			nTest = 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// Subsample returns up to cap indexes drawn without replacement.
func Subsample(indexes []int, cap int, rng *rand.Rand) []int {
	if len(indexes) <= cap {
		return append([]int(nil), indexes...)
	}
	shuffled := append([]int(nil), indexes...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	out := shuffled[:cap]
	sort.Ints(out)
	return out
}

package dframe

import (
	"golang.org/x/exp/rand"
)

// KFold partitions the row indices 0..n-1 into k folds of nearly
// equal size, after a random shuffle driven by rng.
func KFold(n, k int, rng *rand.Rand) [][]int {

	ix := rng.Perm(n)

	folds := make([][]int, k)
	for i, j := range ix {
		folds[i%k] = append(folds[i%k], j)
	}

	return folds
}

// TrainTest returns the complement of the given fold as training
// indices, together with the fold itself as test indices.
func TrainTest(n int, fold []int) ([]int, []int) {

	inFold := make([]bool, n)
	for _, j := range fold {
		inFold[j] = true
	}

	var train []int
	for i := 0; i < n; i++ {
		if !inFold[i] {
			train = append(train, i)
		}
	}

	return train, fold
}

// BootstrapIndex returns n row indices drawn with replacement.
func BootstrapIndex(n int, rng *rand.Rand) []int {

	ix := make([]int, n)
	for i := range ix {
		ix[i] = rng.Intn(n)
	}

	return ix
}

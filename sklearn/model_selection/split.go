// Package model_selection provides stratified cross-validation, parameter
// grids, scorers and an exhaustive grid search over classifier factories.
package model_selection

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// CVFold represents a single fold in cross-validation
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// StratifiedKFold splits samples into folds that preserve the class
// proportions of y.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int64) *StratifiedKFold {
	return &StratifiedKFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split returns NSplits folds. Samples, ordered by class, are dealt to
// folds round-robin to fix how many members of each class every fold gets;
// within a class the members then fill fold 0, fold 1, ... in index order,
// or in a shuffled fold order when Shuffle is set. Train and test indices
// are ascending.
//
// Split fails with a StratificationError when NSplits < 2, when there are
// more splits than samples, or when any class has fewer than NSplits members.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]CVFold, error) {
	k := skf.NSplits
	if k < 2 {
		return nil, errors.NewStratificationErrorf(k, "n_splits must be at least 2")
	}
	nSamples, _ := X.Dims()
	if yr, _ := y.Dims(); yr != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, yr, 0)
	}
	if k > nSamples {
		return nil, errors.NewStratificationErrorf(k, "more splits than the %d samples", nSamples)
	}

	// Group indices by class
	classIndices := make(map[float64][]int)
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		classIndices[label] = append(classIndices[label], i)
	}
	labels := make([]float64, 0, len(classIndices))
	for label := range classIndices {
		labels = append(labels, label)
	}
	sort.Float64s(labels)
	for _, label := range labels {
		if n := len(classIndices[label]); n < k {
			return nil, errors.NewStratificationError(k, label, n)
		}
	}

	// allocation[c][f] is how many members of class c land in fold f.
	allocation := make([][]int, len(labels))
	pos := 0
	for c, label := range labels {
		allocation[c] = make([]int, k)
		for range classIndices[label] {
			allocation[c][pos%k]++
			pos++
		}
	}

	var r *rand.Rand
	if skf.Shuffle {
		r = rand.New(rand.NewPCG(uint64(skf.RandomSeed), uint64(skf.RandomSeed)))
	}

	testFold := make([]int, nSamples)
	for c, label := range labels {
		foldOf := make([]int, 0, len(classIndices[label]))
		for f, count := range allocation[c] {
			for j := 0; j < count; j++ {
				foldOf = append(foldOf, f)
			}
		}
		if r != nil {
			r.Shuffle(len(foldOf), func(i, j int) { foldOf[i], foldOf[j] = foldOf[j], foldOf[i] })
		}
		for j, idx := range classIndices[label] {
			testFold[idx] = foldOf[j]
		}
	}

	folds := make([]CVFold, k)
	for i := 0; i < nSamples; i++ {
		for f := range folds {
			if testFold[i] == f {
				folds[f].TestIndices = append(folds[f].TestIndices, i)
			} else {
				folds[f].TrainIndices = append(folds[f].TrainIndices, i)
			}
		}
	}
	return folds, nil
}

// extractSubset extracts the rows of X and y at indices, in the given order.
func extractSubset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, xCols := X.Dims()
	xSubset := mat.NewDense(len(indices), xCols, nil)
	ySubset := mat.NewDense(len(indices), 1, nil)
	for i, idx := range indices {
		for j := 0; j < xCols; j++ {
			xSubset.Set(i, j, X.At(idx, j))
		}
		ySubset.Set(i, 0, y.At(idx, 0))
	}
	return xSubset, ySubset
}

// Package feature_selection provides univariate feature selection:
// SelectKBest scored by the ANOVA F statistic.
package feature_selection

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// ScoreFunc scores each column of X against the labels y. It returns one
// score and one p-value per column; higher scores are better.
type ScoreFunc func(X, y mat.Matrix) (scores, pvalues []float64, err error)

// FClassif computes the one-way ANOVA F statistic of every column grouped by
// class. A column that is constant within every class and across classes
// scores NaN.
func FClassif(X, y mat.Matrix) ([]float64, []float64, error) {
	n, d := X.Dims()
	if yr, _ := y.Dims(); yr != n {
		return nil, nil, errors.NewDimensionError("FClassif", n, yr, 0)
	}

	groups := map[float64][]int{}
	for i := 0; i < n; i++ {
		c := y.At(i, 0)
		groups[c] = append(groups[c], i)
	}
	k := len(groups)
	if k < 2 {
		return nil, nil, errors.NewModelError("FClassif", "need at least two classes", errors.ErrSingleClass)
	}
	if n <= k {
		return nil, nil, errors.NewValueError("FClassif", "need more samples than classes")
	}

	dfBetween := float64(k - 1)
	dfWithin := float64(n - k)
	dist := distuv.F{D1: dfBetween, D2: dfWithin}

	scores := make([]float64, d)
	pvalues := make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, X)
		grand := 0.0
		for _, v := range col {
			grand += v
		}
		grand /= float64(n)

		ssBetween, ssWithin := 0.0, 0.0
		for _, rows := range groups {
			mean := 0.0
			for _, i := range rows {
				mean += col[i]
			}
			mean /= float64(len(rows))
			ssBetween += float64(len(rows)) * (mean - grand) * (mean - grand)
			for _, i := range rows {
				ssWithin += (col[i] - mean) * (col[i] - mean)
			}
		}

		f := (ssBetween / dfBetween) / (ssWithin / dfWithin)
		scores[j] = f
		switch {
		case math.IsNaN(f):
			pvalues[j] = math.NaN()
		case math.IsInf(f, 1):
			pvalues[j] = 0
		default:
			pvalues[j] = dist.Survival(f)
		}
	}
	return scores, pvalues, nil
}

package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

func TestDecisionTreeRegressor_StepFunction(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 10, 11, 12})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 5, 5, 5})

	dt := NewDecisionTreeRegressor(WithRegressorMaxDepth(1))
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(mat.NewDense(2, 1, []float64{0, 20}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 5.0, pred.At(1, 0))
	assert.Equal(t, 2, dt.GetNLeaves())
	assert.Equal(t, 1, dt.GetDepth())

	imp, err := dt.FeatureImportances()
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, imp)
}

func TestDecisionTreeRegressor_LeafOverride(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 10, 11})
	y := mat.NewDense(4, 1, []float64{1, 1, -1, -1})

	dt := NewDecisionTreeRegressor(WithRegressorMaxDepth(1))
	require.NoError(t, dt.Fit(X, y))

	leaves, err := dt.Apply(X)
	require.NoError(t, err)
	assert.Equal(t, leaves[0], leaves[1])
	assert.NotEqual(t, leaves[0], leaves[2])

	dt.SetLeafValue(leaves[2], 42)
	dt.SetLeafValue(0, 99) // root is not a leaf

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, pred.At(0, 0))
	assert.Equal(t, 42.0, pred.At(3, 0))
}

func TestDecisionTreeRegressor_SampleWeights(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{10, 10, 20, 20})

	// zero weight rows are out of the subsample
	dt := NewDecisionTreeRegressor(WithRegressorMaxDepth(1))
	require.NoError(t, dt.FitWeighted(X, y, []float64{1, 1, 0, 0}))
	pred, err := dt.Predict(mat.NewDense(1, 1, []float64{4}))
	require.NoError(t, err)
	assert.Equal(t, 10.0, pred.At(0, 0))

	err = dt.FitWeighted(X, y, []float64{0, 0, 0, 0})
	assert.ErrorIs(t, err, errors.ErrEmptyData)

	err = dt.FitWeighted(X, y, []float64{1})
	var dim *errors.DimensionError
	assert.ErrorAs(t, err, &dim)
}

func TestDecisionTreeClassifier_SampleWeightsAndMaxFeatures(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	// a stump with heavy weight on one row predicts that row's class everywhere
	dt := NewDecisionTreeClassifier(WithMaxDepth(1), WithMinSamplesLeaf(3))
	require.NoError(t, dt.FitWeighted(X, y, []float64{1, 1, 1, 10}))
	pred, err := dt.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Equal(t, 1.0, pred.At(i, 0))
	}

	seeded := func() []float64 {
		m := NewDecisionTreeClassifier(WithMaxFeatures("1"), WithRandomState(7))
		require.NoError(t, m.Fit(X, y))
		return m.GetFeatureImportances()
	}
	assert.Equal(t, seeded(), seeded(), "a fixed random_state is reproducible")

	bad := NewDecisionTreeClassifier(WithMaxFeatures("half"))
	var vErr *errors.ValidationError
	assert.ErrorAs(t, bad.Fit(X, y), &vErr)

	w, err := dt.ExportWeights()
	require.NoError(t, err)
	require.NoError(t, w.Validate())
	assert.Equal(t, []int{0, 1}, w.Classes)
}

func TestResolveMaxFeatures(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"sqrt", 4, true},
		{"log2", 4, true},
		{"none", 17, true},
		{"", 17, true},
		{"5", 5, true},
		{"40", 17, true},
		{"0", 0, false},
		{"x", 0, false},
	}
	for _, tt := range tests {
		got, ok := resolveMaxFeatures(tt.in, 17)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

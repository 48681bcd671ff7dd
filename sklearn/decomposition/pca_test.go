package decomposition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

func lineData() *mat.Dense {
	return mat.NewDense(4, 2, []float64{
		1, 2,
		2, 4,
		3, 6,
		4, 8,
	})
}

func TestPCA_LineProjection(t *testing.T) {
	pca := NewPCA(WithNComponents(1))
	Xt, err := pca.FitTransform(lineData())
	require.NoError(t, err)

	comp := pca.Components()
	assert.InDelta(t, 1/math.Sqrt(5), comp.At(0, 0), 1e-9)
	assert.InDelta(t, 2/math.Sqrt(5), comp.At(0, 1), 1e-9)
	assert.InDelta(t, 1.0, pca.ExplainedVarianceRatio()[0], 1e-9)

	r, c := Xt.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 1, c)
	assert.InDelta(t, -7.5/math.Sqrt(5), Xt.At(0, 0), 1e-9)
	assert.InDelta(t, 7.5/math.Sqrt(5), Xt.At(3, 0), 1e-9)
}

func TestPCA_Whiten(t *testing.T) {
	X := mat.NewDense(6, 3, []float64{
		2, 0, 1,
		4, 1, 0,
		1, 3, 2,
		5, 2, 2,
		3, 5, 1,
		0, 1, 4,
	})
	pca := NewPCA(WithNComponents(2), WithWhiten(true))
	require.NoError(t, pca.Fit(X, nil))
	Xt, err := pca.Transform(X)
	require.NoError(t, err)

	for c := 0; c < 2; c++ {
		col := mat.Col(nil, c, Xt)
		assert.InDelta(t, 0.0, stat.Mean(col, nil), 1e-9)
		assert.InDelta(t, 1.0, stat.Variance(col, nil), 1e-9)
	}
	ratio := pca.ExplainedVarianceRatio()
	assert.GreaterOrEqual(t, ratio[0], ratio[1])
}

func TestPCA_Errors(t *testing.T) {
	var vErr *errors.ValidationError
	assert.ErrorAs(t, NewPCA(WithNComponents(3)).Fit(lineData(), nil), &vErr)

	_, err := NewPCA().Transform(lineData())
	var nf *errors.NotFittedError
	assert.ErrorAs(t, err, &nf)

	var valErr *errors.ValueError
	assert.ErrorAs(t, NewPCA().Fit(mat.NewDense(1, 2, []float64{1, 2}), nil), &valErr)
}

func TestPCA_Params(t *testing.T) {
	pca := NewPCA()
	require.NoError(t, pca.SetParams(map[string]interface{}{"n_components": 2, "whiten": "true"}))
	params := pca.GetParams()
	assert.Equal(t, 2, params["n_components"])
	assert.Equal(t, true, params["whiten"])

	require.NoError(t, pca.Fit(lineData(), nil))
	w, err := pca.ExportWeights()
	require.NoError(t, err)
	require.NoError(t, w.Validate())
	assert.Len(t, w.Coefficients, 4)
}

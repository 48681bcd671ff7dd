package linear_model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

func TestLogisticRegression_Fit(t *testing.T) {
	tests := []struct {
		name    string
		X       *mat.Dense
		y       *mat.Dense
		opts    []LogisticRegressionOption
		classes []int
		minAcc  float64
	}{
		{
			name: "separable",
			X: mat.NewDense(6, 2, []float64{
				0.5, 0.5,
				1.0, 1.5,
				1.5, 1.0,
				3.0, 2.5,
				2.5, 3.0,
				3.5, 3.5,
			}),
			y:       mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1}),
			opts:    []LogisticRegressionOption{WithLRMaxIter(1000), WithLRTol(1e-4)},
			classes: []int{0, 1},
			minAcc:  1,
		},
		{
			name: "balanced separable",
			X: mat.NewDense(6, 2, []float64{
				0, 0,
				0, 1,
				1, 0,
				3, 3,
				3, 4,
				4, 3,
			}),
			y:       mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1}),
			opts:    []LogisticRegressionOption{WithLRMaxIter(1000), WithLRC(10), WithLRClassWeight("balanced")},
			classes: []int{0, 1},
			minAcc:  1,
		},
		{
			name: "one vs rest",
			X: mat.NewDense(9, 2, []float64{
				0, 0,
				0, 1,
				1, 0,
				2, 2,
				2, 3,
				3, 2,
				4, 4,
				4, 5,
				5, 4,
			}),
			y:       mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2}),
			opts:    []LogisticRegressionOption{WithLRMaxIter(1000), WithLRC(10)},
			classes: []int{0, 1, 2},
			minAcc:  8.0 / 9,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lr := NewLogisticRegression(tt.opts...)
			require.NoError(t, lr.Fit(tt.X, tt.y))
			assert.Equal(t, tt.classes, lr.Classes())
			assert.GreaterOrEqual(t, lr.Score(tt.X, tt.y), tt.minAcc)

			proba, err := lr.PredictProba(tt.X)
			require.NoError(t, err)
			pred, err := lr.Predict(tt.X)
			require.NoError(t, err)

			rows, cols := proba.Dims()
			require.Equal(t, len(tt.classes), cols)
			row := make([]float64, cols)
			for i := 0; i < rows; i++ {
				mat.Row(row, i, proba)
				assert.InDelta(t, 1.0, floats.Sum(row), 1e-9, "row %d", i)
				assert.Equal(t, float64(tt.classes[floats.MaxIdx(row)]), pred.At(i, 0), "row %d", i)
			}
		})
	}
}

func TestLogisticRegression_Unseen(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRRandomState(1))
	require.NoError(t, lr.Fit(X, y))

	pred, err := lr.Predict(mat.NewDense(2, 2, []float64{1, 1, 3, 3}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 1.0, pred.At(1, 0))
}

func TestLogisticRegression_Regularization(t *testing.T) {
	X := mat.NewDense(10, 5, []float64{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 1,
		1, 1, 0, 0, 0,
		0, 1, 1, 0, 0,
		0, 0, 1, 1, 0,
		0, 0, 0, 1, 1,
		1, 0, 0, 0, 1,
	})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 1, 1, 0, 0, 1, 1, 1})

	// the C values searched by the logistic families
	norm := func(c float64) float64 {
		lr := NewLogisticRegression(WithLRC(c), WithLRMaxIter(1000))
		require.NoError(t, lr.Fit(X, y))
		return floats.Norm(lr.coef_[0], 2)
	}
	assert.Less(t, norm(0.01), norm(100))
}

func TestLogisticRegression_GetSetParams(t *testing.T) {
	lr := NewLogisticRegression()
	params := lr.GetParams()
	assert.Equal(t, 1.0, params["C"])
	assert.Equal(t, 100, params["max_iter"])
	assert.Equal(t, "none", params["class_weight"])

	require.NoError(t, lr.SetParams(map[string]interface{}{
		"C":        "0.1",
		"max_iter": 200.0,
		"penalty":  "l1",
		"tol":      1e-5,
	}))
	assert.Equal(t, 0.1, lr.C)
	assert.Equal(t, 200, lr.maxIter)
	assert.Equal(t, "l1", lr.penalty)
	assert.Equal(t, 1e-5, lr.tol)
}

func TestLogisticRegression_NotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	var nfErr *errors.NotFittedError
	_, err := lr.Predict(X)
	assert.ErrorAs(t, err, &nfErr)
	_, err = lr.PredictProba(X)
	assert.ErrorAs(t, err, &nfErr)
}

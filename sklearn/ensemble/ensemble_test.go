package ensemble

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// separable returns ten rows where column 0 splits the classes at 5.5 and
// column 1 is constant.
func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(10, 2, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i+1))
		X.Set(i, 1, 3)
		if i >= 5 {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

// noisy returns a dataset no single stump can fit.
func noisy() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(12, 2, []float64{
		1, 1, 2, 1, 3, 2, 4, 2, 5, 3, 6, 3,
		1, 4, 2, 4, 3, 5, 4, 5, 5, 6, 6, 6,
	})
	y := mat.NewDense(12, 1, []float64{0, 1, 0, 1, 0, 1, 1, 0, 1, 0, 1, 1})
	return X, y
}

func assertRowsSumToOne(t *testing.T, proba mat.Matrix) {
	t.Helper()
	r, c := proba.Dims()
	for i := 0; i < r; i++ {
		sum := 0.0
		for k := 0; k < c; k++ {
			p := proba.At(i, k)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestAdaBoost_PerfectStumpStopsEarly(t *testing.T) {
	X, y := separable()
	ab := NewAdaBoostClassifier(WithAdaRandomState(0))
	require.NoError(t, ab.Fit(X, y))

	assert.Equal(t, []float64{1}, ab.EstimatorWeights())
	imp, err := ab.FeatureImportances()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, imp)

	pred, err := ab.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pred, y))
	assert.Equal(t, []int{0, 1}, ab.Classes())
}

func TestAdaBoost_Noisy(t *testing.T) {
	X, y := noisy()
	ab := NewAdaBoostClassifier(WithAdaNEstimators(30), WithAdaRandomState(1))
	require.NoError(t, ab.Fit(X, y))

	weights := ab.EstimatorWeights()
	assert.Greater(t, len(weights), 1)
	assert.LessOrEqual(t, len(weights), 30)
	for _, w := range weights {
		assert.Greater(t, w, 0.0)
	}

	imp, err := ab.FeatureImportances()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)

	proba, err := ab.PredictProba(X)
	require.NoError(t, err)
	assertRowsSumToOne(t, proba)

	// Predict and PredictProba agree
	pred, err := ab.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		want := 0.0
		if proba.At(i, 1) > proba.At(i, 0) {
			want = 1
		}
		if proba.At(i, 1) != proba.At(i, 0) {
			assert.Equal(t, want, pred.At(i, 0), "row %d", i)
		}
	}

	w, err := ab.ExportWeights()
	require.NoError(t, err)
	require.NoError(t, w.Validate())
	assert.Equal(t, "AdaBoostClassifier", w.ModelType)
}

func TestAdaBoost_Reproducible(t *testing.T) {
	X, y := noisy()
	fit := func() []float64 {
		ab := NewAdaBoostClassifier(WithAdaRandomState(42))
		require.NoError(t, ab.Fit(X, y))
		imp, err := ab.FeatureImportances()
		require.NoError(t, err)
		return imp
	}
	assert.Equal(t, fit(), fit())
}

func TestAdaBoost_Errors(t *testing.T) {
	ab := NewAdaBoostClassifier()
	_, err := ab.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.ErrorAs(t, err, &nf)

	_, err = ab.FeatureImportances()
	assert.ErrorAs(t, err, &nf)

	bad := NewAdaBoostClassifier(WithAdaNEstimators(0))
	X, y := separable()
	var vErr *errors.ValidationError
	assert.ErrorAs(t, bad.Fit(X, y), &vErr)
}

func TestAdaBoost_Params(t *testing.T) {
	ab := NewAdaBoostClassifier()
	require.NoError(t, ab.SetParams(map[string]interface{}{"n_estimators": "10", "learning_rate": 0.5}))

	params := ab.GetParams()
	assert.Equal(t, 10, params["n_estimators"])
	assert.Equal(t, 0.5, params["learning_rate"])
	assert.Equal(t, 1, params["max_depth"])

	assert.Error(t, ab.SetParams(map[string]interface{}{"base_estimator": "svm"}))
}

func TestGradientBoosting_Separable(t *testing.T) {
	for _, loss := range []string{"deviance", "log_loss", "exponential"} {
		t.Run(loss, func(t *testing.T) {
			X, y := separable()
			gb := NewGradientBoostingClassifier(WithLoss(loss), WithNEstimators(20), WithGBRandomState(0))
			require.NoError(t, gb.Fit(X, y))

			pred, err := gb.Predict(X)
			require.NoError(t, err)
			assert.True(t, mat.Equal(pred, y))

			proba, err := gb.PredictProba(X)
			require.NoError(t, err)
			assertRowsSumToOne(t, proba)
			assert.Greater(t, proba.At(9, 1), 0.5)
			assert.Less(t, proba.At(0, 1), 0.5)

			imp, err := gb.FeatureImportances()
			require.NoError(t, err)
			assert.InDelta(t, 1.0, imp[0], 1e-9)
			assert.Equal(t, 0.0, imp[1])

			score := gb.TrainScore()
			require.Len(t, score, 20)
			assert.Less(t, score[19], score[0])
		})
	}
}

func TestGradientBoosting_FirstStageIsNewtonStep(t *testing.T) {
	X, y := separable()
	gb := NewGradientBoostingClassifier(WithNEstimators(1), WithLearningRate(1), WithGBMaxDepth(1))
	require.NoError(t, gb.Fit(X, y))

	// balanced classes: init log-odds is 0, each pure leaf moves by
	// sum(y-p)/sum(p(1-p)) = (5*0.5)/(5*0.25) = 2
	raw, err := gb.DecisionFunction(X)
	require.NoError(t, err)
	assert.InDelta(t, -2.0, raw[0], 1e-9)
	assert.InDelta(t, 2.0, raw[9], 1e-9)
}

func TestGradientBoosting_SubsampleReproducible(t *testing.T) {
	X, y := noisy()
	fit := func() []float64 {
		gb := NewGradientBoostingClassifier(
			WithNEstimators(15),
			WithSubsample(0.7),
			WithGBMaxFeatures("sqrt"),
			WithGBRandomState(7),
		)
		require.NoError(t, gb.Fit(X, y))
		raw, err := gb.DecisionFunction(X)
		require.NoError(t, err)
		return raw
	}
	assert.Equal(t, fit(), fit())
}

func TestGradientBoosting_Errors(t *testing.T) {
	X, _ := separable()
	single := mat.NewDense(10, 1, nil)

	gb := NewGradientBoostingClassifier()
	assert.ErrorIs(t, gb.Fit(X, single), errors.ErrSingleClass)

	multi := mat.NewDense(10, 1, []float64{0, 1, 2, 0, 1, 2, 0, 1, 2, 0})
	var valErr *errors.ValueError
	assert.ErrorAs(t, gb.Fit(X, multi), &valErr)

	var vErr *errors.ValidationError
	assert.ErrorAs(t, NewGradientBoostingClassifier(WithLoss("hinge")).Fit(X, single), &vErr)
	assert.ErrorAs(t, NewGradientBoostingClassifier(WithSubsample(1.5)).Fit(X, single), &vErr)

	_, err := gb.PredictProba(X)
	var nf *errors.NotFittedError
	assert.ErrorAs(t, err, &nf)
}

func TestGradientBoosting_SetParamsFromGrid(t *testing.T) {
	gb := NewGradientBoostingClassifier()
	err := gb.SetParams(map[string]interface{}{
		"loss":              "exponential",
		"n_estimators":      120,
		"max_depth":         25,
		"min_samples_split": 2,
		"min_samples_leaf":  2,
		"subsample":         0.8,
		"max_features":      "sqrt",
	})
	require.NoError(t, err)

	params := gb.GetParams()
	assert.Equal(t, "exponential", params["loss"])
	assert.Equal(t, 120, params["n_estimators"])
	assert.Equal(t, 0.8, params["subsample"])
	assert.Equal(t, "sqrt", params["max_features"])

	var valErr *errors.ValueError
	assert.ErrorAs(t, gb.SetParams(map[string]interface{}{"criterion": "friedman_mse"}), &valErr)
}

func TestLossFunctions(t *testing.T) {
	targets := []float64{1, 0, 0, 0}
	w := []float64{1, 1, 1, 1}

	dev := binomialDeviance{}
	assert.InDelta(t, math.Log(1.0/3), dev.InitScore(targets, w), 1e-12)
	num, den := dev.NewtonTerms(0, 1)
	assert.Equal(t, 0.5, num)
	assert.Equal(t, 0.25, den)
	assert.InDelta(t, math.Log(2), dev.Loss(0, 1), 1e-12)

	exp := exponentialLoss{}
	assert.InDelta(t, 0.5*math.Log(1.0/3), exp.InitScore(targets, w), 1e-12)
	num, den = exp.NewtonTerms(0, 0)
	assert.Equal(t, -1.0, num)
	assert.Equal(t, 1.0, den)
	assert.InDelta(t, expit(2), exp.Probability(1), 1e-12)

	// all-positive targets keep a finite init score
	assert.False(t, math.IsInf(dev.InitScore([]float64{1, 1}, []float64{1, 1}), 0))
}

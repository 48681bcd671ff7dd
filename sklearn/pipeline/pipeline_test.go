package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/preprocessing"
	"github.com/YuminosukeSato/poiml/sklearn/decomposition"
	"github.com/YuminosukeSato/poiml/sklearn/feature_selection"
	"github.com/YuminosukeSato/poiml/sklearn/linear_model"
)

func anovaPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(
		Step{Name: "anova", Estimator: feature_selection.NewSelectKBest(feature_selection.WithK("all"))},
		Step{Name: "r_dim", Estimator: decomposition.NewPCA(decomposition.WithNComponents(2))},
		Step{Name: "clf", Estimator: linear_model.NewLogisticRegression(linear_model.WithLRRandomState(0))},
	)
	require.NoError(t, err)
	return p
}

func blobs() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 3, []float64{
		0, 1, 5,
		1, 0, 4,
		0, 0, 6,
		1, 1, 5,
		5, 6, 5,
		6, 5, 4,
		5, 5, 6,
		6, 6, 5,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestPipeline_FitPredict(t *testing.T) {
	var _ model.Classifier = (*Pipeline)(nil)

	X, y := blobs()
	p := anovaPipeline(t)
	require.NoError(t, p.Fit(X, y))

	pred, err := p.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pred, y))

	proba, err := p.PredictProba(X)
	require.NoError(t, err)
	_, c := proba.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, []int{0, 1}, p.Classes())
}

func TestPipeline_ParamRouting(t *testing.T) {
	p := anovaPipeline(t)
	require.NoError(t, p.SetParams(map[string]interface{}{
		"anova__k":            2,
		"r_dim__n_components": 1,
		"r_dim__whiten":       true,
		"clf__C":              10,
		"clf__class_weight":   "balanced",
	}))

	params := p.GetParams()
	assert.Equal(t, "2", params["anova__k"])
	assert.Equal(t, 1, params["r_dim__n_components"])
	assert.Equal(t, true, params["r_dim__whiten"])
	assert.Equal(t, 10.0, params["clf__C"])
	assert.Equal(t, "balanced", params["clf__class_weight"])

	X, y := blobs()
	require.NoError(t, p.Fit(X, y))
	step, ok := p.NamedStep("anova")
	require.True(t, ok)
	support := step.(*feature_selection.SelectKBest).GetSupport()
	assert.Equal(t, []bool{true, true, false}, support)
}

func TestPipeline_SetParamsErrors(t *testing.T) {
	p := anovaPipeline(t)
	var valErr *errors.ValueError
	assert.ErrorAs(t, p.SetParams(map[string]interface{}{"C": 1}), &valErr)
	assert.ErrorAs(t, p.SetParams(map[string]interface{}{"svm__C": 1}), &valErr)
	assert.ErrorAs(t, p.SetParams(map[string]interface{}{"clf__gamma": 1}), &valErr)
}

func TestPipeline_Construction(t *testing.T) {
	_, err := New()
	assert.Error(t, err)

	var vErr *errors.ValidationError
	_, err = New(Step{Name: "a__b", Estimator: decomposition.NewPCA()})
	assert.ErrorAs(t, err, &vErr)

	_, err = New(
		Step{Name: "x", Estimator: decomposition.NewPCA()},
		Step{Name: "x", Estimator: linear_model.NewLogisticRegression()},
	)
	assert.ErrorAs(t, err, &vErr)
}

func TestPipeline_UnsupervisedStepAndNotFitted(t *testing.T) {
	p, err := New(
		Step{Name: "scale", Estimator: preprocessing.NewRobustScaler()},
		Step{Name: "clf", Estimator: linear_model.NewLogisticRegression(linear_model.WithLRRandomState(1))},
	)
	require.NoError(t, err)

	X, y := blobs()
	_, err = p.Predict(X)
	var nf *errors.NotFittedError
	assert.ErrorAs(t, err, &nf)

	require.NoError(t, p.Fit(X, y))
	w, err := p.ExportWeights()
	require.NoError(t, err)
	require.NoError(t, w.Validate())
	assert.Equal(t, []string{"scale", "clf"}, w.Features)
	require.Len(t, w.Steps, 2)
	assert.Equal(t, "LogisticRegression", w.Steps[1].ModelType)
}

func TestPipeline_BadIntermediateStep(t *testing.T) {
	p, err := New(
		Step{Name: "clf0", Estimator: struct{}{}},
		Step{Name: "clf", Estimator: linear_model.NewLogisticRegression()},
	)
	require.NoError(t, err)
	X, y := blobs()
	var vErr *errors.ValidationError
	assert.ErrorAs(t, p.Fit(X, y), &vErr)
}

// Package tune selects and fits the final classifier: one parameterized
// grid search over a closed set of classifier families.
package tune

import (
	"sort"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/sklearn/decomposition"
	"github.com/YuminosukeSato/poiml/sklearn/ensemble"
	"github.com/YuminosukeSato/poiml/sklearn/feature_selection"
	"github.com/YuminosukeSato/poiml/sklearn/linear_model"
	"github.com/YuminosukeSato/poiml/sklearn/model_selection"
	skpipeline "github.com/YuminosukeSato/poiml/sklearn/pipeline"
)

// Family names
const (
	GradientBoosting   = "gradient_boosting"
	LogisticRegression = "logistic_regression"
	LogisticPipeline   = "logistic_pipeline"
)

// Family describes one classifier family: how to build it, where to search
// and which parameters to use when the search is skipped.
type Family struct {
	Name        string
	Description string

	// New builds an unfitted estimator seeded with seed.
	New func(seed int64) model.Classifier

	Space   []model_selection.ParamSpace
	Fixed   map[string]interface{}
	Scoring string
	Folds   int
}

var families = map[string]*Family{
	GradientBoosting: {
		Name:        GradientBoosting,
		Description: "gradient boosted regression trees",
		New: func(seed int64) model.Classifier {
			return ensemble.NewGradientBoostingClassifier(ensemble.WithGBRandomState(seed))
		},
		Space: []model_selection.ParamSpace{{
			"loss":              {"deviance", "exponential"},
			"n_estimators":      {120, 300, 500, 800, 1200},
			"max_depth":         {3, 5, 7, 9, 12, 15, 17, 25},
			"min_samples_split": {2, 5, 10, 15, 100},
			"min_samples_leaf":  {2, 5, 10},
			"subsample":         {0.6, 0.7, 0.8, 0.9, 1.0},
			"max_features":      {"sqrt", "log2", "none"},
		}},
		Fixed: map[string]interface{}{
			"loss":              "deviance",
			"n_estimators":      120,
			"max_depth":         25,
			"min_samples_split": 2,
			"min_samples_leaf":  2,
			"subsample":         0.8,
			"max_features":      "sqrt",
		},
		Scoring: "f1_weighted",
		Folds:   2,
	},
	LogisticRegression: {
		Name:        LogisticRegression,
		Description: "L2 logistic regression",
		New: func(seed int64) model.Classifier {
			return linear_model.NewLogisticRegression(linear_model.WithLRRandomState(seed))
		},
		Space: []model_selection.ParamSpace{{
			"C": {0.01, 0.1, 1.0, 10.0, 100.0},
		}},
		Fixed:   map[string]interface{}{"C": 10.0},
		Scoring: "recall",
		Folds:   2,
	},
	LogisticPipeline: {
		Name:        LogisticPipeline,
		Description: "ANOVA k-best -> PCA -> balanced logistic regression",
		New:         newLogisticPipeline,
		Space: []model_selection.ParamSpace{{
			"anova__k":            {6, 8, 10, 12, "all"},
			"r_dim__n_components": {2, 4},
			"r_dim__whiten":       {true, false},
			"clf__C":              {0.01, 0.1, 1.0, 10.0, 100.0},
			"clf__class_weight":   {"balanced"},
		}},
		Fixed: map[string]interface{}{
			"anova__k":            "all",
			"r_dim__n_components": 2,
			"r_dim__whiten":       false,
			"clf__C":              10.0,
			"clf__class_weight":   "balanced",
		},
		Scoring: "f1_weighted",
		Folds:   3,
	},
}

func newLogisticPipeline(seed int64) model.Classifier {
	p, err := skpipeline.New(
		skpipeline.Step{Name: "anova", Estimator: feature_selection.NewSelectKBest()},
		skpipeline.Step{Name: "r_dim", Estimator: decomposition.NewPCA()},
		skpipeline.Step{Name: "clf", Estimator: linear_model.NewLogisticRegression(linear_model.WithLRRandomState(seed))},
	)
	if err != nil {
		// Step names are constants.
		panic(err)
	}
	return p
}

// Lookup returns the family registered under name.
func Lookup(name string) (*Family, error) {
	f, ok := families[name]
	if !ok {
		return nil, errors.NewValidationError("family", "unknown classifier family", name)
	}
	return f, nil
}

// Families returns every registered family sorted by name.
func Families() []*Family {
	out := make([]*Family, 0, len(families))
	for _, f := range families {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Fixed returns a copy of the family's best-known parameters.
func Fixed(name string) (map[string]interface{}, error) {
	f, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(f.Fixed))
	for k, v := range f.Fixed {
		out[k] = v
	}
	return out, nil
}

// Candidates returns the number of parameter combinations in the family's space.
func (f *Family) Candidates() int {
	grid, err := model_selection.NewParameterGrid(f.Space...)
	if err != nil {
		return 0
	}
	return grid.Len()
}

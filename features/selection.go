package features

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/dataset"
	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/pkg/log"
	"github.com/YuminosukeSato/poiml/sklearn/ensemble"
)

// Label is the default target column.
const Label = "poi"

// DefaultCutoff is the importance a predictor must exceed to survive selection.
const DefaultCutoff = 0.01

// Ranker is a classifier that scores its input columns after fitting.
type Ranker interface {
	Fit(X, y mat.Matrix) error
	FeatureImportances() ([]float64, error)
}

// DefaultRankerEstimators is the stump count of the default ranker.
const DefaultRankerEstimators = 50

// NewDefaultRanker returns AdaBoost over nEstimators decision stumps.
// nEstimators <= 0 uses DefaultRankerEstimators.
func NewDefaultRanker(nEstimators int, seed int64) Ranker {
	if nEstimators <= 0 {
		nEstimators = DefaultRankerEstimators
	}
	return ensemble.NewAdaBoostClassifier(
		ensemble.WithAdaNEstimators(nEstimators),
		ensemble.WithAdaMaxDepth(1),
		ensemble.WithAdaRandomState(seed),
	)
}

type selectConfig struct {
	label  string
	cutoff float64
	format dataset.FormatOptions
}

// SelectOption configures Select
type SelectOption func(*selectConfig)

// WithCutoff sets the importance cutoff. A cutoff <= 0 keeps every predictor.
func WithCutoff(c float64) SelectOption {
	return func(s *selectConfig) { s.cutoff = c }
}

// WithLabel sets the label column expected first in the feature list.
func WithLabel(name string) SelectOption {
	return func(s *selectConfig) { s.label = name }
}

// WithFormatOptions sets the row filtering used to build the training matrix.
func WithFormatOptions(o dataset.FormatOptions) SelectOption {
	return func(s *selectConfig) { s.format = o }
}

// Select fits ranker on the listed features and returns the label followed
// by every predictor whose importance exceeds the cutoff, in input order. A
// cutoff that removes every predictor yields just the label.
func Select(ds *dataset.Dataset, features []string, ranker Ranker, opts ...SelectOption) ([]string, error) {
	cfg := selectConfig{label: Label, cutoff: DefaultCutoff}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(features) == 0 || features[0] != cfg.label {
		return nil, errors.NewValidationError("features", "label must be the first entry", features)
	}
	predictors := features[1:]
	if len(predictors) == 0 {
		return []string{cfg.label}, nil
	}
	if ranker == nil {
		return nil, errors.NewValidationError("ranker", "a ranker is required", nil)
	}

	data, err := dataset.FeatureFormat(ds, features, cfg.format)
	if err != nil {
		return nil, err
	}
	y, X := dataset.TargetFeatureSplit(data)
	if err := ranker.Fit(X, y); err != nil {
		return nil, errors.Wrap(err, "feature selection")
	}
	importances, err := ranker.FeatureImportances()
	if err != nil {
		return nil, err
	}
	if len(importances) != len(predictors) {
		return nil, errors.NewDimensionError("features.Select", len(predictors), len(importances), 1)
	}

	logger := log.GetLoggerWithName("features").With(log.StageKey, log.StageSelection)
	selected := []string{cfg.label}
	for i, name := range predictors {
		logger.Debug("feature importance",
			log.FeatureKey, name,
			log.ImportanceKey, importances[i],
		)
		if cfg.cutoff <= 0 || importances[i] > cfg.cutoff {
			selected = append(selected, name)
		}
	}
	logger.Info("features selected",
		log.CutoffKey, cfg.cutoff,
		log.FeaturesKey, len(selected)-1,
	)
	return selected, nil
}

package features

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/dataset"
	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/pkg/log"
	"github.com/YuminosukeSato/poiml/preprocessing"
)

// DefaultReference is the column whose mean is reported around scaling.
const DefaultReference = "exercised_stock_options"

type scaleConfig struct {
	label     string
	reference string
	scaler    []preprocessing.RobustScalerOption
}

// ScaleOption configures Scale
type ScaleOption func(*scaleConfig)

// WithReference sets the column whose before/after mean is logged.
func WithReference(name string) ScaleOption {
	return func(s *scaleConfig) { s.reference = name }
}

// WithScaleLabel sets the label column, which is never scaled.
func WithScaleLabel(name string) ScaleOption {
	return func(s *scaleConfig) { s.label = name }
}

// WithScalerOptions passes options to the underlying RobustScaler.
func WithScalerOptions(opts ...preprocessing.RobustScalerOption) ScaleOption {
	return func(s *scaleConfig) { s.scaler = append(s.scaler, opts...) }
}

// Scale replaces every missing value with 0 and then robust-scales the listed
// columns (the label excepted). Columns not listed keep their values.
func Scale(ds *dataset.Dataset, features []string, opts ...ScaleOption) (*dataset.Dataset, error) {
	cfg := scaleConfig{label: Label, reference: DefaultReference}
	for _, opt := range opts {
		opt(&cfg)
	}

	columns := make([]string, 0, len(features))
	for _, f := range features {
		if f == cfg.label {
			continue
		}
		if !ds.HasFeature(f) {
			return nil, errors.NewValidationError("features", "unknown feature", f)
		}
		columns = append(columns, f)
	}

	filled := ds.Map(func(_ string, v dataset.Value) dataset.Value {
		return dataset.Num(v.OrZero())
	})
	if len(columns) == 0 || filled.Len() == 0 {
		return filled, nil
	}

	X := mat.NewDense(filled.Len(), len(columns), nil)
	for j, f := range columns {
		for i, v := range filled.Column(f) {
			X.Set(i, j, v.OrZero())
		}
	}
	scaler := preprocessing.NewRobustScaler(cfg.scaler...)
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return nil, errors.Wrap(err, "feature scaling")
	}

	index := make(map[string]int, len(columns))
	for j, f := range columns {
		index[f] = j
	}
	out := filled.MapColumns(columns, func(f string, col []dataset.Value) []dataset.Value {
		j := index[f]
		res := make([]dataset.Value, len(col))
		for i := range col {
			res[i] = dataset.Num(scaled.At(i, j))
		}
		return res
	})

	logger := log.GetLoggerWithName("features").With(log.StageKey, log.StageScaling)
	if filled.HasFeature(cfg.reference) {
		logger.Info("mean changed",
			log.FeatureKey, cfg.reference,
			log.MeanBeforeKey, columnMean(filled, cfg.reference),
			log.MeanAfterKey, columnMean(out, cfg.reference),
		)
	}
	logger.Debug("features scaled", log.FeaturesKey, len(columns), log.EntitiesKey, out.Len())
	return out, nil
}

func columnMean(ds *dataset.Dataset, name string) float64 {
	col := ds.Column(name)
	sum := 0.0
	for _, v := range col {
		sum += v.OrZero()
	}
	return errors.SafeDivide(sum, float64(len(col)))
}

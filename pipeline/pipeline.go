// Package pipeline runs the POI identification stages in order: outlier
// removal, e-mail ratio engineering, feature selection, robust scaling and
// classifier tuning.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/dataset"
	"github.com/YuminosukeSato/poiml/features"
	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/pkg/log"
	"github.com/YuminosukeSato/poiml/pkg/monitor"
	"github.com/YuminosukeSato/poiml/tune"
)

// Result is everything a run hands to the sink.
type Result struct {
	RunID    string
	Dataset  *dataset.Dataset
	Features []string
	Model    model.Classifier

	// Tuning is nil when the tuning stage was skipped.
	Tuning *tune.Result
}

type runOptions struct {
	recorder *monitor.Recorder
	ranker   features.Ranker
	format   dataset.FormatOptions
}

// Option configures Run
type Option func(*runOptions)

// WithRecorder records stage durations and tuning outcomes.
func WithRecorder(r *monitor.Recorder) Option {
	return func(o *runOptions) { o.recorder = r }
}

// WithRanker replaces the AdaBoost ranker used by feature selection.
func WithRanker(r features.Ranker) Option {
	return func(o *runOptions) { o.ranker = r }
}

// WithFormatOptions sets the row filtering used to build training matrices.
func WithFormatOptions(f dataset.FormatOptions) Option {
	return func(o *runOptions) { o.format = f }
}

// Run executes the enabled stages on ds. Every stage returns a new dataset;
// ds itself is never modified. Without the tuning stage the family's fixed
// parameters are fitted directly on the final data.
func Run(ctx context.Context, ds *dataset.Dataset, cfg Config, opts ...Option) (*Result, error) {
	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if ds == nil || ds.Len() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "pipeline")
	}
	if len(cfg.Features) == 0 || cfg.Features[0] != cfg.Label {
		return nil, errors.NewValidationError("features", "label must be the first entry", cfg.Features)
	}

	runID := uuid.NewString()
	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, runID)
	logger.Info("run started",
		log.EntitiesKey, ds.Len(),
		log.FeaturesKey, len(cfg.Features)-1,
		log.FamilyKey, cfg.Tuning.Family,
	)

	r := &runner{ctx: ctx, logger: logger, recorder: o.recorder}
	res := &Result{RunID: runID, Dataset: ds, Features: append([]string(nil), cfg.Features...)}

	if cfg.RemoveOutliers {
		err := r.stage(log.StageOutliers, func() error {
			res.Dataset = res.Dataset.Without(cfg.Outliers...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Engineer {
		err := r.stage(log.StageEngineering, func() error {
			res.Dataset = features.EmailRatios(res.Dataset)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Select {
		err := r.stage(log.StageSelection, func() error {
			ranker := o.ranker
			if ranker == nil {
				ranker = features.NewDefaultRanker(cfg.RankerEstimators, cfg.RankerSeed)
			}
			selected, err := features.Select(res.Dataset, res.Features, ranker,
				features.WithCutoff(cfg.Cutoff),
				features.WithLabel(cfg.Label),
				features.WithFormatOptions(o.format),
			)
			if err != nil {
				return err
			}
			res.Features = selected
			r.recorder.SetSelectedFeatures(len(selected) - 1)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Scale {
		err := r.stage(log.StageScaling, func() error {
			scaled, err := features.Scale(res.Dataset, res.Features,
				features.WithReference(cfg.Reference),
				features.WithScaleLabel(cfg.Label),
			)
			if err != nil {
				return err
			}
			res.Dataset = scaled
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	err := r.stage(log.StageTuning, func() error {
		if len(res.Features) < 2 {
			return errors.NewValidationError("features", "no predictors left to train on", res.Features)
		}
		data, err := dataset.FeatureFormat(res.Dataset, res.Features, o.format)
		if err != nil {
			return err
		}
		y, X := dataset.TargetFeatureSplit(data)

		if cfg.Tune {
			tr, err := tune.Tune(r.ctx, X, y, cfg.Tuning)
			if err != nil {
				return err
			}
			res.Model = tr.Best
			res.Tuning = tr
			r.recorder.AddFits(tr.Family, tr.NFits)
			r.recorder.SetBestScore(tr.Family, tr.Scoring, tr.BestScore)
			return nil
		}

		clf, err := fitFixed(cfg.Tuning, X, y)
		if err != nil {
			return err
		}
		res.Model = clf
		r.recorder.AddFits(cfg.Tuning.Family, 1)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("run finished", log.FeaturesKey, len(res.Features)-1)
	return res, nil
}

func fitFixed(cfg tune.Config, X, y mat.Matrix) (model.Classifier, error) {
	fam, err := tune.Lookup(cfg.Family)
	if err != nil {
		return nil, err
	}
	clf := fam.New(cfg.Seed)
	if err := clf.SetParams(fam.Fixed); err != nil {
		return nil, err
	}
	if err := clf.Fit(X, y); err != nil {
		return nil, errors.Wrapf(err, "fitting %s", fam.Name)
	}
	return clf, nil
}

type runner struct {
	ctx      context.Context
	logger   log.Logger
	recorder *monitor.Recorder
}

// stage runs fn unless the context is done, then logs and records its duration.
func (r *runner) stage(name string, fn func() error) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	if err := fn(); err != nil {
		r.logger.Error("stage failed", log.StageKey, name, log.ErrAttrKey, err)
		return errors.Wrapf(err, "stage %s", name)
	}
	d := time.Since(start)
	r.recorder.ObserveStage(name, d)
	r.logger.Info("stage finished", log.StageKey, name, log.DurationMsKey, d.Milliseconds())
	return nil
}

package model_selection

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/core/parallel"
	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/pkg/log"
)

// Factory builds a fresh, unfitted classifier. GridSearchCV calls it once
// per task so no estimator is shared between goroutines.
type Factory func() model.Classifier

// CVResults holds per-candidate cross-validation scores, in grid order.
type CVResults struct {
	Params        []map[string]interface{}
	SplitScores   [][]float64
	MeanTestScore []float64
	StdTestScore  []float64
	RankTestScore []int
}

// GridSearchCV evaluates every candidate of a ParameterGrid with stratified
// k-fold cross-validation and refits the best one on the full data.
type GridSearchCV struct {
	state *model.StateManager

	factory Factory
	grid    *ParameterGrid
	cv      *StratifiedKFold
	scoring string
	nJobs   int
	refit   bool

	results       *CVResults
	bestIndex     int
	bestEstimator model.Classifier
	nFits         int
}

// GridSearchOption configures a GridSearchCV
type GridSearchOption func(*GridSearchCV)

// WithCV sets the splitter (default: 5 folds, no shuffle)
func WithCV(cv *StratifiedKFold) GridSearchOption {
	return func(g *GridSearchCV) { g.cv = cv }
}

// WithScoring sets the scorer name (default: accuracy)
func WithScoring(name string) GridSearchOption {
	return func(g *GridSearchCV) { g.scoring = name }
}

// WithNJobs sets the worker count; n <= 0 uses one worker per CPU.
func WithNJobs(n int) GridSearchOption {
	return func(g *GridSearchCV) { g.nJobs = n }
}

// WithRefit toggles refitting the best candidate on all data (default: true)
func WithRefit(refit bool) GridSearchOption {
	return func(g *GridSearchCV) { g.refit = refit }
}

// NewGridSearchCV creates a grid search over grid using estimators built by factory.
func NewGridSearchCV(factory Factory, grid *ParameterGrid, opts ...GridSearchOption) *GridSearchCV {
	g := &GridSearchCV{
		state:   model.NewStateManager(),
		factory: factory,
		grid:    grid,
		cv:      NewStratifiedKFold(5, false, 0),
		scoring: "accuracy",
		nJobs:   1,
		refit:   true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fit runs every candidate on every fold. The first failing task cancels the
// rest and its error, annotated with the candidate and fold, is returned.
func (g *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	if g.factory == nil || g.grid == nil {
		return errors.NewValidationError("estimator", "a factory and a parameter grid are required", nil)
	}
	scorer, err := GetScorer(g.scoring)
	if err != nil {
		return err
	}
	folds, err := g.cv.Split(X, y)
	if err != nil {
		return err
	}

	g.state.Reset()
	logger := log.GetLoggerWithName("model_selection").With(log.OperationKey, "GridSearchCV.Fit")
	start := time.Now()

	candidates := g.grid.Candidates()
	nFolds := len(folds)
	scores := make([][]float64, len(candidates))
	for i := range scores {
		scores[i] = make([]float64, nFolds)
	}
	logger.Debug("starting grid search",
		log.CandidatesKey, len(candidates),
		log.FoldsKey, nFolds,
		log.ScoringKey, scorer.Name(),
		log.WorkersKey, parallel.Workers(g.nJobs),
	)

	err = parallel.ForEach(ctx, len(candidates)*nFolds, g.nJobs, func(ctx context.Context, task int) error {
		c, f := task/nFolds, task%nFolds
		fold := folds[f]
		err := errors.SafeExecute("GridSearchCV.Fit", func() error {
			est := g.factory()
			if err := est.SetParams(candidates[c]); err != nil {
				return err
			}
			trainX, trainY := extractSubset(X, y, fold.TrainIndices)
			if err := est.Fit(trainX, trainY); err != nil {
				return err
			}
			testX, testY := extractSubset(X, y, fold.TestIndices)
			s, err := scorer.Score(est, testX, testY)
			if err != nil {
				return err
			}
			scores[c][f] = s
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "candidate %s fold %d", model.FormatParams(candidates[c]), f)
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.results = summarize(candidates, scores)
	g.nFits = len(candidates) * nFolds
	g.bestIndex = 0
	for i, rank := range g.results.RankTestScore {
		if rank == 1 {
			g.bestIndex = i
			break
		}
	}
	best := candidates[g.bestIndex]

	g.bestEstimator = nil
	if g.refit {
		var est model.Classifier
		err := errors.SafeExecute("GridSearchCV.refit", func() error {
			est = g.factory()
			if err := est.SetParams(best); err != nil {
				return err
			}
			return est.Fit(X, y)
		})
		if err != nil {
			return errors.Wrapf(err, "refit %s", model.FormatParams(best))
		}
		g.bestEstimator = est
		g.nFits++
	}

	nSamples, nFeatures := X.Dims()
	g.state.SetDimensions(nFeatures, nSamples)
	g.state.SetFitted()

	logger.Info("grid search complete",
		log.ScoreKey, g.results.MeanTestScore[g.bestIndex],
		log.ParamsKey, model.FormatParams(best),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// summarize computes mean, population standard deviation and rank per
// candidate. Equal means share the lowest rank.
func summarize(candidates []map[string]interface{}, scores [][]float64) *CVResults {
	n := len(candidates)
	r := &CVResults{
		Params:        candidates,
		SplitScores:   scores,
		MeanTestScore: make([]float64, n),
		StdTestScore:  make([]float64, n),
		RankTestScore: make([]int, n),
	}
	for i, s := range scores {
		mean := 0.0
		for _, v := range s {
			mean += v
		}
		mean /= float64(len(s))
		variance := 0.0
		for _, v := range s {
			variance += (v - mean) * (v - mean)
		}
		r.MeanTestScore[i] = mean
		r.StdTestScore[i] = math.Sqrt(variance / float64(len(s)))
	}
	for i, m := range r.MeanTestScore {
		rank := 1
		for _, other := range r.MeanTestScore {
			if other > m || (math.IsNaN(m) && !math.IsNaN(other)) {
				rank++
			}
		}
		r.RankTestScore[i] = rank
	}
	return r
}

// CVResults returns the per-candidate scores
func (g *GridSearchCV) CVResults() (*CVResults, error) {
	if err := g.state.RequireFitted("GridSearchCV", "CVResults"); err != nil {
		return nil, err
	}
	return g.results, nil
}

// BestIndex returns the grid position of the best candidate
func (g *GridSearchCV) BestIndex() int {
	return g.bestIndex
}

// BestParams returns the best candidate's parameters
func (g *GridSearchCV) BestParams() (map[string]interface{}, error) {
	if err := g.state.RequireFitted("GridSearchCV", "BestParams"); err != nil {
		return nil, err
	}
	return g.results.Params[g.bestIndex], nil
}

// BestScore returns the best candidate's mean test score
func (g *GridSearchCV) BestScore() (float64, error) {
	if err := g.state.RequireFitted("GridSearchCV", "BestScore"); err != nil {
		return 0, err
	}
	return g.results.MeanTestScore[g.bestIndex], nil
}

// BestEstimator returns the refitted estimator. It requires refit.
func (g *GridSearchCV) BestEstimator() (model.Classifier, error) {
	if err := g.state.RequireFitted("GridSearchCV", "BestEstimator"); err != nil {
		return nil, err
	}
	if g.bestEstimator == nil {
		return nil, errors.NewValueError("GridSearchCV.BestEstimator", "refit is disabled")
	}
	return g.bestEstimator, nil
}

// NFits returns how many estimator fits the last Fit performed, refit included.
func (g *GridSearchCV) NFits() int {
	return g.nFits
}

// Predict predicts with the refitted best estimator
func (g *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	est, err := g.BestEstimator()
	if err != nil {
		return nil, err
	}
	return est.Predict(X)
}

package tune

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/pkg/log"
	"github.com/YuminosukeSato/poiml/sklearn/model_selection"
)

// Config selects a family and how to search it. Zero Folds and empty
// Scoring fall back to the family defaults.
type Config struct {
	Family  string                       `yaml:"family" validate:"required"`
	Search  bool                         `yaml:"search"`
	Folds   int                          `yaml:"folds" validate:"gte=0"`
	Scoring string                       `yaml:"scoring"`
	Shuffle bool                         `yaml:"shuffle"`
	Seed    int64                        `yaml:"seed"`
	Workers int                          `yaml:"workers"`
	Grid    []model_selection.ParamSpace `yaml:"grid,omitempty"`
}

// DefaultConfig mirrors the entry script: a searched logistic pipeline on
// three shuffled folds.
func DefaultConfig() Config {
	return Config{
		Family:  LogisticPipeline,
		Search:  true,
		Shuffle: true,
		Seed:    42,
	}
}

// Result is the outcome of Tune
type Result struct {
	Family     string
	Scoring    string
	Folds      int
	Best       model.Classifier
	BestParams map[string]interface{}
	BestScore  float64
	CV         *model_selection.CVResults
	NFits      int
}

// Tune grid-searches the configured family with stratified k-fold
// cross-validation and returns the best estimator refitted on all of X.
// With Search off the family's fixed parameters form a one-candidate grid,
// so a cross-validated score is still reported. That path still splits X
// into stratified folds and fails the same way when a class is too small;
// fit the fixed parameters directly to avoid cross-validation altogether.
func Tune(ctx context.Context, X, y mat.Matrix, cfg Config) (*Result, error) {
	fam, err := Lookup(cfg.Family)
	if err != nil {
		return nil, err
	}
	folds := cfg.Folds
	if folds == 0 {
		folds = fam.Folds
	}
	scoring := cfg.Scoring
	if scoring == "" {
		scoring = fam.Scoring
	}

	grid, err := searchGrid(fam, cfg)
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("tune").With(log.FamilyKey, fam.Name)
	logger.Info("tuning classifier",
		log.ScoringKey, scoring,
		log.FoldsKey, folds,
		log.CandidatesKey, grid.Len(),
		"search", cfg.Search,
	)
	start := time.Now()

	seed := cfg.Seed
	gs := model_selection.NewGridSearchCV(
		func() model.Classifier { return fam.New(seed) },
		grid,
		model_selection.WithCV(model_selection.NewStratifiedKFold(folds, cfg.Shuffle, seed)),
		model_selection.WithScoring(scoring),
		model_selection.WithNJobs(cfg.Workers),
	)
	if err := gs.Fit(ctx, X, y); err != nil {
		return nil, errors.Wrapf(err, "tuning %s", fam.Name)
	}

	best, err := gs.BestEstimator()
	if err != nil {
		return nil, err
	}
	params, _ := gs.BestParams()
	score, _ := gs.BestScore()
	cv, _ := gs.CVResults()

	logger.Info("best classifier",
		log.ScoreKey, score,
		log.ParamsKey, model.FormatParams(params),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return &Result{
		Family:     fam.Name,
		Scoring:    scoring,
		Folds:      folds,
		Best:       best,
		BestParams: params,
		BestScore:  score,
		CV:         cv,
		NFits:      gs.NFits(),
	}, nil
}

func searchGrid(fam *Family, cfg Config) (*model_selection.ParameterGrid, error) {
	if !cfg.Search {
		space := make(model_selection.ParamSpace, len(fam.Fixed))
		for k, v := range fam.Fixed {
			space[k] = []interface{}{v}
		}
		return model_selection.NewParameterGrid(space)
	}
	if len(cfg.Grid) > 0 {
		return model_selection.NewParameterGrid(cfg.Grid...)
	}
	return model_selection.NewParameterGrid(fam.Space...)
}

package ensemble

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/pkg/log"
	"github.com/YuminosukeSato/poiml/sklearn/tree"
)

type gbParams struct {
	Loss            string  `mapstructure:"loss"`
	LearningRate    float64 `mapstructure:"learning_rate"`
	NEstimators     int     `mapstructure:"n_estimators"`
	MaxDepth        int     `mapstructure:"max_depth"`
	MinSamplesSplit int     `mapstructure:"min_samples_split"`
	MinSamplesLeaf  int     `mapstructure:"min_samples_leaf"`
	Subsample       float64 `mapstructure:"subsample"`
	MaxFeatures     string  `mapstructure:"max_features"`
	RandomState     int64   `mapstructure:"random_state"`
}

// GradientBoostingClassifier is a binary gradient boosted ensemble of
// regression trees. Each stage fits a tree to the loss pseudo-residuals and
// replaces its leaf values with one Newton step.
type GradientBoostingClassifier struct {
	state *model.StateManager
	p     gbParams

	loss        lossFunction
	estimators  []*tree.DecisionTreeRegressor
	initScore   float64
	classes_    []int
	trainScore_ []float64
	importances []float64
}

// GBOption configures a GradientBoostingClassifier.
type GBOption func(*gbParams)

// WithLoss sets the loss: "deviance" (alias "log_loss") or "exponential".
func WithLoss(loss string) GBOption {
	return func(p *gbParams) { p.Loss = loss }
}

// WithLearningRate sets the shrinkage applied to each stage.
func WithLearningRate(lr float64) GBOption {
	return func(p *gbParams) { p.LearningRate = lr }
}

// WithNEstimators sets the number of boosting stages.
func WithNEstimators(n int) GBOption {
	return func(p *gbParams) { p.NEstimators = n }
}

// WithGBMaxDepth sets the depth of each regression tree.
func WithGBMaxDepth(d int) GBOption {
	return func(p *gbParams) { p.MaxDepth = d }
}

// WithGBMinSamplesSplit sets min_samples_split of each tree.
func WithGBMinSamplesSplit(n int) GBOption {
	return func(p *gbParams) { p.MinSamplesSplit = n }
}

// WithGBMinSamplesLeaf sets min_samples_leaf of each tree.
func WithGBMinSamplesLeaf(n int) GBOption {
	return func(p *gbParams) { p.MinSamplesLeaf = n }
}

// WithSubsample sets the row fraction drawn without replacement per stage.
func WithSubsample(f float64) GBOption {
	return func(p *gbParams) { p.Subsample = f }
}

// WithGBMaxFeatures sets the per-split feature sample of each tree.
func WithGBMaxFeatures(s string) GBOption {
	return func(p *gbParams) { p.MaxFeatures = s }
}

// WithGBRandomState seeds subsampling and feature sampling.
func WithGBRandomState(seed int64) GBOption {
	return func(p *gbParams) { p.RandomState = seed }
}

// NewGradientBoostingClassifier returns a classifier with scikit-learn defaults.
func NewGradientBoostingClassifier(opts ...GBOption) *GradientBoostingClassifier {
	p := gbParams{
		Loss:            "deviance",
		LearningRate:    0.1,
		NEstimators:     100,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Subsample:       1.0,
		MaxFeatures:     "none",
		RandomState:     -1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return &GradientBoostingClassifier{state: model.NewStateManager(), p: p}
}

func (gb *GradientBoostingClassifier) validate() error {
	if gb.p.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", gb.p.NEstimators)
	}
	if gb.p.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", gb.p.LearningRate)
	}
	if gb.p.Subsample <= 0 || gb.p.Subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", gb.p.Subsample)
	}
	return nil
}

// Fit runs n_estimators boosting stages.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	if err := gb.validate(); err != nil {
		return err
	}
	loss, err := newLoss(gb.p.Loss)
	if err != nil {
		return err
	}
	if X == nil || y == nil {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "X and y are required")
	}
	n, nFeatures := X.Dims()
	if n == 0 || nFeatures == 0 {
		return errors.NewModelError("GradientBoostingClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yr, _ := y.Dims(); yr != n {
		return errors.NewDimensionError("GradientBoostingClassifier.Fit", n, yr, 0)
	}

	classes := uniqueClasses(y)
	switch {
	case len(classes) < 2:
		return errors.NewModelError("GradientBoostingClassifier.Fit", "need samples of both classes", errors.ErrSingleClass)
	case len(classes) > 2:
		return errors.NewValueError("GradientBoostingClassifier.Fit", "only binary classification is supported")
	}

	targets := make([]float64, n)
	for i := range targets {
		if int(y.At(i, 0)) == classes[1] {
			targets[i] = 1
		}
	}
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}

	rng := newRand(gb.p.RandomState)
	init := loss.InitScore(targets, ones)
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = init
	}

	logger := log.GetLoggerWithName("ensemble").With(log.ModelNameKey, "GradientBoostingClassifier")
	nSub := max(1, int(gb.p.Subsample*float64(n)))
	residual := mat.NewDense(n, 1, nil)
	estimators := make([]*tree.DecisionTreeRegressor, 0, gb.p.NEstimators)
	trainScore := make([]float64, 0, gb.p.NEstimators)
	importances := make([]float64, nFeatures)

	for stage := 0; stage < gb.p.NEstimators; stage++ {
		inBag := ones
		if nSub < n {
			inBag = make([]float64, n)
			for _, i := range rng.Perm(n)[:nSub] {
				inBag[i] = 1
			}
		}
		for i := 0; i < n; i++ {
			residual.Set(i, 0, loss.NegativeGradient(raw[i], targets[i]))
		}

		reg := tree.NewDecisionTreeRegressor(
			tree.WithRegressorMaxDepth(gb.p.MaxDepth),
			tree.WithRegressorMinSamplesSplit(gb.p.MinSamplesSplit),
			tree.WithRegressorMinSamplesLeaf(gb.p.MinSamplesLeaf),
			tree.WithRegressorMaxFeatures(gb.p.MaxFeatures),
			tree.WithRegressorRandomState(int64(rng.Uint64()>>1)),
		)
		if err := reg.FitWeighted(X, residual, inBag); err != nil {
			return errors.Wrapf(err, "boosting stage %d", stage)
		}
		leaves, err := reg.Apply(X)
		if err != nil {
			return err
		}

		num := map[int]float64{}
		den := map[int]float64{}
		for i, leaf := range leaves {
			if inBag[i] == 0 {
				continue
			}
			a, b := loss.NewtonTerms(raw[i], targets[i])
			num[leaf] += a
			den[leaf] += b
		}
		for leaf, s := range num {
			reg.SetLeafValue(leaf, errors.SafeDivide(s, den[leaf]))
		}

		pred, err := reg.Predict(X)
		if err != nil {
			return err
		}
		stageLoss, bagged := 0.0, 0.0
		for i := 0; i < n; i++ {
			raw[i] += gb.p.LearningRate * pred.At(i, 0)
			if inBag[i] > 0 {
				stageLoss += loss.Loss(raw[i], targets[i])
				bagged++
			}
		}
		trainScore = append(trainScore, stageLoss/bagged)
		if err := errors.CheckMatrix("GradientBoostingClassifier.Fit", pred, n, 1, stage); err != nil {
			return err
		}

		if imp, err := reg.FeatureImportances(); err == nil {
			for j, v := range imp {
				importances[j] += v
			}
		}
		estimators = append(estimators, reg)

		if stage%50 == 0 {
			logger.Debug("boosting stage", log.IterationKey, stage, log.LossKey, trainScore[stage])
		}
	}

	total := 0.0
	for _, v := range importances {
		total += v
	}
	for j := range importances {
		importances[j] = errors.SafeDivide(importances[j], total)
	}

	gb.loss = loss
	gb.estimators = estimators
	gb.initScore = init
	gb.classes_ = classes
	gb.trainScore_ = trainScore
	gb.importances = importances
	gb.state.SetDimensions(nFeatures, n)
	gb.state.SetFitted()
	return nil
}

// DecisionFunction returns the raw ensemble score per row.
func (gb *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if err := gb.state.RequireFitted("GradientBoostingClassifier", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := gb.state.CheckFeatures("GradientBoostingClassifier.DecisionFunction", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	raw := make([]float64, r)
	for i := range raw {
		raw[i] = gb.initScore
	}
	for _, est := range gb.estimators {
		pred, err := est.Predict(X)
		if err != nil {
			return nil, err
		}
		for i := range raw {
			raw[i] += gb.p.LearningRate * pred.At(i, 0)
		}
	}
	return raw, nil
}

// PredictProba returns [P(classes[0]), P(classes[1])] per row.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	raw, err := gb.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(raw), 2, nil)
	for i, f := range raw {
		p := gb.loss.Probability(f)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict returns the more probable class per row.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmax(proba, gb.classes_), nil
}

// Classes returns the sorted labels seen during fitting.
func (gb *GradientBoostingClassifier) Classes() []int {
	return append([]int(nil), gb.classes_...)
}

// FeatureImportances averages the impurity importances of all stages.
func (gb *GradientBoostingClassifier) FeatureImportances() ([]float64, error) {
	if err := gb.state.RequireFitted("GradientBoostingClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), gb.importances...), nil
}

// TrainScore returns the in-bag loss after each stage.
func (gb *GradientBoostingClassifier) TrainScore() []float64 {
	return append([]float64(nil), gb.trainScore_...)
}

// GetParams returns the hyperparameters keyed by their scikit-learn names.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return model.EncodeParams(gb.p)
}

// SetParams updates hyperparameters and resets the fitted state.
func (gb *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	p := gb.p
	if err := model.DecodeParams("GradientBoostingClassifier.SetParams", params, &p); err != nil {
		return err
	}
	gb.p = p
	gb.state.Reset()
	return nil
}

// ExportWeights snapshots importances, the init score and the train loss curve.
func (gb *GradientBoostingClassifier) ExportWeights() (*model.ModelWeights, error) {
	fitted := gb.state.IsFitted()
	w := model.NewModelWeights("GradientBoostingClassifier", gb.GetParams(), fitted)
	if fitted {
		w.FeatureImportances = append([]float64(nil), gb.importances...)
		w.Intercept = gb.initScore
		w.Classes = gb.Classes()
		w.Metadata["n_estimators_fitted"] = len(gb.estimators)
		w.Metadata["train_score"] = gb.TrainScore()
	}
	return w, nil
}

func newRand(seed int64) *rand.Rand {
	if seed < 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
}

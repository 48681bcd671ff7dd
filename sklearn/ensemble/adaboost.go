// Package ensemble implements boosted tree ensembles: AdaBoost (SAMME) over
// decision stumps, which ranks features for selection, and gradient boosting
// over regression trees, which is one of the tunable classifier families.
package ensemble

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/sklearn/tree"
)

type adaParams struct {
	NEstimators  int     `mapstructure:"n_estimators"`
	LearningRate float64 `mapstructure:"learning_rate"`
	MaxDepth     int     `mapstructure:"max_depth"`
	RandomState  int64   `mapstructure:"random_state"`
}

// AdaBoostClassifier is multi-class AdaBoost with the SAMME update. The
// weak learner is a DecisionTreeClassifier of depth max_depth (a stump by
// default).
type AdaBoostClassifier struct {
	state *model.StateManager
	p     adaParams

	estimators        []*tree.DecisionTreeClassifier
	estimatorWeights_ []float64
	estimatorErrors_  []float64
	classes_          []int
	importances       []float64
}

// AdaOption configures an AdaBoostClassifier.
type AdaOption func(*adaParams)

// WithAdaNEstimators sets the maximum number of boosting rounds.
func WithAdaNEstimators(n int) AdaOption {
	return func(p *adaParams) { p.NEstimators = n }
}

// WithAdaLearningRate scales every estimator weight.
func WithAdaLearningRate(lr float64) AdaOption {
	return func(p *adaParams) { p.LearningRate = lr }
}

// WithAdaMaxDepth sets the weak learner depth.
func WithAdaMaxDepth(d int) AdaOption {
	return func(p *adaParams) { p.MaxDepth = d }
}

// WithAdaRandomState seeds the weak learners.
func WithAdaRandomState(seed int64) AdaOption {
	return func(p *adaParams) { p.RandomState = seed }
}

// NewAdaBoostClassifier returns 50 rounds of stumps at learning rate 1.
func NewAdaBoostClassifier(opts ...AdaOption) *AdaBoostClassifier {
	p := adaParams{NEstimators: 50, LearningRate: 1, MaxDepth: 1, RandomState: -1}
	for _, opt := range opts {
		opt(&p)
	}
	return &AdaBoostClassifier{state: model.NewStateManager(), p: p}
}

// Fit boosts stumps until n_estimators rounds or a perfect fit.
func (ab *AdaBoostClassifier) Fit(X, y mat.Matrix) error {
	if ab.p.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", ab.p.NEstimators)
	}
	if ab.p.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", ab.p.LearningRate)
	}
	if X == nil || y == nil {
		return errors.NewValueError("AdaBoostClassifier.Fit", "X and y are required")
	}
	n, nFeatures := X.Dims()
	if n == 0 || nFeatures == 0 {
		return errors.NewModelError("AdaBoostClassifier.Fit", "empty data", errors.ErrEmptyData)
	}

	classes := uniqueClasses(y)
	k := float64(len(classes))
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}

	var (
		estimators []*tree.DecisionTreeClassifier
		alphas     []float64
		errs       []float64
	)
	rng := newRand(ab.p.RandomState)

	for round := 0; round < ab.p.NEstimators; round++ {
		stump := tree.NewDecisionTreeClassifier(
			tree.WithMaxDepth(ab.p.MaxDepth),
			tree.WithRandomState(int64(rng.Uint64()>>1)),
		)
		if err := stump.FitWeighted(X, y, w); err != nil {
			return errors.Wrapf(err, "boosting round %d", round)
		}
		pred, err := stump.Predict(X)
		if err != nil {
			return err
		}

		miss := make([]bool, n)
		errW, totalW := 0.0, 0.0
		for i := 0; i < n; i++ {
			totalW += w[i]
			if pred.At(i, 0) != y.At(i, 0) {
				miss[i] = true
				errW += w[i]
			}
		}
		estErr := errors.SafeDivide(errW, totalW)

		if estErr <= 0 {
			estimators = append(estimators, stump)
			alphas = append(alphas, 1)
			errs = append(errs, 0)
			break
		}
		if estErr >= 1-1/k {
			if len(estimators) == 0 {
				return errors.NewModelError("AdaBoostClassifier.Fit",
					"weak learner is no better than random guessing", nil)
			}
			break
		}

		alpha := ab.p.LearningRate * (math.Log((1-estErr)/estErr) + math.Log(k-1))
		estimators = append(estimators, stump)
		alphas = append(alphas, alpha)
		errs = append(errs, estErr)

		if round == ab.p.NEstimators-1 {
			break
		}
		sum := 0.0
		for i := range w {
			if miss[i] {
				w[i] *= math.Exp(alpha)
			}
			sum += w[i]
		}
		for i := range w {
			w[i] /= sum
		}
	}

	importances := make([]float64, nFeatures)
	norm := 0.0
	for m, est := range estimators {
		imp, err := est.FeatureImportances()
		if err != nil {
			return err
		}
		for j, v := range imp {
			importances[j] += alphas[m] * v
		}
		norm += alphas[m]
	}
	for j := range importances {
		importances[j] = errors.SafeDivide(importances[j], norm)
	}

	ab.estimators = estimators
	ab.estimatorWeights_ = alphas
	ab.estimatorErrors_ = errs
	ab.classes_ = classes
	ab.importances = importances
	ab.state.SetDimensions(nFeatures, n)
	ab.state.SetFitted()
	return nil
}

// decision returns the per-class weighted vote normalized by the sum of
// estimator weights.
func (ab *AdaBoostClassifier) decision(X mat.Matrix) (*mat.Dense, error) {
	if err := ab.state.RequireFitted("AdaBoostClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := ab.state.CheckFeatures("AdaBoostClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	index := make(map[int]int, len(ab.classes_))
	for c, label := range ab.classes_ {
		index[label] = c
	}
	out := mat.NewDense(r, len(ab.classes_), nil)
	norm := 0.0
	for m, est := range ab.estimators {
		pred, err := est.Predict(X)
		if err != nil {
			return nil, err
		}
		for i := 0; i < r; i++ {
			c := index[int(pred.At(i, 0))]
			out.Set(i, c, out.At(i, c)+ab.estimatorWeights_[m])
		}
		norm += ab.estimatorWeights_[m]
	}
	if norm > 0 {
		out.Scale(1/norm, out)
	}
	return out, nil
}

// PredictProba applies a softmax to the SAMME decision scaled by 1/(K-1).
func (ab *AdaBoostClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	d, err := ab.decision(X)
	if err != nil {
		return nil, err
	}
	r, c := d.Dims()
	if c == 1 {
		ones := mat.NewDense(r, 1, nil)
		for i := 0; i < r; i++ {
			ones.Set(i, 0, 1)
		}
		return ones, nil
	}
	scale := 1 / float64(c-1)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		hi := math.Inf(-1)
		for k := 0; k < c; k++ {
			row[k] = d.At(i, k) * scale
			hi = math.Max(hi, row[k])
		}
		sum := 0.0
		for k := range row {
			row[k] = math.Exp(row[k] - hi)
			sum += row[k]
		}
		for k := range row {
			d.Set(i, k, row[k]/sum)
		}
	}
	return d, nil
}

// Predict returns the class with the largest weighted vote.
func (ab *AdaBoostClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	d, err := ab.decision(X)
	if err != nil {
		return nil, err
	}
	return argmax(d, ab.classes_), nil
}

// Classes returns the sorted labels seen during fitting.
func (ab *AdaBoostClassifier) Classes() []int {
	return append([]int(nil), ab.classes_...)
}

// FeatureImportances is the estimator-weight average of stump importances.
func (ab *AdaBoostClassifier) FeatureImportances() ([]float64, error) {
	if err := ab.state.RequireFitted("AdaBoostClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), ab.importances...), nil
}

// EstimatorWeights returns the SAMME weight of each fitted round.
func (ab *AdaBoostClassifier) EstimatorWeights() []float64 {
	return append([]float64(nil), ab.estimatorWeights_...)
}

// GetParams returns the hyperparameters keyed by their scikit-learn names.
func (ab *AdaBoostClassifier) GetParams() map[string]interface{} {
	return model.EncodeParams(ab.p)
}

// SetParams updates hyperparameters and resets the fitted state.
func (ab *AdaBoostClassifier) SetParams(params map[string]interface{}) error {
	p := ab.p
	if err := model.DecodeParams("AdaBoostClassifier.SetParams", params, &p); err != nil {
		return err
	}
	ab.p = p
	ab.state.Reset()
	return nil
}

// ExportWeights snapshots importances and the per-round weights and errors.
func (ab *AdaBoostClassifier) ExportWeights() (*model.ModelWeights, error) {
	fitted := ab.state.IsFitted()
	w := model.NewModelWeights("AdaBoostClassifier", ab.GetParams(), fitted)
	if fitted {
		w.FeatureImportances = append([]float64(nil), ab.importances...)
		w.Classes = ab.Classes()
		w.Metadata["estimator_weights"] = ab.EstimatorWeights()
		w.Metadata["estimator_errors"] = append([]float64(nil), ab.estimatorErrors_...)
	}
	return w, nil
}

func uniqueClasses(y mat.Matrix) []int {
	n, _ := y.Dims()
	seen := map[int]struct{}{}
	for i := 0; i < n; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

func argmax(scores mat.Matrix, classes []int) *mat.Dense {
	r, c := scores.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for k := 1; k < c; k++ {
			if scores.At(i, k) > scores.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(classes[best]))
	}
	return out
}

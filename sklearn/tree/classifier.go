// Package tree implements CART decision trees. The classifier serves as the
// weak learner for AdaBoost and the regressor as the base learner for
// gradient boosting.
package tree

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// treeParams is the SetParams/GetParams view of the growth settings.
type treeParams struct {
	Criterion       string `mapstructure:"criterion"`
	MaxDepth        int    `mapstructure:"max_depth"`
	MinSamplesSplit int    `mapstructure:"min_samples_split"`
	MinSamplesLeaf  int    `mapstructure:"min_samples_leaf"`
	MaxFeatures     string `mapstructure:"max_features"`
	RandomState     int64  `mapstructure:"random_state"`
}

// DecisionTreeClassifier is a CART classifier with gini or entropy
// impurity. max_depth <= 0 grows until leaves are pure or the sample
// limits stop it.
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	randomState     int64

	nodes               []node
	classes_            []int
	nClasses_           int
	featureImportances_ []float64
	depth_              int
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity measure: "gini" or "entropy".
func WithCriterion(c string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = c }
}

// WithMaxDepth limits the tree depth. 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = d }
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples each leaf must keep.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets the per-split feature sample: "sqrt", "log2",
// "none" or a count.
func WithMaxFeatures(s string) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = s }
}

// WithRandomState seeds feature sampling. Negative means nondeterministic.
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier returns a classifier with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "none",
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	return nil
}

// Fit grows the tree with uniform sample weights.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted grows the tree with per-sample weights. nil means uniform.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if err := dt.validate(); err != nil {
		return err
	}
	n, nFeatures, err := checkXY("DecisionTreeClassifier.Fit", X, y, sampleWeight)
	if err != nil {
		return err
	}

	classes, target := encodeClasses(y)
	dt.classes_ = classes
	dt.nClasses_ = len(classes)

	k, ok := resolveMaxFeatures(dt.maxFeatures, nFeatures)
	if !ok {
		return errors.NewValidationError("max_features", "must be sqrt, log2, none or a positive integer", dt.maxFeatures)
	}

	imp := gini
	if dt.criterion == "entropy" {
		imp = entropy
	}
	b := &builder{
		X:        X,
		target:   target,
		weights:  uniformIfNil(sampleWeight, n),
		nStats:   dt.nClasses_,
		classify: true,
		impurity: imp,
		limits: limits{
			maxDepth:        dt.maxDepth,
			minSamplesSplit: dt.minSamplesSplit,
			minSamplesLeaf:  dt.minSamplesLeaf,
			maxFeatures:     k,
		},
		rng: newRand(dt.randomState),
	}
	b.build(allIndices(n))

	dt.nodes = b.nodes
	dt.featureImportances_ = b.importances
	dt.depth_ = b.depth
	dt.state.SetDimensions(nFeatures, n)
	dt.state.SetFitted()
	return nil
}

// PredictProba returns the class distribution of the leaf each row lands in.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, dt.nClasses_, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, dt.nodes[apply(dt.nodes, X, i)].value)
	}
	return out, nil
}

// Predict returns the most probable class per row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxClasses(proba, dt.classes_), nil
}

// Score returns the mean accuracy on X, y. It returns 0 when prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	return accuracy(pred, y)
}

// Classes returns the sorted labels seen during fitting.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// FeatureImportances returns normalized impurity decreases per feature.
func (dt *DecisionTreeClassifier) FeatureImportances() ([]float64, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), dt.featureImportances_...), nil
}

// GetFeatureImportances is FeatureImportances without the error; nil before Fit.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	imp, _ := dt.FeatureImportances()
	return imp
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int {
	return dt.depth_
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return countLeaves(dt.nodes)
}

func (dt *DecisionTreeClassifier) params() treeParams {
	return treeParams{
		Criterion:       dt.criterion,
		MaxDepth:        dt.maxDepth,
		MinSamplesSplit: dt.minSamplesSplit,
		MinSamplesLeaf:  dt.minSamplesLeaf,
		MaxFeatures:     dt.maxFeatures,
		RandomState:     dt.randomState,
	}
}

// GetParams returns the hyperparameters keyed by their scikit-learn names.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return model.EncodeParams(dt.params())
}

// SetParams updates hyperparameters and resets the fitted state.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	p := dt.params()
	if err := model.DecodeParams("DecisionTreeClassifier.SetParams", params, &p); err != nil {
		return err
	}
	dt.criterion = p.Criterion
	dt.maxDepth = p.MaxDepth
	dt.minSamplesSplit = p.MinSamplesSplit
	dt.minSamplesLeaf = p.MinSamplesLeaf
	dt.maxFeatures = p.MaxFeatures
	dt.randomState = p.RandomState
	dt.state.Reset()
	return nil
}

// ExportWeights snapshots the fitted tree summary.
func (dt *DecisionTreeClassifier) ExportWeights() (*model.ModelWeights, error) {
	w := model.NewModelWeights("DecisionTreeClassifier", dt.GetParams(), dt.state.IsFitted())
	if dt.state.IsFitted() {
		w.FeatureImportances = dt.GetFeatureImportances()
		w.Classes = dt.Classes()
		w.Metadata["depth"] = dt.depth_
		w.Metadata["n_leaves"] = dt.GetNLeaves()
	}
	return w, nil
}

func checkXY(op string, X, y mat.Matrix, sampleWeight []float64) (int, int, error) {
	if X == nil || y == nil {
		return 0, 0, errors.NewValueError(op, "X and y are required")
	}
	n, nFeatures := X.Dims()
	if n == 0 || nFeatures == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yr != n {
		return 0, 0, errors.NewDimensionError(op, n, yr, 0)
	}
	if yc != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yc, 1)
	}
	if sampleWeight != nil && len(sampleWeight) != n {
		return 0, 0, errors.NewDimensionError(op, n, len(sampleWeight), 0)
	}
	return n, nFeatures, nil
}

// encodeClasses returns the sorted distinct labels and each row's class index.
func encodeClasses(y mat.Matrix) ([]int, []float64) {
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

	index := make(map[int]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}
	target := make([]float64, n)
	for i := 0; i < n; i++ {
		target[i] = float64(index[int(y.At(i, 0))])
	}
	return classes, target
}

func argmaxClasses(proba mat.Matrix, classes []int) *mat.Dense {
	r, c := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for k := 1; k < c; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(classes[best]))
	}
	return out
}

func accuracy(pred, y mat.Matrix) float64 {
	n, _ := y.Dims()
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

func uniformIfNil(w []float64, n int) []float64 {
	if w != nil {
		return w
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

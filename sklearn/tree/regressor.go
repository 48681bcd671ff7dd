package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// DecisionTreeRegressor is a CART regressor on squared error. Gradient
// boosting fits one per stage to the loss gradient and then overwrites the
// leaf values with a Newton step (see Apply and SetLeafValue).
type DecisionTreeRegressor struct {
	state *model.StateManager

	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	randomState     int64

	nodes               []node
	featureImportances_ []float64
	depth_              int
}

// RegressorOption configures a DecisionTreeRegressor.
type RegressorOption func(*DecisionTreeRegressor)

// WithRegressorMaxDepth limits the tree depth. 0 means unlimited.
func WithRegressorMaxDepth(d int) RegressorOption {
	return func(dt *DecisionTreeRegressor) { dt.maxDepth = d }
}

// WithRegressorMinSamplesSplit sets the minimum samples required to split.
func WithRegressorMinSamplesSplit(n int) RegressorOption {
	return func(dt *DecisionTreeRegressor) { dt.minSamplesSplit = n }
}

// WithRegressorMinSamplesLeaf sets the minimum samples per leaf.
func WithRegressorMinSamplesLeaf(n int) RegressorOption {
	return func(dt *DecisionTreeRegressor) { dt.minSamplesLeaf = n }
}

// WithRegressorMaxFeatures sets the per-split feature sample.
func WithRegressorMaxFeatures(s string) RegressorOption {
	return func(dt *DecisionTreeRegressor) { dt.maxFeatures = s }
}

// WithRegressorRandomState seeds feature sampling.
func WithRegressorRandomState(seed int64) RegressorOption {
	return func(dt *DecisionTreeRegressor) { dt.randomState = seed }
}

// NewDecisionTreeRegressor returns a regressor with scikit-learn defaults.
func NewDecisionTreeRegressor(opts ...RegressorOption) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
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

// Fit grows the tree with uniform weights.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted grows the tree restricted to rows with non-zero weight.
func (dt *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	n, nFeatures, err := checkXY("DecisionTreeRegressor.Fit", X, y, sampleWeight)
	if err != nil {
		return err
	}
	k, ok := resolveMaxFeatures(dt.maxFeatures, nFeatures)
	if !ok {
		return errors.NewValidationError("max_features", "must be sqrt, log2, none or a positive integer", dt.maxFeatures)
	}

	target := make([]float64, n)
	for i := range target {
		target[i] = y.At(i, 0)
	}
	weights := uniformIfNil(sampleWeight, n)
	samples := make([]int, 0, n)
	for i, w := range weights {
		if w > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "all sample weights are zero", errors.ErrEmptyData)
	}

	b := &builder{
		X:        X,
		target:   target,
		weights:  weights,
		nStats:   2,
		impurity: mse,
		limits: limits{
			maxDepth:        dt.maxDepth,
			minSamplesSplit: dt.minSamplesSplit,
			minSamplesLeaf:  dt.minSamplesLeaf,
			maxFeatures:     k,
		},
		rng: newRand(dt.randomState),
	}
	b.build(samples)

	dt.nodes = b.nodes
	dt.featureImportances_ = b.importances
	dt.depth_ = b.depth
	dt.state.SetDimensions(nFeatures, n)
	dt.state.SetFitted()
	return nil
}

// Predict returns the leaf value per row.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	leaves, err := dt.Apply(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(leaves), 1, nil)
	for i, l := range leaves {
		out.Set(i, 0, dt.nodes[l].value[0])
	}
	return out, nil
}

// Apply returns the leaf index each row lands in.
func (dt *DecisionTreeRegressor) Apply(X mat.Matrix) ([]int, error) {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "Apply"); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeRegressor.Apply", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := make([]int, r)
	for i := range out {
		out[i] = apply(dt.nodes, X, i)
	}
	return out, nil
}

// SetLeafValue overwrites the prediction of leaf. Non-leaf indices are ignored.
func (dt *DecisionTreeRegressor) SetLeafValue(leaf int, v float64) {
	if leaf < 0 || leaf >= len(dt.nodes) || !dt.nodes[leaf].isLeaf() {
		return
	}
	dt.nodes[leaf].value = []float64{v}
}

// FeatureImportances returns normalized squared-error decreases per feature.
func (dt *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), dt.featureImportances_...), nil
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	return dt.depth_
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	return countLeaves(dt.nodes)
}

// GetParams returns the hyperparameters keyed by their scikit-learn names.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	p := model.EncodeParams(treeParams{
		Criterion:       "squared_error",
		MaxDepth:        dt.maxDepth,
		MinSamplesSplit: dt.minSamplesSplit,
		MinSamplesLeaf:  dt.minSamplesLeaf,
		MaxFeatures:     dt.maxFeatures,
		RandomState:     dt.randomState,
	})
	return p
}

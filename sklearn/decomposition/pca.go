// Package decomposition provides PCA for dimensionality reduction inside
// the logistic regression pipeline.
package decomposition

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/pkg/errors"
)

type pcaParams struct {
	NComponents int  `mapstructure:"n_components"`
	Whiten      bool `mapstructure:"whiten"`
}

// PCA projects centered data onto its leading principal axes, computed by
// an SVD through gonum's stat.PC. Component signs are fixed so the largest
// absolute loading of each component is positive.
type PCA struct {
	state *model.StateManager
	p     pcaParams

	mean_                   []float64
	components_             *mat.Dense // n_components × n_features
	explainedVariance_      []float64
	explainedVarianceRatio_ []float64
}

// PCAOption configures PCA.
type PCAOption func(*pcaParams)

// WithNComponents sets the number of kept components. 0 keeps min(n, d).
func WithNComponents(n int) PCAOption {
	return func(p *pcaParams) { p.NComponents = n }
}

// WithWhiten scales projections to unit variance.
func WithWhiten(w bool) PCAOption {
	return func(p *pcaParams) { p.Whiten = w }
}

// NewPCA returns a PCA keeping every component, not whitened.
func NewPCA(opts ...PCAOption) *PCA {
	var p pcaParams
	for _, opt := range opts {
		opt(&p)
	}
	return &PCA{state: model.NewStateManager(), p: p}
}

// Fit computes the principal axes of X. y is ignored.
func (pca *PCA) Fit(X, _ mat.Matrix) error {
	if X == nil {
		return errors.NewValueError("PCA.Fit", "X is required")
	}
	n, d := X.Dims()
	if d == 0 {
		return errors.NewModelError("PCA.Fit", "empty data", errors.ErrEmptyData)
	}
	if n < 2 {
		return errors.NewValueError("PCA.Fit", "need at least two samples")
	}
	maxK := min(n, d)
	k := pca.p.NComponents
	if k == 0 {
		k = maxK
	}
	if k < 0 || k > maxK {
		return errors.NewValidationError("n_components", "must be between 0 and min(n_samples, n_features)", k)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return errors.NewModelError("PCA.Fit", "SVD did not converge", nil)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	components := mat.NewDense(k, d, nil)
	col := make([]float64, d)
	for c := 0; c < k; c++ {
		mat.Col(col, c, &vecs)
		if col[floats.MaxIdx(absAll(col))] < 0 {
			floats.Scale(-1, col)
		}
		components.SetRow(c, col)
	}

	mean := make([]float64, d)
	for j := 0; j < d; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, X), nil)
	}

	total := floats.Sum(vars)
	ratio := make([]float64, k)
	for c := range ratio {
		ratio[c] = errors.SafeDivide(vars[c], total)
	}

	pca.mean_ = mean
	pca.components_ = components
	pca.explainedVariance_ = append([]float64(nil), vars[:k]...)
	pca.explainedVarianceRatio_ = ratio
	pca.state.SetDimensions(d, n)
	pca.state.SetFitted()
	return nil
}

func absAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Abs(x)
	}
	return out
}

// Transform projects X onto the fitted components.
func (pca *PCA) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := pca.state.RequireFitted("PCA", "Transform"); err != nil {
		return nil, err
	}
	if err := pca.state.CheckFeatures("PCA.Transform", X); err != nil {
		return nil, err
	}
	r, d := X.Dims()
	centered := mat.NewDense(r, d, nil)
	centered.Apply(func(i, j int, v float64) float64 { return v - pca.mean_[j] }, X)

	k, _ := pca.components_.Dims()
	out := mat.NewDense(r, k, nil)
	out.Mul(centered, pca.components_.T())
	if pca.p.Whiten {
		out.Apply(func(_, c int, v float64) float64 {
			return errors.SafeDivide(v, math.Sqrt(pca.explainedVariance_[c]))
		}, out)
	}
	return out, nil
}

// FitTransform fits on X and returns its projection.
func (pca *PCA) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := pca.Fit(X, nil); err != nil {
		return nil, err
	}
	return pca.Transform(X)
}

// Components returns a copy of the n_components × n_features axis matrix.
func (pca *PCA) Components() *mat.Dense {
	if pca.components_ == nil {
		return nil
	}
	return mat.DenseCopyOf(pca.components_)
}

// ExplainedVariance returns the variance of each kept component.
func (pca *PCA) ExplainedVariance() []float64 {
	return append([]float64(nil), pca.explainedVariance_...)
}

// ExplainedVarianceRatio returns each kept component's share of the total variance.
func (pca *PCA) ExplainedVarianceRatio() []float64 {
	return append([]float64(nil), pca.explainedVarianceRatio_...)
}

// GetParams returns n_components and whiten.
func (pca *PCA) GetParams() map[string]interface{} {
	return model.EncodeParams(pca.p)
}

// SetParams updates n_components and whiten and resets the fitted state.
func (pca *PCA) SetParams(params map[string]interface{}) error {
	p := pca.p
	if err := model.DecodeParams("PCA.SetParams", params, &p); err != nil {
		return err
	}
	pca.p = p
	pca.state.Reset()
	return nil
}

// ExportWeights stores the components row-major in Coefficients.
func (pca *PCA) ExportWeights() (*model.ModelWeights, error) {
	fitted := pca.state.IsFitted()
	w := model.NewModelWeights("PCA", pca.GetParams(), fitted)
	if fitted {
		k, d := pca.components_.Dims()
		w.Coefficients = append([]float64(nil), pca.components_.RawMatrix().Data...)
		w.Metadata["shape"] = []int{k, d}
		w.Metadata["mean"] = append([]float64(nil), pca.mean_...)
		w.Metadata["explained_variance_ratio"] = pca.ExplainedVarianceRatio()
	}
	return w, nil
}

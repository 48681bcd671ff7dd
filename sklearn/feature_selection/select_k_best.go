package feature_selection

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/pkg/errors"
)

type kBestParams struct {
	// K is a positive integer or "all". Grids may pass ints; they decode
	// to their decimal string.
	K string `mapstructure:"k"`
}

// SelectKBest keeps the k highest scoring columns. Scores come from a
// ScoreFunc (FClassif by default).
type SelectKBest struct {
	state *model.StateManager

	k         string
	scoreFunc ScoreFunc

	scores_  []float64
	pvalues_ []float64
	support_ []bool
}

// SelectKBestOption configures SelectKBest.
type SelectKBestOption func(*SelectKBest)

// WithK sets k. Use "all" to keep every column.
func WithK(k string) SelectKBestOption {
	return func(s *SelectKBest) { s.k = k }
}

// WithScoreFunc replaces FClassif.
func WithScoreFunc(fn ScoreFunc) SelectKBestOption {
	return func(s *SelectKBest) { s.scoreFunc = fn }
}

// NewSelectKBest returns a selector keeping 10 columns by ANOVA F.
func NewSelectKBest(opts ...SelectKBestOption) *SelectKBest {
	s := &SelectKBest{state: model.NewStateManager(), k: "10", scoreFunc: FClassif}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// resolveK maps the k setting onto a column count for d features.
func (s *SelectKBest) resolveK(d int) (int, error) {
	if s.k == "all" {
		return d, nil
	}
	k, err := strconv.Atoi(s.k)
	if err != nil || k < 1 {
		return 0, errors.NewValidationError("k", "must be a positive integer or \"all\"", s.k)
	}
	if k > d {
		errors.Warn(errors.Newf("SelectKBest: k=%d is greater than n_features=%d, all features will be kept", k, d))
		return d, nil
	}
	return k, nil
}

// Fit scores the columns of X and fixes the selected subset.
func (s *SelectKBest) Fit(X, y mat.Matrix) error {
	if X == nil || y == nil {
		return errors.NewValueError("SelectKBest.Fit", "X and y are required")
	}
	n, d := X.Dims()
	k, err := s.resolveK(d)
	if err != nil {
		return err
	}
	scores, pvalues, err := s.scoreFunc(X, y)
	if err != nil {
		return errors.Wrap(err, "SelectKBest.Fit")
	}

	// NaN scores rank lowest; among ties the later column wins, as a
	// stable ascending sort keeping the last k does.
	order := make([]int, d)
	for j := range order {
		order[j] = j
	}
	clean := func(v float64) float64 {
		if math.IsNaN(v) {
			return math.Inf(-1)
		}
		return v
	}
	sort.SliceStable(order, func(a, b int) bool {
		return clean(scores[order[a]]) < clean(scores[order[b]])
	})
	support := make([]bool, d)
	for _, j := range order[d-k:] {
		support[j] = true
	}

	s.scores_ = scores
	s.pvalues_ = pvalues
	s.support_ = support
	s.state.SetDimensions(d, n)
	s.state.SetFitted()
	return nil
}

// Transform keeps the selected columns in their original order.
func (s *SelectKBest) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("SelectKBest", "Transform"); err != nil {
		return nil, err
	}
	if err := s.state.CheckFeatures("SelectKBest.Transform", X); err != nil {
		return nil, err
	}
	cols := s.selected()
	r, _ := X.Dims()
	out := mat.NewDense(r, len(cols), nil)
	for c, j := range cols {
		for i := 0; i < r; i++ {
			out.Set(i, c, X.At(i, j))
		}
	}
	return out, nil
}

// FitTransform fits on X, y and returns the reduced X.
func (s *SelectKBest) FitTransform(X, y mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X, y); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func (s *SelectKBest) selected() []int {
	var cols []int
	for j, keep := range s.support_ {
		if keep {
			cols = append(cols, j)
		}
	}
	return cols
}

// GetSupport returns the selection mask over the input columns.
func (s *SelectKBest) GetSupport() []bool {
	return append([]bool(nil), s.support_...)
}

// Scores returns the per-column scores of the last Fit.
func (s *SelectKBest) Scores() []float64 {
	return append([]float64(nil), s.scores_...)
}

// PValues returns the per-column p-values of the last Fit.
func (s *SelectKBest) PValues() []float64 {
	return append([]float64(nil), s.pvalues_...)
}

// GetParams returns {"k": k}.
func (s *SelectKBest) GetParams() map[string]interface{} {
	return model.EncodeParams(kBestParams{K: s.k})
}

// SetParams accepts k as an int or a string.
func (s *SelectKBest) SetParams(params map[string]interface{}) error {
	p := kBestParams{K: s.k}
	if err := model.DecodeParams("SelectKBest.SetParams", params, &p); err != nil {
		return err
	}
	s.k = p.K
	s.state.Reset()
	return nil
}

// ExportWeights records the scores and the selected column indices.
func (s *SelectKBest) ExportWeights() (*model.ModelWeights, error) {
	fitted := s.state.IsFitted()
	w := model.NewModelWeights("SelectKBest", s.GetParams(), fitted)
	if fitted {
		// JSON has no NaN or Inf.
		scores := make([]float64, len(s.scores_))
		for j, v := range s.scores_ {
			switch {
			case math.IsNaN(v):
				scores[j] = 0
			case math.IsInf(v, 1):
				scores[j] = math.MaxFloat64
			default:
				scores[j] = v
			}
		}
		w.FeatureImportances = scores
		sel := s.selected()
		names := make([]string, len(sel))
		for i, j := range sel {
			names[i] = fmt.Sprintf("x%d", j)
		}
		w.Features = names
		w.Metadata["selected"] = sel
	}
	return w, nil
}

// Package preprocessing はデータの前処理（スケーリング）を提供する
package preprocessing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/core/parallel"
	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// parallelColumnThreshold を超える列数のときだけ Fit を並列化する
const parallelColumnThreshold = 16

// RobustScaler は外れ値に強いスケーラー。
// 各特徴量から中央値を引き、四分位範囲（IQR）で割る。
// 財務データのように裾の重い分布で StandardScaler の代わりに使う。
type RobustScaler struct {
	state *model.StateManager

	// Center は各特徴量の中央値
	Center []float64

	// Scale は各特徴量の四分位範囲
	Scale []float64

	withCentering bool
	withScaling   bool
	quantileLo    float64
	quantileHi    float64
}

// RobustScalerOption は RobustScaler の関数オプション
type RobustScalerOption func(*RobustScaler)

// WithCentering は中央値を引くかどうかを設定する (デフォルト: true)
func WithCentering(on bool) RobustScalerOption {
	return func(s *RobustScaler) { s.withCentering = on }
}

// WithScaling は IQR で割るかどうかを設定する (デフォルト: true)
func WithScaling(on bool) RobustScalerOption {
	return func(s *RobustScaler) { s.withScaling = on }
}

// WithQuantileRange はスケールに使う分位点をパーセントで設定する (デフォルト: 25, 75)
func WithQuantileRange(lo, hi float64) RobustScalerOption {
	return func(s *RobustScaler) {
		s.quantileLo = lo
		s.quantileHi = hi
	}
}

// NewRobustScaler は新しい RobustScaler を作成する
//
// 使用例:
//
//	scaler := preprocessing.NewRobustScaler()
//	XScaled, err := scaler.FitTransform(X)
func NewRobustScaler(opts ...RobustScalerOption) *RobustScaler {
	s := &RobustScaler{
		state:         model.NewStateManager(),
		withCentering: true,
		withScaling:   true,
		quantileLo:    25,
		quantileHi:    75,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit は各特徴量の中央値と IQR を計算する。IQR が 0 の列はスケール 1 とする
func (s *RobustScaler) Fit(X mat.Matrix) error {
	if s.quantileLo < 0 || s.quantileHi > 100 || s.quantileLo >= s.quantileHi {
		return errors.NewValidationError("quantile_range", "must satisfy 0 <= lo < hi <= 100",
			[2]float64{s.quantileLo, s.quantileHi})
	}

	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("RobustScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Center = make([]float64, c)
	s.Scale = make([]float64, c)
	// 列ごとに独立なので列の範囲をワーカーに分割する
	parallel.ParallelizeWithThreshold(c, parallelColumnThreshold, 0, func(start, end int) {
		col := make([]float64, r)
		for j := start; j < end; j++ {
			mat.Col(col, j, X)
			sort.Float64s(col)

			if s.withCentering {
				s.Center[j] = Percentile(col, 50)
			}
			s.Scale[j] = 1
			if s.withScaling {
				iqr := Percentile(col, s.quantileHi) - Percentile(col, s.quantileLo)
				if iqr != 0 && !math.IsNaN(iqr) {
					s.Scale[j] = iqr
				}
			}
		}
	})

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// Transform は (x - 中央値) / IQR を計算する
func (s *RobustScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("RobustScaler", "Transform"); err != nil {
		return nil, err
	}
	if err := s.state.CheckFeatures("RobustScaler.Transform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Center[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform は学習と変換を同時に実行する
func (s *RobustScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform はスケールされたデータを元に戻す
func (s *RobustScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("RobustScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	if err := s.state.CheckFeatures("RobustScaler.InverseTransform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Center[j]
	}, X)
	return result, nil
}

// IsFitted は学習済みかどうかを返す
func (s *RobustScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// GetParams はスケーラーのパラメータを取得する
func (s *RobustScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_centering": s.withCentering,
		"with_scaling":   s.withScaling,
		"quantile_range": []float64{s.quantileLo, s.quantileHi},
	}
}

// ExportWeights は中央値とスケールをスナップショットにする
func (s *RobustScaler) ExportWeights() (*model.ModelWeights, error) {
	w := model.NewModelWeights("RobustScaler", s.GetParams(), s.state.IsFitted())
	if s.state.IsFitted() {
		w.Coefficients = append([]float64(nil), s.Scale...)
		w.Metadata["center"] = append([]float64(nil), s.Center...)
	}
	return w, nil
}

// Percentile はソート済みの値から q パーセント点を線形補間で求める。
// 位置 (n-1)*q/100 の前後の順序統計量を補間する（numpy の既定と同じ）。
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	switch n {
	case 0:
		return math.NaN()
	case 1:
		return sorted[0]
	}
	pos := q / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

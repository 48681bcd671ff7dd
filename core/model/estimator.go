package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ParamGetter はハイパーパラメータを公開するモデル
type ParamGetter interface {
	GetParams() map[string]interface{}
}

// ParamSetter はハイパーパラメータを変更できるモデル
type ParamSetter interface {
	SetParams(params map[string]interface{}) error
}

// Classifier is the capability every tunable classifier family provides.
// GridSearchCV builds fresh instances through a factory and drives them
// only through this interface.
type Classifier interface {
	Fitter
	Predictor
	ParamGetter
	ParamSetter

	// PredictProba returns an n×nClasses matrix, columns ordered as Classes().
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted class labels seen during fitting.
	Classes() []int
}

// FeatureImportancer is implemented by fitted models that can rank their
// input columns.
type FeatureImportancer interface {
	FeatureImportances() ([]float64, error)
}

// Transformer はラベルを使わないデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// SupervisedTransformer is a pipeline step. Unsupervised steps ignore y.
type SupervisedTransformer interface {
	Fit(X, y mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	ParamGetter
	ParamSetter
}

// WeightExporter はスナップショットを書き出せるモデル
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
}

package model

import (
	"encoding/json"
	"fmt"
)

// WeightsVersion は書き出すスナップショットの形式バージョン
const WeightsVersion = "1"

// ModelWeights はモデルのスナップショット（シリアライゼーション用）。
// 線形モデルは Coefficients、木ベースのモデルは FeatureImportances を持つ。
// Pipeline は各ステップを Steps に入れ子で持つ。
type ModelWeights struct {
	// ModelType はモデルの種類（GradientBoostingClassifier, Pipeline 等）
	ModelType string `json:"model_type"`

	// Version はスナップショット形式のバージョン
	Version string `json:"version"`

	// Coefficients は重み係数
	Coefficients []float64 `json:"coefficients,omitempty"`

	// Intercept は切片
	Intercept float64 `json:"intercept,omitempty"`

	// FeatureImportances は特徴量重要度（木ベースのモデル）
	FeatureImportances []float64 `json:"feature_importances,omitempty"`

	// Classes は学習時に見たクラスラベル
	Classes []int `json:"classes,omitempty"`

	// Features は特徴量の名前（オプション）
	Features []string `json:"features,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata は追加のメタデータ（学習時の統計等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Steps はパイプラインの各ステップ
	Steps []*ModelWeights `json:"steps,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// NewModelWeights は共通フィールドを埋めたスナップショットを作る
func NewModelWeights(modelType string, params map[string]interface{}, fitted bool) *ModelWeights {
	return &ModelWeights{
		ModelType:       modelType,
		Version:         WeightsVersion,
		Hyperparameters: params,
		Metadata:        map[string]interface{}{},
		IsFitted:        fitted,
	}
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	return json.Unmarshal(data, mw)
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return fmt.Errorf("model_type is required")
	}
	if mw.Version == "" {
		return fmt.Errorf("version is required")
	}

	learned := len(mw.Coefficients) > 0 || len(mw.FeatureImportances) > 0 || len(mw.Steps) > 0
	if !mw.IsFitted && learned {
		return fmt.Errorf("unfitted model should not have learned weights")
	}
	if mw.IsFitted && !learned {
		return fmt.Errorf("fitted model must have coefficients, feature importances or steps")
	}

	for i, s := range mw.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:          mw.ModelType,
		Version:            mw.Version,
		Intercept:          mw.Intercept,
		IsFitted:           mw.IsFitted,
		Coefficients:       append([]float64(nil), mw.Coefficients...),
		FeatureImportances: append([]float64(nil), mw.FeatureImportances...),
		Classes:            append([]int(nil), mw.Classes...),
		Features:           append([]string(nil), mw.Features...),
		Hyperparameters:    make(map[string]interface{}, len(mw.Hyperparameters)),
		Metadata:           make(map[string]interface{}, len(mw.Metadata)),
	}
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	for _, s := range mw.Steps {
		clone.Steps = append(clone.Steps, s.Clone())
	}
	return clone
}

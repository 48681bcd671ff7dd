package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// checkPair は2つのベクトルが空でなく同じ長さであることを確認する
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinaryLabels(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - 正解率）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// AUC は二値分類の ROC 曲線下面積を計算する。
// 陽性スコアが陰性スコアを上回る組の割合で、同点は 0.5 として数える。
// 片方のクラスしかない場合は定義できないため 0.5 を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("AUC", yTrue); err != nil {
		return 0, err
	}

	type pair struct {
		score float64
		label float64
	}
	pairs := make([]pair, n)
	nPos := 0
	for i := 0; i < n; i++ {
		pairs[i] = pair{yScore.AtVec(i), yTrue.AtVec(i)}
		if pairs[i].label == 1 {
			nPos++
		}
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	// 平均順位を使う Mann-Whitney U
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })
	rankSumPos := 0.0
	for i := 0; i < n; {
		j := i
		for j < n && pairs[j].score == pairs[i].score {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if pairs[k].label == 1 {
				rankSumPos += avgRank
			}
		}
		i = j
	}
	u := rankSumPos - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg), nil
}

// AUCMatrix は行列の先頭列に対して AUC を計算する
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	t, err := firstColumn("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	s, err := firstColumn("AUCMatrix", yScore)
	if err != nil {
		return 0, err
	}
	return AUC(t, s)
}

func firstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil matrix")
	}
	if d, ok := m.(*mat.Dense); ok && d.IsEmpty() {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

// ColumnVector はn×1行列を VecDense に変換する
func ColumnVector(m mat.Matrix) (*mat.VecDense, error) {
	return firstColumn("ColumnVector", m)
}

// BinaryLogLoss は二値分類の対数損失を計算する。確率は [eps, 1-eps] にクリップする
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	const eps = 1e-15
	sum := 0.0
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yProb.AtVec(i), eps, 1-eps)
		if yTrue.AtVec(i) == 1 {
			sum -= errors.StabilizeLog(p)
		} else {
			sum -= errors.StabilizeLog(1 - p)
		}
	}
	return sum / float64(n), nil
}

// counts は1つのラベルについての混同行列の要素
type counts struct {
	tp, fp, fn, support int
}

func confusion(yTrue, yPred *mat.VecDense, n int) (map[float64]*counts, []float64) {
	byLabel := map[float64]*counts{}
	get := func(l float64) *counts {
		c, ok := byLabel[l]
		if !ok {
			c = &counts{}
			byLabel[l] = c
		}
		return c
	}
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i), yPred.AtVec(i)
		get(t).support++
		if t == p {
			get(t).tp++
		} else {
			get(p).fp++
			get(t).fn++
		}
	}
	labels := make([]float64, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Float64s(labels)
	return byLabel, labels
}

func ratio(metric, condition string, num, den int) float64 {
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric, condition, 0))
		return 0
	}
	return float64(num) / float64(den)
}

// Precision は陽性ラベル pos に対する適合率を計算する。
// 陽性の予測が一つもない場合は UndefinedMetricWarning を出して 0 を返す。
func Precision(yTrue, yPred *mat.VecDense, pos float64) (float64, error) {
	n, err := checkPair("Precision", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	byLabel, _ := confusion(yTrue, yPred, n)
	c, ok := byLabel[pos]
	if !ok {
		c = &counts{}
	}
	return ratio("precision", "no predicted samples", c.tp, c.tp+c.fp), nil
}

// Recall は陽性ラベル pos に対する再現率を計算する
func Recall(yTrue, yPred *mat.VecDense, pos float64) (float64, error) {
	n, err := checkPair("Recall", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	byLabel, _ := confusion(yTrue, yPred, n)
	c, ok := byLabel[pos]
	if !ok {
		c = &counts{}
	}
	return ratio("recall", "no true samples", c.tp, c.tp+c.fn), nil
}

func f1(c *counts) float64 {
	den := 2*c.tp + c.fp + c.fn
	if den == 0 {
		return 0
	}
	return float64(2*c.tp) / float64(den)
}

// F1 は陽性ラベル pos に対する F1 スコアを計算する
func F1(yTrue, yPred *mat.VecDense, pos float64) (float64, error) {
	n, err := checkPair("F1", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	byLabel, _ := confusion(yTrue, yPred, n)
	c, ok := byLabel[pos]
	if !ok || 2*c.tp+c.fp+c.fn == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("f1", "no true nor predicted samples", 0))
		return 0, nil
	}
	return f1(c), nil
}

// F1Weighted はラベルごとの F1 を真のサポート数で重み付けした平均を返す。
// 予測にだけ現れるラベルは重み 0 になる。
func F1Weighted(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("F1Weighted", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	byLabel, labels := confusion(yTrue, yPred, n)
	sum := 0.0
	for _, l := range labels {
		c := byLabel[l]
		if c.support == 0 {
			continue
		}
		if c.tp+c.fp == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("f1_weighted", "a label has no predicted samples", 0))
		}
		sum += f1(c) * float64(c.support)
	}
	return sum / float64(n), nil
}

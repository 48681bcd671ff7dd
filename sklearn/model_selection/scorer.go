package model_selection

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/metrics"
	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// Scorer evaluates a fitted classifier on held-out data. Larger is better.
type Scorer interface {
	Name() string
	Score(est model.Classifier, X, y mat.Matrix) (float64, error)
}

type predictScorer struct {
	name string
	fn   func(yTrue, yPred *mat.VecDense) (float64, error)
}

func (s predictScorer) Name() string { return s.name }

func (s predictScorer) Score(est model.Classifier, X, y mat.Matrix) (float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVector(pred)
	if err != nil {
		return 0, err
	}
	return s.fn(yTrue, yPred)
}

// probaScorer scores the probability of class 1 against labels mapped to
// 0/1 (anything other than 1 counts as negative).
type probaScorer struct {
	name string
	fn   func(yTrue, yScore *mat.VecDense) (float64, error)
}

func (s probaScorer) Name() string { return s.name }

func (s probaScorer) Score(est model.Classifier, X, y mat.Matrix) (float64, error) {
	proba, err := est.PredictProba(X)
	if err != nil {
		return 0, err
	}
	pos := -1
	for i, c := range est.Classes() {
		if c == 1 {
			pos = i
		}
	}
	if pos < 0 {
		return 0, errors.NewValueError(s.name, "classifier was not fitted on the positive class 1")
	}
	n, _ := y.Dims()
	yTrue := mat.NewVecDense(n, nil)
	yScore := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		if y.At(i, 0) == 1 {
			yTrue.SetVec(i, 1)
		}
		yScore.SetVec(i, proba.At(i, pos))
	}
	return s.fn(yTrue, yScore)
}

func negLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	l, err := metrics.BinaryLogLoss(yTrue, yProb)
	return -l, err
}

var scorers = map[string]Scorer{
	"accuracy":     predictScorer{"accuracy", metrics.Accuracy},
	"precision":    predictScorer{"precision", positive(metrics.Precision)},
	"recall":       predictScorer{"recall", positive(metrics.Recall)},
	"f1":           predictScorer{"f1", positive(metrics.F1)},
	"f1_weighted":  predictScorer{"f1_weighted", metrics.F1Weighted},
	"roc_auc":      probaScorer{"roc_auc", metrics.AUC},
	"neg_log_loss": probaScorer{"neg_log_loss", negLogLoss},
}

func positive(fn func(yTrue, yPred *mat.VecDense, pos float64) (float64, error)) func(yTrue, yPred *mat.VecDense) (float64, error) {
	return func(yTrue, yPred *mat.VecDense) (float64, error) {
		return fn(yTrue, yPred, 1)
	}
}

// GetScorer looks a scorer up by its scikit-learn name.
func GetScorer(name string) (Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return nil, errors.NewValidationError("scoring", "unknown scorer; valid: "+strings.Join(ScorerNames(), ", "), name)
	}
	return s, nil
}

// ScorerNames lists the registered scorers in sorted order
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

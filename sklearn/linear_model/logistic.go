// Package linear_model provides LogisticRegression, the linear classifier
// family used on its own and as the last step of the ANOVA/PCA pipeline.
package linear_model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/pkg/errors"
)

type lrParams struct {
	Penalty      string  `mapstructure:"penalty"`
	C            float64 `mapstructure:"C"`
	FitIntercept bool    `mapstructure:"fit_intercept"`
	ClassWeight  string  `mapstructure:"class_weight"`
	MaxIter      int     `mapstructure:"max_iter"`
	Tol          float64 `mapstructure:"tol"`
	RandomState  int64   `mapstructure:"random_state"`
}

// LogisticRegression is a scikit-learn style logistic regression trained by
// gradient descent with a decaying step. Binary problems fit one weight
// vector; more classes are fitted one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // "l2", "l1" or "none"
	C            float64 // Inverse regularization strength
	fitIntercept bool
	classWeight  string // "balanced" or "none"
	maxIter      int
	tol          float64 // Max absolute gradient at which descent stops
	randomState  int64

	// Model parameters
	coef_      [][]float64 // 1 x n_features for binary, n_classes x n_features otherwise
	intercept_ []float64
	classes_   []int
	nClasses_  int
	nFeatures_ int
	nIter_     []int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		classWeight:  "none",
		maxIter:      100,
		tol:          1e-4,
		randomState:  -1,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.penalty = penalty }
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRClassWeight sets "balanced" (weights inversely proportional to class
// frequency) or "none".
func WithLRClassWeight(cw string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.classWeight = cw }
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRRandomState seeds the initial weights
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.randomState = seed }
}

func (lr *LogisticRegression) validate() error {
	switch lr.penalty {
	case "l2", "l1", "none":
	default:
		return errors.NewValidationError("penalty", "must be l2, l1 or none", lr.penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	switch lr.classWeight {
	case "balanced", "none", "":
	default:
		return errors.NewValidationError("class_weight", "must be balanced or none", lr.classWeight)
	}
	if lr.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", lr.maxIter)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	if X == nil || y == nil {
		return errors.NewValueError("LogisticRegression.Fit", "X and y are required")
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}

	labels := make([]int, nSamples)
	for i := range labels {
		labels[i] = int(y.At(i, 0))
	}
	lr.extractClasses(labels)
	if lr.nClasses_ < 2 {
		return errors.NewModelError("LogisticRegression.Fit", "need samples of at least two classes", errors.ErrSingleClass)
	}
	lr.nFeatures_ = nFeatures

	sw := lr.sampleWeights(labels)
	lr.initializeWeights(nFeatures)

	// Binary problems fit the positive class only.
	targets := lr.classes_[1:]
	if lr.nClasses_ > 2 {
		targets = lr.classes_
	}
	notConverged := 0
	for k, class := range targets {
		yBinary := make([]float64, nSamples)
		for i, l := range labels {
			if l == class {
				yBinary[i] = 1
			}
		}
		if !lr.descend(X, yBinary, sw, k) {
			notConverged++
		}
	}
	if notConverged > 0 {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
			"gradient did not fall below tol; increase max_iter or scale the data"))
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// extractClasses identifies unique class labels in ascending order.
func (lr *LogisticRegression) extractClasses(labels []int) {
	seen := make(map[int]bool)
	lr.classes_ = lr.classes_[:0]
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			lr.classes_ = append(lr.classes_, l)
		}
	}
	for i := 0; i < len(lr.classes_)-1; i++ {
		for j := i + 1; j < len(lr.classes_); j++ {
			if lr.classes_[i] > lr.classes_[j] {
				lr.classes_[i], lr.classes_[j] = lr.classes_[j], lr.classes_[i]
			}
		}
	}
	lr.nClasses_ = len(lr.classes_)
}

// sampleWeights returns n/(K*count(class)) per row for class_weight
// "balanced" and 1 otherwise.
func (lr *LogisticRegression) sampleWeights(labels []int) []float64 {
	sw := make([]float64, len(labels))
	if lr.classWeight != "balanced" {
		for i := range sw {
			sw[i] = 1
		}
		return sw
	}
	counts := make(map[int]int, lr.nClasses_)
	for _, l := range labels {
		counts[l]++
	}
	n := float64(len(labels))
	for i, l := range labels {
		sw[i] = n / (float64(lr.nClasses_) * float64(counts[l]))
	}
	return sw
}

// initializeWeights draws small random starting weights.
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	rows := 1
	if lr.nClasses_ > 2 {
		rows = lr.nClasses_
	}
	var rng *rand.Rand
	if lr.randomState >= 0 {
		rng = rand.New(rand.NewPCG(uint64(lr.randomState), 0))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	lr.coef_ = make([][]float64, rows)
	for k := range lr.coef_ {
		lr.coef_[k] = make([]float64, nFeatures)
		for j := range lr.coef_[k] {
			lr.coef_[k][j] = rng.NormFloat64() * 0.01
		}
	}
	lr.intercept_ = make([]float64, rows)
	lr.nIter_ = make([]int, rows)
}

// descend runs gradient descent on the weighted log loss for row k of
// coef_. It reports whether the max absolute gradient fell below tol.
func (lr *LogisticRegression) descend(X mat.Matrix, yBinary, sw []float64, k int) bool {
	nSamples, nFeatures := X.Dims()
	weights := mat.NewVecDense(nFeatures, lr.coef_[k])
	intercept := &lr.intercept_[k]
	totalWeight := floats.Sum(sw)
	lambda := 1.0 / lr.C

	z := mat.NewVecDense(nSamples, nil)
	residual := mat.NewVecDense(nSamples, nil)
	grad := mat.NewVecDense(nFeatures, nil)

	const baseLearningRate = 1.0
	for iter := 0; iter < lr.maxIter; iter++ {
		z.MulVec(X, weights)
		gradIntercept := 0.0
		for i := 0; i < nSamples; i++ {
			r := sw[i] * (sigmoid(z.AtVec(i)+*intercept) - yBinary[i]) / totalWeight
			residual.SetVec(i, r)
			gradIntercept += r
		}
		grad.MulVec(X.T(), residual)

		switch lr.penalty {
		case "l2":
			grad.AddScaledVec(grad, lambda, weights)
		case "l1":
			for j := 0; j < nFeatures; j++ {
				w := weights.AtVec(j)
				if w != 0 {
					grad.SetVec(j, grad.AtVec(j)+lambda*math.Copysign(1, w))
				}
			}
		}

		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		weights.AddScaledVec(weights, -learningRate, grad)
		if lr.fitIntercept {
			*intercept -= learningRate * gradIntercept
		}
		lr.nIter_[k] = iter + 1

		maxGrad := math.Abs(gradIntercept)
		for j := 0; j < nFeatures; j++ {
			maxGrad = math.Max(maxGrad, math.Abs(grad.AtVec(j)))
		}
		if maxGrad < lr.tol {
			return true
		}
	}
	return false
}

// DecisionFunction returns the linear scores, one column per fitted weight row.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := lr.state.CheckFeatures("LogisticRegression.DecisionFunction", X); err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	rows := len(lr.coef_)
	coef := mat.NewDense(rows, lr.nFeatures_, nil)
	for k := range lr.coef_ {
		coef.SetRow(k, lr.coef_[k])
	}
	scores := mat.NewDense(nSamples, rows, nil)
	scores.Mul(X, coef.T())
	for i := 0; i < nSamples; i++ {
		for k := 0; k < rows; k++ {
			scores.Set(i, k, scores.At(i, k)+lr.intercept_[k])
		}
	}
	return scores, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for c := 1; c < lr.nClasses_; c++ {
			if probas.At(i, c) > probas.At(i, best) {
				best = c
			}
		}
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := scores.Dims()
	probas := mat.NewDense(nSamples, lr.nClasses_, nil)

	if lr.nClasses_ == 2 {
		for i := 0; i < nSamples; i++ {
			prob1 := sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1.0-prob1)
			probas.Set(i, 1, prob1)
		}
		return probas, nil
	}

	// Multiclass using softmax
	row := make([]float64, lr.nClasses_)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, scores)
		maxScore := floats.Max(row)
		for c := range row {
			row[c] = math.Exp(row[c] - maxScore)
		}
		floats.Scale(1/floats.Sum(row), row)
		probas.SetRow(i, row)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0.0
	}
	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// Classes returns the sorted labels seen during fitting.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// NIter returns the iterations run per fitted weight row.
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

func (lr *LogisticRegression) params() lrParams {
	return lrParams{
		Penalty:      lr.penalty,
		C:            lr.C,
		FitIntercept: lr.fitIntercept,
		ClassWeight:  lr.classWeight,
		MaxIter:      lr.maxIter,
		Tol:          lr.tol,
		RandomState:  lr.randomState,
	}
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return model.EncodeParams(lr.params())
}

// SetParams sets the model hyperparameters and resets the fitted state.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	p := lr.params()
	if err := model.DecodeParams("LogisticRegression.SetParams", params, &p); err != nil {
		return err
	}
	lr.penalty = p.Penalty
	lr.C = p.C
	lr.fitIntercept = p.FitIntercept
	lr.classWeight = p.ClassWeight
	lr.maxIter = p.MaxIter
	lr.tol = p.Tol
	lr.randomState = p.RandomState
	lr.state.Reset()
	return nil
}

// ExportWeights snapshots the coefficients. For binary problems
// Coefficients holds the single weight row; multiclass rows go to Metadata.
func (lr *LogisticRegression) ExportWeights() (*model.ModelWeights, error) {
	fitted := lr.state.IsFitted()
	w := model.NewModelWeights("LogisticRegression", lr.GetParams(), fitted)
	if !fitted {
		return w, nil
	}
	w.Coefficients = append([]float64(nil), lr.coef_[0]...)
	w.Intercept = lr.intercept_[0]
	w.Classes = lr.Classes()
	w.Metadata["n_iter"] = lr.NIter()
	if len(lr.coef_) > 1 {
		w.Metadata["coef"] = lr.coef_
		w.Metadata["intercepts"] = append([]float64(nil), lr.intercept_...)
	}
	return w, nil
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

package ensemble

import (
	"math"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// lossFunction is a binary boosting loss on the raw (log-odds scale) score.
// Targets are 0/1.
type lossFunction interface {
	// InitScore is the constant raw score before the first stage.
	InitScore(targets, weights []float64) float64

	// NegativeGradient is the pseudo-residual the next tree is fitted to.
	NegativeGradient(raw, target float64) float64

	// NewtonTerms returns one sample's contribution to the leaf value
	// numerator and denominator. The leaf value is sum(num)/sum(den).
	NewtonTerms(raw, target float64) (num, den float64)

	// Probability maps a raw score to P(y=1).
	Probability(raw float64) float64

	// Loss is the per-sample loss used for train_score.
	Loss(raw, target float64) float64

	Name() string
}

// newLoss resolves the loss name. "log_loss" is an alias of "deviance".
func newLoss(name string) (lossFunction, error) {
	switch name {
	case "deviance", "log_loss":
		return binomialDeviance{}, nil
	case "exponential":
		return exponentialLoss{}, nil
	}
	return nil, errors.NewValidationError("loss", "must be deviance, log_loss or exponential", name)
}

// positiveRate returns the weighted share of positive targets, clipped away
// from 0 and 1 so the log-odds stay finite.
func positiveRate(targets, weights []float64) float64 {
	pos, total := 0.0, 0.0
	for i, t := range targets {
		pos += weights[i] * t
		total += weights[i]
	}
	p := errors.SafeDivide(pos, total)
	const eps = 1e-15
	return errors.ClipValue(p, eps, 1-eps)
}

func expit(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

type binomialDeviance struct{}

func (binomialDeviance) Name() string { return "deviance" }

func (binomialDeviance) InitScore(targets, weights []float64) float64 {
	p := positiveRate(targets, weights)
	return math.Log(p / (1 - p))
}

func (binomialDeviance) NegativeGradient(raw, target float64) float64 {
	return target - expit(raw)
}

func (binomialDeviance) NewtonTerms(raw, target float64) (float64, float64) {
	p := expit(raw)
	return target - p, p * (1 - p)
}

func (binomialDeviance) Probability(raw float64) float64 {
	return expit(raw)
}

func (binomialDeviance) Loss(raw, target float64) float64 {
	// log(1+exp(raw)) - y*raw, stable for large |raw|
	return math.Max(raw, 0) + math.Log1p(math.Exp(-math.Abs(raw))) - target*raw
}

// exponentialLoss is AdaBoost's loss expressed for gradient boosting.
type exponentialLoss struct{}

func (exponentialLoss) Name() string { return "exponential" }

func (exponentialLoss) InitScore(targets, weights []float64) float64 {
	p := positiveRate(targets, weights)
	return 0.5 * math.Log(p/(1-p))
}

func (exponentialLoss) NegativeGradient(raw, target float64) float64 {
	s := 2*target - 1
	return s * errors.StabilizeExp(-s*raw)
}

func (exponentialLoss) NewtonTerms(raw, target float64) (float64, float64) {
	s := 2*target - 1
	e := errors.StabilizeExp(-s * raw)
	return s * e, e
}

func (exponentialLoss) Probability(raw float64) float64 {
	return expit(2 * raw)
}

func (exponentialLoss) Loss(raw, target float64) float64 {
	return errors.StabilizeExp(-(2*target - 1) * raw)
}

// Package pipeline chains transformers and a final classifier, with
// scikit-learn's step__param naming for hyperparameters.
package pipeline

import (
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/pkg/log"
)

// Step is a named pipeline stage.
type Step struct {
	Name      string      // Referenced as the prefix of step__param keys
	Estimator interface{} // Transformer for intermediate steps, Fitter for the last
}

// Pipeline fits each intermediate step on the output of the previous one and
// then fits the final estimator.
type Pipeline struct {
	state  *model.StateManager
	logger log.Logger
	steps  []Step
}

// New creates a Pipeline. Step names must be unique and must not contain "__".
func New(steps ...Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, errors.NewValueError("pipeline.New", "at least one step is required")
	}
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.Name == "" || strings.Contains(s.Name, "__") {
			return nil, errors.NewValidationError("step name", "must be non-empty and must not contain '__'", s.Name)
		}
		if seen[s.Name] {
			return nil, errors.NewValidationError("step name", "must be unique", s.Name)
		}
		seen[s.Name] = true
	}
	return &Pipeline{
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("Pipeline"),
		steps:  steps,
	}, nil
}

// fitStep fits one intermediate step and returns its output.
func fitStep(step Step, X, y mat.Matrix) (mat.Matrix, error) {
	switch t := step.Estimator.(type) {
	case model.SupervisedTransformer:
		if err := t.Fit(X, y); err != nil {
			return nil, err
		}
		return t.Transform(X)
	case model.Transformer:
		return t.FitTransform(X)
	}
	return nil, errors.NewValidationError("pipeline step", "intermediate steps must be transformers", step.Name)
}

func transformStep(step Step, X mat.Matrix) (mat.Matrix, error) {
	t, ok := step.Estimator.(interface {
		Transform(mat.Matrix) (mat.Matrix, error)
	})
	if !ok {
		return nil, errors.NewValidationError("pipeline step", "intermediate steps must be transformers", step.Name)
	}
	return t.Transform(X)
}

// Fit trains the pipeline.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	Xt := X
	for _, step := range p.steps[:len(p.steps)-1] {
		start := time.Now()
		out, err := fitStep(step, Xt, y)
		if err != nil {
			return errors.Wrapf(err, "failed to fit step '%s'", step.Name)
		}
		_, cols := out.Dims()
		p.logger.Debug("step fitted",
			log.OperationKey, step.Name,
			log.FeaturesKey, cols,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
		Xt = out
	}

	final := p.steps[len(p.steps)-1]
	fitter, ok := final.Estimator.(model.Fitter)
	if !ok {
		return errors.NewValidationError("pipeline final step", "final step must have Fit(X, y)", final.Name)
	}
	if err := fitter.Fit(Xt, y); err != nil {
		return errors.Wrapf(err, "failed to fit final step '%s'", final.Name)
	}

	r, c := X.Dims()
	p.state.SetDimensions(c, r)
	p.state.SetFitted()
	return nil
}

// transform applies all transforms except the final estimator.
func (p *Pipeline) transform(op string, X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("Pipeline", op); err != nil {
		return nil, err
	}
	Xt := X
	for _, step := range p.steps[:len(p.steps)-1] {
		out, err := transformStep(step, Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to transform at step '%s'", step.Name)
		}
		Xt = out
	}
	return Xt, nil
}

// Predict applies transforms to the data, and predicts with the final estimator.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.transform("Predict", X)
	if err != nil {
		return nil, err
	}
	predictor, ok := p.final().(model.Predictor)
	if !ok {
		return nil, errors.NewValidationError("pipeline final step", "final step must have Predict", p.steps[len(p.steps)-1].Name)
	}
	return predictor.Predict(Xt)
}

// PredictProba applies transforms to the data, and calls PredictProba on the final estimator.
func (p *Pipeline) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.transform("PredictProba", X)
	if err != nil {
		return nil, err
	}
	predictor, ok := p.final().(interface {
		PredictProba(mat.Matrix) (mat.Matrix, error)
	})
	if !ok {
		return nil, errors.Wrap(errors.ErrNotImplemented, "final step has no PredictProba")
	}
	return predictor.PredictProba(Xt)
}

// Classes returns the final estimator's classes, or nil when it has none.
func (p *Pipeline) Classes() []int {
	if c, ok := p.final().(interface{ Classes() []int }); ok {
		return c.Classes()
	}
	return nil
}

func (p *Pipeline) final() interface{} {
	return p.steps[len(p.steps)-1].Estimator
}

// Steps returns a copy of the steps.
func (p *Pipeline) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// NamedStep returns the estimator registered under name.
func (p *Pipeline) NamedStep(name string) (interface{}, bool) {
	for _, s := range p.steps {
		if s.Name == name {
			return s.Estimator, true
		}
	}
	return nil, false
}

// GetParams returns every step parameter as step__param.
func (p *Pipeline) GetParams() map[string]interface{} {
	params := make(map[string]interface{})
	for _, step := range p.steps {
		getter, ok := step.Estimator.(model.ParamGetter)
		if !ok {
			continue
		}
		for key, value := range getter.GetParams() {
			params[step.Name+"__"+key] = value
		}
	}
	return params
}

// SetParams routes step__param keys to their steps and resets the fitted state.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	routed := make(map[string]map[string]interface{})
	for key, value := range params {
		name, param, ok := strings.Cut(key, "__")
		if !ok {
			return errors.NewValueError("Pipeline.SetParams", "parameter '"+key+"' is not of the form step__param")
		}
		if _, found := p.NamedStep(name); !found {
			return errors.NewValueError("Pipeline.SetParams", "unknown step '"+name+"'")
		}
		if routed[name] == nil {
			routed[name] = map[string]interface{}{}
		}
		routed[name][param] = value
	}
	for _, step := range p.steps {
		sub, ok := routed[step.Name]
		if !ok {
			continue
		}
		setter, ok := step.Estimator.(model.ParamSetter)
		if !ok {
			return errors.NewValueError("Pipeline.SetParams", "step '"+step.Name+"' has no parameters")
		}
		if err := setter.SetParams(sub); err != nil {
			return errors.Wrapf(err, "step '%s'", step.Name)
		}
	}
	p.state.Reset()
	return nil
}

// ExportWeights nests the snapshot of every exportable step once fitted.
// Features lists the step names.
func (p *Pipeline) ExportWeights() (*model.ModelWeights, error) {
	fitted := p.state.IsFitted()
	w := model.NewModelWeights("Pipeline", p.GetParams(), fitted)
	for _, step := range p.steps {
		w.Features = append(w.Features, step.Name)
		exp, ok := step.Estimator.(model.WeightExporter)
		if !ok || !fitted {
			continue
		}
		sw, err := exp.ExportWeights()
		if err != nil {
			return nil, errors.Wrapf(err, "step '%s'", step.Name)
		}
		w.Steps = append(w.Steps, sw)
	}
	w.Classes = p.Classes()
	return w, nil
}

package pipeline

import (
	"github.com/YuminosukeSato/poiml/pkg/config"
	"github.com/YuminosukeSato/poiml/sklearn/model_selection"
	"github.com/YuminosukeSato/poiml/tune"
)

// Config is the explicit set of stage toggles and stage parameters for one run.
type Config struct {
	RemoveOutliers bool
	Engineer       bool
	Select         bool
	Scale          bool
	Tune           bool

	// Label must be the first entry of Features.
	Label    string
	Features []string
	Outliers []string

	Cutoff           float64
	RankerEstimators int
	RankerSeed       int64

	// Reference is the column whose mean is logged around scaling.
	Reference string

	Tuning tune.Config
}

// DefaultConfig returns the configuration of the reference run.
func DefaultConfig() Config {
	return FromConfig(config.Default())
}

// FromConfig maps a loaded configuration onto a pipeline Config.
func FromConfig(c config.Config) Config {
	grid := make([]model_selection.ParamSpace, len(c.Tuning.Grid))
	for i, g := range c.Tuning.Grid {
		grid[i] = model_selection.ParamSpace(g)
	}
	return Config{
		RemoveOutliers:   c.Stages.RemoveOutliers,
		Engineer:         c.Stages.Engineer,
		Select:           c.Stages.Select,
		Scale:            c.Stages.Scale,
		Tune:             c.Stages.Tune,
		Label:            c.Label,
		Features:         append([]string(nil), c.Features...),
		Outliers:         append([]string(nil), c.Outliers...),
		Cutoff:           c.Selection.Cutoff,
		RankerEstimators: c.Selection.Estimators,
		RankerSeed:       c.Selection.Seed,
		Reference:        c.Scaling.Reference,
		Tuning: tune.Config{
			Family:  c.Tuning.Family,
			Search:  c.Tuning.Search,
			Folds:   c.Tuning.Folds,
			Scoring: c.Tuning.Scoring,
			Shuffle: c.Tuning.Shuffle,
			Seed:    c.Tuning.Seed,
			Workers: c.Tuning.Workers,
			Grid:    grid,
		},
	}
}

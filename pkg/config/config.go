// Package config loads run configuration: built-in defaults, then an optional
// YAML file, then POIML_* environment variables, then validation.
package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g. POIML_TUNING_FAMILY.
const EnvPrefix = "POIML"

// Config is the full run configuration.
type Config struct {
	Data        string `yaml:"data"`
	Out         string `yaml:"out" validate:"required"`
	MetricsFile string `yaml:"metrics_file" split_words:"true"`

	Log       LogConfig       `yaml:"log"`
	Stages    StagesConfig    `yaml:"stages"`
	Selection SelectionConfig `yaml:"selection"`
	Scaling   ScalingConfig   `yaml:"scaling"`
	Tuning    TuningConfig    `yaml:"tuning"`

	// Label must be the first entry of Features.
	Label    string   `yaml:"label" validate:"required"`
	Features []string `yaml:"features" validate:"min=1,dive,required"`
	Outliers []string `yaml:"outliers"`
}

// LogConfig controls the zerolog provider.
type LogConfig struct {
	Level   string `yaml:"level" validate:"oneof=debug info warn error"`
	Console bool   `yaml:"console"`
}

// StagesConfig toggles pipeline stages.
type StagesConfig struct {
	RemoveOutliers bool `yaml:"remove_outliers" split_words:"true"`
	Engineer       bool `yaml:"engineer"`
	Select         bool `yaml:"select"`
	Scale          bool `yaml:"scale"`
	Tune           bool `yaml:"tune"`
}

// SelectionConfig configures importance-based selection.
type SelectionConfig struct {
	Cutoff     float64 `yaml:"cutoff"`
	Estimators int     `yaml:"estimators" validate:"gte=1"`
	Seed       int64   `yaml:"seed"`
}

// ScalingConfig configures robust scaling.
type ScalingConfig struct {
	Reference string `yaml:"reference"`
}

// TuningConfig configures the final classifier search.
type TuningConfig struct {
	Family  string `yaml:"family" validate:"oneof=gradient_boosting logistic_regression logistic_pipeline"`
	Search  bool   `yaml:"search"`
	Folds   int    `yaml:"folds" validate:"gte=0,ne=1"` // 0 uses the family default
	Scoring string `yaml:"scoring" validate:"omitempty,oneof=accuracy precision recall f1 f1_weighted roc_auc neg_log_loss"`
	Shuffle bool   `yaml:"shuffle"`
	Seed    int64  `yaml:"seed"`
	Workers int    `yaml:"workers"`

	// Grid replaces the family's search space. YAML only.
	Grid []map[string][]interface{} `yaml:"grid" ignored:"true"`
}

// DefaultFeatures is the seed feature list, label first.
var DefaultFeatures = []string{
	"poi",
	"bonus",
	"deferral_payments",
	"deferred_income",
	"director_fees",
	"exercised_stock_options",
	"expenses",
	"loan_advances",
	"long_term_incentive",
	"other",
	"restricted_stock",
	"restricted_stock_deferred",
	"salary",
	"shared_receipt_with_poi",
	"total_payments",
	"total_stock_value",
	"ratio_to_poi",
	"ratio_from_poi",
}

// DefaultOutliers are the spreadsheet artefacts removed before training.
var DefaultOutliers = []string{"TOTAL", "THE TRAVEL AGENCY IN THE PARK"}

// Default returns the configuration of the reference run: every stage on and
// a searched logistic pipeline on three folds.
func Default() Config {
	return Config{
		Out: "out",
		Log: LogConfig{Level: "info"},
		Stages: StagesConfig{
			RemoveOutliers: true,
			Engineer:       true,
			Select:         true,
			Scale:          true,
			Tune:           true,
		},
		Selection: SelectionConfig{Cutoff: 0.01, Estimators: 50},
		Scaling:   ScalingConfig{Reference: "exercised_stock_options"},
		Tuning: TuningConfig{
			Family:  "logistic_pipeline",
			Search:  true,
			Shuffle: true,
			Seed:    42,
		},
		Label:    "poi",
		Features: append([]string(nil), DefaultFeatures...),
		Outliers: append([]string(nil), DefaultOutliers...),
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "load config from env")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the label leads the feature list.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.NewValidationError(
				strings.TrimPrefix(fe.Namespace(), "Config."),
				"failed '"+fe.Tag()+"' constraint",
				fe.Value(),
			)
		}
		return errors.Wrap(err, "validate config")
	}
	if c.Features[0] != c.Label {
		return errors.NewValidationError("Features", "label must be the first entry", c.Features[0])
	}
	return nil
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/dataset"
	"github.com/YuminosukeSato/poiml/pipeline"
	"github.com/YuminosukeSato/poiml/pkg/artifact"
	"github.com/YuminosukeSato/poiml/pkg/config"
	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/pkg/log"
	"github.com/YuminosukeSato/poiml/pkg/monitor"
)

type runFlags struct {
	data        string
	configPath  string
	out         string
	family      string
	folds       int
	noSearch    bool
	logLevel    string
	metricsFile string
}

func newRunCommand() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline and dump the classifier",
		Long: `Run every enabled stage on the dataset and write my_classifier.json,
my_dataset.json and my_feature_list.json to the output directory.

Settings come from the built-in defaults, then --config, then POIML_*
environment variables, then flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runE(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.data, "data", "", "Dataset JSON file (entity -> feature -> value)")
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML configuration file")
	cmd.Flags().StringVar(&f.out, "out", "", "Output directory")
	cmd.Flags().StringVar(&f.family, "family", "", "Classifier family: gradient_boosting, logistic_regression or logistic_pipeline")
	cmd.Flags().IntVar(&f.folds, "folds", 0, "Cross-validation folds (0 uses the family default)")
	cmd.Flags().BoolVar(&f.noSearch, "no-search", false, "Skip the grid search and use the family's fixed parameters")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	return cmd
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Data = f.data
	}
	if flags.Changed("out") {
		cfg.Out = f.out
	}
	if flags.Changed("family") {
		cfg.Tuning.Family = f.family
	}
	if flags.Changed("folds") {
		cfg.Tuning.Folds = f.folds
	}
	if f.noSearch {
		cfg.Tuning.Search = false
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
}

func runE(cmd *cobra.Command, f *runFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	f.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Data == "" {
		return errors.NewValidationError("data", "a dataset file is required (--data or POIML_DATA)", nil)
	}

	log.SetupLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Console)

	ds, err := dataset.Load(cfg.Data)
	if err != nil {
		return err
	}

	rec := monitor.NewRecorder()
	res, err := pipeline.Run(cmd.Context(), ds, pipeline.FromConfig(*cfg), pipeline.WithRecorder(rec))
	if err != nil {
		return err
	}

	exporter, ok := res.Model.(model.WeightExporter)
	if !ok {
		return errors.Newf("%T cannot export its weights", res.Model)
	}
	start := time.Now()
	if err := artifact.Dump(cfg.Out, exporter, res.Dataset, res.Features); err != nil {
		return err
	}
	rec.ObserveStage(log.StageDump, time.Since(start))
	log.GetLoggerWithName("poiid").Info("artifacts written",
		log.RunIDKey, res.RunID,
		log.StageKey, log.StageDump,
		"dir", cfg.Out,
	)

	if cfg.MetricsFile != "" {
		if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run:      %s\n", res.RunID)
	fmt.Fprintf(out, "features: %s\n", strings.Join(res.Features, ", "))
	if res.Tuning != nil {
		fmt.Fprintf(out, "best %s (%d folds): %.4f %s\n",
			res.Tuning.Scoring, res.Tuning.Folds, res.Tuning.BestScore, model.FormatParams(res.Tuning.BestParams))
	}
	fmt.Fprintf(out, "output:   %s\n", cfg.Out)
	return nil
}

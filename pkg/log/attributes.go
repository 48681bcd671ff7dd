package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "GradientBoostingClassifier", "RobustScaler", "Pipeline"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package emitted the record.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	// SamplesKey is the number of rows being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of predictor columns.
	FeaturesKey = "data.features"

	// EntitiesKey is the number of entities (people) in a dataset.
	EntitiesKey = "data.entities"

	// ClassCountsKey holds per-class sample counts.
	ClassCountsKey = "data.class_counts"
)

// Pipeline context.
const (
	// RunIDKey carries the uuid assigned to one pipeline run.
	RunIDKey = "pipeline.run_id"

	// StageKey names the pipeline stage.
	StageKey = "pipeline.stage"

	// FeatureKey names a single feature column.
	FeatureKey = "feature.name"

	// ImportanceKey is a feature importance weight.
	ImportanceKey = "feature.importance"

	// CutoffKey is the selection cutoff in effect.
	CutoffKey = "feature.cutoff"

	// MeanBeforeKey and MeanAfterKey report the reference column mean around scaling.
	MeanBeforeKey = "scale.mean_before"
	MeanAfterKey  = "scale.mean_after"
)

// Tuning context.
const (
	// FamilyKey names the classifier family being tuned.
	FamilyKey = "tune.family"

	// ScoringKey names the scorer used for model selection.
	ScoringKey = "cv.scoring"

	// FoldsKey is the number of stratified folds.
	FoldsKey = "cv.folds"

	// CandidatesKey is the number of parameter combinations in the grid.
	CandidatesKey = "cv.candidates"

	// ScoreKey is a cross-validated score.
	ScoreKey = "cv.score"

	// ParamsKey holds an estimator parameter set.
	ParamsKey = "model.hyperparams"

	// WorkersKey is the worker count of a parallel run.
	WorkersKey = "infra.workers"
)

// Performance and iteration.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records the current iteration of an iterative solver.
	IterationKey = "training.iteration"

	// LossKey records a loss value during training.
	LossKey = "metrics.loss"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error context.
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides a hint for resolving the issue.
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhasePreprocessing = "preprocessing"

	StageOutliers    = "remove_outliers"
	StageEngineering = "feature_engineering"
	StageSelection   = "feature_selection"
	StageScaling     = "feature_scaling"
	StageTuning      = "hyperparameter_tuning"
	StageDump        = "dump"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorStratification    = "STRATIFICATION_FAILURE"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
)

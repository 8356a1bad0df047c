// Standard attribute keys for a regression run.
//
// Keys follow a hierarchical naming convention (e.g. "config.key",
// "data.samples") so that json logs can be filtered per concern.

package log

// Run context
const (
	// RunIDKey carries the identifier generated once per run.
	RunIDKey = "run.id"

	// RunNameKey carries the configured training name.
	RunNameKey = "run.name"

	// ComponentKey identifies which package is logging.
	// Examples: "config", "dataset", "boost"
	ComponentKey = "component"

	// PhaseKey indicates the stage of the run.
	// Examples: "config", "assemble", "build", "train", "write"
	PhaseKey = "run.phase"
)

// Configuration
const (
	// ConfigPathKey is the configuration file being read.
	ConfigPathKey = "config.path"

	// ConfigKeyKey is the configuration key a message is about.
	ConfigKeyKey = "config.key"

	// ConfigValueKey is the raw value of a configuration key.
	ConfigValueKey = "config.value"

	// OptionTagKey is the tag of a tag=value training option.
	OptionTagKey = "option.tag"

	// OptionValueKey is the value of a tag=value training option.
	OptionValueKey = "option.value"
)

// Data
const (
	// FilePathKey is an input or output file.
	FilePathKey = "file.path"

	// TreeKey is the table name looked up inside each input file.
	TreeKey = "data.tree"

	// SamplesKey is the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature expressions.
	FeaturesKey = "data.features"

	// FeatureKey is one feature variable name.
	FeatureKey = "data.feature"

	// ExpressionKey is the source text of a feature, target or weight expression.
	ExpressionKey = "data.expression"

	// WeightSumKey is the sum of per-row weights.
	WeightSumKey = "data.weight_sum"
)

// Model and training
const (
	// TargetKey names a regression target (mu, sigma, n1, n2).
	TargetKey = "model.target"

	// BoundLowKey and BoundHighKey are the limits of a bounded target.
	BoundLowKey  = "model.bound_low"
	BoundHighKey = "model.bound_high"

	// SeedKey is the initial value of a bounded target.
	SeedKey = "model.seed"

	// HyperParamsKey carries the resolved hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// IterationKey is the boosting iteration.
	IterationKey = "training.iteration"

	// LossKey is the weighted mean negative log-likelihood.
	LossKey = "metrics.loss"

	// ImportanceKey is the split gain attributed to a feature.
	ImportanceKey = "metrics.importance"

	// DurationMsKey is the execution time of a stage in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Errors
const (
	// ErrorTypeKey categorizes the error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"

	// SuggestionKey carries the hints attached to an error.
	SuggestionKey = "error.suggestion"
)

// Phase values for PhaseKey
const (
	PhaseConfig   = "config"
	PhaseAssemble = "assemble"
	PhaseBuild    = "build"
	PhaseResolve  = "resolve"
	PhaseTrain    = "train"
	PhaseWrite    = "write"
)

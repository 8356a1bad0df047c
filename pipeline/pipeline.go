// Package pipeline runs one training job end to end: it loads the
// configuration, assembles the dataset, builds the density, resolves the
// hyperparameters, trains the four forests and writes the artifacts.
//
// Every stage completes before the next one starts. A fatal condition is
// logged at FATAL severity and returned; nothing is written after it.
package pipeline

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/semigbr/artifact"
	"github.com/YuminosukeSato/semigbr/config"
	"github.com/YuminosukeSato/semigbr/core/model"
	"github.com/YuminosukeSato/semigbr/dataset"
	"github.com/YuminosukeSato/semigbr/metrics"
	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
	"github.com/YuminosukeSato/semigbr/pkg/log"
	"github.com/YuminosukeSato/semigbr/semiparametric"
	"github.com/YuminosukeSato/semigbr/semiparametric/boost"
)

// Result summarizes a successful run.
type Result struct {
	RunID         string
	ArtifactPath  string
	LossCurvePath string
	Loss          []float64
	Metrics       metrics.Summary
	// Warnings are the non-fatal problems met along the way.
	Warnings []error
}

type runner struct {
	engine    semiparametric.Engine
	logOutput io.Writer
	runID     string
}

// Option customizes a run.
type Option func(*runner)

// WithEngine replaces the bundled boosting engine.
func WithEngine(engine semiparametric.Engine) Option {
	return func(r *runner) { r.engine = engine }
}

// WithLogOutput sends the status stream to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(r *runner) { r.logOutput = w }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(r *runner) { r.runID = id }
}

// Run executes the training job described by the configuration file at path.
func Run(path string, opts ...Option) (*Result, error) {
	r := &runner{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r.run(path)
}

func (r *runner) run(path string) (res *Result, err error) {
	start := time.Now()
	if err := log.SetupLogger(r.logOutput, "info", log.FormatConsole); err != nil {
		return nil, err
	}
	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, r.runID)
	fatal := func(msg string, err error) (*Result, error) {
		logger.Fatal(msg, err, log.ErrorTypeKey, errorType(err))
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fatal("Cannot read configuration", err)
	}
	if cfg.LogLevel != "" || cfg.LogFormat != "" {
		format := cfg.LogFormat
		if format == "" {
			format = log.FormatConsole
		}
		if err := log.SetupLogger(r.logOutput, cfg.LogLevel, format); err != nil {
			return fatal("Cannot configure logging", err)
		}
	}
	logger = log.GetLoggerWithName("pipeline").With(log.RunIDKey, r.runID, log.RunNameKey, cfg.Name)
	res = &Result{RunID: r.runID}

	report := scerr.NewReport()
	for _, verr := range cfg.Validate() {
		if cfg.Strict {
			report.Fail(verr)
		} else {
			report.Warn(verr)
		}
	}
	if report.HasErrors() {
		return fatal("Invalid configuration", report.Err())
	}

	ds, assembleReport, err := dataset.Assemble(cfg)
	report.Merge(assembleReport)
	if err != nil {
		return fatal("Cannot assemble dataset", err)
	}
	defer func() {
		if cerr := ds.Close(); cerr != nil && err == nil {
			logger.Error("Cannot close input files", cerr)
		}
	}()

	featureVars := make([]string, len(ds.Features))
	for i, f := range ds.Features {
		featureVars[i] = f.Name
	}
	density, err := semiparametric.Build(cfg, featureVars)
	if err != nil {
		return fatal("Cannot build density", err)
	}

	hp, hpReport := semiparametric.Resolve(cfg.Options)
	report.Merge(hpReport)
	if err := hpReport.Err(); err != nil {
		return fatal("Cannot resolve training options", err)
	}

	engine := r.engine
	if engine == nil {
		engine = boost.NewTrainer(boost.LogProgress(progressPeriod(hp.NTrees)))
	}
	m, err := semiparametric.Train(engine, ds, density, hp)
	if err != nil {
		return fatal("Training failed", err)
	}
	res.Loss = m.Loss

	if summary, err := metrics.Evaluate(m, ds.X, ds.Y, ds.W); err != nil {
		report.Warn(err)
	} else {
		res.Metrics = summary
		summary.Log(logger)
	}

	format, err := model.ParseFormat(cfg.Format())
	if err != nil {
		return fatal("Invalid output format", err)
	}
	a, err := artifact.New(cfg.Name, r.runID, m, hp)
	if err != nil {
		return fatal("Cannot collect artifacts", err)
	}
	res.ArtifactPath = cfg.OutputPath()
	if err := artifact.Write(res.ArtifactPath, a, format); err != nil {
		return fatal("Cannot write artifacts", err)
	}

	if cfg.PlotLossCurve {
		curve := cfg.LossCurvePath()
		if err := artifact.PlotLossCurve(curve, cfg.Name, m.Loss); err != nil {
			report.Warn(err)
		} else {
			res.LossCurvePath = curve
			logger.Info("Loss curve written", log.FilePathKey, curve)
		}
	}

	res.Warnings = report.Warnings()
	logger.Info("Run finished",
		log.FilePathKey, res.ArtifactPath,
		log.DurationMsKey, time.Since(start).Milliseconds(),
		"warnings", len(res.Warnings),
		"input_errors", len(report.Errors()),
	)
	return res, nil
}

// progressPeriod logs about ten progress lines per run.
func progressPeriod(nTrees int) int {
	if nTrees < 10 {
		return 1
	}
	return nTrees / 10
}

func errorType(err error) string {
	var (
		configErr *scerr.ConfigReadError
		openErr   *scerr.FileOpenError
		treeErr   *scerr.TreeNotFoundError
		outErr    *scerr.OutputUnwritableError
		optErr    *scerr.InvalidOptionValueError
		engineErr *scerr.TrainingEngineError
		validErr  *scerr.ValidationError
	)
	switch {
	case scerr.As(err, &engineErr):
		return "TrainingEngineError"
	case scerr.Is(err, scerr.ErrMissingIterationCount):
		return "MissingIterationCountError"
	case scerr.As(err, &optErr):
		return "InvalidOptionValueError"
	case scerr.As(err, &configErr):
		return "ConfigReadError"
	case scerr.As(err, &outErr):
		return "OutputUnwritableError"
	case scerr.As(err, &treeErr):
		return "TreeNotFoundError"
	case scerr.As(err, &openErr):
		return "FileOpenError"
	case scerr.As(err, &validErr):
		return "ValidationError"
	default:
		return "Error"
	}
}

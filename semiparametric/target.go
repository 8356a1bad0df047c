package semiparametric

import (
	"math"

	"github.com/YuminosukeSato/semigbr/config"
	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
	"github.com/YuminosukeSato/semigbr/pkg/log"
)

// Starting raw values of the regressed targets. They set the constant the
// engine starts its first iteration from.
const (
	SeedMu    = 1.0
	SeedSigma = 0.01
	SeedN1    = 3.0
	SeedN2    = 3.0
)

// DensityName and WorkspaceKey name the density definition in the artifact.
const (
	DensityName  = "pdf"
	WorkspaceKey = "w"
)

// RegressionTarget is one regressed shape parameter: an unconstrained function
// of the feature vector, trained by the engine, seen through a bound transform.
type RegressionTarget struct {
	Name  string         `json:"name"`
	Var   string         `json:"var"`
	Func  string         `json:"func"`
	Map   string         `json:"map"`
	Limit string         `json:"limit"`
	Key   string         `json:"key"`
	Bound BoundTransform `json:"bound"`
	// Seed is the raw value used before any training.
	Seed float64 `json:"seed"`
	// Inputs are the feature variable names the function conditions on.
	Inputs []string `json:"inputs"`
}

// NewRegressionTarget creates the target name over inputs with the given
// bound and seed. Derived names follow the mu -> muvar, mufunc, mumap, mulim,
// muCB convention.
func NewRegressionTarget(name string, bound config.Bound, seed float64, inputs []string) *RegressionTarget {
	in := make([]string, len(inputs))
	copy(in, inputs)
	return &RegressionTarget{
		Name:   name,
		Var:    name + "var",
		Func:   name + "func",
		Map:    name + "map",
		Limit:  name + "lim",
		Key:    name + "CB",
		Bound:  BoundTransform{Low: bound.Low, High: bound.High},
		Seed:   seed,
		Inputs: in,
	}
}

// Fallback is the bounded value of the target before training.
func (r *RegressionTarget) Fallback() float64 {
	return r.Bound.Apply(r.Seed)
}

// Build creates the four regressed targets over featureVars and wires them,
// together with the fixed crossover constants, into the density of the run.
func Build(cfg *config.TrainingConfig, featureVars []string) (*ConditionalDensity, error) {
	if len(featureVars) == 0 {
		return nil, scerr.NewValidationError("Variables", "at least one variable is required", cfg.Variables)
	}
	logger := log.GetLoggerWithName("semiparametric").With(log.PhaseKey, log.PhaseBuild)

	var rng Range
	if r, ok := cfg.TargetRange(); ok {
		rng = Range{Finite: true, Low: r.Low, High: r.High}
	}
	if math.IsNaN(cfg.Alpha1) || cfg.Alpha1 <= 0 || math.IsNaN(cfg.Alpha2) || cfg.Alpha2 <= 0 {
		return nil, scerr.NewValidationError("alpha1/alpha2", "crossover constants must be positive",
			[]float64{cfg.Alpha1, cfg.Alpha2})
	}

	// a lenient run only warns about these at validation, but an inverted
	// pair cannot define a bound
	bounds := []struct {
		key   string
		bound config.Bound
	}{
		{"mu", cfg.MuBound()}, {"sigma", cfg.SigmaBound()}, {"n1", cfg.N1Bound()}, {"n2", cfg.N2Bound()},
	}
	for _, b := range bounds {
		if !(b.bound.Low <= b.bound.High) {
			return nil, scerr.NewValidationError(b.key+"_DownLimit", "lower limit exceeds "+b.key+"_UpLimit",
				[]float64{b.bound.Low, b.bound.High})
		}
	}
	if rng.Finite && !(rng.Low < rng.High) {
		return nil, scerr.NewValidationError("target_DownLimit", "the target range is empty",
			[]float64{rng.Low, rng.High})
	}

	d := &ConditionalDensity{
		Name:        DensityName,
		TargetVar:   "targetvar",
		TargetTitle: cfg.Target,
		Range:       rng,
		Alpha1:      cfg.Alpha1,
		Alpha2:      cfg.Alpha2,
		Mu:          NewRegressionTarget("mu", cfg.MuBound(), SeedMu, featureVars),
		Sigma:       NewRegressionTarget("sigma", cfg.SigmaBound(), SeedSigma, featureVars),
		N1:          NewRegressionTarget("n1", cfg.N1Bound(), SeedN1, featureVars),
		N2:          NewRegressionTarget("n2", cfg.N2Bound(), SeedN2, featureVars),
	}

	for _, target := range d.Targets() {
		logger.Info("Regression target "+target.Name,
			log.TargetKey, target.Name,
			log.BoundLowKey, target.Bound.Low,
			log.BoundHighKey, target.Bound.High,
			log.SeedKey, target.Seed,
		)
	}
	logger.Info("Density "+d.Name, "alpha1", d.Alpha1, "alpha2", d.Alpha2, log.ExpressionKey, d.TargetTitle)
	return d, nil
}

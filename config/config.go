// Package config loads the training configuration of a semiparametric
// regression run.
//
// A configuration file is either a TEnv-style key/value file
//
//	Name:            peak
//	InputFiles:      data/a.npz:data/b.npz
//	Options:         NTrees=500:Shrinkage=0.1:EventWeight=w
//	mu_DownLimit:    0.8
//
// or, for .yaml/.yml files, a flat YAML mapping with the same keys.
// Unrecognized keys are ignored and missing keys keep their zero value.
package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/YuminosukeSato/semigbr/pkg/log"
)

// TrainingConfig is the typed configuration of one run. It is created once by
// Load and treated as immutable afterwards.
type TrainingConfig struct {
	Name            string `cfg:"Name" validate:"required"`
	OutputDirectory string `cfg:"OutputDirectory"`
	InputFiles      string `cfg:"InputFiles" validate:"required"`
	Tree            string `cfg:"Tree" validate:"required"`
	Options         string `cfg:"Options"`
	Variables       string `cfg:"Variables" validate:"required"`
	Target          string `cfg:"Target" validate:"required"`
	Cut             string `cfg:"Cut"`

	MuLow     float64 `cfg:"mu_DownLimit" validate:"ltefield=MuHigh"`
	MuHigh    float64 `cfg:"mu_UpLimit"`
	SigmaLow  float64 `cfg:"sigma_DownLimit" validate:"ltefield=SigmaHigh"`
	SigmaHigh float64 `cfg:"sigma_UpLimit"`
	N1Low     float64 `cfg:"n1_DownLimit" validate:"ltefield=N1High"`
	N1High    float64 `cfg:"n1_UpLimit"`
	N2Low     float64 `cfg:"n2_DownLimit" validate:"ltefield=N2High"`
	N2High    float64 `cfg:"n2_UpLimit"`

	Alpha1 float64 `cfg:"alpha1" validate:"gt=0"`
	Alpha2 float64 `cfg:"alpha2" validate:"gt=0"`

	// Optional finite range of the target; both zero means unbounded.
	TargetLow  float64 `cfg:"target_DownLimit" validate:"ltefield=TargetHigh"`
	TargetHigh float64 `cfg:"target_UpLimit"`

	Strict        bool   `cfg:"Strict"`
	OutputFormat  string `cfg:"OutputFormat" validate:"omitempty,oneof=json gob"`
	PlotLossCurve bool   `cfg:"PlotLossCurve"`
	LogLevel      string `cfg:"LogLevel" validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat     string `cfg:"LogFormat" validate:"omitempty,oneof=console json"`

	// Path is the file the configuration was read from.
	Path string `cfg:"-"`
}

// Bound is a closed interval [Low, High].
type Bound struct {
	Low  float64
	High float64
}

// MuBound returns the configured range of mu.
func (c *TrainingConfig) MuBound() Bound { return Bound{c.MuLow, c.MuHigh} }

// SigmaBound returns the configured range of sigma.
func (c *TrainingConfig) SigmaBound() Bound { return Bound{c.SigmaLow, c.SigmaHigh} }

// N1Bound returns the configured range of n1.
func (c *TrainingConfig) N1Bound() Bound { return Bound{c.N1Low, c.N1High} }

// N2Bound returns the configured range of n2.
func (c *TrainingConfig) N2Bound() Bound { return Bound{c.N2Low, c.N2High} }

// TargetRange returns the normalization range of the target and whether one
// was configured.
func (c *TrainingConfig) TargetRange() (Bound, bool) {
	if c.TargetLow == 0 && c.TargetHigh == 0 {
		return Bound{}, false
	}
	return Bound{c.TargetLow, c.TargetHigh}, true
}

// Files returns the input file paths in declaration order.
func (c *TrainingConfig) Files() []string {
	return SplitList(c.InputFiles)
}

// FeatureNames returns the feature expressions in declaration order. The
// position of a name defines its column index (var_0, var_1, ...).
func (c *TrainingConfig) FeatureNames() []string {
	return SplitList(c.Variables)
}

// OptionTokens returns the ':'-separated tokens of the Options string.
// Empty tokens are skipped.
func (c *TrainingConfig) OptionTokens() []string {
	return SplitList(c.Options)
}

// EventWeight returns the value of the EventWeight option, or "" when no
// well-formed EventWeight token is present.
func (c *TrainingConfig) EventWeight() string {
	weight := ""
	for _, token := range c.OptionTokens() {
		parts := strings.Split(token, "=")
		if len(parts) == 2 && parts[0] == "EventWeight" {
			weight = parts[1]
		}
	}
	return weight
}

// Format returns the artifact encoding, defaulting to json.
func (c *TrainingConfig) Format() string {
	if c.OutputFormat == "" {
		return "json"
	}
	return c.OutputFormat
}

// OutputPath returns {OutputDirectory}/{Name}_results.{ext}.
func (c *TrainingConfig) OutputPath() string {
	return filepath.Join(c.OutputDirectory, c.Name+"_results."+c.Format())
}

// LossCurvePath returns {OutputDirectory}/{Name}_loss.png.
func (c *TrainingConfig) LossCurvePath() string {
	return filepath.Join(c.OutputDirectory, c.Name+"_loss.png")
}

// Log writes every resolved field to logger, one line per key.
func (c *TrainingConfig) Log(logger log.Logger) {
	forEachField(c, func(key string, v reflect.Value) {
		logger.Info(fmt.Sprintf("%s: %v", key, v.Interface()),
			log.ConfigKeyKey, key,
			log.ConfigValueKey, fmt.Sprintf("%v", v.Interface()),
		)
	})
}

// SplitList splits a ':'-joined list, trimming entries and skipping empty ones.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ':' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

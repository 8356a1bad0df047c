package semiparametric

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/semigbr/config"
	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
	"github.com/YuminosukeSato/semigbr/pkg/log"
)

// Hyperparameters configure the training engine.
type Hyperparameters struct {
	// MinEvents is the minimum summed event weight in each leaf.
	MinEvents float64 `json:"min_events"`
	// Shrinkage damps every tree's contribution.
	Shrinkage float64 `json:"shrinkage"`
	// MinSignificance is the minimum split significance sqrt(2*gain).
	MinSignificance float64 `json:"min_significance"`
	// TransitionQuantile is the weighted quantile of |gradient| above which
	// gradients are clipped; 1 disables clipping.
	TransitionQuantile float64 `json:"transition_quantile"`
	// NTrees is the number of boosting iterations.
	NTrees int `json:"n_trees"`
	// MaxDepth and MaxNodes bound each tree; -1 means unbounded.
	MaxDepth int `json:"max_depth"`
	MaxNodes int `json:"max_nodes"`
}

type optionKind int

const (
	kindFloat optionKind = iota
	kindInt
	// consumed by another stage and accepted silently
	kindForeign
)

// option is one entry of the declarative option schema.
type option struct {
	tag      string
	kind     optionKind
	def      float64
	required bool
	// valid reports whether a parsed value is acceptable; nil accepts all.
	valid    func(v float64) bool
	validMsg string
	set      func(h *Hyperparameters, v float64)
}

var optionSchema = []option{
	{tag: "MinEvents", kind: kindFloat, def: 200,
		valid: nonNegative, validMsg: "non-negative number",
		set: func(h *Hyperparameters, v float64) { h.MinEvents = v }},
	{tag: "Shrinkage", kind: kindFloat, def: 0.1,
		valid: func(v float64) bool { return v > 0 }, validMsg: "positive number",
		set: func(h *Hyperparameters, v float64) { h.Shrinkage = v }},
	{tag: "MinSignificance", kind: kindFloat, def: -99,
		set: func(h *Hyperparameters, v float64) { h.MinSignificance = v }},
	{tag: "TransitionQuantile", kind: kindFloat, def: 1.0,
		valid: func(v float64) bool { return v > 0 && v <= 1 }, validMsg: "number in (0, 1]",
		set: func(h *Hyperparameters, v float64) { h.TransitionQuantile = v }},
	{tag: "NTrees", kind: kindInt, required: true,
		valid: func(v float64) bool { return v > 0 }, validMsg: "positive integer",
		set: func(h *Hyperparameters, v float64) { h.NTrees = int(v) }},
	{tag: "MaxDepth", kind: kindInt, def: -1,
		valid: minusOneOrPositive, validMsg: "positive integer or -1",
		set: func(h *Hyperparameters, v float64) { h.MaxDepth = int(v) }},
	{tag: "MaxNodes", kind: kindInt, def: -1,
		valid: minusOneOrPositive, validMsg: "positive integer or -1",
		set: func(h *Hyperparameters, v float64) { h.MaxNodes = int(v) }},
	{tag: "EventWeight", kind: kindForeign},
}

func nonNegative(v float64) bool        { return v >= 0 }
func minusOneOrPositive(v float64) bool { return v == -1 || v > 0 }

// OptionTags returns the recognized option tags in schema order.
func OptionTags() []string {
	tags := make([]string, len(optionSchema))
	for i, o := range optionSchema {
		tags[i] = o.tag
	}
	return tags
}

// DefaultHyperparameters returns the schema defaults. NTrees has no default.
func DefaultHyperparameters() Hyperparameters {
	var h Hyperparameters
	for _, o := range optionSchema {
		if o.set != nil && !o.required {
			o.set(&h, o.def)
		}
	}
	return h
}

// Resolve parses the ':'-joined tag=value tokens of options.
//
// Unknown tags and tokens that are not of the form tag=value are reported as
// warnings and skipped. A value that does not parse entirely as its tag's
// type, or that is out of range, and a missing NTrees are recorded as errors;
// the caller ends the run when report.Err() is non-nil.
func Resolve(options string) (Hyperparameters, *scerr.Report) {
	logger := log.GetLoggerWithName("semiparametric").With(log.PhaseKey, log.PhaseResolve)
	report := scerr.NewReport()
	h := DefaultHyperparameters()
	seen := make(map[string]bool)

	for _, token := range config.SplitList(options) {
		parts := strings.Split(token, "=")
		if len(parts) != 2 {
			report.Warn(scerr.NewMalformedOptionWarning(token))
			continue
		}
		tag, raw := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		o, ok := lookupOption(tag)
		if !ok {
			report.Warn(scerr.NewUnknownOptionWarning(tag, OptionTags()))
			continue
		}
		if o.kind == kindForeign {
			continue
		}

		v, err := o.parse(raw)
		if err != nil {
			report.Fail(err)
			continue
		}
		o.set(&h, v)
		seen[tag] = true
		logger.Info(fmt.Sprintf("Option %s = %s", tag, raw), log.OptionTagKey, tag, log.OptionValueKey, raw)
	}

	for _, o := range optionSchema {
		if o.required && !seen[o.tag] {
			report.Fail(scerr.NewMissingIterationCountError())
		}
	}
	return h, report
}

func lookupOption(tag string) (option, bool) {
	for _, o := range optionSchema {
		if o.tag == tag {
			return o, true
		}
	}
	return option{}, false
}

func (o option) parse(raw string) (float64, error) {
	var v float64
	switch o.kind {
	case kindInt:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return 0, scerr.NewInvalidOptionValueError(o.tag, raw, "integer")
		}
		v = float64(i)
	default:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) {
			return 0, scerr.NewInvalidOptionValueError(o.tag, raw, "number")
		}
		v = f
	}
	if o.valid != nil && !o.valid(v) {
		return 0, scerr.NewInvalidOptionValueError(o.tag, raw, o.validMsg)
	}
	return v, nil
}

// Package errors provides the error taxonomy and warning dispatch used by every
// stage of a semiparametric regression run.
//
// Errors carry stack traces through github.com/cockroachdb/errors and implement
// zerolog.LogObjectMarshaler so they can be logged as structured objects.
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Warning dispatch
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("semigbr-Warning: %v\n", w)
	}
	// set by pkg/log to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the fallback warning handler.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs the structured warning sink.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning. The zerolog sink wins when installed.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Configuration errors
//
// ===========================================================================

// ConfigReadError reports a configuration file that cannot be opened or a
// value that cannot be parsed as the type its key requires.
type ConfigReadError struct {
	Path   string
	Key    string // empty when the whole file is unreadable
	Reason string
}

func (e *ConfigReadError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("semigbr: config %s: key %q: %s", e.Path, e.Key, e.Reason)
	}
	return fmt.Sprintf("semigbr: cannot read config file %s: %s", e.Path, e.Reason)
}

// MarshalZerologObject adds the structured fields of the error to a zerolog event.
func (e *ConfigReadError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Str("key", e.Key).
		Str("reason", e.Reason).
		Str("type", "ConfigReadError")
}

// NewConfigReadError creates a ConfigReadError with a stack trace.
func NewConfigReadError(path, key, reason string) error {
	return errors.WithStack(&ConfigReadError{Path: path, Key: key, Reason: reason})
}

// ValidationError is returned when a configuration field violates a constraint.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("semigbr: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the structured fields of the error to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ===========================================================================
//
//	Input and output errors
//
// ===========================================================================

// FileOpenError reports an input file that cannot be opened.
type FileOpenError struct {
	Path string
	Err  error
}

func (e *FileOpenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("semigbr: cannot open input file %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("semigbr: cannot open input file %s", e.Path)
}

func (e *FileOpenError) Unwrap() error { return e.Err }

// MarshalZerologObject adds the structured fields of the error to a zerolog event.
func (e *FileOpenError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).Str("type", "FileOpenError")
}

// NewFileOpenError creates a FileOpenError with a stack trace.
func NewFileOpenError(path string, err error) error {
	return errors.WithStack(&FileOpenError{Path: path, Err: err})
}

// TreeNotFoundError reports an input file that does not contain the configured table.
type TreeNotFoundError struct {
	Tree string
	Path string
}

func (e *TreeNotFoundError) Error() string {
	return fmt.Sprintf("semigbr: cannot find regression tree %s in %s", e.Tree, e.Path)
}

// MarshalZerologObject adds the structured fields of the error to a zerolog event.
func (e *TreeNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("tree", e.Tree).Str("path", e.Path).Str("type", "TreeNotFoundError")
}

// NewTreeNotFoundError creates a TreeNotFoundError with a stack trace.
func NewTreeNotFoundError(tree, path string) error {
	return errors.WithStack(&TreeNotFoundError{Tree: tree, Path: path})
}

// OutputUnwritableError reports an output location that cannot be created.
type OutputUnwritableError struct {
	Path string
	Err  error
}

func (e *OutputUnwritableError) Error() string {
	return fmt.Sprintf("semigbr: cannot open output file %s: %v", e.Path, e.Err)
}

func (e *OutputUnwritableError) Unwrap() error { return e.Err }

// MarshalZerologObject adds the structured fields of the error to a zerolog event.
func (e *OutputUnwritableError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).Str("type", "OutputUnwritableError")
}

// NewOutputUnwritableError creates an OutputUnwritableError with a stack trace.
func NewOutputUnwritableError(path string, err error) error {
	return errors.WithStack(&OutputUnwritableError{Path: path, Err: err})
}

// DimensionError is returned when column lengths or feature counts disagree.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("semigbr: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured fields of the error to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ===========================================================================
//
//	Option errors and warnings
//
// ===========================================================================

// UnknownOptionWarning is raised for a tag=value option whose tag is not recognized.
type UnknownOptionWarning struct {
	Tag   string
	Known []string
}

func (w *UnknownOptionWarning) Error() string {
	return fmt.Sprintf("unknown option %s. Possibilities are: %s", w.Tag, strings.Join(w.Known, ", "))
}

// MarshalZerologObject adds the structured fields of the warning to a zerolog event.
func (w *UnknownOptionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("tag", w.Tag).
		Strs("known", w.Known).
		Str("type", "UnknownOptionWarning")
}

// NewUnknownOptionWarning creates a new UnknownOptionWarning.
func NewUnknownOptionWarning(tag string, known []string) *UnknownOptionWarning {
	return &UnknownOptionWarning{Tag: tag, Known: known}
}

// MalformedOptionWarning is raised for an option token that is not of the form tag=value.
type MalformedOptionWarning struct {
	Token string
}

func (w *MalformedOptionWarning) Error() string {
	return fmt.Sprintf("option %s cannot be processed. Should be of the form tag=value", w.Token)
}

// MarshalZerologObject adds the structured fields of the warning to a zerolog event.
func (w *MalformedOptionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("token", w.Token).Str("type", "MalformedOptionWarning")
}

// NewMalformedOptionWarning creates a new MalformedOptionWarning.
func NewMalformedOptionWarning(token string) *MalformedOptionWarning {
	return &MalformedOptionWarning{Token: token}
}

// InvalidOptionValueError reports an option value that does not parse entirely
// as the type its tag requires.
type InvalidOptionValueError struct {
	Tag   string
	Value string
	Kind  string
}

func (e *InvalidOptionValueError) Error() string {
	return fmt.Sprintf("semigbr: option %s=%s: value is not a valid %s", e.Tag, e.Value, e.Kind)
}

// MarshalZerologObject adds the structured fields of the error to a zerolog event.
func (e *InvalidOptionValueError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("tag", e.Tag).
		Str("value", e.Value).
		Str("kind", e.Kind).
		Str("type", "InvalidOptionValueError")
}

// NewInvalidOptionValueError creates an InvalidOptionValueError with a stack trace.
func NewInvalidOptionValueError(tag, value, kind string) error {
	return errors.WithStack(&InvalidOptionValueError{Tag: tag, Value: value, Kind: kind})
}

// ErrMissingIterationCount is the marker for an Options string without NTrees.
var ErrMissingIterationCount = errors.New("semigbr: option NTrees is required")

// NewMissingIterationCountError returns ErrMissingIterationCount with a stack
// trace and a hint on how to fix the configuration.
func NewMissingIterationCountError() error {
	return errors.WithHint(errors.WithStack(ErrMissingIterationCount),
		"add NTrees=<count> to the Options key, e.g. Options: NTrees=500:Shrinkage=0.1")
}

// ===========================================================================
//
//	Training errors
//
// ===========================================================================

// TrainingEngineError wraps any failure raised by the training engine.
type TrainingEngineError struct {
	Stage string
	Err   error
}

func (e *TrainingEngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("semigbr: training engine failed during %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("semigbr: training engine failed during %s", e.Stage)
}

func (e *TrainingEngineError) Unwrap() error { return e.Err }

// MarshalZerologObject adds the structured fields of the error to a zerolog event.
func (e *TrainingEngineError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", e.Stage).Str("type", "TrainingEngineError")
}

// NewTrainingEngineError creates a TrainingEngineError with a stack trace.
func NewTrainingEngineError(stage string, err error) error {
	return errors.WithStack(&TrainingEngineError{Stage: stage, Err: err})
}

// NumericalInstabilityError is returned when NaN or Inf shows up in a loss or
// gradient computation.
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("semigbr: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a stack trace.
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Join combines several errors into one. Nil errors are dropped.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Hints returns every user-facing hint attached to err.
func Hints(err error) []string {
	return errors.GetAllHints(err)
}

// WithHint attaches a user-facing hint to err.
func WithHint(err error, hint string) error {
	return errors.WithHint(err, hint)
}

// Package core holds the small interfaces shared by the training stages.
package core

// Regressor evaluates a trained function at one feature row.
type Regressor interface {
	PredictRow(x []float64) float64
}

// EstimatorState is the training state of a model.
type EstimatorState int

const (
	// NotFitted means no training has completed.
	NotFitted EstimatorState = iota
	// Fitted means the model holds trained regressors.
	Fitted
)

// BaseEstimator tracks whether a model has been trained.
type BaseEstimator struct {
	State EstimatorState
}

// IsFitted reports whether the model has been trained.
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the model as trained.
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset returns the model to the untrained state.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}

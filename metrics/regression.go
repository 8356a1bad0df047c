// Package metrics scores a trained density against weighted events.
//
// Every function takes an optional weight slice; nil means unit weights.
// Events with zero weight do not contribute.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
)

func checkInputs(op string, yTrue, yPred, w []float64) ([]float64, error) {
	n := len(yTrue)
	if n == 0 {
		return nil, scerr.NewValidationError(op, "empty input", n)
	}
	if len(yPred) != n {
		return nil, scerr.NewDimensionError(op, n, len(yPred), 0)
	}
	if w == nil {
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
	}
	if len(w) != n {
		return nil, scerr.NewDimensionError(op, n, len(w), 0)
	}
	if !(floats.Sum(w) > 0) {
		return nil, scerr.NewValidationError(op, "total weight must be positive", floats.Sum(w))
	}
	return w, nil
}

// MSE is the weighted mean squared error.
func MSE(yTrue, yPred, w []float64) (float64, error) {
	w, err := checkInputs("MSE", yTrue, yPred, w)
	if err != nil {
		return 0, err
	}
	var sum, sumW float64
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		sum += w[i] * diff * diff
		sumW += w[i]
	}
	return sum / sumW, nil
}

// RMSE is the square root of MSE.
func RMSE(yTrue, yPred, w []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred, w)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE is the weighted mean absolute error.
func MAE(yTrue, yPred, w []float64) (float64, error) {
	w, err := checkInputs("MAE", yTrue, yPred, w)
	if err != nil {
		return 0, err
	}
	var sum, sumW float64
	for i := range yTrue {
		sum += w[i] * math.Abs(yTrue[i]-yPred[i])
		sumW += w[i]
	}
	return sum / sumW, nil
}

// R2Score is the weighted coefficient of determination. A constant target
// scores 1 for a perfect prediction and 0 otherwise.
func R2Score(yTrue, yPred, w []float64) (float64, error) {
	w, err := checkInputs("R2Score", yTrue, yPred, w)
	if err != nil {
		return 0, err
	}
	mean := stat.Mean(yTrue, w)
	var ssRes, ssTot float64
	for i := range yTrue {
		ssRes += w[i] * (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
		ssTot += w[i] * (yTrue[i] - mean) * (yTrue[i] - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}

// ExplainedVarianceScore is 1 - Var(yTrue-yPred)/Var(yTrue), weighted.
func ExplainedVarianceScore(yTrue, yPred, w []float64) (float64, error) {
	w, err := checkInputs("ExplainedVarianceScore", yTrue, yPred, w)
	if err != nil {
		return 0, err
	}
	residual := make([]float64, len(yTrue))
	floats.SubTo(residual, yTrue, yPred)

	_, varTrue := stat.PopMeanVariance(yTrue, w)
	_, varRes := stat.PopMeanVariance(residual, w)
	if varTrue == 0 {
		if varRes == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - varRes/varTrue, nil
}

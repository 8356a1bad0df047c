package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
	"github.com/YuminosukeSato/semigbr/pkg/log"
	"github.com/YuminosukeSato/semigbr/semiparametric"
)

// Summary scores a trained model on a set of events.
type Summary struct {
	SumWeights float64 `json:"sum_weights"`
	// MeanNLL is the weighted mean negative log-likelihood.
	MeanNLL float64 `json:"mean_nll"`
	// The mu scores compare the predicted peak position with the target.
	MuRMSE float64 `json:"mu_rmse"`
	MuMAE  float64 `json:"mu_mae"`
	MuR2   float64 `json:"mu_r2"`
	// MeanSigma is the weighted mean predicted width.
	MeanSigma float64 `json:"mean_sigma"`
}

// Evaluate predicts the shape parameters of every event of X and scores them
// against y. w may be nil for unit weights.
func Evaluate(m *semiparametric.Model, X mat.Matrix, y, w []float64) (Summary, error) {
	if m == nil || !m.IsFitted() {
		return Summary{}, scerr.New("model is not fitted")
	}
	rows, cols := X.Dims()
	if rows != len(y) {
		return Summary{}, scerr.NewDimensionError("metrics.Evaluate", rows, len(y), 0)
	}
	if w == nil {
		w = make([]float64, rows)
		for i := range w {
			w[i] = 1
		}
	}

	mu := make([]float64, rows)
	var s Summary
	var nll float64
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		p := m.Predict(row)
		mu[i] = p.Mu
		if w[i] == 0 {
			continue
		}
		nll -= w[i] * m.Density.LogPDF(y[i], p)
		s.MeanSigma += w[i] * p.Sigma
		s.SumWeights += w[i]
	}
	if !(s.SumWeights > 0) {
		return Summary{}, scerr.NewValidationError("metrics.Evaluate", "total weight must be positive", s.SumWeights)
	}
	s.MeanNLL = nll / s.SumWeights
	s.MeanSigma /= s.SumWeights

	var err error
	if s.MuRMSE, err = RMSE(y, mu, w); err != nil {
		return Summary{}, err
	}
	if s.MuMAE, err = MAE(y, mu, w); err != nil {
		return Summary{}, err
	}
	if s.MuR2, err = R2Score(y, mu, w); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// Log writes the summary to logger.
func (s Summary) Log(logger log.Logger) {
	fields := []any{
		log.WeightSumKey, s.SumWeights,
		log.LossKey, s.MeanNLL,
		"mu_rmse", s.MuRMSE,
		"mu_mae", s.MuMAE,
		"mu_r2", s.MuR2,
		"mean_sigma", s.MeanSigma,
	}
	if math.IsInf(s.MeanNLL, 0) {
		logger.Warn("Some events lie outside the density support", fields...)
		return
	}
	logger.Info("Training summary", fields...)
}

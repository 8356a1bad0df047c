package boost

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/semigbr/core/parallel"
	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
	"github.com/YuminosukeSato/semigbr/pkg/log"
	"github.com/YuminosukeSato/semigbr/semiparametric"
)

const (
	// finite-difference step in raw space
	fdStep = 1e-4
	// stand-in for an infinite loss inside the seed optimizer
	largeLoss = 1e300
	// smallest Hessian used for a Newton step
	minHessian = 1e-12
	// rows per worker below which gradient evaluation stays sequential
	gradientThreshold = 2048
	// largest raw step of one leaf, about half a period of the bound transform
	maxLeafValue = 1.5
	// step halvings tried before a tree is dropped
	maxHalvings = 8
)

// meanNLL is the weighted mean negative log-likelihood of the active rows
// with per-row raw parameters raw[param][row].
func (s *fitState) meanNLL() float64 {
	buf := make([]float64, semiparametric.NumParams)
	sum, sumW := 0.0, 0.0
	for _, i := range s.active {
		for p := range buf {
			buf[p] = s.raw[p][i]
		}
		sum += s.w[i] * s.density.NLL(s.y[i], buf)
		sumW += s.w[i]
	}
	return sum / sumW
}

// stepLoss is meanNLL with raw[p] moved by rate*step.
func (s *fitState) stepLoss(p int, step []float64, rate float64) float64 {
	buf := make([]float64, semiparametric.NumParams)
	sum, sumW := 0.0, 0.0
	for _, i := range s.active {
		for q := range buf {
			buf[q] = s.raw[q][i]
		}
		buf[p] += rate * step[i]
		sum += s.w[i] * s.density.NLL(s.y[i], buf)
		sumW += s.w[i]
	}
	return sum / sumW
}

// constantNLL is meanNLL for one shared raw parameter vector.
func (s *fitState) constantNLL(c []float64) float64 {
	sum, sumW := 0.0, 0.0
	for _, i := range s.active {
		sum += s.w[i] * s.density.NLL(s.y[i], c)
		sumW += s.w[i]
	}
	v := sum / sumW
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return largeLoss
	}
	return v
}

// fitConstants finds the constant raw parameters minimizing the loss,
// starting from the targets' seeds.
func (s *fitState) fitConstants() []float64 {
	targets := s.density.Targets()
	seeds := make([]float64, len(targets))
	for i, target := range targets {
		seeds[i] = target.Seed
	}

	logger := log.GetLoggerWithName("boost")
	problem := optimize.Problem{Func: s.constantNLL}
	settings := &optimize.Settings{
		FuncEvaluations: 4000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Iterations: 200,
		},
	}
	result, err := optimize.Minimize(problem, seeds, settings, &optimize.NelderMead{})
	if err != nil || result == nil {
		logger.Warn("Constant fit did not converge, starting from seeds", err)
		return seeds
	}
	if result.F >= s.constantNLL(seeds) {
		return seeds
	}
	logger.Debug("Constant fit", log.LossKey, result.F, "evaluations", result.FuncEvaluations)
	return result.X
}

// computeGradients fills grad and hess for parameter p on the active rows.
// The derivatives are taken with respect to the raw function output, so they
// include the bound transform.
func (s *fitState) computeGradients(p int) error {
	return parallel.Run(len(s.active), gradientThreshold, func(start, end int) error {
		buf := make([]float64, semiparametric.NumParams)
		for _, i := range s.active[start:end] {
			for q := range buf {
				buf[q] = s.raw[q][i]
			}
			r := buf[p]
			l0 := s.density.NLL(s.y[i], buf)
			buf[p] = r + fdStep
			lp := s.density.NLL(s.y[i], buf)
			buf[p] = r - fdStep
			lm := s.density.NLL(s.y[i], buf)

			g := (lp - lm) / (2 * fdStep)
			h := (lp - 2*l0 + lm) / (fdStep * fdStep)
			if math.IsNaN(g) || math.IsInf(g, 0) {
				// event outside the density support for these parameters
				g, h = 0, 0
			} else if !(h > 0) || math.IsInf(h, 0) {
				h = math.Max(g*g, minHessian)
			}
			s.grad[i] = g
			s.hess[i] = h
		}
		return nil
	})
}

// clipGradients limits |gradient| to its q-quantile over the active rows,
// weighted by |w|. q >= 1 leaves the gradients untouched.
func (s *fitState) clipGradients(q float64) {
	if q >= 1 || len(s.active) == 0 {
		return
	}
	abs := make([]float64, len(s.active))
	weights := make([]float64, len(s.active))
	for k, i := range s.active {
		abs[k] = math.Abs(s.grad[i])
		// quantile weights must be non-negative
		weights[k] = math.Abs(s.w[i])
	}
	stat.SortWeighted(abs, weights)
	limit := stat.Quantile(q, stat.Empirical, abs, weights)
	for _, i := range s.active {
		s.grad[i] = scerr.ClipValue(s.grad[i], -limit, limit)
	}
}

// sortedByFeature returns the node's rows ordered by feature value, ties
// broken by row index.
func (s *fitState) sortedByFeature(rows []int, feature int) []int {
	out := make([]int, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(a, b int) bool {
		return s.X.At(out[a], feature) < s.X.At(out[b], feature)
	})
	return out
}

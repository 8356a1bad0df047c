package semiparametric

import (
	"math"
)

// Parameter order shared by the density, the engine and the artifacts.
const (
	ParamMu = iota
	ParamSigma
	ParamN1
	ParamN2
	NumParams
)

// Params are the bounded shape parameters of one event.
type Params struct {
	Mu    float64
	Sigma float64
	N1    float64
	N2    float64
}

// Range is the interval the density is normalized on. A range that is not
// Finite is the whole real line.
type Range struct {
	Finite bool    `json:"finite"`
	Low    float64 `json:"low,omitempty"`
	High   float64 `json:"high,omitempty"`
}

// Limits returns the ends of r, infinite when r is not Finite.
func (r Range) Limits() (float64, float64) {
	if !r.Finite {
		return math.Inf(-1), math.Inf(1)
	}
	return r.Low, r.High
}

// ConditionalDensity is a double-sided crystal-ball density of the target,
// with a Gaussian core between -Alpha1 and +Alpha2 (in units of sigma) and
// power-law tails of powers N1 and N2. Mu, Sigma, N1 and N2 are regressed
// targets; Alpha1 and Alpha2 are fixed.
type ConditionalDensity struct {
	Name        string  `json:"name"`
	TargetVar   string  `json:"target_var"`
	TargetTitle string  `json:"target_title"`
	Range       Range   `json:"range"`
	Alpha1      float64 `json:"alpha1"`
	Alpha2      float64 `json:"alpha2"`

	Mu    *RegressionTarget `json:"mu"`
	Sigma *RegressionTarget `json:"sigma"`
	N1    *RegressionTarget `json:"n1"`
	N2    *RegressionTarget `json:"n2"`
}

// Targets returns the regressed targets in parameter order.
func (d *ConditionalDensity) Targets() []*RegressionTarget {
	return []*RegressionTarget{d.Mu, d.Sigma, d.N1, d.N2}
}

// Bounded maps raw function outputs, in parameter order, to shape parameters.
func (d *ConditionalDensity) Bounded(raw []float64) Params {
	return Params{
		Mu:    d.Mu.Bound.Apply(raw[ParamMu]),
		Sigma: d.Sigma.Bound.Apply(raw[ParamSigma]),
		N1:    d.N1.Bound.Apply(raw[ParamN1]),
		N2:    d.N2.Bound.Apply(raw[ParamN2]),
	}
}

// NLL is the negative log-density of x for raw function outputs.
func (d *ConditionalDensity) NLL(x float64, raw []float64) float64 {
	return -d.LogPDF(x, d.Bounded(raw))
}

// LogPDF returns the normalized log-density of x. Outside Range, or for a
// non-positive width, it is -Inf.
func (d *ConditionalDensity) LogPDF(x float64, p Params) float64 {
	low, high := d.Range.Limits()
	if !(p.Sigma > 0) || x < low || x > high {
		return math.Inf(-1)
	}
	t := (x - p.Mu) / p.Sigma
	norm := p.Sigma * d.integral((low-p.Mu)/p.Sigma, (high-p.Mu)/p.Sigma, p.N1, p.N2)
	if !(norm > 0) || math.IsInf(norm, 1) {
		return math.Inf(-1)
	}
	return d.logShape(t, p.N1, p.N2) - math.Log(norm)
}

// logShape is the log of the unnormalized density at standardized t.
func (d *ConditionalDensity) logShape(t, n1, n2 float64) float64 {
	a1, a2 := d.Alpha1, d.Alpha2
	switch {
	case t < -a1:
		// A1*(B1-t)^-n1 with A1=(n1/a1)^n1*exp(-a1^2/2), B1=n1/a1-a1
		return -0.5*a1*a1 + n1*math.Log((n1/a1)/(n1/a1-a1-t))
	case t > a2:
		return -0.5*a2*a2 + n2*math.Log((n2/a2)/(n2/a2-a2+t))
	default:
		return -0.5 * t * t
	}
}

// integral integrates the unnormalized shape over standardized [lo, hi].
func (d *ConditionalDensity) integral(lo, hi, n1, n2 float64) float64 {
	a1, a2 := d.Alpha1, d.Alpha2
	total := 0.0

	// Gaussian core
	if a, b := math.Max(lo, -a1), math.Min(hi, a2); a < b {
		total += math.Sqrt(math.Pi/2) * (math.Erf(b/math.Sqrt2) - math.Erf(a/math.Sqrt2))
	}

	// left tail on t < -a1, u = B1 - t runs from n1/a1 outwards
	if lo < -a1 {
		b1 := n1/a1 - a1
		near := b1 - math.Min(hi, -a1)
		far := b1 - lo
		total += tailIntegral(n1, a1, near, far)
	}

	// right tail on t > a2, u = B2 + t
	if hi > a2 {
		b2 := n2/a2 - a2
		near := b2 + math.Max(lo, a2)
		far := b2 + hi
		total += tailIntegral(n2, a2, near, far)
	}
	return total
}

// tailIntegral integrates A*u^-n over [near, far], with
// A = (n/alpha)^n * exp(-alpha^2/2). far may be +Inf.
func tailIntegral(n, alpha, near, far float64) float64 {
	if !(near < far) {
		return 0
	}
	logA := n*math.Log(n/alpha) - 0.5*alpha*alpha
	if n == 1 {
		if math.IsInf(far, 1) {
			return math.Inf(1)
		}
		return math.Exp(logA) * (math.Log(far) - math.Log(near))
	}
	if n < 1 && math.IsInf(far, 1) {
		return math.Inf(1)
	}
	// A/(n-1) * (near^(1-n) - far^(1-n))
	nearTerm := math.Exp(logA + (1-n)*math.Log(near))
	farTerm := 0.0
	if !math.IsInf(far, 1) {
		farTerm = math.Exp(logA + (1-n)*math.Log(far))
	}
	return (nearTerm - farTerm) / (n - 1)
}

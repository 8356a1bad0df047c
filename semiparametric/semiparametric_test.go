package semiparametric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/semigbr/config"
	"github.com/YuminosukeSato/semigbr/dataset"
	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
)

func testConfig() *config.TrainingConfig {
	return &config.TrainingConfig{
		Name:      "peak",
		Variables: "pt:eta",
		Target:    "mass",
		MuLow:     0.8, MuHigh: 1.2,
		SigmaLow: 0.001, SigmaHigh: 0.5,
		N1Low: 1.01, N1High: 20,
		N2Low: 1.01, N2High: 20,
		Alpha1: 2.0, Alpha2: 1.0,
	}
}

func TestBoundTransform(t *testing.T) {
	b := BoundTransform{Low: 0.8, High: 1.2}
	assert.InDelta(t, 1.2, b.Apply(math.Pi/2), 1e-12)
	assert.InDelta(t, 0.8, b.Apply(-math.Pi/2), 1e-12)
	assert.InDelta(t, 1.0, b.Apply(0), 1e-12)

	for _, raw := range []float64{-1e6, -7.3, -1, 0.2, 3, 42, 1e9} {
		v := b.Apply(raw)
		assert.GreaterOrEqual(t, v, 0.8)
		assert.LessOrEqual(t, v, 1.2)
	}

	const h = 1e-6
	for _, raw := range []float64{-1, 0, 0.7} {
		numeric := (b.Apply(raw+h) - b.Apply(raw-h)) / (2 * h)
		assert.InDelta(t, numeric, b.Derivative(raw), 1e-6)
	}

	assert.InDelta(t, 1.1, b.Apply(b.Inverse(1.1)), 1e-12)
	assert.InDelta(t, math.Pi/2, b.Inverse(5), 1e-12)
	assert.Equal(t, 0.0, BoundTransform{Low: 1, High: 1}.Inverse(1))
}

func TestDensityNormalization(t *testing.T) {
	cases := []struct {
		name string
		rng  Range
		p    Params
	}{
		{"unbounded", Range{}, Params{Mu: 1, Sigma: 0.1, N1: 3, N2: 5}},
		{"unbounded heavy tails", Range{}, Params{Mu: 0, Sigma: 1, N1: 2.5, N2: 2.5}},
		{"finite", Range{Finite: true, Low: 0.5, High: 1.5}, Params{Mu: 1, Sigma: 0.1, N1: 1, N2: 0.5}},
		{"finite asymmetric", Range{Finite: true, Low: 0.9, High: 1.3}, Params{Mu: 1.05, Sigma: 0.05, N1: 4, N2: 1.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &ConditionalDensity{Alpha1: 2, Alpha2: 1, Range: tc.rng}
			lo, hi := tc.p.Mu-200*tc.p.Sigma, tc.p.Mu+200*tc.p.Sigma
			if tc.rng.Finite {
				lo, hi = tc.rng.Low, tc.rng.High
			}
			const n = 400001
			xs := make([]float64, n)
			ys := make([]float64, n)
			floats.Span(xs, lo, hi)
			for i, x := range xs {
				ys[i] = math.Exp(d.LogPDF(x, tc.p))
			}
			total := integrate.Trapezoidal(xs, ys)
			tol := 1e-3
			if !tc.rng.Finite {
				// truncated power-law tails beyond +-200 sigma
				tol = 2e-2
			}
			assert.InDelta(t, 1.0, total, tol)
		})
	}
}

func TestDensityShape(t *testing.T) {
	d := &ConditionalDensity{Alpha1: 1.5, Alpha2: 1}
	p := Params{Mu: 0, Sigma: 1, N1: 3, N2: 3}

	// continuity at both crossover points
	for _, x := range []float64{-1.5, 1} {
		assert.InDelta(t, d.LogPDF(x-1e-9, p), d.LogPDF(x+1e-9, p), 1e-6)
	}
	// mode at mu
	assert.Greater(t, d.LogPDF(0, p), d.LogPDF(0.1, p))
	assert.Greater(t, d.LogPDF(0, p), d.LogPDF(-0.1, p))

	assert.True(t, math.IsInf(d.LogPDF(0, Params{Mu: 0, Sigma: 0, N1: 3, N2: 3}), -1))
	bounded := &ConditionalDensity{Alpha1: 1, Alpha2: 1, Range: Range{Finite: true, Low: -1, High: 1}}
	assert.True(t, math.IsInf(bounded.LogPDF(2, p), -1))
	// n <= 1 tails do not normalize on the whole line
	assert.True(t, math.IsInf(d.LogPDF(0, Params{Mu: 0, Sigma: 1, N1: 1, N2: 3}), -1))
}

func TestBuild(t *testing.T) {
	d, err := Build(testConfig(), []string{"var_0", "var_1"})
	require.NoError(t, err)

	assert.Equal(t, "pdf", d.Name)
	assert.Equal(t, "mass", d.TargetTitle)
	assert.False(t, d.Range.Finite)
	assert.Equal(t, 2.0, d.Alpha1)
	assert.Equal(t, 1.0, d.Alpha2)

	targets := d.Targets()
	require.Len(t, targets, NumParams)
	names := []string{"mu", "sigma", "n1", "n2"}
	seeds := []float64{1.0, 0.01, 3.0, 3.0}
	for i, target := range targets {
		assert.Equal(t, names[i], target.Name)
		assert.Equal(t, names[i]+"CB", target.Key)
		assert.Equal(t, names[i]+"func", target.Func)
		assert.Equal(t, names[i]+"lim", target.Limit)
		assert.Equal(t, seeds[i], target.Seed)
		assert.Equal(t, []string{"var_0", "var_1"}, target.Inputs)
		assert.GreaterOrEqual(t, target.Fallback(), target.Bound.Low)
		assert.LessOrEqual(t, target.Fallback(), target.Bound.High)
	}
	assert.Equal(t, BoundTransform{0.8, 1.2}, d.Mu.Bound)

	_, err = Build(testConfig(), nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Alpha2 = 0
	_, err = Build(cfg, []string{"var_0"})
	assert.Error(t, err)
}

func TestBuildRejectsInvertedBounds(t *testing.T) {
	cfg := testConfig()
	cfg.SigmaLow, cfg.SigmaHigh = 0.5, 0.001
	_, err := Build(cfg, []string{"var_0"})
	var validErr *scerr.ValidationError
	require.True(t, scerr.As(err, &validErr))
	assert.Equal(t, "sigma_DownLimit", validErr.ParamName)

	cfg = testConfig()
	cfg.TargetLow, cfg.TargetHigh = 2, 1
	_, err = Build(cfg, []string{"var_0"})
	require.Error(t, err)

	// a degenerate bound pins the target
	cfg = testConfig()
	cfg.N2Low, cfg.N2High = 5, 5
	d, err := Build(cfg, []string{"var_0"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, d.N2.Bound.Apply(0.3))
	assert.True(t, math.IsNaN(d.N2.Bound.Apply(math.Inf(1))))
}

func TestResolve(t *testing.T) {
	t.Run("scenario", func(t *testing.T) {
		h, report := Resolve("EventWeight=w:NTrees=100:Shrinkage=0.1")
		require.NoError(t, report.Err())
		assert.Empty(t, report.Warnings())
		assert.Equal(t, 100, h.NTrees)
		assert.Equal(t, 0.1, h.Shrinkage)
		assert.Equal(t, 200.0, h.MinEvents)
		assert.Equal(t, -99.0, h.MinSignificance)
		assert.Equal(t, 1.0, h.TransitionQuantile)
		assert.Equal(t, -1, h.MaxDepth)
	})

	t.Run("malformed token", func(t *testing.T) {
		h, report := Resolve("BadToken:NTrees=5")
		require.NoError(t, report.Err())
		warnings := report.Warnings()
		require.Len(t, warnings, 1)
		var w *scerr.MalformedOptionWarning
		assert.True(t, scerr.As(warnings[0], &w))
		assert.Equal(t, "BadToken", w.Token)
		assert.Equal(t, DefaultHyperparameters().Shrinkage, h.Shrinkage)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, report := Resolve("NTrees=5:Depth=3")
		require.NoError(t, report.Err())
		require.Len(t, report.Warnings(), 1)
		var w *scerr.UnknownOptionWarning
		require.True(t, scerr.As(report.Warnings()[0], &w))
		assert.Equal(t, "Depth", w.Tag)
		assert.Equal(t, OptionTags(), w.Known)
	})

	t.Run("missing NTrees", func(t *testing.T) {
		_, report := Resolve("Shrinkage=0.2")
		assert.True(t, scerr.Is(report.Err(), scerr.ErrMissingIterationCount))
	})

	t.Run("invalid values", func(t *testing.T) {
		for _, opts := range []string{"NTrees=10x", "NTrees=1.5", "NTrees=0", "NTrees=5:Shrinkage=fast", "NTrees=5:TransitionQuantile=1.5"} {
			_, report := Resolve(opts)
			var invalid *scerr.InvalidOptionValueError
			assert.True(t, scerr.As(report.Err(), &invalid), opts)
		}
	})

	t.Run("empty tokens skipped", func(t *testing.T) {
		h, report := Resolve("::NTrees=3::MaxDepth=4:")
		require.NoError(t, report.Err())
		assert.Empty(t, report.Warnings())
		assert.Equal(t, 3, h.NTrees)
		assert.Equal(t, 4, h.MaxDepth)
	})
}

func TestForest(t *testing.T) {
	tree := Tree{
		ShrinkageRate: 0.5,
		Nodes: []Node{
			{NodeID: 0, ParentID: -1, LeftChild: 1, RightChild: 2, SplitFeature: 1, Threshold: 0, Gain: 3},
			{NodeID: 1, ParentID: 0, LeftChild: -1, RightChild: -1, LeafValue: -2},
			{NodeID: 2, ParentID: 0, LeftChild: -1, RightChild: -1, LeafValue: 4},
		},
	}
	f := &Forest{Target: "mu", NumFeatures: 2, InitialResponse: 1, Trees: []Tree{tree}}

	assert.Equal(t, 0.0, f.PredictRow([]float64{9, -1}))
	assert.Equal(t, 3.0, f.PredictRow([]float64{9, 1}))
	assert.Equal(t, 3.0, f.PredictRow([]float64{9, math.NaN()}))
	assert.Equal(t, []float64{0, 3}, f.Predict(mat.NewDense(2, 2, []float64{0, -1, 0, 1})))
	assert.Equal(t, []float64{0, 1}, f.FeatureImportance())
	assert.Equal(t, 2, tree.NumLeaves())
}

type stubEngine struct {
	fit   *Fit
	err   error
	panic bool
}

func (s stubEngine) Train(*dataset.Dataset, *ConditionalDensity, Hyperparameters) (*Fit, error) {
	if s.panic {
		panic("split on empty node")
	}
	return s.fit, s.err
}

func TestTrainDriver(t *testing.T) {
	d, err := Build(testConfig(), []string{"var_0"})
	require.NoError(t, err)
	ds, err := dataset.FromMatrix([]dataset.Feature{{Name: "var_0", Title: "pt"}},
		mat.NewDense(2, 1, []float64{1, 2}), []float64{1, 1.1}, nil)
	require.NoError(t, err)
	hp := DefaultHyperparameters()
	hp.NTrees = 1

	forests := make([]*Forest, NumParams)
	for i, target := range d.Targets() {
		forests[i] = &Forest{Target: target.Name, Key: target.Key, NumFeatures: 1, InitialResponse: target.Seed}
	}

	model, err := Train(stubEngine{fit: &Fit{Forests: forests, Loss: []float64{0.3}}}, ds, d, hp)
	require.NoError(t, err)
	assert.True(t, model.IsFitted())
	p := model.Predict([]float64{1})
	assert.Equal(t, d.Mu.Fallback(), p.Mu)
	assert.Equal(t, d.Sigma.Fallback(), p.Sigma)

	var engineErr *scerr.TrainingEngineError
	_, err = Train(stubEngine{err: scerr.New("diverged")}, ds, d, hp)
	assert.True(t, scerr.As(err, &engineErr))

	_, err = Train(stubEngine{panic: true}, ds, d, hp)
	assert.True(t, scerr.As(err, &engineErr))

	_, err = Train(stubEngine{fit: &Fit{Forests: forests[:2]}}, ds, d, hp)
	assert.True(t, scerr.As(err, &engineErr))
}

package pipeline

import (
	"archive/zip"
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/semigbr/artifact"
	"github.com/YuminosukeSato/semigbr/dataset"
	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
	"github.com/YuminosukeSato/semigbr/semiparametric"
)

func writeEvents(t *testing.T, path string, n int, seed int64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	columns := map[string][]float64{"pt": nil, "eta": nil, "mass": nil, "w": nil}
	for i := 0; i < n; i++ {
		pt := 20 + 80*rng.Float64()
		columns["pt"] = append(columns["pt"], pt)
		columns["eta"] = append(columns["eta"], 4*rng.Float64()-2)
		columns["mass"] = append(columns["mass"], 1+0.001*(pt-60)+0.03*rng.NormFloat64())
		columns["w"] = append(columns["w"], 1)
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for _, name := range []string{"eta", "mass", "pt", "w"} {
		w, err := zw.Create("events/" + name + ".npy")
		require.NoError(t, err)
		require.NoError(t, npyio.Write(w, columns[name]))
	}
	require.NoError(t, zw.Close())
}

type fixture struct {
	dir    string
	inputs []string
}

func newFixture(t *testing.T) fixture {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.npz")
	b := filepath.Join(dir, "b.npz")
	writeEvents(t, a, 300, 1)
	writeEvents(t, b, 200, 2)
	return fixture{dir: dir, inputs: []string{a, b}}
}

func (f fixture) config(t *testing.T, options string, extra ...string) string {
	t.Helper()
	lines := []string{
		"Name: peak",
		"OutputDirectory: " + f.dir,
		"InputFiles: " + strings.Join(f.inputs, ":"),
		"Tree: events",
		"Options: " + options,
		"Variables: pt:abs(eta)",
		"Target: mass",
		"Cut: pt > 25",
		"mu_DownLimit: 0.8",
		"mu_UpLimit: 1.2",
		"sigma_DownLimit: 0.001",
		"sigma_UpLimit: 0.5",
		"n1_DownLimit: 1.01",
		"n1_UpLimit: 20",
		"n2_DownLimit: 1.01",
		"n2_UpLimit: 20",
		"alpha1: 2.0",
		"alpha2: 1.0",
	}
	lines = append(lines, extra...)
	path := filepath.Join(f.dir, "peak.config")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestRunWritesArtifacts(t *testing.T) {
	f := newFixture(t)
	path := f.config(t, "EventWeight=w:NTrees=4:MinEvents=20:Shrinkage=0.2:BadToken", "PlotLossCurve: true")

	var out bytes.Buffer
	res, err := Run(path, WithLogOutput(&out), WithRunID("run-42"))
	require.NoError(t, err)

	assert.Equal(t, "run-42", res.RunID)
	assert.Equal(t, filepath.Join(f.dir, "peak_results.json"), res.ArtifactPath)
	assert.Len(t, res.Loss, 4)
	assert.Greater(t, res.Metrics.SumWeights, 0.0)
	require.Len(t, res.Warnings, 1)
	var malformed *scerr.MalformedOptionWarning
	assert.True(t, scerr.As(res.Warnings[0], &malformed))

	a, err := artifact.Read(res.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, "peak", a.Name)
	assert.Equal(t, "run-42", a.RunID)
	assert.Equal(t, []dataset.Feature{{Name: "var_0", Title: "pt"}, {Name: "var_1", Title: "abs(eta)"}}, a.VarList)
	assert.Equal(t, []string{"varlist", "muCB", "sigmaCB", "n1CB", "n2CB", "w"}, a.Keys())
	assert.Equal(t, semiparametric.DensityName, a.W.PDF.Name)
	assert.Equal(t, "mass", a.W.PDF.TargetTitle)
	assert.Equal(t, 4, a.Hyperparameters.NTrees)
	for _, forest := range a.Forests() {
		assert.Len(t, forest.Trees, 4)
	}

	_, err = os.Stat(res.LossCurvePath)
	assert.NoError(t, err)

	log := out.String()
	assert.Contains(t, log, "INFO:")
	assert.Contains(t, log, "WARN:")
	assert.NotContains(t, log, "FATAL:")
}

func TestRunIsDeterministic(t *testing.T) {
	f := newFixture(t)
	path := f.config(t, "EventWeight=w:NTrees=3:MinEvents=20", "OutputFormat: gob")

	var out bytes.Buffer
	first, err := Run(path, WithLogOutput(&out))
	require.NoError(t, err)
	a, err := artifact.Read(first.ArtifactPath)
	require.NoError(t, err)

	second, err := Run(path, WithLogOutput(&out))
	require.NoError(t, err)
	b, err := artifact.Read(second.ArtifactPath)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Loss, second.Loss)
	assert.Equal(t, a.VarList, b.VarList)
	assert.Equal(t, a.Forests(), b.Forests())
}

func TestRunLenientSkipsMissingFile(t *testing.T) {
	f := newFixture(t)
	f.inputs = append(f.inputs, filepath.Join(f.dir, "missing.npz"))
	path := f.config(t, "NTrees=2:MinEvents=20")

	var out bytes.Buffer
	res, err := Run(path, WithLogOutput(&out))
	require.NoError(t, err)
	assert.Len(t, res.Loss, 2)
	assert.Contains(t, out.String(), "ERROR:")

	strict := f.config(t, "NTrees=2:MinEvents=20", "Strict: true")
	_, err = Run(strict, WithLogOutput(&out))
	var openErr *scerr.FileOpenError
	assert.True(t, scerr.As(err, &openErr))
}

func TestRunFatalConditions(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		path  func() string
		check func(t *testing.T, err error)
	}{
		{
			name: "missing NTrees",
			path: func() string { return f.config(t, "EventWeight=w:Shrinkage=0.1") },
			check: func(t *testing.T, err error) {
				assert.True(t, scerr.Is(err, scerr.ErrMissingIterationCount))
			},
		},
		{
			name: "invalid option value",
			path: func() string { return f.config(t, "NTrees=10abc") },
			check: func(t *testing.T, err error) {
				var optErr *scerr.InvalidOptionValueError
				assert.True(t, scerr.As(err, &optErr))
			},
		},
		{
			name: "unreadable configuration",
			path: func() string { return filepath.Join(f.dir, "absent.config") },
			check: func(t *testing.T, err error) {
				var cfgErr *scerr.ConfigReadError
				assert.True(t, scerr.As(err, &cfgErr))
			},
		},
		{
			name: "strict validation",
			path: func() string {
				return f.config(t, "NTrees=2", "Strict: true", "mu_DownLimit: 1.5")
			},
			check: func(t *testing.T, err error) {
				var validErr *scerr.ValidationError
				assert.True(t, scerr.As(err, &validErr))
			},
		},
		{
			name: "inverted bound in lenient mode",
			path: func() string {
				return f.config(t, "NTrees=2", "mu_DownLimit: 1.5")
			},
			check: func(t *testing.T, err error) {
				var validErr *scerr.ValidationError
				assert.True(t, scerr.As(err, &validErr))
			},
		},
		{
			name: "unwritable output",
			path: func() string {
				return f.config(t, "NTrees=2", "OutputDirectory: "+filepath.Join(f.dir, "no", "such", "dir"))
			},
			check: func(t *testing.T, err error) {
				var outErr *scerr.OutputUnwritableError
				assert.True(t, scerr.As(err, &outErr))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			_, err := Run(tc.path(), WithLogOutput(&out))
			require.Error(t, err)
			tc.check(t, err)
			assert.Contains(t, out.String(), "FATAL:")
		})
	}
}

type failingEngine struct{}

func (failingEngine) Train(*dataset.Dataset, *semiparametric.ConditionalDensity, semiparametric.Hyperparameters) (*semiparametric.Fit, error) {
	return nil, fmt.Errorf("engine exploded")
}

func TestRunEngineFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	path := f.config(t, "NTrees=2")

	var out bytes.Buffer
	_, err := Run(path, WithLogOutput(&out), WithEngine(failingEngine{}))
	var engineErr *scerr.TrainingEngineError
	require.True(t, scerr.As(err, &engineErr))
	assert.Contains(t, out.String(), "TrainingEngineError")

	// only the empty container created before training exists
	info, err := os.Stat(filepath.Join(f.dir, "peak_results.json"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestRunLenientCreatesOutputBeforeTraining(t *testing.T) {
	f := newFixture(t)
	f.inputs = append(f.inputs, filepath.Join(f.dir, "missing.npz"))
	path := f.config(t, "NTrees=2")

	var out bytes.Buffer
	_, err := Run(path, WithLogOutput(&out), WithEngine(failingEngine{}))
	var engineErr *scerr.TrainingEngineError
	require.True(t, scerr.As(err, &engineErr))
	assert.Contains(t, out.String(), "Cannot open input file")

	info, err := os.Stat(filepath.Join(f.dir, "peak_results.json"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

package dataset

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/semigbr/config"
	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
)

// writeNPZ writes columns as tree/<name>.npy entries of a new archive.
func writeNPZ(t *testing.T, path, tree string, columns map[string][]float64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(f)
	for _, name := range names {
		w, err := zw.Create(tree + "/" + name + ".npy")
		require.NoError(t, err)
		require.NoError(t, npyio.Write(w, columns[name]))
	}
	require.NoError(t, zw.Close())
}

func baseConfig(dir string, files ...string) *config.TrainingConfig {
	return &config.TrainingConfig{
		Name:            "peak",
		OutputDirectory: dir,
		InputFiles:      joinPaths(files),
		Tree:            "events",
		Options:         "EventWeight=w:NTrees=10",
		Variables:       "pt:abs(eta)",
		Target:          "mass",
		Cut:             "pt > 20",
	}
}

func joinPaths(files []string) string {
	out := ""
	for i, f := range files {
		if i > 0 {
			out += ":"
		}
		out += f
	}
	return out
}

func TestAssembleWeightsAndCut(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.npz")
	writeNPZ(t, a, "events", map[string][]float64{
		"pt":   {10, 25, 40},
		"eta":  {-1, -2, 0.5},
		"mass": {0.9, 1.0, 1.1},
		"w":    {2, 3, 4},
	})

	ds, report, err := Assemble(baseConfig(dir, a))
	require.NoError(t, err)
	defer ds.Close()
	assert.Empty(t, report.Errors())

	assert.Equal(t, 3, ds.Rows())
	assert.Equal(t, []Feature{{"var_0", "pt"}, {"var_1", "abs(eta)"}}, ds.Features)
	assert.Equal(t, []float64{25, 2}, ds.Row(1))
	assert.Equal(t, []float64{0.9, 1.0, 1.1}, ds.Y)
	// first row fails the cut: weight is zeroed whatever w says
	assert.Equal(t, []float64{0, 3, 4}, ds.W)
	assert.Equal(t, 7.0, ds.SumWeights())
	assert.Equal(t, []string{a}, ds.Sources)

	_, err = os.Stat(filepath.Join(dir, "peak_results.json"))
	assert.NoError(t, err, "output container must exist after assembly")
	assert.NoError(t, ds.Close())
	assert.NoError(t, ds.Close())
}

func TestAssembleLenientSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.npz")
	other := filepath.Join(dir, "other.npz")
	missing := filepath.Join(dir, "b.npz")
	writeNPZ(t, a, "events", map[string][]float64{"pt": {30}, "eta": {0}, "mass": {1}, "w": {1}})
	writeNPZ(t, other, "calib", map[string][]float64{"pt": {30}})

	ds, report, err := Assemble(baseConfig(dir, a, missing, other))
	require.NoError(t, err)
	defer ds.Close()

	errs := report.Errors()
	require.Len(t, errs, 2)
	var openErr *scerr.FileOpenError
	assert.True(t, scerr.As(errs[0], &openErr))
	assert.Equal(t, missing, openErr.Path)
	var treeErr *scerr.TreeNotFoundError
	assert.True(t, scerr.As(errs[1], &treeErr))
	assert.Equal(t, 1, ds.Rows())

	// the empty output container exists once the dataset is assembled
	info, err := os.Stat(filepath.Join(dir, "peak_results.json"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestAssembleStrictAborts(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.npz")
	writeNPZ(t, a, "events", map[string][]float64{"pt": {30}, "eta": {0}, "mass": {1}, "w": {1}})

	cfg := baseConfig(dir, a, filepath.Join(dir, "missing.npz"))
	cfg.Strict = true
	_, report, err := Assemble(cfg)
	require.Error(t, err)
	assert.Len(t, report.Errors(), 1)

	var openErr *scerr.FileOpenError
	assert.True(t, scerr.As(err, &openErr))
	_, statErr := os.Stat(filepath.Join(dir, "peak_results.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAssembleFatalConditions(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.npz")
	writeNPZ(t, a, "events", map[string][]float64{"pt": {30}, "eta": {0}, "mass": {1}, "w": {1}})

	t.Run("no usable file", func(t *testing.T) {
		_, _, err := Assemble(baseConfig(dir, filepath.Join(dir, "none.npz")))
		require.Error(t, err)
		assert.NotEmpty(t, scerr.Hints(err))
	})

	t.Run("unwritable output", func(t *testing.T) {
		cfg := baseConfig(filepath.Join(dir, "no", "such", "dir"), a)
		_, _, err := Assemble(cfg)
		var outErr *scerr.OutputUnwritableError
		assert.True(t, scerr.As(err, &outErr))
	})

	t.Run("unwritable output before expressions", func(t *testing.T) {
		cfg := baseConfig(filepath.Join(dir, "no", "such", "dir"), a, filepath.Join(dir, "none.npz"))
		cfg.Variables = "pt:phi"
		cfg.Target = "undefined_column"
		_, report, err := Assemble(cfg)
		var outErr *scerr.OutputUnwritableError
		require.True(t, scerr.As(err, &outErr))
		assert.Len(t, report.Errors(), 1)
	})

	t.Run("unknown column", func(t *testing.T) {
		cfg := baseConfig(dir, a)
		cfg.Variables = "pt:phi"
		_, _, err := Assemble(cfg)
		assert.Error(t, err)
	})
}

func TestTableDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.npz")
	writeNPZ(t, path, "events", map[string][]float64{"a": {1, 2}, "b": {1}})

	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Table("events")
	var dimErr *scerr.DimensionError
	assert.True(t, scerr.As(err, &dimErr))
}

func TestExpressions(t *testing.T) {
	columns := []string{"x", "y"}
	tests := []struct {
		src  string
		want float64
	}{
		{"x + y", 7},
		{"sqrt(x*x + y*y - 12)", 3.605551275463989},
		{"pow(x, 2)", 9},
		{"x > 2 && y < 5", 1},
		{"!(x > 2)", 0},
		{"abs(-y)", 4},
		{"exp(0) + log(1)", 1},
	}
	row := map[string]any{"x": 3.0, "y": 4.0}
	for _, tt := range tests {
		e, err := CompileExpression(tt.src, columns)
		require.NoError(t, err, tt.src)
		got, err := e.Eval(row)
		require.NoError(t, err, tt.src)
		assert.InDelta(t, tt.want, got, 1e-12, tt.src)
	}

	_, err := CompileExpression("z + 1", columns)
	assert.Error(t, err)
}

func TestFromMatrix(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{1, 2})
	ds, err := FromMatrix([]Feature{{Name: FeatureName(0), Title: "a"}}, x, []float64{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, ds.W)
	assert.Equal(t, []string{"a"}, ds.FeatureTitles())

	_, err = FromMatrix([]Feature{{Name: "var_0"}}, x, []float64{1}, nil)
	assert.Error(t, err)
}

// Package dataset assembles the weighted events a regression run trains on.
//
// Input files are opened in declaration order and the configured table is
// read from each one. Feature, target, weight and cut expressions are
// evaluated per row; the effective weight of a row is the weight expression
// times a 0/1 gate from the cut, so rows failing the cut stay in the dataset
// with weight zero.
package dataset

import (
	"fmt"
	"os"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/semigbr/config"
	"github.com/YuminosukeSato/semigbr/core/parallel"
	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
	"github.com/YuminosukeSato/semigbr/pkg/log"
)

// TargetName is the variable name of the regression target.
const TargetName = "targetvar"

// rows per worker below which evaluation stays on one goroutine
const parallelThreshold = 4096

// Feature is one input variable: Name is the positional variable name
// (var_0, var_1, ...) and Title the expression it is computed from.
type Feature struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// FeatureName returns the positional variable name of feature i.
func FeatureName(i int) string {
	return fmt.Sprintf("var_%d", i)
}

// Dataset is the read-only event collection of one run. X holds one row per
// event and one column per feature, Y the target and W the effective weight.
type Dataset struct {
	Features    []Feature
	TargetTitle string
	X           *mat.Dense
	Y           []float64
	W           []float64
	// Sources lists the files whose table contributed rows.
	Sources []string

	closeOnce sync.Once
	files     []*File
}

// Rows returns the number of events.
func (d *Dataset) Rows() int {
	return len(d.Y)
}

// Row returns the feature vector of event i. The slice aliases X.
func (d *Dataset) Row(i int) []float64 {
	return d.X.RawRowView(i)
}

// SumWeights returns the total effective weight.
func (d *Dataset) SumWeights() float64 {
	return floats.Sum(d.W)
}

// FeatureTitles returns the feature expressions in column order.
func (d *Dataset) FeatureTitles() []string {
	titles := make([]string, len(d.Features))
	for i, f := range d.Features {
		titles[i] = f.Title
	}
	return titles
}

// Close releases every input file opened during assembly. It is safe to call
// more than once.
func (d *Dataset) Close() error {
	var errs []error
	d.closeOnce.Do(func() {
		for _, f := range d.files {
			if err := f.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		d.files = nil
	})
	return scerr.Join(errs...)
}

// FromMatrix builds an in-memory dataset, mainly for tests and for callers
// that already hold their events. w may be nil for unit weights.
func FromMatrix(features []Feature, x *mat.Dense, y, w []float64) (*Dataset, error) {
	r, c := x.Dims()
	if c != len(features) {
		return nil, scerr.NewDimensionError("dataset.FromMatrix", len(features), c, 1)
	}
	if len(y) != r {
		return nil, scerr.NewDimensionError("dataset.FromMatrix", r, len(y), 0)
	}
	if w == nil {
		w = make([]float64, r)
		for i := range w {
			w[i] = 1
		}
	}
	if len(w) != r {
		return nil, scerr.NewDimensionError("dataset.FromMatrix", r, len(w), 0)
	}
	return &Dataset{Features: features, X: x, Y: y, W: w}, nil
}

// CreateOutput creates (or truncates) the result file and closes it again so
// that an unwritable destination fails the run before any training.
func CreateOutput(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return scerr.NewOutputUnwritableError(path, err)
	}
	if err := f.Close(); err != nil {
		return scerr.NewOutputUnwritableError(path, err)
	}
	return nil
}

// Assemble opens every input file of cfg, creates the empty output container
// and evaluates the configured expressions into one Dataset.
//
// Per-file problems (FileOpenError, TreeNotFoundError) are recorded in the
// returned report. In strict mode they abort the assembly; otherwise the
// remaining files are used. Having no usable file at all is always an error.
// On error every opened file is closed before returning.
func Assemble(cfg *config.TrainingConfig) (ds *Dataset, report *scerr.Report, err error) {
	logger := log.GetLoggerWithName("dataset").With(log.PhaseKey, log.PhaseAssemble)
	report = scerr.NewReport()

	var files []*File
	var tables []*Table
	defer func() {
		if err != nil {
			for _, f := range files {
				_ = f.Close()
			}
		}
	}()

	for _, path := range cfg.Files() {
		logger.Info("Adding input file", log.FilePathKey, path, log.TreeKey, cfg.Tree)
		f, openErr := OpenFile(path)
		if openErr != nil {
			logger.Error("Cannot open input file", openErr, log.FilePathKey, path)
			report.Fail(openErr)
			continue
		}
		files = append(files, f)

		table, tableErr := f.Table(cfg.Tree)
		if tableErr != nil {
			logger.Error("Cannot find regression tree", tableErr, log.FilePathKey, path, log.TreeKey, cfg.Tree)
			report.Fail(tableErr)
			continue
		}
		tables = append(tables, table)
	}

	if cfg.Strict && report.HasErrors() {
		return nil, report, scerr.Wrap(report.Err(), "strict mode: input files are not all usable")
	}
	if len(tables) == 0 {
		err = scerr.WithHint(scerr.Newf("no usable input file among %q", cfg.InputFiles),
			"check InputFiles and that every file contains the table named by Tree")
		return nil, report, err
	}

	outPath := cfg.OutputPath()
	logger.Info("Creating output file", log.FilePathKey, outPath)
	if err = CreateOutput(outPath); err != nil {
		return nil, report, err
	}

	titles := cfg.FeatureNames()
	if len(titles) == 0 {
		return nil, report, scerr.NewValidationError("Variables", "at least one variable is required", cfg.Variables)
	}
	features := make([]Feature, len(titles))
	for i, title := range titles {
		features[i] = Feature{Name: FeatureName(i), Title: title}
		logger.Info("Variable "+features[i].Name+": "+title, log.FeatureKey, features[i].Name, log.ExpressionKey, title)
	}
	logger.Info("Target variable: "+cfg.Target, log.ExpressionKey, cfg.Target)

	weight := cfg.EventWeight()
	if weight != "" {
		logger.Info("Event weight: "+weight, log.ExpressionKey, weight)
	}
	if cfg.Cut != "" {
		logger.Info("Cut: "+cfg.Cut, log.ExpressionKey, cfg.Cut)
	}

	ev := evaluator{features: titles, target: cfg.Target, weight: weight, cut: cfg.Cut}
	var xs, ys, ws []float64
	var sources []string
	for _, table := range tables {
		x, y, w, evalErr := ev.evaluate(table)
		if evalErr != nil {
			return nil, report, evalErr
		}
		xs = append(xs, x...)
		ys = append(ys, y...)
		ws = append(ws, w...)
		sources = append(sources, table.Path)
	}

	if len(ys) == 0 {
		return nil, report, scerr.Newf("tables %q contain no events", cfg.Tree)
	}

	ds = &Dataset{
		Features:    features,
		TargetTitle: cfg.Target,
		X:           mat.NewDense(len(ys), len(features), xs),
		Y:           ys,
		W:           ws,
		Sources:     sources,
		files:       files,
	}
	logger.Info("Dataset assembled",
		log.SamplesKey, ds.Rows(),
		log.FeaturesKey, len(features),
		log.WeightSumKey, ds.SumWeights(),
	)
	return ds, report, nil
}

// evaluator turns the rows of a table into feature, target and weight values.
type evaluator struct {
	features []string
	target   string
	weight   string
	cut      string
}

type compiled struct {
	features []*Expression
	target   *Expression
	weight   *Expression
	cut      *Expression
}

func (ev evaluator) compile(columns []string) (*compiled, error) {
	c := &compiled{features: make([]*Expression, len(ev.features))}
	var err error
	for i, src := range ev.features {
		if c.features[i], err = CompileExpression(src, columns); err != nil {
			return nil, err
		}
	}
	if c.target, err = CompileExpression(ev.target, columns); err != nil {
		return nil, err
	}
	if ev.weight != "" {
		if c.weight, err = CompileExpression(ev.weight, columns); err != nil {
			return nil, err
		}
	}
	if ev.cut != "" {
		if c.cut, err = CompileExpression(ev.cut, columns); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (ev evaluator) evaluate(table *Table) (x, y, w []float64, err error) {
	columns := table.ColumnNames()
	c, err := ev.compile(columns)
	if err != nil {
		return nil, nil, nil, scerr.Wrapf(err, "table %s in %s", table.Name, table.Path)
	}

	n, nf := table.Rows, len(c.features)
	x = make([]float64, n*nf)
	y = make([]float64, n)
	w = make([]float64, n)

	err = parallel.Run(n, parallelThreshold, func(start, end int) error {
		env := make(map[string]any, len(columns))
		for i := start; i < end; i++ {
			for _, name := range columns {
				env[name] = table.Columns[name][i]
			}
			for j, fe := range c.features {
				v, err := fe.Eval(env)
				if err != nil {
					return err
				}
				x[i*nf+j] = v
			}
			v, err := c.target.Eval(env)
			if err != nil {
				return err
			}
			y[i] = v

			weight := 1.0
			if c.weight != nil {
				if weight, err = c.weight.Eval(env); err != nil {
					return err
				}
			}
			if c.cut != nil {
				pass, err := c.cut.Eval(env)
				if err != nil {
					return err
				}
				if pass == 0 {
					weight = 0
				}
			}
			w[i] = weight
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, scerr.Wrapf(err, "table %s in %s", table.Name, table.Path)
	}
	return x, y, w, nil
}

package dataset

import (
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
)

// Expression is a compiled formula over the columns of a table, e.g.
// "sqrt(px*px + py*py)" or "abs(eta) < 2.5 && pt > 20".
type Expression struct {
	Source  string
	program *vm.Program
}

var mathFunctions = []expr.Option{
	unary("sqrt", math.Sqrt),
	unary("exp", math.Exp),
	unary("log", math.Log),
	unary("log10", math.Log10),
	unary("sin", math.Sin),
	unary("cos", math.Cos),
	unary("tanh", math.Tanh),
	expr.Function("pow", func(params ...any) (any, error) {
		if len(params) != 2 {
			return nil, scerr.Newf("pow expects 2 arguments, got %d", len(params))
		}
		base, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		exponent, err := toFloat(params[1])
		if err != nil {
			return nil, err
		}
		return math.Pow(base, exponent), nil
	}),
}

func unary(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, scerr.Newf("%s expects 1 argument, got %d", name, len(params))
		}
		x, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		return fn(x), nil
	})
}

// CompileExpression compiles src against the given column names. A reference
// to an unknown column is a compile error.
func CompileExpression(src string, columns []string) (*Expression, error) {
	env := make(map[string]any, len(columns))
	for _, c := range columns {
		env[c] = 0.0
	}
	opts := append([]expr.Option{expr.Env(env)}, mathFunctions...)
	program, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, scerr.Wrapf(err, "compiling expression %q", src)
	}
	return &Expression{Source: src, program: program}, nil
}

// Eval evaluates the expression against one row. Booleans map to 0 and 1.
func (e *Expression) Eval(row map[string]any) (float64, error) {
	out, err := expr.Run(e.program, row)
	if err != nil {
		return 0, scerr.Wrapf(err, "evaluating %q", e.Source)
	}
	return toFloat(out)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, scerr.Newf("expression produced %T, expected a number or boolean", v)
	}
}

package errors

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrors(t *testing.T) {
	t.Run("config read error", func(t *testing.T) {
		err := NewConfigReadError("run.config", "Alpha1", "not a number")
		var cfgErr *ConfigReadError
		require.True(t, As(err, &cfgErr))
		assert.Equal(t, "Alpha1", cfgErr.Key)
		assert.Contains(t, err.Error(), "run.config")
	})

	t.Run("tree not found", func(t *testing.T) {
		err := NewTreeNotFoundError("events", "a.npz")
		assert.Equal(t, "semigbr: cannot find regression tree events in a.npz", err.Error())
	})

	t.Run("file open wraps cause", func(t *testing.T) {
		cause := New("permission denied")
		err := NewFileOpenError("a.npz", cause)
		assert.True(t, Is(err, cause))
	})

	t.Run("training engine wraps cause", func(t *testing.T) {
		cause := New("boom")
		err := NewTrainingEngineError("fit", cause)
		var engineErr *TrainingEngineError
		require.True(t, As(err, &engineErr))
		assert.Equal(t, "fit", engineErr.Stage)
		assert.True(t, Is(err, cause))
	})

	t.Run("missing iteration count carries hint", func(t *testing.T) {
		err := NewMissingIterationCountError()
		assert.True(t, Is(err, ErrMissingIterationCount))
		hints := Hints(err)
		require.Len(t, hints, 1)
		assert.Contains(t, hints[0], "NTrees")
	})

	t.Run("unknown option lists possibilities", func(t *testing.T) {
		w := NewUnknownOptionWarning("Depth", []string{"MinEvents", "NTrees"})
		assert.Equal(t, "unknown option Depth. Possibilities are: MinEvents, NTrees", w.Error())
	})
}

func TestWarnDispatch(t *testing.T) {
	var got []string
	SetWarningHandler(func(w error) { got = append(got, w.Error()) })
	defer SetWarningHandler(nil)

	Warn(NewMalformedOptionWarning("NTrees"))
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "option NTrees cannot be processed"))
}

func TestReport(t *testing.T) {
	SetWarningHandler(func(error) {})
	defer SetWarningHandler(nil)

	r := NewReport()
	assert.NoError(t, r.Err())

	r.Warn(NewMalformedOptionWarning("x"))
	r.Warn(nil)
	assert.Len(t, r.Warnings(), 1)
	assert.False(t, r.HasErrors())

	first := NewFileOpenError("a.npz", nil)
	second := NewTreeNotFoundError("t", "b.npz")
	r.Fail(first)
	r.Fail(second)
	require.Error(t, r.Err())
	assert.True(t, Is(r.Err(), first))
	assert.True(t, Is(r.Err(), second))

	merged := NewReport()
	merged.Merge(r)
	assert.Len(t, merged.Errors(), 2)
	assert.Len(t, merged.Warnings(), 1)
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err, "fit")
		panic("index out of range")
	}
	err := run()
	var panicErr *PanicError
	require.True(t, As(err, &panicErr))
	assert.Equal(t, "panic in fit: index out of range", panicErr.Error())
	assert.NotEmpty(t, panicErr.StackTrace)

	train := func() (err error) {
		defer RecoverTraining(&err, "boost")
		panic("nan split")
	}
	err = train()
	var engineErr *TrainingEngineError
	require.True(t, As(err, &engineErr))
	assert.Equal(t, "boost", engineErr.Stage)
	assert.True(t, As(err, &panicErr))
}

func TestNumerical(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("loss", []float64{1, 2}, 0))
	assert.Error(t, CheckNumericalStability("loss", []float64{1, math.NaN()}, 3))
	assert.Error(t, CheckScalar("loss", math.Inf(1), 0))
	assert.Equal(t, 1.0, ClipValue(5, -1, 1))
	assert.Equal(t, -1.0, ClipValue(-5, -1, 1))
	assert.Equal(t, 0.25, ClipValue(0.25, -1, 1))
	assert.True(t, math.IsNaN(ClipValue(math.NaN(), -1, 1)))
}

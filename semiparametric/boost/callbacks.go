package boost

import (
	"math"
	"time"

	"github.com/YuminosukeSato/semigbr/pkg/log"
	"github.com/YuminosukeSato/semigbr/semiparametric"
)

// CallbackEnv is the state handed to callbacks around each iteration.
type CallbackEnv struct {
	Iteration int
	// Loss is the weighted mean negative log-likelihood after the iteration.
	// It is NaN before the iteration has run.
	Loss         float64
	Forests      []*semiparametric.Forest
	BeginTime    time.Time
	EndTime      time.Time
	StopTraining bool
}

// Callback is called before and after every boosting iteration.
type Callback func(env *CallbackEnv) error

// LogProgress logs the loss every period iterations.
func LogProgress(period int) Callback {
	logger := log.GetLoggerWithName("boost")
	return func(env *CallbackEnv) error {
		if period <= 0 || math.IsNaN(env.Loss) {
			return nil
		}
		if (env.Iteration+1)%period == 0 {
			logger.Info("Boosting progress",
				log.IterationKey, env.Iteration+1,
				log.LossKey, env.Loss,
				log.DurationMsKey, env.EndTime.Sub(env.BeginTime).Milliseconds(),
			)
		}
		return nil
	}
}

// RecordLoss appends the loss of every iteration to history.
func RecordLoss(history *[]float64) Callback {
	return func(env *CallbackEnv) error {
		if !math.IsNaN(env.Loss) {
			*history = append(*history, env.Loss)
		}
		return nil
	}
}

// EarlyStopping stops training when the loss has not improved by more than
// minDelta for rounds consecutive iterations.
func EarlyStopping(rounds int, minDelta float64) Callback {
	best := math.Inf(1)
	bestIteration := 0
	noImprove := 0
	logger := log.GetLoggerWithName("boost")

	return func(env *CallbackEnv) error {
		if math.IsNaN(env.Loss) {
			return nil
		}
		if env.Loss < best-minDelta {
			best = env.Loss
			bestIteration = env.Iteration
			noImprove = 0
			return nil
		}
		noImprove++
		if noImprove >= rounds {
			logger.Info("Early stopping",
				log.IterationKey, env.Iteration,
				"best_iteration", bestIteration,
				log.LossKey, best,
			)
			env.StopTraining = true
		}
		return nil
	}
}

// TimeLimit stops training once maxDuration has elapsed since the first call.
func TimeLimit(maxDuration time.Duration) Callback {
	var start time.Time
	return func(env *CallbackEnv) error {
		if start.IsZero() {
			start = time.Now()
		}
		if time.Since(start) > maxDuration {
			env.StopTraining = true
		}
		return nil
	}
}

// CallbackList runs callbacks in order and tracks the stop request.
type CallbackList struct {
	callbacks []Callback
	env       *CallbackEnv
}

// NewCallbackList creates a new callback list.
func NewCallbackList(callbacks ...Callback) *CallbackList {
	return &CallbackList{
		callbacks: callbacks,
		env:       &CallbackEnv{Loss: math.NaN()},
	}
}

// BeforeIteration calls callbacks before each iteration.
func (cl *CallbackList) BeforeIteration(iteration int, forests []*semiparametric.Forest) error {
	cl.env.Iteration = iteration
	cl.env.Forests = forests
	cl.env.Loss = math.NaN()
	cl.env.BeginTime = time.Now()

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
		if cl.env.StopTraining {
			break
		}
	}
	return nil
}

// AfterIteration calls callbacks after each iteration.
func (cl *CallbackList) AfterIteration(iteration int, forests []*semiparametric.Forest, loss float64) error {
	cl.env.Iteration = iteration
	cl.env.Forests = forests
	cl.env.Loss = loss
	cl.env.EndTime = time.Now()

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
	}
	return nil
}

// ShouldStop returns whether training should stop.
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}

package semiparametric

import (
	"github.com/YuminosukeSato/semigbr/core"
	"github.com/YuminosukeSato/semigbr/dataset"
	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
	"github.com/YuminosukeSato/semigbr/pkg/log"
)

// Engine fits the regressed targets of a density to a dataset. It must not
// modify its inputs.
type Engine interface {
	Train(ds *dataset.Dataset, density *ConditionalDensity, hp Hyperparameters) (*Fit, error)
}

// Fit is what an Engine returns: one forest per target in parameter order
// (mu, sigma, n1, n2) and the weighted mean negative log-likelihood after each
// iteration.
type Fit struct {
	Forests []*Forest
	Loss    []float64
}

// Model is a trained density: the four forests together with the density
// definition and the features they condition on.
type Model struct {
	core.BaseEstimator

	Density  *ConditionalDensity
	Features []dataset.Feature
	Forests  []*Forest
	Loss     []float64
}

// Regressors returns the forests as core.Regressor values.
func (m *Model) Regressors() []core.Regressor {
	out := make([]core.Regressor, len(m.Forests))
	for i, f := range m.Forests {
		out[i] = f
	}
	return out
}

// Predict returns the bounded shape parameters at feature vector x.
func (m *Model) Predict(x []float64) Params {
	raw := make([]float64, NumParams)
	for i, r := range m.Regressors() {
		raw[i] = r.PredictRow(x)
	}
	return m.Density.Bounded(raw)
}

// Train hands the dataset, density and hyperparameters to engine and returns
// the trained model. Any engine failure, including a panic, is returned as a
// TrainingEngineError.
func Train(engine Engine, ds *dataset.Dataset, density *ConditionalDensity, hp Hyperparameters) (model *Model, err error) {
	defer scerr.RecoverTraining(&err, "train")
	logger := log.GetLoggerWithName("semiparametric").With(log.PhaseKey, log.PhaseTrain)

	if ds.Rows() == 0 {
		return nil, scerr.NewTrainingEngineError("train", scerr.New("dataset has no events"))
	}
	logger.Info("Training", log.SamplesKey, ds.Rows(), log.FeaturesKey, len(ds.Features), "n_trees", hp.NTrees)

	fit, err := engine.Train(ds, density, hp)
	if err != nil {
		var engineErr *scerr.TrainingEngineError
		if scerr.As(err, &engineErr) {
			return nil, err
		}
		return nil, scerr.NewTrainingEngineError("train", err)
	}
	if fit == nil || len(fit.Forests) != NumParams {
		got := 0
		if fit != nil {
			got = len(fit.Forests)
		}
		return nil, scerr.NewTrainingEngineError("train", scerr.NewDimensionError("engine result", NumParams, got, 1))
	}

	model = &Model{
		Density:  density,
		Features: ds.Features,
		Forests:  fit.Forests,
		Loss:     fit.Loss,
	}
	model.SetFitted()

	for i, target := range density.Targets() {
		importance := model.Forests[i].FeatureImportance()
		for j, v := range importance {
			logger.Info("Feature importance",
				log.TargetKey, target.Name,
				log.FeatureKey, ds.Features[j].Title,
				log.ImportanceKey, v,
			)
		}
	}
	return model, nil
}

// Package artifact persists a trained model: the feature list, one forest per
// regressed target and the density definition, tagged with the run name.
package artifact

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/YuminosukeSato/semigbr/core/model"
	"github.com/YuminosukeSato/semigbr/dataset"
	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
	"github.com/YuminosukeSato/semigbr/pkg/log"
	"github.com/YuminosukeSato/semigbr/semiparametric"
)

// Workspace is the named container holding the density definition.
type Workspace struct {
	PDF *semiparametric.ConditionalDensity `json:"pdf"`
}

// Artifact is the content of a results file. The forest keys follow the
// target names: muCB, sigmaCB, n1CB, n2CB.
type Artifact struct {
	Name      string            `json:"name"`
	RunID     string            `json:"run_id"`
	CreatedAt time.Time         `json:"created_at"`
	VarList   []dataset.Feature `json:"varlist"`

	MuCB    *semiparametric.Forest `json:"muCB"`
	SigmaCB *semiparametric.Forest `json:"sigmaCB"`
	N1CB    *semiparametric.Forest `json:"n1CB"`
	N2CB    *semiparametric.Forest `json:"n2CB"`

	W Workspace `json:"w"`

	Hyperparameters semiparametric.Hyperparameters `json:"hyperparameters"`
	Loss            []float64                      `json:"loss"`
}

// New collects the artifacts of a trained model.
func New(name, runID string, m *semiparametric.Model, hp semiparametric.Hyperparameters) (*Artifact, error) {
	if m == nil || !m.IsFitted() {
		return nil, scerr.New("model is not fitted")
	}
	if len(m.Forests) != semiparametric.NumParams {
		return nil, scerr.NewDimensionError("artifact.New", semiparametric.NumParams, len(m.Forests), 0)
	}
	return &Artifact{
		Name:            name,
		RunID:           runID,
		CreatedAt:       time.Now().UTC(),
		VarList:         m.Features,
		MuCB:            m.Forests[semiparametric.ParamMu],
		SigmaCB:         m.Forests[semiparametric.ParamSigma],
		N1CB:            m.Forests[semiparametric.ParamN1],
		N2CB:            m.Forests[semiparametric.ParamN2],
		W:               Workspace{PDF: m.Density},
		Hyperparameters: hp,
		Loss:            m.Loss,
	}, nil
}

// Forests returns the forests in parameter order.
func (a *Artifact) Forests() []*semiparametric.Forest {
	return []*semiparametric.Forest{a.MuCB, a.SigmaCB, a.N1CB, a.N2CB}
}

// Model rebuilds a fitted model from the artifact.
func (a *Artifact) Model() (*semiparametric.Model, error) {
	for _, f := range a.Forests() {
		if f == nil {
			return nil, scerr.New("artifact is missing a forest")
		}
	}
	if a.W.PDF == nil {
		return nil, scerr.New("artifact is missing the density definition")
	}
	m := &semiparametric.Model{
		Density:  a.W.PDF,
		Features: a.VarList,
		Forests:  a.Forests(),
		Loss:     a.Loss,
	}
	m.SetFitted()
	return m, nil
}

// FormatOf infers the encoding of path from its extension.
func FormatOf(path string) (model.Format, error) {
	return model.ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Write stores a at path in the given format. The file is replaced in one
// step, so a failed write leaves the previous content in place.
func Write(path string, a *Artifact, format model.Format) error {
	logger := log.GetLoggerWithName("artifact").With(log.PhaseKey, log.PhaseWrite)
	if err := model.SaveModel(a, path, format); err != nil {
		return scerr.NewOutputUnwritableError(path, err)
	}
	logger.Info("Artifacts written",
		log.FilePathKey, path,
		log.RunIDKey, a.RunID,
		log.FeaturesKey, len(a.VarList),
		"keys", strings.Join(a.Keys(), ","),
	)
	return nil
}

// Keys lists the named entries of the artifact.
func (a *Artifact) Keys() []string {
	keys := []string{"varlist"}
	for _, f := range a.Forests() {
		if f != nil {
			keys = append(keys, f.Key)
		}
	}
	return append(keys, semiparametric.WorkspaceKey)
}

// Read loads an artifact, choosing the decoder from the file extension.
func Read(path string) (*Artifact, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	var a Artifact
	if err := model.LoadModel(&a, path, format); err != nil {
		return nil, scerr.NewFileOpenError(path, err)
	}
	return &a, nil
}

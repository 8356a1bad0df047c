// Package semigbr trains semiparametric gradient-boosted regressions of a
// peaked target distribution.
//
// A run reads a configuration file, assembles weighted events from npz input
// files and fits the peak position (mu), width (sigma) and tail powers (n1,
// n2) of a double-sided crystal-ball density as boosted functions of the
// configured variables. The crossover constants alpha1 and alpha2 stay fixed.
//
// # Quick Start
//
// Write a configuration file:
//
//	Name:            peak
//	OutputDirectory: out
//	InputFiles:      data/a.npz:data/b.npz
//	Tree:            events
//	Options:         EventWeight=w:NTrees=500:Shrinkage=0.1
//	Variables:       pt:abs(eta)
//	Target:          mass / mass_true
//	Cut:             pt > 20
//	mu_DownLimit:    0.8
//	mu_UpLimit:      1.2
//	...
//
// and run
//
//	semigbr peak.config
//
// The fitted forests, the feature list and the density definition are
// written to out/peak_results.json.
//
// # Packages
//
//   - config: configuration loading and validation
//   - dataset: npz tables, expressions and weighted event assembly
//   - semiparametric: density, bound transforms, hyperparameters, training driver
//   - semiparametric/boost: the bundled boosting engine
//   - artifact: results file and loss curve
//   - metrics: weighted scores of a trained model
//   - pipeline: one complete run
//   - core/model: transactional json/gob persistence
//   - core/parallel: parallel processing utilities
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//
// # License
//
// semigbr is released under the MIT License.
package semigbr

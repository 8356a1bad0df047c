// Package boost is the bundled training engine: gradient boosting of the four
// raw functions of a ConditionalDensity under its negative log-likelihood.
//
// Training starts from constant functions fitted to the whole dataset. Each
// iteration then grows, for mu, sigma, n1 and n2 in turn, one regression tree
// on the Newton step of the per-event likelihood. The engine samples nothing,
// so equal inputs give equal forests.
package boost

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/semigbr/core/parallel"
	"github.com/YuminosukeSato/semigbr/dataset"
	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
	"github.com/YuminosukeSato/semigbr/pkg/log"
	"github.com/YuminosukeSato/semigbr/semiparametric"
)

var _ semiparametric.Engine = (*Trainer)(nil)

// Trainer implements semiparametric.Engine.
type Trainer struct {
	callbacks []Callback
}

// NewTrainer creates a trainer that runs callbacks around every iteration.
func NewTrainer(callbacks ...Callback) *Trainer {
	return &Trainer{callbacks: callbacks}
}

// WithCallbacks adds callbacks to the trainer.
func (t *Trainer) WithCallbacks(callbacks ...Callback) *Trainer {
	t.callbacks = append(t.callbacks, callbacks...)
	return t
}

// SplitInfo describes a candidate split of a node.
type SplitInfo struct {
	Feature    int
	Threshold  float64
	Gain       float64
	LeftGrad   float64
	LeftHess   float64
	LeftW      float64
	RightGrad  float64
	RightHess  float64
	RightW     float64
	LeftCount  int
	RightCount int
}

// fitState is the mutable state of one Train call.
type fitState struct {
	params  semiparametric.Hyperparameters
	density *semiparametric.ConditionalDensity

	X *mat.Dense
	y []float64
	w []float64
	// rows with non-zero weight; negative weights enter every sum with
	// their sign, zero-weight rows never influence a fit
	active []int
	// nodes of the tree being grown, counting children of accepted splits
	// that are not built yet
	reserved int

	// raw[param][row] is the current raw prediction
	raw  [][]float64
	grad []float64
	hess []float64
}

// Train fits the four forests of density to ds.
func (t *Trainer) Train(ds *dataset.Dataset, density *semiparametric.ConditionalDensity, hp semiparametric.Hyperparameters) (fit *semiparametric.Fit, err error) {
	defer scerr.RecoverTraining(&err, "boost")
	logger := log.GetLoggerWithName("boost")

	if hp.NTrees <= 0 {
		return nil, scerr.NewTrainingEngineError("boost", scerr.NewMissingIterationCountError())
	}
	rows, cols := ds.X.Dims()
	if len(ds.Y) != rows || len(ds.W) != rows {
		return nil, scerr.NewTrainingEngineError("boost", scerr.NewDimensionError("boost.Train", rows, len(ds.Y), 0))
	}

	s := &fitState{
		params:  hp,
		density: density,
		X:       ds.X,
		y:       ds.Y,
		w:       ds.W,
		raw:     make([][]float64, semiparametric.NumParams),
		grad:    make([]float64, rows),
		hess:    make([]float64, rows),
	}
	sumW, negative := 0.0, 0
	for i, wi := range ds.W {
		if wi != 0 {
			s.active = append(s.active, i)
			sumW += wi
		}
		if wi < 0 {
			negative++
		}
	}
	if !(sumW > 0) {
		return nil, scerr.NewTrainingEngineError("boost", scerr.NewValidationError("EventWeight",
			"the summed event weight must be positive", sumW))
	}
	if negative > 0 {
		logger.Info("Training with negative event weights", "negative_events", negative, log.WeightSumKey, sumW)
	}

	initial := s.fitConstants()
	if err := scerr.CheckNumericalStability("initial response", initial, 0); err != nil {
		return nil, scerr.NewTrainingEngineError("boost", err)
	}
	forests := make([]*semiparametric.Forest, semiparametric.NumParams)
	for p, target := range density.Targets() {
		forests[p] = &semiparametric.Forest{
			Target:          target.Name,
			Key:             target.Key,
			NumFeatures:     cols,
			InitialResponse: initial[p],
		}
		s.raw[p] = make([]float64, rows)
		for i := range s.raw[p] {
			s.raw[p][i] = initial[p]
		}
		logger.Info("Initial response",
			log.TargetKey, target.Name,
			"raw", initial[p],
			"value", target.Bound.Apply(initial[p]),
		)
	}

	initialLoss := s.meanNLL()
	if err := scerr.CheckScalar("initial loss", initialLoss, 0); err != nil {
		return nil, scerr.NewTrainingEngineError("boost", scerr.WithHint(err,
			"the density cannot describe the data at the starting point; check the target range and the *_DownLimit/*_UpLimit bounds"))
	}
	logger.Info("Starting boosting", log.LossKey, initialLoss, log.SamplesKey, len(s.active), "n_trees", hp.NTrees)

	callbacks := NewCallbackList(t.callbacks...)
	losses := make([]float64, 0, hp.NTrees)

	for iter := 0; iter < hp.NTrees; iter++ {
		if err := callbacks.BeforeIteration(iter, forests); err != nil {
			return nil, scerr.NewTrainingEngineError("callback", err)
		}
		if callbacks.ShouldStop() {
			logger.Info("Training stopped by callback", log.IterationKey, iter)
			break
		}

		for p := range forests {
			if err := s.computeGradients(p); err != nil {
				return nil, scerr.NewTrainingEngineError("gradient", err)
			}
			s.clipGradients(hp.TransitionQuantile)

			tree, err := s.buildTree()
			if err != nil {
				return nil, scerr.NewTrainingEngineError("tree", err)
			}
			step := s.leafValues(&tree)
			tree.ShrinkageRate = s.lineSearch(p, step, hp.Shrinkage)
			if tree.ShrinkageRate < hp.Shrinkage {
				logger.Debug("Step reduced", log.TargetKey, forests[p].Target, log.IterationKey, iter, "rate", tree.ShrinkageRate)
			}
			forests[p].Trees = append(forests[p].Trees, tree)
			s.applyStep(p, step, tree.ShrinkageRate)
		}

		loss := s.meanNLL()
		if err := scerr.CheckScalar("loss", loss, iter); err != nil {
			return nil, scerr.NewTrainingEngineError("loss", err)
		}
		losses = append(losses, loss)
		logger.Debug("Iteration done", log.IterationKey, iter, log.LossKey, loss)

		if err := callbacks.AfterIteration(iter, forests, loss); err != nil {
			return nil, scerr.NewTrainingEngineError("callback", err)
		}
		if callbacks.ShouldStop() {
			logger.Info("Training stopped by callback", log.IterationKey, iter)
			break
		}
	}

	if len(losses) > 0 {
		logger.Info("Boosting finished", log.IterationKey, len(losses), log.LossKey, losses[len(losses)-1])
	}
	return &semiparametric.Fit{Forests: forests, Loss: losses}, nil
}

// buildTree grows one tree on the current gradients.
func (s *fitState) buildTree() (semiparametric.Tree, error) {
	tree := semiparametric.Tree{ShrinkageRate: s.params.Shrinkage}
	s.reserved = 1
	if _, err := s.buildNode(&tree, s.active, -1, 0); err != nil {
		return tree, err
	}
	if len(tree.Nodes) == 0 {
		return tree, scerr.New("empty tree")
	}
	return tree, nil
}

// buildNode appends the subtree over rows to tree and returns its node index.
// Growth is depth first; s.reserved keeps the final node count within
// MaxNodes while sibling subtrees are still pending.
func (s *fitState) buildNode(tree *semiparametric.Tree, rows []int, parentIdx int, depth int) (int, error) {
	nodeIdx := len(tree.Nodes)
	sumGrad, sumHess, sumW := s.sums(rows)

	tree.Nodes = append(tree.Nodes, semiparametric.Node{
		NodeID:     nodeIdx,
		ParentID:   parentIdx,
		LeftChild:  -1,
		RightChild: -1,
		LeafValue:  leafValue(sumGrad, sumHess),
		SumWeights: sumW,
		Count:      len(rows),
	})

	// a split adds two nodes
	if (s.params.MaxDepth > 0 && depth >= s.params.MaxDepth) ||
		(s.params.MaxNodes > 0 && s.reserved+2 > s.params.MaxNodes) ||
		sumW < 2*s.params.MinEvents || len(rows) < 2 {
		return nodeIdx, nil
	}

	best, ok, err := s.findBestSplit(rows, sumGrad, sumHess, sumW)
	if err != nil || !ok {
		return nodeIdx, err
	}
	s.reserved += 2

	left, right := s.splitRows(rows, best)
	node := &tree.Nodes[nodeIdx]
	node.SplitFeature = best.Feature
	node.Threshold = best.Threshold
	node.Gain = best.Gain
	node.LeafValue = 0

	leftChild, err := s.buildNode(tree, left, nodeIdx, depth+1)
	if err != nil {
		return nodeIdx, err
	}
	rightChild, err := s.buildNode(tree, right, nodeIdx, depth+1)
	if err != nil {
		return nodeIdx, err
	}
	tree.Nodes[nodeIdx].LeftChild = leftChild
	tree.Nodes[nodeIdx].RightChild = rightChild
	return nodeIdx, nil
}

func (s *fitState) sums(rows []int) (g, h, w float64) {
	for _, i := range rows {
		g += s.w[i] * s.grad[i]
		h += s.w[i] * s.hess[i]
		w += s.w[i]
	}
	return g, h, w
}

// findBestSplit searches every feature for the admissible split with the
// largest gain. Ties go to the lower feature index.
func (s *fitState) findBestSplit(rows []int, sumGrad, sumHess, sumW float64) (SplitInfo, bool, error) {
	_, cols := s.X.Dims()
	candidates := make([]SplitInfo, cols)
	found := make([]bool, cols)

	err := parallel.Run(cols, 1, func(start, end int) error {
		for f := start; f < end; f++ {
			candidates[f], found[f] = s.findBestSplitForFeature(rows, f, sumGrad, sumHess, sumW)
		}
		return nil
	})
	if err != nil {
		return SplitInfo{}, false, err
	}

	best := SplitInfo{Gain: math.Inf(-1)}
	ok := false
	for f := 0; f < cols; f++ {
		if found[f] && candidates[f].Gain > best.Gain {
			best = candidates[f]
			ok = true
		}
	}
	return best, ok, nil
}

func (s *fitState) findBestSplitForFeature(rows []int, feature int, sumGrad, sumHess, sumW float64) (SplitInfo, bool) {
	sorted := s.sortedByFeature(rows, feature)
	parentScore := score(sumGrad, sumHess)

	best := SplitInfo{Feature: feature, Gain: math.Inf(-1)}
	found := false

	leftGrad, leftHess, leftW := 0.0, 0.0, 0.0
	for k := 0; k < len(sorted)-1; k++ {
		i := sorted[k]
		leftGrad += s.w[i] * s.grad[i]
		leftHess += s.w[i] * s.hess[i]
		leftW += s.w[i]

		v, next := s.X.At(i, feature), s.X.At(sorted[k+1], feature)
		if v == next || math.IsNaN(v) || math.IsNaN(next) {
			continue
		}

		rightW := sumW - leftW
		if leftW < s.params.MinEvents || rightW < s.params.MinEvents {
			continue
		}
		rightGrad := sumGrad - leftGrad
		rightHess := sumHess - leftHess

		gain := 0.5 * (score(leftGrad, leftHess) + score(rightGrad, rightHess) - parentScore)
		if !(gain > 0) || math.Sqrt(2*gain) < s.params.MinSignificance {
			continue
		}
		if gain > best.Gain {
			best = SplitInfo{
				Feature:    feature,
				Threshold:  splitThreshold(v, next),
				Gain:       gain,
				LeftGrad:   leftGrad,
				LeftHess:   leftHess,
				LeftW:      leftW,
				RightGrad:  rightGrad,
				RightHess:  rightHess,
				RightW:     rightW,
				LeftCount:  k + 1,
				RightCount: len(sorted) - k - 1,
			}
			found = true
		}
	}
	return best, found
}

// splitThreshold places a finite cut between the sorted values v < next, so
// that v goes left and next goes right. Infinite feature values never become
// thresholds.
func splitThreshold(v, next float64) float64 {
	switch {
	case math.IsInf(next, 1):
		if math.IsInf(v, -1) {
			return 0
		}
		return v
	case math.IsInf(v, -1):
		return math.Max(math.Nextafter(next, math.Inf(-1)), -math.MaxFloat64)
	}
	// halves first so that large values of equal sign do not overflow
	t := v/2 + next/2
	if t >= next {
		return v
	}
	return t
}

// score is G^2/H, the loss reduction of a Newton step on a node. A node whose
// summed Hessian is not positive, possible with negative weights, has none.
func score(g, h float64) float64 {
	if !(h > minHessian) {
		return 0
	}
	return g * g / h
}

// leafValue is the unshrunk Newton step -G/H, limited to maxLeafValue.
func leafValue(g, h float64) float64 {
	if !(h > minHessian) {
		return 0
	}
	return scerr.ClipValue(-g/h, -maxLeafValue, maxLeafValue)
}

func (s *fitState) splitRows(rows []int, split SplitInfo) (left, right []int) {
	left = make([]int, 0, split.LeftCount)
	right = make([]int, 0, split.RightCount)
	for _, i := range rows {
		if v := s.X.At(i, split.Feature); !math.IsNaN(v) && v <= split.Threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// leafValues returns the unshrunk leaf value every row falls into, including
// rows with zero weight.
func (s *fitState) leafValues(tree *semiparametric.Tree) []float64 {
	rows, _ := s.X.Dims()
	unit := semiparametric.Tree{ShrinkageRate: 1, Nodes: tree.Nodes}
	step := make([]float64, rows)
	parallel.Parallelize(rows, func(start, end int) {
		for i := start; i < end; i++ {
			step[i] = unit.Predict(s.X.RawRowView(i))
		}
	})
	return step
}

// lineSearch halves rate until moving raw[p] by rate*step does not increase
// the loss. It returns 0 when no tried rate helps.
func (s *fitState) lineSearch(p int, step []float64, rate float64) float64 {
	base := s.meanNLL()
	for k := 0; k <= maxHalvings; k++ {
		if s.stepLoss(p, step, rate) <= base {
			return rate
		}
		rate /= 2
	}
	return 0
}

// applyStep adds rate*step to raw[p]. rate*leaf is exactly what
// Tree.Predict returns, so raw stays equal to Forest.PredictRow.
func (s *fitState) applyStep(p int, step []float64, rate float64) {
	for i := range step {
		s.raw[p][i] += rate * step[i]
	}
}

package semiparametric

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Node is one node of a regression tree. Leaves have LeftChild and
// RightChild set to -1.
type Node struct {
	NodeID     int `json:"id"`
	ParentID   int `json:"parent"`
	LeftChild  int `json:"left"`
	RightChild int `json:"right"`

	// Split information (internal nodes)
	SplitFeature int     `json:"feature"`
	Threshold    float64 `json:"threshold"`
	Gain         float64 `json:"gain"`

	// Leaf information
	LeafValue float64 `json:"value"`

	// Statistics of the events that reached the node during training
	SumWeights float64 `json:"sum_weights"`
	Count      int     `json:"count"`
}

// IsLeaf returns true if the node is a leaf node.
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is one boosting step for one target.
type Tree struct {
	ShrinkageRate float64 `json:"shrinkage"`
	Nodes         []Node  `json:"nodes"`
}

// Predict returns the shrunk leaf value reached by features. NaN feature
// values go right.
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		if v := features[node.SplitFeature]; !math.IsNaN(v) && v <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
	return 0
}

// NumLeaves counts the leaves of the tree.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Forest is the fitted unconstrained function of one regressed target: an
// initial response plus the sum of its trees.
type Forest struct {
	Target          string  `json:"target"`
	Key             string  `json:"key"`
	NumFeatures     int     `json:"num_features"`
	InitialResponse float64 `json:"initial_response"`
	Trees           []Tree  `json:"trees"`
}

// PredictRow returns the raw (unbounded) function value at x.
func (f *Forest) PredictRow(x []float64) float64 {
	out := f.InitialResponse
	for i := range f.Trees {
		out += f.Trees[i].Predict(x)
	}
	return out
}

// Predict evaluates the raw function on every row of X.
func (f *Forest) Predict(X mat.Matrix) []float64 {
	rows, cols := X.Dims()
	out := make([]float64, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out[i] = f.PredictRow(row)
	}
	return out
}

// FeatureImportance returns the split gain per feature, normalized to sum 1.
func (f *Forest) FeatureImportance() []float64 {
	importance := make([]float64, f.NumFeatures)
	for _, tree := range f.Trees {
		for _, node := range tree.Nodes {
			if !node.IsLeaf() && node.SplitFeature < len(importance) {
				importance[node.SplitFeature] += node.Gain
			}
		}
	}

	total := 0.0
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}
	return importance
}

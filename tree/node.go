package tree

import "fmt"

// NodeID identifies a node within a tree. IDs are unique
// inside a tree and never reused.
type NodeID int

/*
Node is a node of a binary decision tree. A node is either a leaf,
holding a prediction, or a split, holding a feature index, a
threshold, the IDs of its two children and the fraction of
training samples routed down each edge.

Nodes can only be built with NewLeaf and NewSplit, so a node
always has exactly one of the two shapes.
*/
type Node struct {
	id         NodeID
	leaf       bool
	prediction float64
	feature    int
	threshold  float64
	left       NodeID
	right      NodeID
	probLeft   float64
	probRight  float64
}

// NewLeaf returns a leaf node with the given ID and prediction.
func NewLeaf(id NodeID, prediction float64) *Node {
	return &Node{id: id, leaf: true, prediction: prediction}
}

// NewSplit returns a split node with the given ID that sends samples
// whose feature value is lower or equal than the threshold to the
// left child and the rest to the right one. probLeft and probRight
// are the fractions of training samples routed down each edge.
func NewSplit(id NodeID, feature int, threshold float64, left, right NodeID, probLeft, probRight float64) *Node {
	return &Node{
		id:        id,
		feature:   feature,
		threshold: threshold,
		left:      left,
		right:     right,
		probLeft:  probLeft,
		probRight: probRight,
	}
}

// ID returns the ID of the node
func (n *Node) ID() NodeID {
	return n.id
}

// IsLeaf returns whether the node is a leaf
func (n *Node) IsLeaf() bool {
	return n.leaf
}

// Prediction returns the value predicted by a leaf. It is 0 for splits.
func (n *Node) Prediction() float64 {
	return n.prediction
}

// Feature returns the index of the feature compared by a split.
func (n *Node) Feature() int {
	return n.feature
}

// Threshold returns the split threshold of a split.
func (n *Node) Threshold() float64 {
	return n.threshold
}

// Left returns the ID of the child followed when the feature
// value is lower or equal than the threshold.
func (n *Node) Left() NodeID {
	return n.left
}

// Right returns the ID of the child followed when the feature
// value is greater than the threshold.
func (n *Node) Right() NodeID {
	return n.right
}

// ProbLeft returns the fraction of samples routed to the left child.
func (n *Node) ProbLeft() float64 {
	return n.probLeft
}

// ProbRight returns the fraction of samples routed to the right child.
func (n *Node) ProbRight() float64 {
	return n.probRight
}

// Children returns the IDs of the children of a split, left first,
// or nil for a leaf.
func (n *Node) Children() []NodeID {
	if n.leaf {
		return nil
	}
	return []NodeID{n.left, n.right}
}

func (n *Node) String() string {
	if n.leaf {
		return fmt.Sprintf("{leaf %d: %v}", n.id, n.prediction)
	}
	return fmt.Sprintf("{split %d: x[%d] <= %v ? %d (%.3f) : %d (%.3f)}", n.id, n.feature, n.threshold, n.left, n.probLeft, n.right, n.probRight)
}

package tree

import (
	"fmt"
	"math"
	"strings"
)

// Tree represents a binary decision tree. It is composed of
// an ordered table of nodes and the id of the root node.
// A Tree is read-only once built with New or Build.
type Tree struct {
	root        NodeID
	nodes       map[NodeID]*Node
	ids         []NodeID
	floatSplits bool
}

/*
New takes the ID for the root node and the nodes of a tree and
returns the tree they compose or an error if they do not form a
single binary tree hanging from the root:
  - IDs must be unique
  - every split must reference two children present in nodes
  - every node but the root must have exactly one parent
  - every node must be reachable from the root

The order of nodes is kept and returned by IDs. Whether the
tree uses non-integral thresholds is computed here once.
*/
func New(rootID NodeID, nodes []*Node) (*Tree, error) {
	t := &Tree{
		root:  rootID,
		nodes: make(map[NodeID]*Node, len(nodes)),
		ids:   make([]NodeID, 0, len(nodes)),
	}
	for _, n := range nodes {
		if n == nil {
			return nil, &Error{Message: "nil node", Err: ErrMalformedNode}
		}
		if _, ok := t.nodes[n.id]; ok {
			return nil, &Error{Node: n.id, Message: "duplicated node id", Err: ErrDuplicatedNode}
		}
		if err := n.check(); err != nil {
			return nil, err
		}
		t.nodes[n.id] = n
		t.ids = append(t.ids, n.id)
	}
	if _, ok := t.nodes[rootID]; !ok {
		return nil, &Error{Node: rootID, Message: "root node not found", Err: ErrMissingRoot}
	}
	parents := make(map[NodeID]NodeID, len(nodes))
	for _, id := range t.ids {
		n := t.nodes[id]
		if n.leaf {
			continue
		}
		if !isIntegral(n.threshold) {
			t.floatSplits = true
		}
		for _, c := range n.Children() {
			if _, ok := t.nodes[c]; !ok {
				return nil, &Error{Node: id, Message: fmt.Sprintf("child %d not found", c), Err: ErrMissingChild}
			}
			if c == rootID {
				return nil, &Error{Node: id, Message: "root node used as child", Err: ErrSharedChild}
			}
			if p, ok := parents[c]; ok {
				return nil, &Error{Node: c, Message: fmt.Sprintf("child of both %d and %d", p, id), Err: ErrSharedChild}
			}
			parents[c] = id
		}
	}
	if len(parents) != len(t.ids)-1 {
		for _, id := range t.ids {
			if _, ok := parents[id]; !ok && id != rootID {
				return nil, &Error{Node: id, Message: "not reachable from root", Err: ErrUnreachableNode}
			}
		}
	}
	// single parent for every non-root node and no parent for the root
	// still allows detached cycles, which never reach the root
	seen := 0
	err := t.Traverse(false, func(*Node) error {
		seen++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if seen != len(t.ids) {
		for _, id := range t.ids {
			if !t.reachable(id) {
				return nil, &Error{Node: id, Message: "not reachable from root", Err: ErrUnreachableNode}
			}
		}
	}
	return t, nil
}

func (t *Tree) reachable(id NodeID) bool {
	found := false
	t.Traverse(false, func(n *Node) error {
		if n.id == id {
			found = true
		}
		return nil
	})
	return found
}

// Root returns the ID of the root node
func (t *Tree) Root() NodeID {
	return t.root
}

// RootNode returns the root node
func (t *Tree) RootNode() *Node {
	return t.nodes[t.root]
}

// Get returns the node with the given ID and whether it exists
func (t *Tree) Get(id NodeID) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// IDs returns the IDs of the tree nodes in the order they were given to New.
func (t *Tree) IDs() []NodeID {
	ids := make([]NodeID, len(t.ids))
	copy(ids, t.ids)
	return ids
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.ids)
}

// UsesFloatSplits returns true if any split threshold in the tree is
// non-integral. It fixes the comparand type of generated code for the
// whole tree.
func (t *Tree) UsesFloatSplits() bool {
	return t.floatSplits
}

// Leaves returns the number of leaves in the tree.
func (t *Tree) Leaves() int {
	var count int
	for _, n := range t.nodes {
		if n.leaf {
			count++
		}
	}
	return count
}

// Depth returns the number of edges on the longest root to leaf path.
func (t *Tree) Depth() int {
	return t.depth(t.root)
}

func (t *Tree) depth(id NodeID) int {
	n := t.nodes[id]
	if n.leaf {
		return 0
	}
	l, r := t.depth(n.left), t.depth(n.right)
	if l > r {
		return l + 1
	}
	return r + 1
}

// Predict takes a feature vector and returns the prediction of the
// tree for it, or an error if a split needs a feature beyond the
// vector length.
func (t *Tree) Predict(x []float64) (float64, error) {
	n := t.nodes[t.root]
	for !n.leaf {
		if n.feature < 0 || n.feature >= len(x) {
			return 0, fmt.Errorf("predicting sample: node %d needs feature %d but sample has %d features", n.id, n.feature, len(x))
		}
		if x[n.feature] <= n.threshold {
			n = t.nodes[n.left]
		} else {
			n = t.nodes[n.right]
		}
	}
	return n.prediction, nil
}

// Traverse takes a bottomup boolean and an error-returning
// function that takes a node as parameter, and goes through
// the tree running the function with every traversed node,
// left children first.
// Traverse will call the function with a parent node before
// calling it for its children if bottomup is false, and
// call it after its children if bottomup is true.
// If the call to the function returns an error, the traversing is
// aborted and the error is returned.
func (t *Tree) Traverse(bottomup bool, f func(*Node) error) error {
	n, ok := t.nodes[t.root]
	if !ok {
		return &Error{Node: t.root, Message: "root node not found", Err: ErrMissingRoot}
	}
	return t.traverse(n, bottomup, f, 0)
}

func (t *Tree) traverse(n *Node, bottomup bool, f func(*Node) error, visited int) error {
	if visited > len(t.ids) {
		return &Error{Node: n.id, Message: "cycle detected", Err: ErrSharedChild}
	}
	var err error
	if !bottomup {
		err = f(n)
	}
	if err != nil {
		return err
	}
	for _, cID := range n.Children() {
		c, ok := t.nodes[cID]
		if !ok {
			return &Error{Node: n.id, Message: fmt.Sprintf("child %d not found", cID), Err: ErrMissingChild}
		}
		err = t.traverse(c, bottomup, f, visited+1)
		if err != nil {
			return err
		}
	}
	if bottomup {
		err = f(n)
	}
	return err
}

// ReachProbability returns, for every node, the product of the
// routing probabilities of the edges from the root down to it.
func (t *Tree) ReachProbability() map[NodeID]float64 {
	result := make(map[NodeID]float64, len(t.ids))
	result[t.root] = 1.0
	t.Traverse(false, func(n *Node) error {
		if !n.leaf {
			p := result[n.id]
			result[n.left] = p * n.probLeft
			result[n.right] = p * n.probRight
		}
		return nil
	})
	return result
}

func (t *Tree) String() string {
	return t.subtreeString(t.root)
}

func (t *Tree) subtreeString(nodeID NodeID) string {
	n, ok := t.nodes[nodeID]
	if !ok {
		return fmt.Sprintf("ERROR: node %d not found\n", nodeID)
	}
	var result string
	if n.leaf {
		result = fmt.Sprintf("[%d]\n{ return %v }\n \n", nodeID, n.prediction)
		return result
	}
	result = fmt.Sprintf("[%d]\n{ x[%d] <= %v (%.3f / %.3f) }\n|\n", nodeID, n.feature, n.threshold, n.probLeft, n.probRight)
	children := n.Children()
	for i, childID := range children {
		for j, line := range strings.Split(t.subtreeString(childID), "\n") {
			if len(line) > 0 {
				if j == 0 {
					result = fmt.Sprintf("%s|__%s\n", result, line)
				} else {
					if i == len(children)-1 {
						result = fmt.Sprintf("%s   %s\n", result, line)
					} else {
						result = fmt.Sprintf("%s|  %s\n", result, line)
					}
				}
			}
		}
	}
	return result
}

func (n *Node) check() error {
	if n.leaf {
		if !isFinite(n.prediction) {
			return &Error{Node: n.id, Message: fmt.Sprintf("non-finite prediction %v", n.prediction), Err: ErrMalformedNode}
		}
		return nil
	}
	if n.feature < 0 {
		return &Error{Node: n.id, Message: "negative feature index", Err: ErrMalformedNode}
	}
	if !isFinite(n.threshold) {
		return &Error{Node: n.id, Message: fmt.Sprintf("non-finite threshold %v", n.threshold), Err: ErrMalformedNode}
	}
	if n.left == n.right {
		return &Error{Node: n.id, Message: "both children are the same node", Err: ErrSharedChild}
	}
	for _, p := range []float64{n.probLeft, n.probRight} {
		if !(p >= 0 && p <= 1) {
			return &Error{Node: n.id, Message: fmt.Sprintf("routing probability %v outside [0, 1]", p), Err: ErrMalformedNode}
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

func isIntegral(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v) && v == math.Trunc(v)
}

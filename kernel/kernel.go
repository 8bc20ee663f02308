/*
Package kernel decides which nodes of a decision tree belong to the
kernel: the part of the generated code laid out inline at the start
of the prediction function, where it is expected to stay resident in
the instruction cache. The rest of the nodes are reached through
explicit jumps into out-of-line blocks.

Two partitioners are provided. The path partitioner walks root to leaf
paths in a canonical order and fills the kernel until a code size
budget is reached. Its cost grows with the number of paths, that is
the number of leaves, which is exponential in the depth of the tree in
the worst case. The breadth-first partitioner orders nodes by the
probability of reaching them and only needs a sort over the nodes, so
it is the recommended choice for very large or very deep trees.
*/
package kernel

import (
	"errors"
	"fmt"

	"github.com/AfafAlalwan/arch-forest/cost"
	"github.com/AfafAlalwan/arch-forest/tree"
)

var (
	// ErrInvalidBudget is returned when building a partitioner
	// with a non-positive budget.
	ErrInvalidBudget = errors.New("budget must be positive")
	// ErrTooManyPaths is returned when a tree has more root to
	// leaf paths than a path partitioner allows.
	ErrTooManyPaths = errors.New("too many root to leaf paths")
	// ErrUnknownAlgorithm is returned when parsing an unknown
	// partitioning algorithm name.
	ErrUnknownAlgorithm = errors.New("unknown partitioning algorithm")
)

/*
Partition maps every node ID of a tree to whether the node is
in the kernel. It is produced for one tree and one conversion and
never attached to the tree itself.
*/
type Partition map[tree.NodeID]bool

// InKernel takes a node ID and returns whether the node is in the
// kernel, and whether the partition defines it at all.
func (p Partition) InKernel(id tree.NodeID) (in bool, ok bool) {
	in, ok = p[id]
	return
}

// Kernel returns the number of nodes in the kernel
func (p Partition) Kernel() int {
	var count int
	for _, in := range p {
		if in {
			count++
		}
	}
	return count
}

// Covers returns an error if the partition does not define membership
// for every node in the given tree.
func (p Partition) Covers(t *tree.Tree) error {
	for _, id := range t.IDs() {
		if _, ok := p[id]; !ok {
			return fmt.Errorf("partition does not define node %d", id)
		}
	}
	return nil
}

/*
Partitioner is an interface wrapping the Partition method, that takes a
tree and returns a Partition defined for every node of the tree, or an
error if the tree cannot be partitioned.
*/
type Partitioner interface {
	Partition(t *tree.Tree) (Partition, error)
}

/*
PartitionerFunc wraps a function with the Partition method signature to
implement the Partitioner interface
*/
type PartitionerFunc func(t *tree.Tree) (Partition, error)

// Partition invokes the PartitionerFunc with the given tree
func (pf PartitionerFunc) Partition(t *tree.Tree) (Partition, error) {
	return pf(t)
}

// Algorithm names a partitioning algorithm
type Algorithm string

const (
	// PathAlgorithm is the path-based algorithm, the default one
	PathAlgorithm = Algorithm("path")
	// BreadthFirst is the breadth-first with priority ordering algorithm
	BreadthFirst = Algorithm("bfs")
)

// ParseAlgorithm takes the name of a partitioning algorithm and returns it,
// or an error if it is unknown. The empty string means PathAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", PathAlgorithm:
		return PathAlgorithm, nil
	case BreadthFirst, "breadth-first":
		return BreadthFirst, nil
	}
	return "", fmt.Errorf("%w %q (valid: %s, %s)", ErrUnknownAlgorithm, name, PathAlgorithm, BreadthFirst)
}

// New takes an algorithm, a cost model, a budget and options and returns
// the corresponding Partitioner, or an error if the budget is not
// positive or the algorithm is unknown.
func New(alg Algorithm, m *cost.Model, budget cost.Units, opts ...Option) (Partitioner, error) {
	switch alg {
	case "", PathAlgorithm:
		pp, err := NewPathPartitioner(m, budget, opts...)
		if err != nil {
			return nil, err
		}
		return pp, nil
	case BreadthFirst:
		bp, err := NewBreadthFirstPartitioner(m, budget)
		if err != nil {
			return nil, err
		}
		return bp, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownAlgorithm, alg)
}

func checkBudget(m *cost.Model, budget cost.Units) error {
	if m == nil {
		return fmt.Errorf("partitioner needs a cost model")
	}
	if budget <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidBudget, budget)
	}
	return nil
}

// NodeCost returns the cost of the code for a node in a tree with the given
// comparand type.
func NodeCost(m *cost.Model, vt cost.ValueType, n *tree.Node) cost.Units {
	if n.IsLeaf() {
		return m.Cost(vt, cost.Leaf)
	}
	return m.Cost(vt, cost.Split)
}

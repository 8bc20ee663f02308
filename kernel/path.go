package kernel

import (
	"fmt"
	"sort"

	"github.com/AfafAlalwan/arch-forest/cost"
	"github.com/AfafAlalwan/arch-forest/tree"
)

// DefaultMaxPaths is the default limit on the number of root to leaf
// paths a path partitioner enumerates.
const DefaultMaxPaths = 1 << 20

// Path is the sequence of node IDs from the root of a tree to one of its leaves
type Path struct {
	Nodes       []tree.NodeID
	Probability float64
}

// Order is a total ordering of paths, returning whether a goes before b
type Order func(a, b *Path) bool

// Probability orders paths by descending probability of being followed,
// breaking ties with Lexicographic.
func Probability(a, b *Path) bool {
	if a.Probability != b.Probability {
		return a.Probability > b.Probability
	}
	return Lexicographic(a, b)
}

// Lexicographic orders paths by comparing their node IDs one by one,
// shorter paths first when one is a prefix of the other.
func Lexicographic(a, b *Path) bool {
	for i := 0; i < len(a.Nodes) && i < len(b.Nodes); i++ {
		if a.Nodes[i] != b.Nodes[i] {
			return a.Nodes[i] < b.Nodes[i]
		}
	}
	return len(a.Nodes) < len(b.Nodes)
}

func samePath(a, b *Path) bool {
	if len(a.Nodes) != len(b.Nodes) {
		return false
	}
	for i := range a.Nodes {
		if a.Nodes[i] != b.Nodes[i] {
			return false
		}
	}
	return true
}

// Paths takes a tree and a maximum number of paths and returns every root to
// leaf path of the tree, left branches first, or an error wrapping
// ErrTooManyPaths if the tree has more leaves than max. A non-positive max
// means DefaultMaxPaths.
func Paths(t *tree.Tree, max int) ([]*Path, error) {
	if max <= 0 {
		max = DefaultMaxPaths
	}
	if leaves := t.Leaves(); leaves > max {
		return nil, fmt.Errorf("%w: tree has %d leaves, limit is %d", ErrTooManyPaths, leaves, max)
	}
	paths := make([]*Path, 0, t.Leaves())
	var walk func(id tree.NodeID, prefix []tree.NodeID, prob float64)
	walk = func(id tree.NodeID, prefix []tree.NodeID, prob float64) {
		n, _ := t.Get(id)
		prefix = append(prefix, id)
		if n.IsLeaf() {
			nodes := make([]tree.NodeID, len(prefix))
			copy(nodes, prefix)
			paths = append(paths, &Path{Nodes: nodes, Probability: prob})
			return
		}
		walk(n.Left(), prefix, prob*n.ProbLeft())
		walk(n.Right(), prefix, prob*n.ProbRight())
	}
	walk(t.Root(), make([]tree.NodeID, 0, t.Depth()+1), 1.0)
	return paths, nil
}

// Option sets up a path partitioner
type Option func(*PathPartitioner)

// WithMaxPaths sets the maximum number of paths a partitioner enumerates
// before failing with ErrTooManyPaths.
func WithMaxPaths(max int) Option {
	return func(pp *PathPartitioner) {
		pp.maxPaths = max
	}
}

// WithOrder sets the order in which paths are walked when filling the kernel
func WithOrder(o Order) Option {
	return func(pp *PathPartitioner) {
		pp.order = o
	}
}

/*
PathPartitioner fills the kernel walking every root to leaf path of a
tree in a canonical order. The first time a node is visited its cost is
added to a running total, and the node is in the kernel if the total is
still below the budget. Nodes visited again are neither priced nor
classified again.

Since the total only grows and every path starts at the root, once the
budget is reached every node visited for the first time falls out of
the kernel, and the kernel is closed under ancestors.
*/
type PathPartitioner struct {
	model    *cost.Model
	budget   cost.Units
	maxPaths int
	order    Order
}

// NewPathPartitioner takes a cost model, a budget and options and returns
// a PathPartitioner, or an error if the budget is not positive.
func NewPathPartitioner(m *cost.Model, budget cost.Units, opts ...Option) (*PathPartitioner, error) {
	if err := checkBudget(m, budget); err != nil {
		return nil, err
	}
	pp := &PathPartitioner{
		model:    m,
		budget:   budget,
		maxPaths: DefaultMaxPaths,
		order:    Probability,
	}
	for _, opt := range opts {
		opt(pp)
	}
	if pp.order == nil {
		pp.order = Probability
	}
	return pp, nil
}

// Partition takes a tree and returns its partition, or an error if the
// tree has too many paths.
func (pp *PathPartitioner) Partition(t *tree.Tree) (Partition, error) {
	paths, err := Paths(t, pp.maxPaths)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return pp.order(paths[i], paths[j])
	})
	paths = dedupe(paths)

	vt := cost.ValueTypeFor(t.UsesFloatSplits())
	p := make(Partition, t.Len())
	var total cost.Units
	for _, path := range paths {
		for _, id := range path.Nodes {
			if _, priced := p[id]; priced {
				continue
			}
			n, _ := t.Get(id)
			total += NodeCost(pp.model, vt, n)
			p[id] = total < pp.budget
		}
	}
	return p, nil
}

func dedupe(paths []*Path) []*Path {
	if len(paths) < 2 {
		return paths
	}
	result := paths[:1]
	for _, p := range paths[1:] {
		if !samePath(result[len(result)-1], p) {
			result = append(result, p)
		}
	}
	return result
}

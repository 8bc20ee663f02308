package kernel

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AfafAlalwan/arch-forest/cost"
	"github.com/AfafAlalwan/arch-forest/tree"
	"github.com/AfafAlalwan/arch-forest/tree/treetest"
)

func armModel(t *testing.T) *cost.Model {
	m, err := cost.New(cost.ARM, nil)
	require.NoError(t, err)
	return m
}

// stump: x[0] <= 1.5 ? 0 : 1, left taken 60% of the time
func stump(t *testing.T) *tree.Tree {
	tr, err := tree.New(0, []*tree.Node{
		tree.NewSplit(0, 0, 1.5, 1, 2, 0.6, 0.4),
		tree.NewLeaf(1, 0),
		tree.NewLeaf(2, 1),
	})
	require.NoError(t, err)
	return tr
}

// skewed: the right subtree is the likely one
func skewed(t *testing.T) *tree.Tree {
	tr, err := tree.New(0, []*tree.Node{
		tree.NewSplit(0, 0, 0.5, 1, 2, 0.3, 0.7),
		tree.NewLeaf(1, 0),
		tree.NewSplit(2, 1, 2.5, 3, 4, 0.5, 0.5),
		tree.NewLeaf(3, 1),
		tree.NewLeaf(4, 2),
	})
	require.NoError(t, err)
	return tr
}

func kernelOf(p Partition) []tree.NodeID {
	ids := []tree.NodeID{}
	for id, in := range p {
		if in {
			ids = append(ids, id)
		}
	}
	return ids
}

func TestNewPartitioner(t *testing.T) {
	m := armModel(t)
	t.Run("non positive budget", func(t *testing.T) {
		for _, alg := range []Algorithm{PathAlgorithm, BreadthFirst} {
			_, err := New(alg, m, 0)
			assert.True(t, errors.Is(err, ErrInvalidBudget), "%s: %v", alg, err)
			_, err = New(alg, m, -10)
			assert.True(t, errors.Is(err, ErrInvalidBudget), "%s: %v", alg, err)
		}
	})
	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := New(Algorithm("dfs"), m, 100)
		assert.True(t, errors.Is(err, ErrUnknownAlgorithm))
	})
	t.Run("parse", func(t *testing.T) {
		alg, err := ParseAlgorithm("")
		require.NoError(t, err)
		assert.Equal(t, PathAlgorithm, alg)
		alg, err = ParseAlgorithm("breadth-first")
		require.NoError(t, err)
		assert.Equal(t, BreadthFirst, alg)
		_, err = ParseAlgorithm("greedy")
		assert.True(t, errors.Is(err, ErrUnknownAlgorithm))
	})
}

func TestPathPartitioner(t *testing.T) {
	m := armModel(t)
	testCases := []struct {
		name   string
		tree   func(*testing.T) *tree.Tree
		budget cost.Units
		opts   []Option
		kernel []tree.NodeID
	}{
		{name: "large budget", tree: stump, budget: 1000, kernel: []tree.NodeID{0, 1, 2}},
		{name: "root does not fit", tree: stump, budget: 1, kernel: []tree.NodeID{}},
		{name: "reaching the budget closes the kernel", tree: stump, budget: 40, kernel: []tree.NodeID{0}},
		{name: "likely leaf first", tree: stump, budget: 41, kernel: []tree.NodeID{0, 1}},
		{name: "likely subtree first", tree: skewed, budget: 80, kernel: []tree.NodeID{0, 2, 3}},
		{
			name:   "lexicographic order",
			tree:   skewed,
			budget: 80,
			opts:   []Option{WithOrder(Lexicographic)},
			kernel: []tree.NodeID{0, 1, 2},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := tc.tree(t)
			pp, err := NewPathPartitioner(m, tc.budget, tc.opts...)
			require.NoError(t, err)
			p, err := pp.Partition(tr)
			require.NoError(t, err)
			require.NoError(t, p.Covers(tr))
			assert.Len(t, p, tr.Len())
			assert.ElementsMatch(t, tc.kernel, kernelOf(p))
			assert.Equal(t, len(tc.kernel), p.Kernel())
		})
	}
}

func TestPathPartitionerTooManyPaths(t *testing.T) {
	pp, err := NewPathPartitioner(armModel(t), 100, WithMaxPaths(2))
	require.NoError(t, err)
	_, err = pp.Partition(skewed(t))
	assert.True(t, errors.Is(err, ErrTooManyPaths))

	p, err := pp.Partition(stump(t))
	require.NoError(t, err)
	assert.Len(t, p, 3)
}

func TestBreadthFirstPartitioner(t *testing.T) {
	m := armModel(t)
	testCases := []struct {
		name   string
		tree   func(*testing.T) *tree.Tree
		budget cost.Units
		kernel []tree.NodeID
	}{
		{name: "large budget", tree: stump, budget: 1000, kernel: []tree.NodeID{0, 1, 2}},
		{name: "root does not fit", tree: stump, budget: 32, kernel: []tree.NodeID{}},
		{name: "likely nodes first", tree: skewed, budget: 80, kernel: []tree.NodeID{0, 2, 3}},
		{name: "first misfit closes the kernel", tree: skewed, budget: 65, kernel: []tree.NodeID{0, 2}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := tc.tree(t)
			bp, err := NewBreadthFirstPartitioner(m, tc.budget)
			require.NoError(t, err)
			p, err := bp.Partition(tr)
			require.NoError(t, err)
			require.NoError(t, p.Covers(tr))
			assert.ElementsMatch(t, tc.kernel, kernelOf(p))
		})
	}
}

func TestPartitionProperties(t *testing.T) {
	m := armModel(t)
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 30; i++ {
		tr := treetest.Random(r, 1+r.Intn(40), 4)
		vt := cost.ValueTypeFor(tr.UsesFloatSplits())
		for _, budget := range []cost.Units{1, 20, 33, 100, 250, 1000} {
			for _, alg := range []Algorithm{PathAlgorithm, BreadthFirst} {
				part, err := New(alg, m, budget)
				require.NoError(t, err)
				p, err := part.Partition(tr)
				require.NoError(t, err)
				require.Len(t, p, tr.Len())
				require.NoError(t, p.Covers(tr))

				var kernelCost cost.Units
				err = tr.Traverse(false, func(n *tree.Node) error {
					if !p[n.ID()] {
						return nil
					}
					kernelCost += NodeCost(m, vt, n)
					return nil
				})
				require.NoError(t, err)
				assert.Less(t, kernelCost, budget, "%s budget %d", alg, budget)

				// ancestors of kernel nodes are in the kernel
				err = tr.Traverse(false, func(n *tree.Node) error {
					for _, c := range n.Children() {
						if p[c] {
							assert.True(t, p[n.ID()], "%s: child %d in kernel, parent %d out", alg, c, n.ID())
						}
					}
					return nil
				})
				require.NoError(t, err)
			}
		}
	}
}

func TestPathPartitionerBudgetRule(t *testing.T) {
	m := armModel(t)
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		tr := treetest.Random(r, 1+r.Intn(30), 4)
		vt := cost.ValueTypeFor(tr.UsesFloatSplits())
		budget := cost.Units(1 + r.Intn(400))
		pp, err := NewPathPartitioner(m, budget)
		require.NoError(t, err)
		p, err := pp.Partition(tr)
		require.NoError(t, err)

		paths, err := Paths(tr, 0)
		require.NoError(t, err)
		assert.Len(t, paths, tr.Leaves())
		sortPaths(paths, Probability)

		priced := map[tree.NodeID]bool{}
		var total cost.Units
		for _, path := range paths {
			for _, id := range path.Nodes {
				if priced[id] {
					continue
				}
				priced[id] = true
				n, _ := tr.Get(id)
				total += NodeCost(m, vt, n)
				assert.Equal(t, total < budget, p[id], "node %d, total %d, budget %d", id, total, budget)
			}
		}
	}
}

func sortPaths(paths []*Path, o Order) {
	for i := 1; i < len(paths); i++ {
		for j := i; j > 0 && o(paths[j], paths[j-1]); j-- {
			paths[j], paths[j-1] = paths[j-1], paths[j]
		}
	}
}

func TestPaths(t *testing.T) {
	paths, err := Paths(skewed(t), 0)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, []tree.NodeID{0, 1}, paths[0].Nodes)
	assert.InDelta(t, 0.3, paths[0].Probability, 1e-9)
	assert.Equal(t, []tree.NodeID{0, 2, 3}, paths[1].Nodes)
	assert.InDelta(t, 0.35, paths[1].Probability, 1e-9)
	assert.Equal(t, []tree.NodeID{0, 2, 4}, paths[2].Nodes)

	assert.True(t, Probability(paths[1], paths[2]))
	assert.False(t, Probability(paths[2], paths[1]))
	assert.True(t, Probability(paths[2], paths[0]))
	assert.True(t, Lexicographic(paths[0], paths[1]))
	assert.True(t, Lexicographic(&Path{Nodes: []tree.NodeID{0}}, &Path{Nodes: []tree.NodeID{0, 1}}))

	assert.Len(t, dedupe([]*Path{paths[0], paths[0], paths[1]}), 2)
}

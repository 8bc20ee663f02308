package kernel

import (
	"sort"

	"github.com/AfafAlalwan/arch-forest/cost"
	"github.com/AfafAlalwan/arch-forest/tree"
)

/*
BreadthFirstPartitioner fills the kernel with the nodes most likely to
be reached. Nodes are listed breadth-first, left child first, and then
stably sorted by descending reach probability. They are accepted in that
order while the running total plus their cost stays below the budget,
and the first node that does not fit closes the kernel.

A child is never more likely to be reached than its parent and comes
later in breadth-first order, so the kernel is closed under ancestors.
*/
type BreadthFirstPartitioner struct {
	model  *cost.Model
	budget cost.Units
}

// NewBreadthFirstPartitioner takes a cost model and a budget and returns
// a BreadthFirstPartitioner, or an error if the budget is not positive.
func NewBreadthFirstPartitioner(m *cost.Model, budget cost.Units) (*BreadthFirstPartitioner, error) {
	if err := checkBudget(m, budget); err != nil {
		return nil, err
	}
	return &BreadthFirstPartitioner{model: m, budget: budget}, nil
}

// Partition takes a tree and returns its partition
func (bp *BreadthFirstPartitioner) Partition(t *tree.Tree) (Partition, error) {
	reach := t.ReachProbability()
	order := make([]*tree.Node, 0, t.Len())
	pending := []*tree.Node{t.RootNode()}
	for len(pending) > 0 {
		n := pending[0]
		pending = pending[1:]
		order = append(order, n)
		for _, c := range n.Children() {
			child, _ := t.Get(c)
			pending = append(pending, child)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return reach[order[i].ID()] > reach[order[j].ID()]
	})

	vt := cost.ValueTypeFor(t.UsesFloatSplits())
	p := make(Partition, len(order))
	var total cost.Units
	closed := false
	for _, n := range order {
		c := NodeCost(bp.model, vt, n)
		if !closed && total+c < bp.budget {
			total += c
			p[n.ID()] = true
			continue
		}
		closed = true
		p[n.ID()] = false
	}
	return p, nil
}

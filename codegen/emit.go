package codegen

import (
	"errors"
	"fmt"

	"github.com/AfafAlalwan/arch-forest/cost"
	"github.com/AfafAlalwan/arch-forest/kernel"
	"github.com/AfafAlalwan/arch-forest/tree"
)

// ErrIncompletePartition is returned when a partition does not define
// kernel membership for every node of the tree being laid out.
var ErrIncompletePartition = errors.New("incomplete partition")

// Baseline takes a tree and its index in the forest and returns a layout
// with one nested if/else per split, left child first, and no jumps.
func Baseline(t *tree.Tree, id int) (*Body, error) {
	var emit func(nodeID tree.NodeID) Stmt
	emit = func(nodeID tree.NodeID) Stmt {
		n, _ := t.Get(nodeID)
		if n.IsLeaf() {
			return &Return{Node: n.ID(), Value: n.Prediction()}
		}
		return &If{
			Node:      n.ID(),
			Feature:   n.Feature(),
			Op:        LessEqual,
			Threshold: n.Threshold(),
			Then:      emit(n.Left()),
			Else:      emit(n.Right()),
		}
	}
	return &Body{
		Tree:        id,
		Entry:       emit(t.Root()),
		FloatSplits: t.UsesFloatSplits(),
		Stats:       Stats{Nodes: t.Len(), KernelNodes: t.Len()},
	}, nil
}

// state holds everything a single layout needs while recursing
type state struct {
	tree   *tree.Tree
	id     int
	part   kernel.Partition
	model  *cost.Model
	vt     cost.ValueType
	blocks []*Block
	stats  Stats
}

// fragment is the code laid out for a subtree in the current
// region and its cost, jumps included and deferred blocks excluded.
type fragment struct {
	code Stmt
	cost cost.Units
}

/*
Emit takes a tree, its index in the forest, a partition of its nodes and
a cost model and returns the layout of the tree:
  - the root is the function entry and is laid out inline
  - every split makes its most likely child the Then branch, comparing
    with Greater when the right child is the most likely one
  - a child in the same region (kernel or not) as its parent is laid out
    nested in its parent, any other child is moved into a new labeled
    block reached through a jump

Labels are numbered from 0 in the order they are allocated. An error
wrapping ErrIncompletePartition is returned if the partition does not
cover every node of the tree.
*/
func Emit(t *tree.Tree, id int, part kernel.Partition, m *cost.Model) (*Body, error) {
	if m == nil {
		return nil, fmt.Errorf("laying out tree %d: no cost model", id)
	}
	if err := part.Covers(t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompletePartition, err)
	}
	s := &state{
		tree:  t,
		id:    id,
		part:  part,
		model: m,
		vt:    cost.ValueTypeFor(t.UsesFloatSplits()),
		stats: Stats{Nodes: t.Len(), KernelNodes: part.Kernel()},
	}
	entry := s.emit(t.Root(), true)
	s.stats.InlineCost = entry.cost
	s.stats.Labels = len(s.blocks)
	return &Body{
		Tree:        id,
		Entry:       entry.code,
		Blocks:      s.blocks,
		FloatSplits: t.UsesFloatSplits(),
		Stats:       s.stats,
	}, nil
}

func (s *state) emit(nodeID tree.NodeID, hot bool) fragment {
	n, _ := s.tree.Get(nodeID)
	if n.IsLeaf() {
		return fragment{
			code: &Return{Node: n.ID(), Value: n.Prediction()},
			cost: s.model.Cost(s.vt, cost.Leaf),
		}
	}
	stmt := &If{Node: n.ID(), Feature: n.Feature(), Op: LessEqual, Threshold: n.Threshold()}
	first, second := n.Left(), n.Right()
	if n.ProbLeft() < n.ProbRight() {
		stmt.Op = Greater
		first, second = second, first
	}
	then := s.child(first, hot)
	els := s.child(second, hot)
	stmt.Then, stmt.Else = then.code, els.code
	return fragment{
		code: stmt,
		cost: s.model.Cost(s.vt, cost.Split) + then.cost + els.cost,
	}
}

func (s *state) child(nodeID tree.NodeID, hot bool) fragment {
	if s.part[nodeID] == hot {
		return s.emit(nodeID, hot)
	}
	label := Label{Tree: s.id, Index: len(s.blocks)}
	blk := &Block{Label: label}
	s.blocks = append(s.blocks, blk)
	f := s.emit(nodeID, s.part[nodeID])
	blk.Body = f.code
	s.stats.DeferredCost += f.cost
	return fragment{
		code: &Goto{Label: label},
		cost: s.model.Cost(s.vt, cost.Jump),
	}
}

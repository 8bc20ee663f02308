/*
Package codegen lays out the branches of a decision tree as a small
statement tree that target renderers turn into source code.

The layout of a tree is a Body: an entry statement, laid out inline
at the start of the prediction function, followed by labeled blocks
holding the code reached through explicit jumps. Emit builds the
layout from a kernel partition and Baseline builds a plain nested
if/else layout with no jumps.
*/
package codegen

import (
	"fmt"

	"github.com/AfafAlalwan/arch-forest/cost"
	"github.com/AfafAlalwan/arch-forest/tree"
)

// Op is the comparison of a split statement
type Op int

const (
	// LessEqual takes the Then branch when the feature value is lower or
	// equal than the threshold.
	LessEqual Op = iota
	// Greater takes the Then branch when the feature value is greater than
	// the threshold.
	Greater
)

func (o Op) String() string {
	switch o {
	case LessEqual:
		return "<="
	case Greater:
		return ">"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Holds returns whether the comparison holds for the given value and threshold
func (o Op) Holds(v, threshold float64) bool {
	if o == Greater {
		return v > threshold
	}
	return v <= threshold
}

// Stmt is a statement of a tree layout: an *If, a *Return or a *Goto
type Stmt interface {
	stmt()
}

// If compares a feature with a threshold and runs Then when the
// comparison holds and Else otherwise.
type If struct {
	Node      tree.NodeID
	Feature   int
	Op        Op
	Threshold float64
	Then      Stmt
	Else      Stmt
}

// Return returns the prediction of a leaf
type Return struct {
	Node  tree.NodeID
	Value float64
}

// Goto jumps to a labeled block
type Goto struct {
	Label Label
}

func (*If) stmt()     {}
func (*Return) stmt() {}
func (*Goto) stmt()   {}

// Label names an out-of-line block. Indices start at 0 for every tree.
type Label struct {
	Tree  int
	Index int
}

func (l Label) String() string {
	return fmt.Sprintf("Label%d_%d", l.Tree, l.Index)
}

// Block is a labeled statement laid out after the entry statement
type Block struct {
	Label Label
	Body  Stmt
}

// Stats summarizes the layout of a tree
type Stats struct {
	Nodes        int
	KernelNodes  int
	Labels       int
	InlineCost   cost.Units
	DeferredCost cost.Units
}

// Add takes another Stats and returns the sum of both
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Nodes:        s.Nodes + o.Nodes,
		KernelNodes:  s.KernelNodes + o.KernelNodes,
		Labels:       s.Labels + o.Labels,
		InlineCost:   s.InlineCost + o.InlineCost,
		DeferredCost: s.DeferredCost + o.DeferredCost,
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("%d nodes, %d in kernel, %d labels, inline cost %d, deferred cost %d",
		s.Nodes, s.KernelNodes, s.Labels, s.InlineCost, s.DeferredCost)
}

// Body is the layout of the prediction function of one tree
type Body struct {
	// Tree is the index of the tree in its forest
	Tree  int
	Entry Stmt
	// Blocks are sorted by label index
	Blocks []*Block
	// FloatSplits is true if any threshold of the tree is non-integral
	FloatSplits bool
	Stats       Stats
}

// Check returns an error if the labels of the body are not numbered
// from 0 in order, a goto targets a missing label or a label is never
// jumped to.
func (b *Body) Check() error {
	jumps := make([]int, len(b.Blocks))
	for i, blk := range b.Blocks {
		if blk.Label.Tree != b.Tree || blk.Label.Index != i {
			return fmt.Errorf("block %d is labeled %s", i, blk.Label)
		}
	}
	var count func(s Stmt) error
	count = func(s Stmt) error {
		switch s := s.(type) {
		case *If:
			if err := count(s.Then); err != nil {
				return err
			}
			return count(s.Else)
		case *Goto:
			if s.Label.Tree != b.Tree || s.Label.Index < 0 || s.Label.Index >= len(b.Blocks) {
				return fmt.Errorf("jump to missing label %s", s.Label)
			}
			jumps[s.Label.Index]++
		case *Return:
		default:
			return fmt.Errorf("unexpected statement %T", s)
		}
		return nil
	}
	if err := count(b.Entry); err != nil {
		return err
	}
	for _, blk := range b.Blocks {
		if err := count(blk.Body); err != nil {
			return err
		}
	}
	for i, n := range jumps {
		if n == 0 {
			return fmt.Errorf("label %s is never jumped to", b.Blocks[i].Label)
		}
	}
	return nil
}

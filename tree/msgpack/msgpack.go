/*
Package msgpack reads and writes forests in MessagePack, a compact
binary alternative to the JSON format with the same structure, and
provides a MessagePack NodeEncodeDecoder for the node stores.
*/
package msgpack

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/AfafAlalwan/arch-forest/tree"
)

type node struct {
	ID         tree.NodeID  `msgpack:"id"`
	Leaf       bool         `msgpack:"leaf,omitempty"`
	Prediction *float64     `msgpack:"prediction,omitempty"`
	Feature    *int         `msgpack:"feature,omitempty"`
	Threshold  *float64     `msgpack:"threshold,omitempty"`
	Left       *tree.NodeID `msgpack:"left,omitempty"`
	Right      *tree.NodeID `msgpack:"right,omitempty"`
	ProbLeft   *float64     `msgpack:"probLeft,omitempty"`
	ProbRight  *float64     `msgpack:"probRight,omitempty"`
	Samples    *int         `msgpack:"samples,omitempty"`
}

type forest struct {
	Dim         int        `msgpack:"dim"`
	FeatureType string     `msgpack:"featureType,omitempty"`
	NumClasses  int        `msgpack:"numClasses"`
	Trees       []*msgTree `msgpack:"trees"`
}

type msgTree struct {
	RootID tree.NodeID `msgpack:"rootID"`
	Nodes  []*node     `msgpack:"nodes"`
}

type nodeEncodeDecoder struct{}

// NewNodeEncodeDecoder returns an object that encodes nodes as
// MessagePack maps and decodes them back.
func NewNodeEncodeDecoder() tree.NodeEncodeDecoder {
	return &nodeEncodeDecoder{}
}

func (ned *nodeEncodeDecoder) Encode(n *tree.Node) ([]byte, error) {
	return msgpack.Marshal(fromRaw(n.Raw()))
}

func (ned *nodeEncodeDecoder) Decode(data []byte) (*tree.Node, error) {
	mn := &node{}
	err := msgpack.Unmarshal(data, mn)
	if err != nil {
		return nil, err
	}
	return mn.raw().Node()
}

/*
WriteForest takes a context.Context, a pointer to a tree.Forest and an
io.Writer and encodes the forest onto the writer as a MessagePack map
with the dim, featureType, numClasses and trees keys. Each tree is a
map with its rootID and its nodes in depth-first order. An error is
returned if the context expires or the encoding cannot be written.
*/
func WriteForest(ctx context.Context, f *tree.Forest, w io.Writer) error {
	mf := &forest{Dim: f.Dim, FeatureType: f.FeatureType, NumClasses: f.NumClasses}
	for _, t := range f.Trees {
		mt := &msgTree{RootID: t.Root()}
		err := t.Traverse(false, func(n *tree.Node) error {
			mt.Nodes = append(mt.Nodes, fromRaw(n.Raw()))
			return ctx.Err()
		})
		if err != nil {
			return err
		}
		mf.Trees = append(mf.Trees, mt)
	}
	return msgpack.NewEncoder(w).Encode(mf)
}

// ReadForest takes an io.Reader and returns the forest decoded from
// the MessagePack on it, in the format written by WriteForest, or an
// error if it cannot be decoded or does not describe a valid forest.
func ReadForest(r io.Reader) (*tree.Forest, error) {
	mf := &forest{}
	err := msgpack.NewDecoder(r).Decode(mf)
	if err != nil {
		return nil, err
	}
	trees := make([]*tree.Tree, 0, len(mf.Trees))
	for i, mt := range mf.Trees {
		if mt == nil {
			return nil, fmt.Errorf("tree %d: %w: nil tree", i, tree.ErrInvalidForest)
		}
		raws := make([]*tree.RawNode, 0, len(mt.Nodes))
		for _, mn := range mt.Nodes {
			if mn == nil {
				raws = append(raws, nil)
				continue
			}
			raws = append(raws, mn.raw())
		}
		t, err := tree.Build(mt.RootID, raws)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees = append(trees, t)
	}
	return tree.NewForest(trees, mf.Dim, mf.FeatureType, mf.NumClasses)
}

// ReadForestFromFilePath takes a filepath, opens the file it points
// to and returns the forest read from it with ReadForest. An empty
// filepath means the standard input.
func ReadForestFromFilePath(filepath string) (*tree.Forest, error) {
	var f *os.File
	var err error
	if filepath == "" {
		f = os.Stdin
	} else {
		f, err = os.Open(filepath)
		if err != nil {
			return nil, fmt.Errorf("reading forest: %v", err)
		}
		defer f.Close()
	}
	result, err := ReadForest(f)
	if err != nil {
		return nil, fmt.Errorf("decoding forest msgpack %s: %w", filepath, err)
	}
	return result, nil
}

func fromRaw(r *tree.RawNode) *node {
	return &node{
		ID:         r.ID,
		Leaf:       r.Leaf,
		Prediction: r.Prediction,
		Feature:    r.Feature,
		Threshold:  r.Threshold,
		Left:       r.Left,
		Right:      r.Right,
		ProbLeft:   r.ProbLeft,
		ProbRight:  r.ProbRight,
		Samples:    r.Samples,
	}
}

func (mn *node) raw() *tree.RawNode {
	return &tree.RawNode{
		ID:         mn.ID,
		Leaf:       mn.Leaf,
		Prediction: mn.Prediction,
		Feature:    mn.Feature,
		Threshold:  mn.Threshold,
		Left:       mn.Left,
		Right:      mn.Right,
		ProbLeft:   mn.ProbLeft,
		ProbRight:  mn.ProbRight,
		Samples:    mn.Samples,
	}
}

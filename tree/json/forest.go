/*
Package json reads and writes forests as JSON documents and
provides a JSON NodeEncodeDecoder for the node stores.
*/
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/AfafAlalwan/arch-forest/tree"
)

type forest struct {
	Dim         int         `json:"dim"`
	FeatureType string      `json:"featureType,omitempty"`
	NumClasses  int         `json:"numClasses"`
	Trees       []*jsonTree `json:"trees"`
}

type jsonTree struct {
	RootID tree.NodeID `json:"rootID"`
	Nodes  []*node     `json:"nodes"`
}

/*
WriteForest takes a context.Context, a pointer to a tree.Forest,
a NodeEncodeDecoder and an io.Writer and serializes the given forest
as JSON onto the io.Writer.
A forest is serialized as a JSON object with the following fields:
* "dim": the number of features of input vectors
* "featureType": the C element type of input vectors
* "numClasses": the number of classes predicted by the forest
* "trees": an array of objects, one per tree, each with a "rootID"
  and the "nodes" of the tree in depth-first order serialized by the
  given NodeEncodeDecoder.
An error is returned if a node cannot be serialized, the context
expires or the JSON cannot be written onto the io.Writer.
*/
func WriteForest(ctx context.Context, f *tree.Forest, ned tree.NodeEncodeDecoder, w io.Writer) error {
	err := writeForestHeader(f, w)
	if err != nil {
		return err
	}
	for i, t := range f.Trees {
		if i > 0 {
			if _, err = w.Write([]byte(",")); err != nil {
				return err
			}
		}
		err = writeTree(ctx, t, ned, w)
		if err != nil {
			return fmt.Errorf("writing tree %d: %v", i, err)
		}
	}
	_, err = w.Write([]byte("]}\n"))
	return err
}

/*
ReadForest takes an io.Reader and returns the forest unmarshalled
from the JSON on it, in the format written by WriteForest. Splits
may leave out "probLeft" and "probRight" when their children carry
"samples" counts, in which case the routing probabilities are derived
from them. An error is returned if the JSON cannot be read or does
not describe a valid forest.
*/
func ReadForest(r io.Reader) (*tree.Forest, error) {
	jf := &forest{}
	err := json.NewDecoder(r).Decode(jf)
	if err != nil {
		return nil, err
	}
	trees := make([]*tree.Tree, 0, len(jf.Trees))
	for i, jt := range jf.Trees {
		if jt == nil {
			return nil, fmt.Errorf("tree %d: %w: null tree", i, tree.ErrInvalidForest)
		}
		raws := make([]*tree.RawNode, 0, len(jt.Nodes))
		for _, jn := range jt.Nodes {
			if jn == nil {
				raws = append(raws, nil)
				continue
			}
			raws = append(raws, jn.raw())
		}
		t, err := tree.Build(jt.RootID, raws)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees = append(trees, t)
	}
	return tree.NewForest(trees, jf.Dim, jf.FeatureType, jf.NumClasses)
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
		return nil, fmt.Errorf("parsing forest JSON %s: %w", filepath, err)
	}
	return result, nil
}

func writeForestHeader(f *tree.Forest, w io.Writer) error {
	jft, err := json.Marshal(f.FeatureType)
	if err != nil {
		return err
	}
	header := fmt.Sprintf(`{"dim":%d,"featureType":%s,"numClasses":%d,"trees":[`, f.Dim, jft, f.NumClasses)
	_, err = w.Write([]byte(header))
	return err
}

func writeTree(ctx context.Context, t *tree.Tree, ned tree.NodeEncodeDecoder, w io.Writer) error {
	_, err := w.Write([]byte(fmt.Sprintf(`{"rootID":%d,"nodes":[`, t.Root())))
	if err != nil {
		return err
	}
	var i int
	err = t.Traverse(false, func(n *tree.Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := writeNode(i, n, ned, w)
		i++
		return err
	})
	if err != nil {
		return err
	}
	_, err = w.Write([]byte(`]}`))
	return err
}

func writeNode(i int, n *tree.Node, ned tree.NodeEncodeDecoder, w io.Writer) error {
	if i != 0 {
		_, err := w.Write([]byte(","))
		if err != nil {
			return err
		}
	}
	jn, err := ned.Encode(n)
	if err != nil {
		return err
	}
	_, err = w.Write(jn)
	return err
}

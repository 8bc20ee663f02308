/*
Package json encodes conversion tasks as JSON documents so that
they can be kept on queue backends outside the process memory.
*/
package json

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AfafAlalwan/arch-forest/queue"
	"github.com/AfafAlalwan/arch-forest/tree"
)

/*
TaskEncodeDecoder is an interface for objects
that allow encoding tasks as slices of bytes and decoding
them back to tasks. It is used to serialize tasks into a
representation to store on redis.
*/
type TaskEncodeDecoder interface {

	//Encode receives a *queue.Task
	// and returns a slice of bytes with the task encoded or an
	//error if the encoding could not be performed for
	//some reason. Its counterpart is Decode.
	Encode(context.Context, *queue.Task) ([]byte, error)

	//Decode receives a slice of bytes
	//and returns a *queue.Task decoded from the slice of bytes
	//or an error if the decoding could not be performed
	//for some reason.
	Decode(context.Context, []byte) (*queue.Task, error)
}

type jsonEncodeDecoder struct {
	ned tree.NodeEncodeDecoder
}

// Nodes are kept as base64 strings, whatever their encoding
type jsonTask struct {
	Index int         `json:"index"`
	Root  tree.NodeID `json:"root"`
	Nodes [][]byte    `json:"nodes"`
}

// New returns a TaskEncodeDecoder that encodes the nodes of the
// task's tree with the given tree.NodeEncodeDecoder, which does
// not need to produce JSON.
func New(ned tree.NodeEncodeDecoder) TaskEncodeDecoder {
	return &jsonEncodeDecoder{ned}
}

func (jed *jsonEncodeDecoder) Encode(ctx context.Context, t *queue.Task) ([]byte, error) {
	if t.Tree == nil {
		return nil, fmt.Errorf("encoding task %s as json: no tree", t.ID())
	}
	jt := &jsonTask{Index: t.Index, Root: t.Tree.Root()}
	err := t.Tree.Traverse(false, func(n *tree.Node) error {
		data, err := jed.ned.Encode(n)
		if err != nil {
			return err
		}
		jt.Nodes = append(jt.Nodes, data)
		return ctx.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("encoding task %s as json: %v", t.ID(), err)
	}
	return json.Marshal(jt)
}

func (jed *jsonEncodeDecoder) Decode(ctx context.Context, data []byte) (*queue.Task, error) {
	jt := &jsonTask{}
	err := json.Unmarshal(data, jt)
	if err != nil {
		return nil, fmt.Errorf("decoding task from json: %v", err)
	}
	nodes := make([]*tree.Node, 0, len(jt.Nodes))
	for _, raw := range jt.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := jed.ned.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding json task %d: decoding node: %w", jt.Index, err)
		}
		nodes = append(nodes, n)
	}
	t, err := tree.New(jt.Root, nodes)
	if err != nil {
		return nil, fmt.Errorf("decoding json task %d: %w", jt.Index, err)
	}
	return &queue.Task{Index: jt.Index, Tree: t}, nil
}

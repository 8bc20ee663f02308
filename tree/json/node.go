package json

import (
	"encoding/json"

	"github.com/AfafAlalwan/arch-forest/tree"
)

type nodeEncodeDecoder struct{}

type node struct {
	ID         tree.NodeID  `json:"id"`
	Leaf       bool         `json:"leaf,omitempty"`
	Prediction *float64     `json:"prediction,omitempty"`
	Feature    *int         `json:"feature,omitempty"`
	Threshold  *float64     `json:"threshold,omitempty"`
	Left       *tree.NodeID `json:"left,omitempty"`
	Right      *tree.NodeID `json:"right,omitempty"`
	ProbLeft   *float64     `json:"probLeft,omitempty"`
	ProbRight  *float64     `json:"probRight,omitempty"`
	Samples    *int         `json:"samples,omitempty"`
}

// NewNodeEncodeDecoder returns a NodeEncodeDecoder that
// encodes nodes as JSON objects.
func NewNodeEncodeDecoder() tree.NodeEncodeDecoder {
	return &nodeEncodeDecoder{}
}

func (ned *nodeEncodeDecoder) Encode(n *tree.Node) ([]byte, error) {
	return json.Marshal(fromRaw(n.Raw()))
}

func (ned *nodeEncodeDecoder) Decode(data []byte) (*tree.Node, error) {
	jn := &node{}
	err := json.Unmarshal(data, jn)
	if err != nil {
		return nil, err
	}
	return jn.raw().Node()
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

func (jn *node) raw() *tree.RawNode {
	return &tree.RawNode{
		ID:         jn.ID,
		Leaf:       jn.Leaf,
		Prediction: jn.Prediction,
		Feature:    jn.Feature,
		Threshold:  jn.Threshold,
		Left:       jn.Left,
		Right:      jn.Right,
		ProbLeft:   jn.ProbLeft,
		ProbRight:  jn.ProbRight,
		Samples:    jn.Samples,
	}
}

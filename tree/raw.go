package tree

// RawNode is the description of a node as produced by the external
// training and serialization step. Leaf is the discriminant: leaves
// must carry a Prediction and no split data, splits must carry
// Feature, Threshold, Left and Right and no Prediction.
//
// ProbLeft and ProbRight are optional on splits. When they are missing
// they are derived from the Samples of the children, or default to an
// even split when those are missing too.
type RawNode struct {
	ID         NodeID
	Leaf       bool
	Prediction *float64
	Feature    *int
	Threshold  *float64
	Left       *NodeID
	Right      *NodeID
	ProbLeft   *float64
	ProbRight  *float64
	Samples    *int
}

/*
Build takes the ID of the root node and the raw descriptions of the
nodes of a tree, checks each description is either a leaf or a split,
fills in missing routing probabilities and returns the tree built with
New, or the first error found.
*/
func Build(rootID NodeID, raws []*RawNode) (*Tree, error) {
	samples := make(map[NodeID]int, len(raws))
	for _, r := range raws {
		if r != nil && r.Samples != nil {
			samples[r.ID] = *r.Samples
		}
	}
	nodes := make([]*Node, 0, len(raws))
	for _, r := range raws {
		n, err := r.node(samples)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return New(rootID, nodes)
}

func (r *RawNode) node(samples map[NodeID]int) (*Node, error) {
	if r == nil {
		return nil, &Error{Message: "nil node description", Err: ErrMalformedNode}
	}
	hasSplitData := r.Feature != nil || r.Threshold != nil || r.Left != nil || r.Right != nil
	if r.Leaf {
		if hasSplitData {
			return nil, &Error{Node: r.ID, Message: "leaf carries split data", Err: ErrMalformedNode}
		}
		if r.Prediction == nil {
			return nil, &Error{Node: r.ID, Message: "leaf without prediction", Err: ErrMalformedNode}
		}
		return NewLeaf(r.ID, *r.Prediction), nil
	}
	if r.Prediction != nil {
		return nil, &Error{Node: r.ID, Message: "split carries a prediction", Err: ErrMalformedNode}
	}
	if r.Feature == nil || r.Threshold == nil || r.Left == nil || r.Right == nil {
		return nil, &Error{Node: r.ID, Message: "split without feature, threshold or children", Err: ErrMalformedNode}
	}
	if *r.Feature < 0 {
		return nil, &Error{Node: r.ID, Message: "negative feature index", Err: ErrMalformedNode}
	}
	pl, pr := r.probabilities(samples)
	return NewSplit(r.ID, *r.Feature, *r.Threshold, *r.Left, *r.Right, pl, pr), nil
}

func (r *RawNode) probabilities(samples map[NodeID]int) (float64, float64) {
	switch {
	case r.ProbLeft != nil && r.ProbRight != nil:
		return *r.ProbLeft, *r.ProbRight
	case r.ProbLeft != nil:
		return *r.ProbLeft, 1 - *r.ProbLeft
	case r.ProbRight != nil:
		return 1 - *r.ProbRight, *r.ProbRight
	}
	ls, lok := samples[*r.Left]
	rs, rok := samples[*r.Right]
	if lok && rok && ls+rs > 0 {
		total := float64(ls + rs)
		return float64(ls) / total, float64(rs) / total
	}
	return 0.5, 0.5
}

// Raw returns the raw description of the node, with explicit
// probabilities for splits.
func (n *Node) Raw() *RawNode {
	r := &RawNode{ID: n.id, Leaf: n.leaf}
	if n.leaf {
		p := n.prediction
		r.Prediction = &p
		return r
	}
	f, th, l, rt, pl, pr := n.feature, n.threshold, n.left, n.right, n.probLeft, n.probRight
	r.Feature, r.Threshold, r.Left, r.Right, r.ProbLeft, r.ProbRight = &f, &th, &l, &rt, &pl, &pr
	return r
}

// Node returns the node described by r, or an error if the description
// is neither a valid leaf nor a valid split. Missing probabilities
// default to an even split.
func (r *RawNode) Node() (*Node, error) {
	return r.node(nil)
}

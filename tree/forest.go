package tree

import "fmt"

// DefaultFeatureType is the element type of input vectors
// when a forest does not declare one.
const DefaultFeatureType = "float"

// Forest is an ordered sequence of trees sharing input
// dimensionality and feature element type.
type Forest struct {
	Trees []*Tree
	// Dim is the number of features of input vectors
	Dim int
	// FeatureType is the C element type of input vectors. It only
	// affects the generated signatures, never the decision logic.
	FeatureType string
	// NumClasses is the number of classes predicted by the forest,
	// only used to aggregate the predictions of its trees.
	NumClasses int
}

// NewForest takes a slice of trees, the input dimensionality, the
// feature element type and the number of classes and returns a
// forest with them or an error if a tree compares a feature beyond
// the dimensionality.
func NewForest(trees []*Tree, dim int, featureType string, numClasses int) (*Forest, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("%w: no trees", ErrInvalidForest)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimensionality must be positive, got %d", ErrInvalidForest, dim)
	}
	if numClasses < 0 {
		return nil, fmt.Errorf("%w: negative number of classes %d", ErrInvalidForest, numClasses)
	}
	if featureType == "" {
		featureType = DefaultFeatureType
	}
	for i, t := range trees {
		if t == nil {
			return nil, fmt.Errorf("%w: tree %d is nil", ErrInvalidForest, i)
		}
		for _, id := range t.ids {
			n := t.nodes[id]
			if !n.leaf && n.feature >= dim {
				return nil, fmt.Errorf("%w: tree %d: node %d uses feature %d of %d", ErrInvalidForest, i, id, n.feature, dim)
			}
		}
	}
	return &Forest{Trees: trees, Dim: dim, FeatureType: featureType, NumClasses: numClasses}, nil
}

// Header returns the metadata of the forest
func (f *Forest) Header() *Header {
	h := &Header{Dim: f.Dim, FeatureType: f.FeatureType, NumClasses: f.NumClasses}
	for _, t := range f.Trees {
		h.Roots = append(h.Roots, t.root)
	}
	return h
}

// Len returns the number of trees in the forest
func (f *Forest) Len() int {
	return len(f.Trees)
}

// Nodes returns the total number of nodes in the forest
func (f *Forest) Nodes() int {
	var count int
	for _, t := range f.Trees {
		count += t.Len()
	}
	return count
}

package tree

import "fmt"

// ModelError represents an error on the structure of a tree
type ModelError string

const (
	// ErrMalformedNode is returned for node descriptions that hold both
	// leaf and split data, or neither.
	ErrMalformedNode = ModelError("malformed node")
	// ErrMissingChild is returned when a split references a child
	// absent from the tree's node table.
	ErrMissingChild = ModelError("missing child node")
	// ErrMissingRoot is returned when the root ID is absent from the
	// tree's node table.
	ErrMissingRoot = ModelError("missing root node")
	// ErrDuplicatedNode is returned when two nodes share an ID.
	ErrDuplicatedNode = ModelError("duplicated node id")
	// ErrSharedChild is returned when a node is the child of more than
	// one split, or the nodes form a cycle.
	ErrSharedChild = ModelError("node with more than one parent")
	// ErrUnreachableNode is returned for nodes that cannot be reached
	// from the root.
	ErrUnreachableNode = ModelError("unreachable node")
	// ErrInvalidForest is returned for forests whose trees do not fit
	// the forest's input dimensionality or that have no trees.
	ErrInvalidForest = ModelError("invalid forest")
)

func (me ModelError) Error() string {
	return string(me)
}

// Error describes a violation of the tree invariants on a given node.
// It matches its ModelError with errors.Is.
type Error struct {
	Node    NodeID
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: node %d: %s", e.Err, e.Node, e.Message)
}

// Unwrap returns the ModelError of the violation
func (e *Error) Unwrap() error {
	return e.Err
}

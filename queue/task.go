package queue

import (
	"fmt"
	"strconv"

	"github.com/AfafAlalwan/arch-forest/tree"
)

// Task is the conversion of one tree of a forest
type Task struct {
	// Index is the position of the tree in its forest
	Index int
	Tree  *tree.Tree
}

// ID returns a string that identifies the
// task, the index of its tree.
func (t *Task) ID() string {
	return strconv.Itoa(t.Index)
}

func (t *Task) String() string {
	return fmt.Sprintf("{Task tree %d}", t.Index)
}

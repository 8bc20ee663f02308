package codegen

import "fmt"

// Eval takes a layout and a feature vector and returns the value the
// generated function would return for it, following jumps into labeled
// blocks. It returns an error if the layout needs a feature beyond the
// vector length or jumps to a missing label.
func Eval(b *Body, x []float64) (float64, error) {
	s := b.Entry
	jumps := 0
	for {
		switch st := s.(type) {
		case *Return:
			return st.Value, nil
		case *If:
			if st.Feature < 0 || st.Feature >= len(x) {
				return 0, fmt.Errorf("evaluating tree %d: node %d needs feature %d but sample has %d features", b.Tree, st.Node, st.Feature, len(x))
			}
			if st.Op.Holds(x[st.Feature], st.Threshold) {
				s = st.Then
			} else {
				s = st.Else
			}
		case *Goto:
			i := st.Label.Index
			if i < 0 || i >= len(b.Blocks) || b.Blocks[i].Label != st.Label {
				return 0, fmt.Errorf("evaluating tree %d: jump to missing label %s", b.Tree, st.Label)
			}
			jumps++
			if jumps > len(b.Blocks) {
				return 0, fmt.Errorf("evaluating tree %d: jump loop through %s", b.Tree, st.Label)
			}
			s = b.Blocks[i].Body
		default:
			return 0, fmt.Errorf("evaluating tree %d: unexpected statement %T", b.Tree, s)
		}
	}
}

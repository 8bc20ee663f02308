/*
Package cost provides the instruction cost model used to estimate the
size of the code generated for each node of a decision tree on a given
target architecture.

Costs are expressed in abstract units that approximate the bytes of
compiled code for a node's comparison and branch or return statement.
They come from an empirically calibrated Table, not from an actual
compilation, and the table can be replaced to recalibrate against new
toolchains.
*/
package cost

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Units is an estimate of compiled code size
type Units int

// Architecture identifies a target instruction set
type Architecture string

const (
	// ARM is the 32-bit ARM target
	ARM = Architecture("arm")
	// Intel is the x86-64 target
	Intel = Architecture("intel")
)

// ValueType is the comparand type of the generated code
// for a tree, fixed by whether the tree uses non-integral
// thresholds.
type ValueType string

const (
	// Int is used for trees whose thresholds are all integral
	Int = ValueType("int")
	// Float is used for trees with at least one non-integral threshold
	Float = ValueType("float")
)

// NodeKind is the kind of generated statement being priced
type NodeKind int

const (
	// Leaf is the return statement of a leaf
	Leaf NodeKind = iota
	// Split is the comparison and branch of a split
	Split
	// Jump is an explicit goto into an out-of-line block
	Jump
)

func (k NodeKind) String() string {
	switch k {
	case Leaf:
		return "leaf"
	case Split:
		return "split"
	case Jump:
		return "jump"
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// ErrUnsupportedArchitecture is returned when building a model for
// an architecture missing from the calibration table.
var ErrUnsupportedArchitecture = errors.New("unsupported architecture")

// Model maps node kinds and value types to code size costs
// for one architecture. It is immutable and safe for concurrent
// use.
type Model struct {
	arch  Architecture
	costs map[ValueType]Entry
}

// New takes an architecture and a calibration table and returns
// the cost model for that architecture, or an error wrapping
// ErrUnsupportedArchitecture if the table has no entry for it.
// A nil table means DefaultTable.
func New(arch Architecture, table *Table) (*Model, error) {
	if table == nil {
		table = DefaultTable()
	}
	entries, ok := table.Architectures[arch]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnsupportedArchitecture, arch, strings.Join(table.names(), ", "))
	}
	m := &Model{arch: arch, costs: make(map[ValueType]Entry, len(entries))}
	for vt, e := range entries {
		m.costs[vt] = e
	}
	for _, vt := range []ValueType{Int, Float} {
		if _, ok := m.costs[vt]; !ok {
			return nil, fmt.Errorf("calibration for %s has no %s costs", arch, vt)
		}
	}
	return m, nil
}

// Architecture returns the architecture the model prices code for
func (m *Model) Architecture() Architecture {
	return m.arch
}

// Cost returns the estimated size of the code for a node of the given
// kind in a tree with the given comparand type.
func (m *Model) Cost(vt ValueType, kind NodeKind) Units {
	e := m.costs[vt]
	switch kind {
	case Leaf:
		return e.Leaf
	case Split:
		return e.Split
	case Jump:
		return e.Jump
	}
	return 0
}

// ValueTypeFor returns Float if usesFloatSplits is true and Int otherwise
func ValueTypeFor(usesFloatSplits bool) ValueType {
	if usesFloatSplits {
		return Float
	}
	return Int
}

func (t *Table) names() []string {
	names := make([]string, 0, len(t.Architectures))
	for a := range t.Architectures {
		names = append(names, string(a))
	}
	sort.Strings(names)
	return names
}

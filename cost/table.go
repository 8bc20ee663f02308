package cost

import (
	"fmt"
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"
)

// Entry holds the costs of each node kind for one value type
type Entry struct {
	Split Units `yaml:"split"`
	Leaf  Units `yaml:"leaf"`
	Jump  Units `yaml:"jump"`
}

// Table is a calibration table: the costs of each node kind
// for each value type and architecture.
type Table struct {
	Architectures map[Architecture]map[ValueType]Entry `yaml:"architectures"`
}

/*
DefaultTable returns the calibration measured on -O0 builds:
  - arm counts 4-byte instructions: 5 for an integer split, 8 for a
    float one, 2 for a return and 1 for a branch
  - intel counts bytes: 28 for an integer split, 17 for a float one,
    10 for a return and 5 for a jump
*/
func DefaultTable() *Table {
	return &Table{
		Architectures: map[Architecture]map[ValueType]Entry{
			ARM: {
				Int:   {Split: 5 * 4, Leaf: 2 * 4, Jump: 1 * 4},
				Float: {Split: 8 * 4, Leaf: 2 * 4, Jump: 1 * 4},
			},
			Intel: {
				Int:   {Split: 28, Leaf: 10, Jump: 5},
				Float: {Split: 17, Leaf: 10, Jump: 5},
			},
		},
	}
}

/*
ReadTable takes a slice of bytes with a calibration table in YAML and
returns the table parsed from it or an error.
The YAML is expected to be an object with an architectures property,
holding an object per architecture with an int and a float object, each
with split, leaf and jump costs:

	architectures:
	  arm:
	    int: {split: 20, leaf: 8, jump: 4}
	    float: {split: 32, leaf: 8, jump: 4}

Costs must be positive.
*/
func ReadTable(data []byte) (*Table, error) {
	t := &Table{}
	err := yaml.UnmarshalStrict(data, t)
	if err != nil {
		return nil, fmt.Errorf("parsing yml cost table: %v", err)
	}
	if len(t.Architectures) == 0 {
		return nil, fmt.Errorf("cost table has no architecture information")
	}
	for arch, entries := range t.Architectures {
		for _, vt := range []ValueType{Int, Float} {
			e, ok := entries[vt]
			if !ok {
				return nil, fmt.Errorf("cost table: architecture %s has no %s costs", arch, vt)
			}
			if e.Split <= 0 || e.Leaf <= 0 || e.Jump <= 0 {
				return nil, fmt.Errorf("cost table: architecture %s has non-positive %s costs %+v", arch, vt, e)
			}
		}
		for vt := range entries {
			if vt != Int && vt != Float {
				return nil, fmt.Errorf("cost table: architecture %s has unknown value type %q", arch, vt)
			}
		}
	}
	return t, nil
}

/*
ReadTableFromFile takes a filepath string, reads its contents and uses
ReadTable to parse it and return the calibration table or an error.
*/
func ReadTableFromFile(filepath string) (*Table, error) {
	data, err := ioutil.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading cost table yml file %s: %v", filepath, err)
	}
	t, err := ReadTable(data)
	if err != nil {
		err = fmt.Errorf("parsing cost table yml file %s: %v", filepath, err)
	}
	return t, err
}

// Marshal returns the YAML representation of the table
func (t *Table) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}

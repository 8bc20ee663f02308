package cost

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	testCases := []struct {
		arch              Architecture
		vt                ValueType
		split, leaf, jump Units
	}{
		{ARM, Int, 20, 8, 4},
		{ARM, Float, 32, 8, 4},
		{Intel, Int, 28, 10, 5},
		{Intel, Float, 17, 10, 5},
	}
	for _, tc := range testCases {
		m, err := New(tc.arch, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.arch, m.Architecture())
		assert.Equal(t, tc.split, m.Cost(tc.vt, Split), "%s %s", tc.arch, tc.vt)
		assert.Equal(t, tc.leaf, m.Cost(tc.vt, Leaf), "%s %s", tc.arch, tc.vt)
		assert.Equal(t, tc.jump, m.Cost(tc.vt, Jump), "%s %s", tc.arch, tc.vt)
	}
	assert.Equal(t, Float, ValueTypeFor(true))
	assert.Equal(t, Int, ValueTypeFor(false))
	assert.Equal(t, "jump", Jump.String())
}

func TestNew(t *testing.T) {
	_, err := New("riscv", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedArchitecture))
	assert.Contains(t, err.Error(), "arm, intel")

	_, err = New(ARM, &Table{Architectures: map[Architecture]map[ValueType]Entry{ARM: {Int: {1, 1, 1}}}})
	assert.Error(t, err)

	table := DefaultTable()
	m, err := New(ARM, table)
	require.NoError(t, err)
	table.Architectures[ARM][Int] = Entry{Split: 1, Leaf: 1, Jump: 1}
	assert.Equal(t, Units(20), m.Cost(Int, Split))
}

func TestReadTable(t *testing.T) {
	data, err := DefaultTable().Marshal()
	require.NoError(t, err)
	table, err := ReadTable(data)
	require.NoError(t, err)
	assert.Equal(t, DefaultTable(), table)

	table, err = ReadTable([]byte("architectures:\n  riscv:\n    int: {split: 12, leaf: 6, jump: 2}\n    float: {split: 16, leaf: 6, jump: 2}\n"))
	require.NoError(t, err)
	m, err := New("riscv", table)
	require.NoError(t, err)
	assert.Equal(t, Units(16), m.Cost(Float, Split))

	for name, doc := range map[string]string{
		"empty":         "architectures: {}\n",
		"missing float": "architectures:\n  arm:\n    int: {split: 1, leaf: 1, jump: 1}\n",
		"zero cost":     "architectures:\n  arm:\n    int: {split: 1, leaf: 0, jump: 1}\n    float: {split: 1, leaf: 1, jump: 1}\n",
		"unknown type":  "architectures:\n  arm:\n    int: {split: 1, leaf: 1, jump: 1}\n    float: {split: 1, leaf: 1, jump: 1}\n    double: {split: 1, leaf: 1, jump: 1}\n",
		"unknown field": "architectures:\n  arm:\n    int: {split: 1, leaf: 1, jump: 1, call: 3}\n    float: {split: 1, leaf: 1, jump: 1}\n",
		"not yaml":      "architectures: [",
	} {
		_, err := ReadTable([]byte(doc))
		assert.Error(t, err, name)
	}

	path := filepath.Join(t.TempDir(), "costs.yml")
	require.NoError(t, os.WriteFile(path, data, 0644))
	table, err = ReadTableFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTable(), table)
	_, err = ReadTableFromFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

package codegen

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/AfafAlalwan/arch-forest/kernel"
	"github.com/AfafAlalwan/arch-forest/tree/treetest"
)

func TestMarshalBody(t *testing.T) {
	m := model(t)
	r := rand.New(rand.NewSource(5))
	part, err := kernel.New(kernel.PathAlgorithm, m, 1)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		tr := treetest.Random(r, 1+r.Intn(30), 3)
		p, err := part.Partition(tr)
		require.NoError(t, err)
		b, err := Emit(tr, i, p, m)
		require.NoError(t, err)
		require.NotEmpty(t, b.Blocks)

		data, err := MarshalBody(b)
		require.NoError(t, err)
		got, err := UnmarshalBody(data)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
}

func TestUnmarshalBodyErrors(t *testing.T) {
	_, err := UnmarshalBody([]byte("not msgpack"))
	assert.Error(t, err)

	for name, doc := range map[string]*bodyDoc{
		"missing entry": {Tree: 1},
		"unknown kind":  {Tree: 1, Entry: &stmtDoc{Kind: "switch"}},
		"missing label": {Tree: 1, Entry: &stmtDoc{Kind: gotoKind, Label: 2}},
		"unused label": {
			Tree:   1,
			Entry:  &stmtDoc{Kind: returnKind, Value: 1},
			Blocks: []*stmtDoc{{Kind: returnKind}},
		},
		"if without else": {Tree: 1, Entry: &stmtDoc{Kind: ifKind, Then: &stmtDoc{Kind: returnKind}}},
	} {
		t.Run(name, func(t *testing.T) {
			data, err := msgpack.Marshal(doc)
			require.NoError(t, err)
			_, err = UnmarshalBody(data)
			assert.Error(t, err)
		})
	}

	_, err = MarshalBody(&Body{Entry: nil})
	assert.Error(t, err)
}

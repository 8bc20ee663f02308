package json

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AfafAlalwan/arch-forest/tree"
	"github.com/AfafAlalwan/arch-forest/tree/treetest"
)

func TestWriteReadForest(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewSource(7))
	f := treetest.Forest(r, 4, 30, 3)
	buf := &bytes.Buffer{}
	require.NoError(t, WriteForest(ctx, f, NewNodeEncodeDecoder(), buf))

	got, err := ReadForest(buf)
	require.NoError(t, err)
	assert.Equal(t, f.Dim, got.Dim)
	assert.Equal(t, f.FeatureType, got.FeatureType)
	assert.Equal(t, f.NumClasses, got.NumClasses)
	require.Len(t, got.Trees, f.Len())
	for i, tr := range f.Trees {
		assert.Equal(t, tr.String(), got.Trees[i].String())
		assert.Equal(t, tr.Len(), got.Trees[i].Len())
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, WriteForest(cctx, f, NewNodeEncodeDecoder(), &bytes.Buffer{}))
}

func TestReadForest(t *testing.T) {
	t.Run("probabilities from samples", func(t *testing.T) {
		doc := `{"dim":2,"numClasses":2,"trees":[{"rootID":0,"nodes":[
			{"id":0,"feature":1,"threshold":0.5,"left":1,"right":2},
			{"id":1,"leaf":true,"prediction":0,"samples":30},
			{"id":2,"leaf":true,"prediction":1,"samples":10}]}]}`
		f, err := ReadForest(strings.NewReader(doc))
		require.NoError(t, err)
		assert.Equal(t, tree.DefaultFeatureType, f.FeatureType)
		root := f.Trees[0].RootNode()
		assert.InDelta(t, 0.75, root.ProbLeft(), 1e-12)
		assert.InDelta(t, 0.25, root.ProbRight(), 1e-12)
	})
	t.Run("even split without samples", func(t *testing.T) {
		doc := `{"dim":1,"trees":[{"rootID":0,"nodes":[
			{"id":0,"feature":0,"threshold":1,"left":1,"right":2},
			{"id":1,"leaf":true,"prediction":3},
			{"id":2,"leaf":true,"prediction":4}]}]}`
		f, err := ReadForest(strings.NewReader(doc))
		require.NoError(t, err)
		assert.Equal(t, 0.5, f.Trees[0].RootNode().ProbLeft())
	})
	t.Run("errors", func(t *testing.T) {
		testCases := []struct {
			name string
			doc  string
			is   error
		}{
			{name: "missing child", doc: `{"dim":1,"trees":[{"rootID":0,"nodes":[{"id":0,"feature":0,"threshold":1,"left":1,"right":2},{"id":1,"leaf":true,"prediction":0}]}]}`, is: tree.ErrMissingChild},
			{name: "leaf with split data", doc: `{"dim":1,"trees":[{"rootID":0,"nodes":[{"id":0,"leaf":true,"prediction":0,"feature":0}]}]}`, is: tree.ErrMalformedNode},
			{name: "split without children", doc: `{"dim":1,"trees":[{"rootID":0,"nodes":[{"id":0,"feature":0,"threshold":1}]}]}`, is: tree.ErrMalformedNode},
			{name: "feature beyond dim", doc: `{"dim":1,"trees":[{"rootID":0,"nodes":[{"id":0,"feature":3,"threshold":1,"left":1,"right":2},{"id":1,"leaf":true,"prediction":0},{"id":2,"leaf":true,"prediction":1}]}]}`, is: tree.ErrInvalidForest},
			{name: "no trees", doc: `{"dim":1,"trees":[]}`, is: tree.ErrInvalidForest},
			{name: "null tree", doc: `{"dim":1,"trees":[null]}`, is: tree.ErrInvalidForest},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := ReadForest(strings.NewReader(tc.doc))
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.is), err.Error())
			})
		}
		_, err := ReadForest(strings.NewReader("{"))
		assert.Error(t, err)
	})
}

func TestNodeEncodeDecoder(t *testing.T) {
	ned := NewNodeEncodeDecoder()
	for _, n := range []*tree.Node{
		tree.NewLeaf(4, 2.5),
		tree.NewSplit(0, 3, 0.25, 1, 2, 0.9, 0.1),
	} {
		data, err := ned.Encode(n)
		require.NoError(t, err)
		got, err := ned.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
	_, err := ned.Decode([]byte(`{"id":1}`))
	assert.True(t, errors.Is(err, tree.ErrMalformedNode))
}

package mongostore

import (
	"context"
	"math/rand"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mgo "gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"

	"github.com/AfafAlalwan/arch-forest/tree"
	"github.com/AfafAlalwan/arch-forest/tree/treetest"
)

func TestNodeDoc(t *testing.T) {
	for _, n := range []*tree.Node{tree.NewLeaf(3, 1.5), tree.NewSplit(0, 2, 0.5, 1, 2, 0.7, 0.3)} {
		doc := newNodeDoc("f", 4, n)
		assert.Equal(t, "f", doc.Forest)
		assert.Equal(t, 4, doc.Tree)
		data, err := bson.Marshal(doc)
		require.NoError(t, err)
		decoded := &nodeDoc{}
		require.NoError(t, bson.Unmarshal(data, decoded))
		got, err := decoded.node()
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}

	data, err := bson.Marshal(&headerDoc{ID: "f", Header: tree.Header{Dim: 3, FeatureType: "float", NumClasses: 2, Roots: []tree.NodeID{0, 5}}})
	require.NoError(t, err)
	var raw bson.M
	require.NoError(t, bson.Unmarshal(data, &raw))
	assert.Equal(t, "f", raw["_id"])
	assert.EqualValues(t, 3, raw["dim"])
}

// TestMongoStore needs a MongoDB server, whose URL is taken
// from ARCHFOREST_TEST_MONGO (for instance mongodb://localhost/archforest).
func TestMongoStore(t *testing.T) {
	url := os.Getenv("ARCHFOREST_TEST_MONGO")
	if url == "" {
		t.Skip("ARCHFOREST_TEST_MONGO not set")
	}
	ctx := context.Background()
	session, err := mgo.Dial(url)
	require.NoError(t, err)
	defer session.Close()

	id := uuid.New().String()
	fs, err := Open(ctx, session, id)
	require.NoError(t, err)
	defer func() {
		session.DB("").C(nodesCollectionName).RemoveAll(bson.M{"forest": id})
		session.DB("").C(forestsCollectionName).RemoveId(id)
	}()

	h, err := fs.Header(ctx)
	require.NoError(t, err)
	assert.Nil(t, h)

	f := treetest.Forest(rand.New(rand.NewSource(2)), 3, 10, 2)
	require.NoError(t, tree.SaveForest(ctx, fs, f))
	require.NoError(t, tree.SaveForest(ctx, fs, f))
	got, err := tree.LoadForest(ctx, fs)
	require.NoError(t, err)
	assert.Equal(t, f.Header(), got.Header())
	for i, tr := range f.Trees {
		assert.Equal(t, tr.String(), got.Trees[i].String())
	}
	require.NoError(t, fs.Nodes(1).Delete(ctx, 12345))
	require.NoError(t, fs.Close(ctx))

	_, err = Open(ctx, session, "")
	assert.Error(t, err)
}

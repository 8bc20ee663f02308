package mongodataset

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mgo "gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"

	"github.com/AfafAlalwan/arch-forest/dataset"
)

func TestSampleDoc(t *testing.T) {
	s := &dataset.Sample{Label: 2, Features: []float64{0.5, -1, 3}}
	data, err := bson.Marshal(newSampleDoc(s))
	require.NoError(t, err)
	var raw bson.M
	require.NoError(t, bson.Unmarshal(data, &raw))
	assert.EqualValues(t, 3, raw["dim"])
	doc := &sampleDoc{}
	require.NoError(t, bson.Unmarshal(data, doc))
	assert.Equal(t, s, doc.sample())
}

// TestMongoDataset needs a MongoDB server, whose URL is taken
// from ARCHFOREST_TEST_MONGO (for instance mongodb://localhost/archforest).
func TestMongoDataset(t *testing.T) {
	url := os.Getenv("ARCHFOREST_TEST_MONGO")
	if url == "" {
		t.Skip("ARCHFOREST_TEST_MONGO not set")
	}
	ctx := context.Background()
	session, err := mgo.Dial(url)
	require.NoError(t, err)
	defer session.Close()
	collection := "samples-" + uuid.New().String()
	defer session.DB("").C(collection).DropCollection()

	ds, err := Open(ctx, session, collection, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Dim())
	samples := []*dataset.Sample{
		{Label: 0, Features: []float64{1, 2}},
		{Label: 1, Features: []float64{3, 4.5}},
	}
	n, err := ds.Write(ctx, samples)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = ds.Write(ctx, []*dataset.Sample{{Features: []float64{1}}})
	assert.Error(t, err)

	all, err := Open(ctx, session, collection, 0)
	require.NoError(t, err)
	_, err = all.Write(ctx, []*dataset.Sample{{Label: 3, Features: []float64{1}}})
	require.NoError(t, err)
	count, err := ds.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := dataset.Samples(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, samples, got)
	got, err = dataset.Samples(ctx, all)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

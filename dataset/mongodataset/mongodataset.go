/*
Package mongodataset provides an implementation of dataset.Dataset
that uses a MongoDB database as backend.
*/
package mongodataset

import (
	"context"
	"fmt"

	mgo "gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"

	"github.com/AfafAlalwan/arch-forest/dataset"
)

/*
Dataset is a dataset.Dataset to which samples can be added
and from which samples can be sequentially read
*/
type Dataset interface {
	dataset.Dataset
	Write(context.Context, []*dataset.Sample) (int, error)
	Count(context.Context) (int, error)
}

type mongodataset struct {
	session    *mgo.Session
	collection string
	dim        int
}

type sampleDoc struct {
	Label    float64   `bson:"label"`
	Features []float64 `bson:"features"`
	Dim      int       `bson:"dim"`
}

// DefaultCollection is the collection samples are kept in
// when Open is given an empty collection name
const DefaultCollection = "samples"

/*
Open takes a MongoDB database session, the name of a collection and the
number of features of the samples and returns a Dataset that works on
that collection of the default database for that session, or an error
if the indexes on the collection cannot be ensured. A zero dim means
samples of any size, otherwise only samples with dim features are
written and read.
*/
func Open(ctx context.Context, session *mgo.Session, collection string, dim int) (Dataset, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	if dim < 0 {
		return nil, fmt.Errorf("opening mongo dataset: negative dim %d", dim)
	}
	mds := &mongodataset{session, collection, dim}
	err := mds.ensureIndexes()
	if err != nil {
		return nil, fmt.Errorf("opening mongo dataset: %v", err)
	}
	return mds, nil
}

func (mds *mongodataset) Dim() int {
	return mds.dim
}

func (mds *mongodataset) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return mds.query().Count()
}

func (mds *mongodataset) Write(ctx context.Context, samples []*dataset.Sample) (int, error) {
	docs := make([]interface{}, 0, len(samples))
	for i, s := range samples {
		if mds.dim > 0 && len(s.Features) != mds.dim {
			return 0, fmt.Errorf("writing sample %d: expected %d features, got %d", i, mds.dim, len(s.Features))
		}
		docs = append(docs, newSampleDoc(s))
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	err := mds.samplesCollection().Insert(docs...)
	if err != nil {
		return 0, fmt.Errorf("writing samples: %v", err)
	}
	return len(samples), nil
}

func (mds *mongodataset) Read(ctx context.Context) (<-chan *dataset.Sample, <-chan error) {
	samples := make(chan *dataset.Sample)
	errs := make(chan error, 1)
	go func() {
		defer close(samples)
		defer close(errs)
		iter := mds.query().Iter()
		doc := &sampleDoc{}
		var err error
	loop:
		for iter.Next(doc) {
			s := doc.sample()
			select {
			case <-ctx.Done():
				err = ctx.Err()
				break loop
			case samples <- s:
			}
			doc = &sampleDoc{}
		}
		if cerr := iter.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			errs <- err
		}
	}()
	return samples, errs
}

func (mds *mongodataset) ensureIndexes() error {
	index := mgo.Index{
		Key:        []string{"dim"},
		Background: true,
	}
	return mds.samplesCollection().EnsureIndex(index)
}

func (mds *mongodataset) samplesCollection() *mgo.Collection {
	return mds.session.DB("").C(mds.collection)
}

func (mds *mongodataset) query() *mgo.Query {
	q := bson.M{}
	if mds.dim > 0 {
		q["dim"] = mds.dim
	}
	return mds.samplesCollection().Find(q).Sort("_id")
}

func newSampleDoc(s *dataset.Sample) *sampleDoc {
	return &sampleDoc{Label: s.Label, Features: s.Features, Dim: len(s.Features)}
}

func (doc *sampleDoc) sample() *dataset.Sample {
	return &dataset.Sample{Label: doc.Label, Features: doc.Features}
}

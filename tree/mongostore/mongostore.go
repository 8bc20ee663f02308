/*
Package mongostore implements a tree.ForestStore backed by a MongoDB
database. Several forests can share a database: headers are kept in
the forests collection with the forest id as _id, and nodes in the nodes
collection, one document per node, indexed by forest, tree and node id.
*/
package mongostore

import (
	"context"
	"fmt"

	mgo "gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"

	"github.com/AfafAlalwan/arch-forest/tree"
)

const (
	forestsCollectionName = "forests"
	nodesCollectionName   = "nodes"
)

type mongoStore struct {
	session *mgo.Session
	forest  string
}

type nodeStore struct {
	*mongoStore
	tree int
}

type headerDoc struct {
	ID          string `bson:"_id"`
	tree.Header `bson:",inline"`
}

type nodeDoc struct {
	Forest     string       `bson:"forest"`
	Tree       int          `bson:"tree"`
	ID         tree.NodeID  `bson:"id"`
	Leaf       bool         `bson:"leaf"`
	Prediction *float64     `bson:"prediction,omitempty"`
	Feature    *int         `bson:"feature,omitempty"`
	Threshold  *float64     `bson:"threshold,omitempty"`
	Left       *tree.NodeID `bson:"left,omitempty"`
	Right      *tree.NodeID `bson:"right,omitempty"`
	ProbLeft   *float64     `bson:"probLeft,omitempty"`
	ProbRight  *float64     `bson:"probRight,omitempty"`
}

/*
Open takes a context, a MongoDB database session and the id of a forest
and returns a tree.ForestStore for that forest working on the default
database for that session, or an error if the indexes on the nodes
collection cannot be ensured. The store works on a copy of the session
that is closed by the store's Close.
*/
func Open(ctx context.Context, session *mgo.Session, forest string) (tree.ForestStore, error) {
	if forest == "" {
		return nil, fmt.Errorf("opening mongo forest store: empty forest id")
	}
	ms := &mongoStore{session.Copy(), forest}
	err := ms.ensureIndexes()
	if err != nil {
		ms.session.Close()
		return nil, fmt.Errorf("opening mongo forest store: %v", err)
	}
	return ms, nil
}

func (ms *mongoStore) Header(ctx context.Context) (*tree.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := &headerDoc{}
	err := ms.forestsCollection().FindId(ms.forest).One(doc)
	if err == mgo.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving header of forest %s: %v", ms.forest, err)
	}
	return &doc.Header, nil
}

func (ms *mongoStore) SetHeader(ctx context.Context, h *tree.Header) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := ms.forestsCollection().UpsertId(ms.forest, &headerDoc{ID: ms.forest, Header: *h})
	if err != nil {
		return fmt.Errorf("storing header of forest %s: %v", ms.forest, err)
	}
	return nil
}

func (ms *mongoStore) Nodes(t int) tree.NodeStore {
	return &nodeStore{ms, t}
}

func (ms *mongoStore) Close(ctx context.Context) error {
	ms.session.Close()
	return nil
}

func (ms *mongoStore) ensureIndexes() error {
	index := mgo.Index{
		Key:        []string{"forest", "tree", "id"},
		Unique:     true,
		Background: true,
	}
	return ms.nodesCollection().EnsureIndex(index)
}

func (ms *mongoStore) forestsCollection() *mgo.Collection {
	return ms.session.DB("").C(forestsCollectionName)
}

func (ms *mongoStore) nodesCollection() *mgo.Collection {
	return ms.session.DB("").C(nodesCollectionName)
}

func (ns *nodeStore) Get(ctx context.Context, id tree.NodeID) (*tree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := &nodeDoc{}
	err := ns.nodesCollection().Find(ns.selector(id)).One(doc)
	if err == mgo.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving node %d: %v", id, err)
	}
	return doc.node()
}

func (ns *nodeStore) Store(ctx context.Context, n *tree.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := ns.nodesCollection().Upsert(ns.selector(n.ID()), newNodeDoc(ns.forest, ns.tree, n))
	if err != nil {
		return fmt.Errorf("storing node %d in mongo: %v", n.ID(), err)
	}
	return nil
}

func (ns *nodeStore) Delete(ctx context.Context, id tree.NodeID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := ns.nodesCollection().Remove(ns.selector(id))
	if err != nil && err != mgo.ErrNotFound {
		return fmt.Errorf("deleting node %d from mongo: %v", id, err)
	}
	return nil
}

func (ns *nodeStore) Close(ctx context.Context) error {
	return nil
}

func (ns *nodeStore) selector(id tree.NodeID) bson.M {
	return bson.M{"forest": ns.forest, "tree": ns.tree, "id": id}
}

func newNodeDoc(forest string, t int, n *tree.Node) *nodeDoc {
	r := n.Raw()
	return &nodeDoc{
		Forest:     forest,
		Tree:       t,
		ID:         r.ID,
		Leaf:       r.Leaf,
		Prediction: r.Prediction,
		Feature:    r.Feature,
		Threshold:  r.Threshold,
		Left:       r.Left,
		Right:      r.Right,
		ProbLeft:   r.ProbLeft,
		ProbRight:  r.ProbRight,
	}
}

func (doc *nodeDoc) node() (*tree.Node, error) {
	r := &tree.RawNode{
		ID:         doc.ID,
		Leaf:       doc.Leaf,
		Prediction: doc.Prediction,
		Feature:    doc.Feature,
		Threshold:  doc.Threshold,
		Left:       doc.Left,
		Right:      doc.Right,
		ProbLeft:   doc.ProbLeft,
		ProbRight:  doc.ProbRight,
	}
	return r.Node()
}

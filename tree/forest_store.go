package tree

import (
	"context"
	"fmt"
	"sync"
)

// Header holds the metadata of a stored forest: its
// input dimensionality, feature element type, number
// of classes and the root node id of each tree.
type Header struct {
	Dim         int      `json:"dim" yaml:"dim" msgpack:"dim" bson:"dim"`
	FeatureType string   `json:"featureType" yaml:"featureType" msgpack:"featureType" bson:"featureType"`
	NumClasses  int      `json:"numClasses" yaml:"numClasses" msgpack:"numClasses" bson:"numClasses"`
	Roots       []NodeID `json:"roots" yaml:"roots" msgpack:"roots" bson:"roots"`
}

/*
ForestStore is an interface for backends able to keep
a whole forest: a header plus one NodeStore per tree.
*/
type ForestStore interface {
	// Header returns the stored forest header, or nil
	// if none has been stored yet.
	Header(ctx context.Context) (*Header, error)
	// SetHeader stores the forest header
	SetHeader(ctx context.Context, h *Header) error
	// Nodes returns the NodeStore for the tree with the
	// given index in the forest.
	Nodes(tree int) NodeStore
	// Close frees the resources used by the store
	Close(ctx context.Context) error
}

type memoryForestStore struct {
	lock   sync.Mutex
	header *Header
	trees  map[int]NodeStore
}

// NewMemoryForestStore returns a ForestStore backed by process memory
func NewMemoryForestStore() ForestStore {
	return &memoryForestStore{trees: make(map[int]NodeStore)}
}

func (mfs *memoryForestStore) Header(ctx context.Context) (*Header, error) {
	mfs.lock.Lock()
	defer mfs.lock.Unlock()
	return mfs.header, ctx.Err()
}

func (mfs *memoryForestStore) SetHeader(ctx context.Context, h *Header) error {
	mfs.lock.Lock()
	defer mfs.lock.Unlock()
	mfs.header = h
	return ctx.Err()
}

func (mfs *memoryForestStore) Nodes(tree int) NodeStore {
	mfs.lock.Lock()
	defer mfs.lock.Unlock()
	ns, ok := mfs.trees[tree]
	if !ok {
		ns = NewMemoryNodeStore()
		mfs.trees[tree] = ns
	}
	return ns
}

func (mfs *memoryForestStore) Close(ctx context.Context) error {
	return nil
}

// LoadForest takes a context and a ForestStore and returns the
// forest kept in it, or an error if the header is missing or any
// of its trees cannot be loaded.
func LoadForest(ctx context.Context, fs ForestStore) (*Forest, error) {
	h, err := fs.Header(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading forest header: %w", err)
	}
	if h == nil {
		return nil, fmt.Errorf("loading forest: no header found")
	}
	trees := make([]*Tree, 0, len(h.Roots))
	for i, root := range h.Roots {
		t, err := Load(ctx, fs.Nodes(i), root)
		if err != nil {
			return nil, fmt.Errorf("loading tree %d: %w", i, err)
		}
		trees = append(trees, t)
	}
	return NewForest(trees, h.Dim, h.FeatureType, h.NumClasses)
}

// SaveForest takes a context, a ForestStore and a forest
// and stores every tree of the forest and its header.
// The header is stored last, so readers never find a header
// pointing to missing trees.
func SaveForest(ctx context.Context, fs ForestStore, f *Forest) error {
	for i, t := range f.Trees {
		err := Save(ctx, fs.Nodes(i), t)
		if err != nil {
			return fmt.Errorf("saving tree %d: %w", i, err)
		}
	}
	err := fs.SetHeader(ctx, f.Header())
	if err != nil {
		return fmt.Errorf("saving forest header: %w", err)
	}
	return nil
}
